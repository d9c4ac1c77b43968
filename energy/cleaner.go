package energy

// Clean drops rows without any signal, i.e. both expected value and
// performance ratio are zero, and derives the energy of the rest.
func Clean(records []Record) ([]EnergyRecord, error) {
	cleaned := make([]EnergyRecord, 0, len(records))
	for _, r := range records {
		if r.ExpectedValue == 0 && r.PerformanceRatio == 0 {
			continue
		}
		cleaned = append(cleaned, EnergyRecord{
			Record: r,
			Energy: r.ExpectedValue * r.PerformanceRatio / 100,
		})
	}

	if len(cleaned) == 0 {
		return nil, ErrNoData
	}

	return cleaned, nil
}

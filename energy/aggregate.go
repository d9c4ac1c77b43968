package energy

import (
	"slices"
	"time"
)

// Point is one (ds, y) observation of the model input.
type Point struct {
	Time  time.Time
	Value float64
}

// TimeSeries holds one point per unique timestamp in ascending order.
type TimeSeries []Point

// BuildTimeSeries sums energy per exact timestamp.
func BuildTimeSeries(records []EnergyRecord) (TimeSeries, error) {
	if len(records) == 0 {
		return nil, ErrNoData
	}

	sums := make(map[int64]float64, len(records))
	for _, r := range records {
		sums[r.Timestamp.UnixNano()] += r.Energy
	}

	ts := make(TimeSeries, 0, len(sums))
	for ns, v := range sums {
		ts = append(ts, Point{Time: time.Unix(0, ns).UTC(), Value: v})
	}
	slices.SortFunc(ts, func(a, b Point) int {
		return a.Time.Compare(b.Time)
	})

	return ts, nil
}

func (ts TimeSeries) Total() float64 {
	total := 0.0
	for _, p := range ts {
		total += p.Value
	}
	return total
}

func (ts TimeSeries) TotalForYear(year int) float64 {
	total := 0.0
	for _, p := range ts {
		if p.Time.Year() == year {
			total += p.Value
		}
	}
	return total
}

func (ts TimeSeries) First() time.Time {
	if len(ts) == 0 {
		return time.Time{}
	}
	return ts[0].Time
}

func (ts TimeSeries) Last() time.Time {
	if len(ts) == 0 {
		return time.Time{}
	}
	return ts[len(ts)-1].Time
}

package publish

import (
	"math"
	"time"

	"github.com/angas/solarforecast-go/days"
	"github.com/angas/solarforecast-go/energy"
	"github.com/angas/solarforecast-go/pipeline"
	"github.com/angas/solarforecast-go/types/maybe"
)

// Windows published with every report, in days after the last observation.
var DefaultWindows = []int{7, 30, 90, 365}

type WindowSummary struct {
	Days      int     `json:"days"`
	Start     string  `json:"start"`
	End       string  `json:"end"`
	Total     float64 `json:"total"`
	Truncated bool    `json:"truncated"`
}

type MonthSummary struct {
	Month  int                  `json:"month"`
	Energy maybe.Maybe[float64] `json:"energy"`
}

type Summary struct {
	ReportID     string          `json:"reportId"`
	Source       string          `json:"source"`
	LoadedAt     time.Time       `json:"loadedAt"`
	Model        string          `json:"model"`
	LastObserved time.Time       `json:"lastObserved"`
	Observed     float64         `json:"observed"`
	Windows      []WindowSummary `json:"windows"`
	// Months of the most recent year, months without readings are null.
	Year   int            `json:"year"`
	Months []MonthSummary `json:"months"`
}

func BuildSummary(report *pipeline.Report, windows []int) (Summary, error) {
	s := Summary{
		ReportID:     report.ID,
		Source:       report.Source,
		LoadedAt:     report.LoadedAt,
		Model:        string(report.Origin),
		LastObserved: report.Forecast.LastObserved,
		Observed:     round3(report.Series.Total()),
	}

	for _, n := range windows {
		w, err := report.Window(n)
		if err != nil {
			return Summary{}, err
		}
		s.Windows = append(s.Windows, WindowSummary{
			Days:      w.Days,
			Start:     days.FromTime(w.Start).String(),
			End:       days.FromTime(w.End).String(),
			Total:     round3(w.Total),
			Truncated: w.Truncated,
		})
	}

	if years := report.Pivot.Years(); len(years) > 0 {
		s.Year = years[len(years)-1]
		for _, m := range energy.Months {
			s.Months = append(s.Months, MonthSummary{
				Month:  int(m),
				Energy: report.Pivot.Get(s.Year, m),
			})
		}
	}

	return s, nil
}

func round3(v float64) float64 {
	return math.Round(v*1000) / 1000
}

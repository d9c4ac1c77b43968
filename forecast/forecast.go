package forecast

import (
	"context"
	"errors"
	"time"

	"github.com/angas/solarforecast-go/energy"
)

const (
	// How far past the last observation a forecast reaches by default.
	DefaultHorizonDays = 365
	MaxWindowDays      = 365
	DefaultWindowDays  = 30
)

var (
	ErrInvalidHorizon     = errors.New("invalid horizon")
	ErrUnsupportedVersion = errors.New("unsupported model version")
)

// Forecaster fits models on a time series and knows how to persist them.
// The model representation is opaque to everything but the forecaster.
type Forecaster interface {
	Fit(ctx context.Context, ts energy.TimeSeries) (Model, error)
	Marshal(m Model) ([]byte, error)
	Unmarshal(data []byte) (Model, error)
}

type Model interface {
	// Predict covers every historical timestamp followed by one point per
	// day for horizonDays days after the last observation.
	Predict(horizonDays int) (Result, error)
	LastObserved() time.Time
}

type Prediction struct {
	Time  time.Time `json:"time"`
	Value float64   `json:"value"`
	Lower float64   `json:"lower"`
	Upper float64   `json:"upper"`

	Trend  float64 `json:"trend"`
	Daily  float64 `json:"daily"`
	Weekly float64 `json:"weekly"`
	Yearly float64 `json:"yearly"`
}

type Result struct {
	Predictions  []Prediction `json:"predictions"`
	LastObserved time.Time    `json:"lastObserved"`
}

// Future returns the predictions after the last observation.
func (r Result) Future() []Prediction {
	for i, p := range r.Predictions {
		if p.Time.After(r.LastObserved) {
			return r.Predictions[i:]
		}
	}
	return nil
}

type Component struct {
	Name   string
	Values []float64
}

// Components returns the decomposition of the forecast, components that are
// zero throughout (disabled seasonality) are left out.
func (r Result) Components() []Component {
	comps := []Component{
		{Name: "trend"},
		{Name: "daily"},
		{Name: "weekly"},
		{Name: "yearly"},
	}
	for _, p := range r.Predictions {
		comps[0].Values = append(comps[0].Values, p.Trend)
		comps[1].Values = append(comps[1].Values, p.Daily)
		comps[2].Values = append(comps[2].Values, p.Weekly)
		comps[3].Values = append(comps[3].Values, p.Yearly)
	}

	out := []Component{comps[0]}
	for _, c := range comps[1:] {
		for _, v := range c.Values {
			if v != 0 {
				out = append(out, c)
				break
			}
		}
	}
	return out
}

func ValidateWindow(days int) error {
	if days < 1 || days > MaxWindowDays {
		return ErrInvalidHorizon
	}
	return nil
}

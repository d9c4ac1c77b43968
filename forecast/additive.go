package forecast

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"time"

	"github.com/angas/solarforecast-go/energy"
)

const (
	additiveVersion = 1
	day             = 24 * time.Hour
	daysPerYear     = 365.25
)

type AdditiveOptions struct {
	// Width of the uncertainty interval, between 0 and 1.
	IntervalWidth float64
	Daily         bool
	Weekly        bool
	Yearly        bool
	// Number of Fourier terms used for the yearly seasonality.
	YearlyOrder int
}

func DefaultAdditiveOptions() AdditiveOptions {
	return AdditiveOptions{
		IntervalWidth: 0.8,
		Daily:         true,
		Weekly:        true,
		Yearly:        true,
		YearlyOrder:   4,
	}
}

// Additive decomposes a series into a linear trend plus daily, weekly and
// yearly seasonality, each fitted on the residual of the previous step.
// Seasonalities are only fitted when the history covers them: daily needs
// sub-daily readings, weekly two weeks and yearly a full year.
type Additive struct {
	opts AdditiveOptions
}

func NewAdditive(opts AdditiveOptions) *Additive {
	if opts.IntervalWidth <= 0 || opts.IntervalWidth >= 1 {
		opts.IntervalWidth = 0.8
	}
	if opts.YearlyOrder < 1 {
		opts.YearlyOrder = 4
	}
	return &Additive{opts: opts}
}

type fourierTerm struct {
	Cos float64 `json:"cos"`
	Sin float64 `json:"sin"`
}

// additiveModel is also the persisted representation.
type additiveModel struct {
	Version   int           `json:"version"`
	Start     time.Time     `json:"start"`
	Intercept float64       `json:"intercept"`
	Slope     float64       `json:"slope"` // per day
	Daily     []float64     `json:"daily,omitempty"`
	Weekly    []float64     `json:"weekly,omitempty"`
	Yearly    []fourierTerm `json:"yearly,omitempty"`
	Sigma     float64       `json:"sigma"`
	Z         float64       `json:"z"`
	SpanDays  float64       `json:"spanDays"`
	History   []time.Time   `json:"history"`
}

func (a *Additive) Fit(ctx context.Context, ts energy.TimeSeries) (Model, error) {
	if len(ts) == 0 {
		return nil, energy.ErrNoData
	}

	m := &additiveModel{
		Version: additiveVersion,
		Start:   ts.First(),
		Z:       math.Sqrt2 * math.Erfinv(a.opts.IntervalWidth),
	}
	m.SpanDays = m.days(ts.Last())
	m.History = make([]time.Time, len(ts))
	for i, p := range ts {
		m.History[i] = p.Time
	}

	resid := make([]float64, len(ts))
	m.fitTrend(ts, resid)

	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("fitting trend: %w", err)
	}

	if a.opts.Daily && isSubDaily(ts) && m.SpanDays >= 2 {
		m.Daily = bucketMeans(ts, resid, 24, func(t time.Time) int { return t.Hour() })
	}
	if a.opts.Weekly && m.SpanDays >= 14 {
		m.Weekly = bucketMeans(ts, resid, 7, func(t time.Time) int { return int(t.Weekday()) })
	}

	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("fitting seasonality: %w", err)
	}

	if a.opts.Yearly && m.SpanDays >= 365 {
		m.fitYearly(ts, resid, a.opts.YearlyOrder)
	}

	sq := 0.0
	for _, r := range resid {
		sq += r * r
	}
	m.Sigma = math.Sqrt(sq / float64(len(resid)))

	return m, nil
}

func (a *Additive) Marshal(m Model) ([]byte, error) {
	am, ok := m.(*additiveModel)
	if !ok {
		return nil, fmt.Errorf("marshal model: unexpected model type %T", m)
	}
	return json.Marshal(am)
}

func (a *Additive) Unmarshal(data []byte) (Model, error) {
	var m additiveModel
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("unmarshal model: %w", err)
	}
	if m.Version != additiveVersion {
		return nil, fmt.Errorf("%w: %d", ErrUnsupportedVersion, m.Version)
	}
	if len(m.History) == 0 {
		return nil, fmt.Errorf("unmarshal model: %w", energy.ErrNoData)
	}
	return &m, nil
}

func (m *additiveModel) LastObserved() time.Time {
	return m.History[len(m.History)-1]
}

func (m *additiveModel) Predict(horizonDays int) (Result, error) {
	if horizonDays < 0 {
		return Result{}, fmt.Errorf("%w: %d days", ErrInvalidHorizon, horizonDays)
	}

	last := m.LastObserved()
	preds := make([]Prediction, 0, len(m.History)+horizonDays)
	for _, t := range m.History {
		preds = append(preds, m.predictAt(t))
	}
	for i := 1; i <= horizonDays; i++ {
		preds = append(preds, m.predictAt(last.AddDate(0, 0, i)))
	}

	return Result{Predictions: preds, LastObserved: last}, nil
}

func (m *additiveModel) predictAt(t time.Time) Prediction {
	x := m.days(t)
	p := Prediction{
		Time:  t,
		Trend: m.Intercept + m.Slope*x,
	}
	if len(m.Daily) == 24 {
		p.Daily = m.Daily[t.Hour()]
	}
	if len(m.Weekly) == 7 {
		p.Weekly = m.Weekly[int(t.Weekday())]
	}
	p.Yearly = m.yearlyAt(t)
	p.Value = p.Trend + p.Daily + p.Weekly + p.Yearly

	// The band widens the further the point is from the observed range.
	spread := 1.0
	if ahead := x - m.SpanDays; ahead > 0 && m.SpanDays > 0 {
		spread = math.Sqrt(1 + ahead/m.SpanDays)
	}
	p.Lower = p.Value - m.Z*m.Sigma*spread
	p.Upper = p.Value + m.Z*m.Sigma*spread

	return p
}

func (m *additiveModel) days(t time.Time) float64 {
	return float64(t.Sub(m.Start)) / float64(day)
}

func (m *additiveModel) fitTrend(ts energy.TimeSeries, resid []float64) {
	n := float64(len(ts))
	var sx, sy, sxx, sxy float64
	for _, p := range ts {
		x := m.days(p.Time)
		sx += x
		sy += p.Value
		sxx += x * x
		sxy += x * p.Value
	}

	den := n*sxx - sx*sx
	if den != 0 {
		m.Slope = (n*sxy - sx*sy) / den
	}
	m.Intercept = (sy - m.Slope*sx) / n

	for i, p := range ts {
		resid[i] = p.Value - (m.Intercept + m.Slope*m.days(p.Time))
	}
}

func (m *additiveModel) fitYearly(ts energy.TimeSeries, resid []float64, order int) {
	n := float64(len(ts))
	m.Yearly = make([]fourierTerm, order)
	for k := range order {
		var c, s float64
		for i, p := range ts {
			phase := yearPhase(p.Time, k+1)
			c += resid[i] * math.Cos(phase)
			s += resid[i] * math.Sin(phase)
		}
		m.Yearly[k] = fourierTerm{Cos: 2 * c / n, Sin: 2 * s / n}
	}

	for i, p := range ts {
		resid[i] -= m.yearlyAt(p.Time)
	}
}

func (m *additiveModel) yearlyAt(t time.Time) float64 {
	v := 0.0
	for k, term := range m.Yearly {
		phase := yearPhase(t, k+1)
		v += term.Cos*math.Cos(phase) + term.Sin*math.Sin(phase)
	}
	return v
}

func yearPhase(t time.Time, k int) float64 {
	x := float64(t.Unix()) / float64(day/time.Second)
	return 2 * math.Pi * float64(k) * x / daysPerYear
}

// bucketMeans returns the centered mean residual per bucket and removes it
// from resid.
func bucketMeans(ts energy.TimeSeries, resid []float64, size int, bucket func(time.Time) int) []float64 {
	sums := make([]float64, size)
	counts := make([]int, size)
	for i, p := range ts {
		b := bucket(p.Time)
		sums[b] += resid[i]
		counts[b]++
	}

	means := make([]float64, size)
	total, used := 0.0, 0
	for b := range size {
		if counts[b] > 0 {
			means[b] = sums[b] / float64(counts[b])
			total += means[b]
			used++
		}
	}
	if used > 0 {
		center := total / float64(used)
		for b := range size {
			if counts[b] > 0 {
				means[b] -= center
			}
		}
	}

	for i, p := range ts {
		resid[i] -= means[bucket(p.Time)]
	}
	return means
}

func isSubDaily(ts energy.TimeSeries) bool {
	for i := 1; i < len(ts); i++ {
		if ts[i].Time.Sub(ts[i-1].Time) < day {
			return true
		}
	}
	return false
}

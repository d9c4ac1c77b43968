package forecast

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// dailyResult has one prediction per day at 10:00, history for 3 days and
// horizon days after that, each predicting 1 kWh.
func dailyResult(horizon int) Result {
	start := time.Date(2024, 12, 29, 10, 0, 0, 0, time.UTC)
	var r Result
	for i := range 3 + horizon {
		r.Predictions = append(r.Predictions, Prediction{Time: start.AddDate(0, 0, i), Value: 1})
	}
	r.LastObserved = start.AddDate(0, 0, 2)
	return r
}

func TestDefaultStart(t *testing.T) {
	last := time.Date(2024, 12, 31, 23, 30, 0, 0, time.UTC)
	assert.Equal(t, time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC), DefaultStart(last))
}

func TestSumWindow(t *testing.T) {
	r := dailyResult(365)
	start := DefaultStart(r.LastObserved)

	tests := []struct {
		name      string
		days      int
		total     float64
		truncated bool
	}{
		{"one day", 1, 1, false},
		{"default window", DefaultWindowDays, 30, false},
		{"whole horizon", 365, 365, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w, err := SumWindow(r, start, tt.days)
			require.NoError(t, err)
			assert.Equal(t, tt.total, w.Total)
			assert.Equal(t, tt.days, w.Entries)
			assert.Equal(t, tt.truncated, w.Truncated)
			assert.Equal(t, start, w.Start)
			assert.Equal(t, start.AddDate(0, 0, tt.days-1), w.End)
		})
	}
}

func TestSumWindowTruncates(t *testing.T) {
	r := dailyResult(10)
	w, err := SumWindow(r, DefaultStart(r.LastObserved), 30)
	require.NoError(t, err)
	assert.True(t, w.Truncated)
	assert.Equal(t, 10.0, w.Total)
	assert.Equal(t, 10, w.Entries)
}

func TestSumWindowIncludesHistory(t *testing.T) {
	r := dailyResult(5)
	start := time.Date(2024, 12, 30, 18, 0, 0, 0, time.UTC)
	w, err := SumWindow(r, start, 3)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 12, 30, 0, 0, 0, 0, time.UTC), w.Start)
	assert.Equal(t, 3.0, w.Total)
}

func TestSumWindowSubDaily(t *testing.T) {
	start := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	var r Result
	for h := range 72 {
		r.Predictions = append(r.Predictions, Prediction{Time: start.Add(time.Duration(h) * time.Hour), Value: 0.5})
	}

	w, err := SumWindow(r, start, 2)
	require.NoError(t, err)
	assert.Equal(t, 24.0, w.Total)
	assert.Equal(t, 48, w.Entries)
}

func TestSumWindowRejectsHorizon(t *testing.T) {
	r := dailyResult(10)
	for _, days := range []int{0, -1, MaxWindowDays + 1} {
		_, err := SumWindow(r, DefaultStart(r.LastObserved), days)
		assert.ErrorIs(t, err, ErrInvalidHorizon, "days=%d", days)
	}
}

package forecast

import (
	"fmt"
	"time"

	"github.com/angas/solarforecast-go/days"
)

// Window is the predicted energy summed over an inclusive range of
// calendar days, [Start, End].
type Window struct {
	Start   time.Time
	End     time.Time
	Days    int
	Entries int
	Total   float64
	// Truncated is set when the range reaches past the forecast, Total then
	// only covers the available predictions.
	Truncated bool
}

// DefaultStart is the calendar day after the last observation.
func DefaultStart(lastObserved time.Time) time.Time {
	return days.FromTime(lastObserved).Add(1).Time()
}

// SumWindow sums Value of every prediction whose UTC calendar date falls in
// [start, start+n-1]. n must be within [1, MaxWindowDays].
func SumWindow(r Result, start time.Time, n int) (Window, error) {
	if err := ValidateWindow(n); err != nil {
		return Window{}, fmt.Errorf("%w: %d days, must be between 1 and %d", err, n, MaxWindowDays)
	}

	first := days.FromTime(start)
	last := first.Add(n - 1)
	w := Window{Start: first.Time(), End: last.Time(), Days: n}

	var lastAvailable days.Date
	for _, p := range r.Predictions {
		d := days.FromTime(p.Time)
		if lastAvailable.IsZero() || d.Compare(lastAvailable) > 0 {
			lastAvailable = d
		}
		if d.Compare(first) < 0 || d.Compare(last) > 0 {
			continue
		}
		w.Total += p.Value
		w.Entries++
	}

	w.Truncated = lastAvailable.IsZero() || lastAvailable.Compare(last) < 0

	return w, nil
}

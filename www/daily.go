package www

import (
	"fmt"
	"net/http"
	"time"

	"github.com/angas/solarforecast-go/days"
)

// dayRange is the half open index range [From, To) of consecutive items that
// fall on the same UTC calendar day.
type dayRange struct {
	Date days.Date
	From int
	To   int
}

// groupByDay expects items sorted by time.
func groupByDay[T any](items []T, when func(T) time.Time) []dayRange {
	var out []dayRange
	for i, item := range items {
		d := days.FromTime(when(item))
		if n := len(out); n > 0 && out[n-1].Date == d {
			out[n-1].To = i + 1
			continue
		}
		out = append(out, dayRange{Date: d, From: i, To: i + 1})
	}
	return out
}

func dayLabels(ranges []dayRange) []string {
	labels := make([]string, len(ranges))
	for i, r := range ranges {
		labels[i] = r.Date.String()
	}
	return labels
}

// dateSpan limits a chart to the days in [From, To], a zero bound is open.
type dateSpan struct {
	From days.Date
	To   days.Date
}

// parseDateSpan reads the optional from and to query values.
func parseDateSpan(r *http.Request) (dateSpan, error) {
	var span dateSpan
	for _, p := range []struct {
		name string
		dst  *days.Date
	}{{"from", &span.From}, {"to", &span.To}} {
		q := r.URL.Query().Get(p.name)
		if q == "" {
			continue
		}
		d, err := days.Parse(q)
		if err != nil {
			return dateSpan{}, fmt.Errorf("invalid %s date: %w", p.name, err)
		}
		*p.dst = d
	}
	if !span.From.IsZero() && !span.To.IsZero() && span.From.Compare(span.To) > 0 {
		return dateSpan{}, fmt.Errorf("from %s is after to %s", span.From, span.To)
	}
	return span, nil
}

func (s dateSpan) clip(ranges []dayRange) []dayRange {
	out := ranges[:0:0]
	for _, r := range ranges {
		if !s.From.IsZero() && r.Date.Compare(s.From) < 0 {
			continue
		}
		if !s.To.IsZero() && r.Date.Compare(s.To) > 0 {
			continue
		}
		out = append(out, r)
	}
	return out
}

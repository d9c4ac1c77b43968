package energy

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

const (
	ColumnTimestamp        = "Date and Time"
	ColumnExpectedValue    = "Expected Value kWh"
	ColumnPerformanceRatio = "PR %"
)

var ErrNoData = errors.New("no data")

type Record struct {
	Timestamp        time.Time
	ExpectedValue    float64 // kWh
	PerformanceRatio float64 // percentage, 0-100
}

type EnergyRecord struct {
	Record
	Energy float64 // kWh, ExpectedValue adjusted by PerformanceRatio
}

// ValidationError is returned when the input can't be processed at all,
// either a required column is missing or a cell is malformed.
type ValidationError struct {
	Columns []string
	Row     int // 1-based data row, 0 for header problems
	Value   string
	Err     error
}

func (e *ValidationError) Error() string {
	var b strings.Builder
	b.WriteString("validation error")
	if e.Row > 0 {
		fmt.Fprintf(&b, " at row %d", e.Row)
	}
	if len(e.Columns) == 1 && e.Row > 0 {
		fmt.Fprintf(&b, ", column %q", e.Columns[0])
	} else if len(e.Columns) > 0 {
		fmt.Fprintf(&b, ", missing columns %q", e.Columns)
	}
	if e.Value != "" {
		fmt.Fprintf(&b, ", value %q", e.Value)
	}
	if e.Err != nil {
		fmt.Fprintf(&b, ": %v", e.Err)
	}
	return b.String()
}

func (e *ValidationError) Unwrap() error {
	return e.Err
}

package energy

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"strconv"
	"strings"
	"time"
)

var timestampLayouts = []string{
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02",
	"2006/01/02 15:04:05",
	"2006/01/02 15:04",
	"01/02/2006 15:04:05",
	"01/02/2006 15:04",
	"01/02/2006",
	"02.01.2006 15:04",
}

func LoadFile(path string) ([]Record, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open dataset %s: %w", path, err)
	}
	defer f.Close()

	return LoadCSV(f)
}

// LoadCSV reads telemetry rows. The header must contain the timestamp,
// expected value and performance ratio columns, in any order. Numeric cells
// must be finite, NaN and Inf are rejected like any other bad value.
func LoadCSV(r io.Reader) ([]Record, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if errors.Is(err, io.EOF) {
		return nil, &ValidationError{
			Columns: []string{ColumnTimestamp, ColumnExpectedValue, ColumnPerformanceRatio},
			Err:     errors.New("empty file"),
		}
	}
	if err != nil {
		return nil, fmt.Errorf("read csv header: %w", err)
	}

	colMap := make(map[string]int, len(header))
	for i, col := range header {
		col = strings.TrimSpace(strings.TrimPrefix(col, "\ufeff"))
		colMap[col] = i
	}

	var missing []string
	for _, col := range []string{ColumnTimestamp, ColumnExpectedValue, ColumnPerformanceRatio} {
		if _, ok := colMap[col]; !ok {
			missing = append(missing, col)
		}
	}
	if len(missing) > 0 {
		return nil, &ValidationError{Columns: missing}
	}

	tsIdx := colMap[ColumnTimestamp]
	evIdx := colMap[ColumnExpectedValue]
	prIdx := colMap[ColumnPerformanceRatio]

	var records []Record
	for row := 1; ; row++ {
		line, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, &ValidationError{Row: row, Err: err}
		}
		if isBlank(line) {
			continue
		}

		cell := func(idx int) string {
			if idx >= len(line) {
				return ""
			}
			return strings.TrimSpace(line[idx])
		}

		ts, err := ParseTimestamp(cell(tsIdx))
		if err != nil {
			return nil, &ValidationError{Columns: []string{ColumnTimestamp}, Row: row, Value: cell(tsIdx), Err: err}
		}
		ev, err := parseNumber(cell(evIdx))
		if err != nil {
			return nil, &ValidationError{Columns: []string{ColumnExpectedValue}, Row: row, Value: cell(evIdx), Err: err}
		}
		pr, err := parseNumber(cell(prIdx))
		if err != nil {
			return nil, &ValidationError{Columns: []string{ColumnPerformanceRatio}, Row: row, Value: cell(prIdx), Err: err}
		}

		records = append(records, Record{
			Timestamp:        ts,
			ExpectedValue:    ev,
			PerformanceRatio: pr,
		})
	}

	return records, nil
}

// ParseTimestamp tries the known layouts in order, values without an
// offset are taken as UTC.
func ParseTimestamp(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, errors.New("empty timestamp")
	}
	for _, layout := range timestampLayouts {
		if t, err := time.ParseInLocation(layout, s, time.UTC); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized timestamp format")
}

func parseNumber(s string) (float64, error) {
	if s == "" {
		return 0, errors.New("empty value")
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, errors.New("not a number")
	}
	return f, nil
}

func isBlank(line []string) bool {
	for _, v := range line {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}

package energy

import (
	"errors"
	"math"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ts(s string) time.Time {
	t, err := ParseTimestamp(s)
	if err != nil {
		panic(err)
	}
	return t
}

func TestLoadCSV(t *testing.T) {
	in := "\ufeffSite,Date and Time,PR %,Expected Value kWh\n" +
		"a,2023-01-01 10:00:00,50,10\n" +
		"a,2023-01-01 11:00:00,0,0\n" +
		",,,\n" +
		"a,2023-01-01 12:00,100,20\n"

	records, err := LoadCSV(strings.NewReader(in))
	require.NoError(t, err)
	require.Len(t, records, 3)

	assert.Equal(t, ts("2023-01-01 10:00:00"), records[0].Timestamp)
	assert.Equal(t, 10.0, records[0].ExpectedValue)
	assert.Equal(t, 50.0, records[0].PerformanceRatio)
	assert.Equal(t, 12, records[2].Timestamp.Hour())
}

func TestLoadCSVMissingColumns(t *testing.T) {
	_, err := LoadCSV(strings.NewReader("Date and Time,Value\n2023-01-01,1\n"))

	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, []string{ColumnExpectedValue, ColumnPerformanceRatio}, verr.Columns)
	assert.Contains(t, err.Error(), "PR %")
}

func TestLoadCSVEmpty(t *testing.T) {
	_, err := LoadCSV(strings.NewReader(""))

	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
}

func TestLoadCSVBadCells(t *testing.T) {
	tests := []struct {
		name   string
		row    string
		column string
	}{
		{"bad timestamp", "yesterday,10,50", ColumnTimestamp},
		{"bad expected value", "2023-01-01,ten,50", ColumnExpectedValue},
		{"blank performance ratio", "2023-01-01,10,", ColumnPerformanceRatio},
		{"nan expected value", "2023-01-01,NaN,50", ColumnExpectedValue},
		{"infinite expected value", "2023-01-01,Inf,50", ColumnExpectedValue},
		{"infinite performance ratio", "2023-01-01,10,-Inf", ColumnPerformanceRatio},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := "Date and Time,Expected Value kWh,PR %\n2023-01-01,1,1\n" + tt.row + "\n"
			records, err := LoadCSV(strings.NewReader(in))
			assert.Nil(t, records)

			var verr *ValidationError
			require.ErrorAs(t, err, &verr)
			assert.Equal(t, 2, verr.Row)
			assert.Equal(t, []string{tt.column}, verr.Columns)
		})
	}
}

func TestParseTimestamp(t *testing.T) {
	want := time.Date(2023, 3, 4, 5, 6, 0, 0, time.UTC)
	for _, s := range []string{
		"2023-03-04 05:06:00",
		"2023-03-04 05:06",
		"2023-03-04T05:06:00Z",
		"2023-03-04T07:06:00+02:00",
		"03/04/2023 05:06",
		"03/04/2023 05:06:00",
		"2023/03/04 05:06",
		"2023/03/04 05:06:00",
		"04.03.2023 05:06",
	} {
		got, err := ParseTimestamp(s)
		require.NoError(t, err, s)
		assert.True(t, want.Equal(got), "%s parsed as %s", s, got)
	}

	_, err := ParseTimestamp("")
	assert.Error(t, err)
}

func sampleRecords() []Record {
	return []Record{
		{Timestamp: ts("2023-01-01 10:00"), ExpectedValue: 10, PerformanceRatio: 50},
		{Timestamp: ts("2023-01-01 11:00"), ExpectedValue: 0, PerformanceRatio: 0},
		{Timestamp: ts("2023-01-01 12:00"), ExpectedValue: 20, PerformanceRatio: 100},
	}
}

func TestClean(t *testing.T) {
	cleaned, err := Clean(sampleRecords())
	require.NoError(t, err)
	require.Len(t, cleaned, 2)

	assert.Equal(t, 5.0, cleaned[0].Energy)
	assert.Equal(t, 20.0, cleaned[1].Energy)
	assert.Equal(t, ts("2023-01-01 12:00"), cleaned[1].Timestamp)
}

func TestCleanKeepsPartialSignal(t *testing.T) {
	records := []Record{
		{Timestamp: ts("2023-01-01"), ExpectedValue: 0, PerformanceRatio: 80},
		{Timestamp: ts("2023-01-02"), ExpectedValue: 12, PerformanceRatio: 0},
		{Timestamp: ts("2023-01-03"), ExpectedValue: -4, PerformanceRatio: 50},
	}

	cleaned, err := Clean(records)
	require.NoError(t, err)
	require.Len(t, cleaned, len(records))
	for i, r := range cleaned {
		assert.Equal(t, records[i].ExpectedValue*records[i].PerformanceRatio/100, r.Energy)
	}
}

func TestCleanNoData(t *testing.T) {
	_, err := Clean([]Record{{Timestamp: ts("2023-01-01")}})
	assert.ErrorIs(t, err, ErrNoData)

	_, err = Clean(nil)
	assert.ErrorIs(t, err, ErrNoData)
}

func TestBuildTimeSeries(t *testing.T) {
	cleaned, err := Clean(sampleRecords())
	require.NoError(t, err)

	series, err := BuildTimeSeries(cleaned)
	require.NoError(t, err)
	assert.Equal(t, TimeSeries{
		{Time: ts("2023-01-01 10:00"), Value: 5},
		{Time: ts("2023-01-01 12:00"), Value: 20},
	}, series)
}

func TestBuildTimeSeriesSumsDuplicates(t *testing.T) {
	records := []EnergyRecord{
		{Record: Record{Timestamp: ts("2023-02-01 10:00")}, Energy: 1.5},
		{Record: Record{Timestamp: ts("2023-01-01 10:00")}, Energy: 2},
		{Record: Record{Timestamp: ts("2023-02-01 10:00")}, Energy: 3},
		{Record: Record{Timestamp: ts("2024-01-01 10:00")}, Energy: 7},
	}

	series, err := BuildTimeSeries(records)
	require.NoError(t, err)
	require.Len(t, series, 3)

	assert.Equal(t, ts("2023-01-01 10:00"), series.First())
	assert.Equal(t, ts("2024-01-01 10:00"), series.Last())
	assert.Equal(t, 4.5, series[1].Value)

	sum := 0.0
	for _, r := range records {
		sum += r.Energy
	}
	assert.InDelta(t, sum, series.Total(), 1e-9)

	_, err = BuildTimeSeries(nil)
	assert.ErrorIs(t, err, ErrNoData)
}

func TestBuildMonthlyPivot(t *testing.T) {
	records := []EnergyRecord{
		{Record: Record{Timestamp: ts("2023-02-10")}, Energy: 50},
		{Record: Record{Timestamp: ts("2023-01-10")}, Energy: 60},
		{Record: Record{Timestamp: ts("2023-01-20")}, Energy: 40},
		{Record: Record{Timestamp: ts("2022-12-31")}, Energy: 8},
	}

	pivot, err := BuildMonthlyPivot(records)
	require.NoError(t, err)

	assert.Equal(t, []int{2022, 2023}, pivot.Years())
	assert.Equal(t, 150.0, pivot.YearTotal(2023))
	assert.Equal(t, 100.0, pivot.Get(2023, time.January).Value())
	assert.False(t, pivot.Get(2023, time.March).IsValid())
	assert.False(t, pivot.Get(2021, time.January).IsValid())
	_, present := pivot[2023][time.March]
	assert.False(t, present, "missing months must not be zero-filled")

	rows := pivot.Rows()
	require.Len(t, rows, 2)
	assert.Equal(t, 2022, rows[0].Year)
	assert.Equal(t, 8.0, rows[0].Months[11].Value())
	assert.Equal(t, 100.0, rows[1].Months[0].Value())
	assert.Equal(t, 50.0, rows[1].Months[1].Value())
	assert.False(t, rows[1].Months[2].IsValid())
	assert.Equal(t, 150.0, rows[1].Total)

	series, err := BuildTimeSeries(records)
	require.NoError(t, err)
	for _, y := range pivot.Years() {
		assert.InDelta(t, series.TotalForYear(y), pivot.YearTotal(y), 1e-9)
	}

	_, err = BuildMonthlyPivot(nil)
	assert.True(t, errors.Is(err, ErrNoData))
}

func TestPipelineProperties(t *testing.T) {
	var records []Record
	start := ts("2022-11-01")
	for i := range 24 * 120 {
		ev := float64(i%17) * 0.7
		pr := float64(i%5) * 20
		records = append(records, Record{
			Timestamp:        start.Add(time.Duration(i/2) * time.Hour),
			ExpectedValue:    ev,
			PerformanceRatio: pr,
		})
	}

	cleaned, err := Clean(records)
	require.NoError(t, err)

	kept := 0
	for _, r := range records {
		if !(r.ExpectedValue == 0 && r.PerformanceRatio == 0) {
			kept++
		}
	}
	assert.Equal(t, kept, len(cleaned))

	total := 0.0
	for _, r := range cleaned {
		assert.False(t, r.ExpectedValue == 0 && r.PerformanceRatio == 0)
		assert.Equal(t, r.ExpectedValue*r.PerformanceRatio/100, r.Energy)
		total += r.Energy
	}

	series, err := BuildTimeSeries(cleaned)
	require.NoError(t, err)
	assert.InDelta(t, total, series.Total(), 1e-6)
	for i := 1; i < len(series); i++ {
		assert.True(t, series[i-1].Time.Before(series[i].Time))
	}

	pivot, err := BuildMonthlyPivot(cleaned)
	require.NoError(t, err)
	for _, y := range pivot.Years() {
		assert.True(t, math.Abs(series.TotalForYear(y)-pivot.YearTotal(y)) < 1e-6)
	}
}

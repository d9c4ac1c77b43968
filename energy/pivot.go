package energy

import (
	"slices"
	"time"

	"github.com/angas/solarforecast-go/types/maybe"
)

// Months in reporting order, independent of the order they are seen in.
var Months = []time.Month{
	time.January, time.February, time.March, time.April,
	time.May, time.June, time.July, time.August,
	time.September, time.October, time.November, time.December,
}

// MonthlyPivot maps year -> month -> summed energy. Year/month combinations
// without data are absent, not zero.
type MonthlyPivot map[int]map[time.Month]float64

type PivotRow struct {
	Year   int
	Months [12]maybe.Maybe[float64] // January..December
	Total  float64
}

func BuildMonthlyPivot(records []EnergyRecord) (MonthlyPivot, error) {
	if len(records) == 0 {
		return nil, ErrNoData
	}

	p := make(MonthlyPivot)
	for _, r := range records {
		year, month := r.Timestamp.Year(), r.Timestamp.Month()
		if _, ok := p[year]; !ok {
			p[year] = make(map[time.Month]float64, 12)
		}
		p[year][month] += r.Energy
	}

	return p, nil
}

func (p MonthlyPivot) Years() []int {
	years := make([]int, 0, len(p))
	for y := range p {
		years = append(years, y)
	}
	slices.Sort(years)
	return years
}

func (p MonthlyPivot) Get(year int, month time.Month) maybe.Maybe[float64] {
	months, ok := p[year]
	if !ok {
		return maybe.None[float64]()
	}
	v, ok := months[month]
	if !ok {
		return maybe.None[float64]()
	}
	return maybe.Some(v)
}

func (p MonthlyPivot) YearTotal(year int) float64 {
	total := 0.0
	for _, v := range p[year] {
		total += v
	}
	return total
}

// Rows returns the pivot as a year x month grid, years ascending.
func (p MonthlyPivot) Rows() []PivotRow {
	years := p.Years()
	rows := make([]PivotRow, 0, len(years))
	for _, y := range years {
		row := PivotRow{Year: y, Total: p.YearTotal(y)}
		for i, m := range Months {
			row.Months[i] = p.Get(y, m)
		}
		rows = append(rows, row)
	}
	return rows
}

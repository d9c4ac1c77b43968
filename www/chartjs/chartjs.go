package chartjs

import (
	"math"

	"github.com/angas/solarforecast-go/types/maybe"
)

const (
	ColorYellow = "#ffc107d4"
	ColorRed    = "#f44336d4"
	ColorBlue   = "#2196f3d4"
	ColorGreen  = "#4caf50d4"
	ColorBand   = "#2196f333"
)

// Palette is cycled through for charts with one dataset per year.
var Palette = []string{
	ColorYellow, ColorBlue, ColorGreen, ColorRed,
	"#9c27b0d4", "#ff9800d4", "#00bcd4d4", "#795548d4",
}

const (
	TypeLine = "line"
	TypeBar  = "bar"
)

const (
	AxisX = "x"
	AxisY = "y"
)

func NewChart(chartType, title string, labels []string) Chart {
	chart := Chart{
		Type: chartType,
		Data: ChartData{
			Labels:   labels,
			Datasets: []*ChartDataset{},
		},
		Options: ChartOptions{
			Responsive: true,
			Plugins: ChartPlugins{
				Legend: ChartLegend{Display: true},
				Title:  ChartTitle{Display: false},
			},
			Scales: map[string]ChartScale{
				AxisX: {Display: true},
				AxisY: {Type: "linear", Display: true, Position: "left"},
			},
		},
	}

	if title != "" {
		chart.Options.Plugins.Title = ChartTitle{Display: true, Text: title}
	}

	return chart
}

// AddDataset appends a dataset with room for one value per label.
func (c *Chart) AddDataset(label, color string) *ChartDataset {
	ds := &ChartDataset{
		Label:           label,
		Data:            make([]*float64, len(c.Data.Labels)),
		BorderWidth:     1,
		Fill:            false,
		BorderColor:     color,
		BackgroundColor: color,
	}
	if c.Type == TypeLine {
		ds.Tension = 0.4
		ds.PointRadius = new(int)
	}
	c.Data.Datasets = append(c.Data.Datasets, ds)
	return ds
}

func (c *Chart) WithYTitle(title string) *Chart {
	c.Options.Scales[AxisY] = c.Options.Scales[AxisY].WithTitle(title)
	return c
}

func (cs ChartScale) WithTitle(title string) ChartScale {
	cs.Title.Display = title != ""
	cs.Title.Text = title
	return cs
}

func (cs ChartScale) WithMinAndMax(min, max float64) ChartScale {
	cs.Min = &min
	cs.Max = &max
	return cs
}

func FixedFloat64(num float64, precision int) *float64 {
	p := math.Pow(10, float64(precision))
	rounded := math.Round(num * p)
	result := rounded / p
	return &result
}

// FromMaybe returns nil for a missing value, which Chart.js renders as a gap.
func FromMaybe(m maybe.Maybe[float64], precision int) *float64 {
	if !m.IsValid() {
		return nil
	}
	return FixedFloat64(m.Value(), precision)
}

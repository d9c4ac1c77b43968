package www

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/angas/solarforecast-go/energy"
	"github.com/angas/solarforecast-go/forecast"
	"github.com/angas/solarforecast-go/pipeline"
	"github.com/angas/solarforecast-go/www/chartjs"
)

// chartBuilder renders the report, day based charts only include the days
// inside span.
type chartBuilder func(report *pipeline.Report, span dateSpan) chartjs.Chart

func NewChartHandler(logger *slog.Logger, svc *pipeline.Service, build chartBuilder) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		report, ok := svc.Latest()
		if !ok {
			http.Error(w, errNoReport.Error(), http.StatusNotFound)
			return
		}
		span, err := parseDateSpan(r)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(build(report, span)); err != nil {
			logger.Error("handling chart request", slog.Any("error", err))
			http.Error(w, "unable to encode chart", http.StatusInternalServerError)
		}
	}
}

// energyChart plots the cleaned energy per day.
func energyChart(report *pipeline.Report, span dateSpan) chartjs.Chart {
	ranges := span.clip(groupByDay(report.Series, func(p energy.Point) time.Time { return p.Time }))
	chart := chartjs.NewChart(chartjs.TypeLine, "Energy over time", dayLabels(ranges))
	chart.WithYTitle("Energy (kWh)")
	chart.Options.Plugins.Legend.Display = false

	ds := chart.AddDataset("Energy", chartjs.ColorYellow)
	for i, rg := range ranges {
		sum := 0.0
		for _, p := range report.Series[rg.From:rg.To] {
			sum += p.Value
		}
		ds.Data[i] = chartjs.FixedFloat64(sum, 2)
	}
	return chart
}

// monthlyChart groups the bars by month with one dataset per year, months
// without readings are left as gaps.
func monthlyChart(report *pipeline.Report, _ dateSpan) chartjs.Chart {
	labels := make([]string, len(energy.Months))
	for i, m := range energy.Months {
		labels[i] = m.String()[:3]
	}
	chart := chartjs.NewChart(chartjs.TypeBar, "Monthly energy", labels)
	chart.WithYTitle("Energy (kWh)")

	for i, row := range report.Pivot.Rows() {
		ds := chart.AddDataset(fmt.Sprint(row.Year), chartjs.Palette[i%len(chartjs.Palette)])
		for m, cell := range row.Months {
			ds.Data[m] = chartjs.FromMaybe(cell, 2)
		}
	}
	return chart
}

// forecastChart shows the actual and predicted energy per day, the
// uncertainty band is drawn by filling the upper bound down to the lower one.
func forecastChart(report *pipeline.Report, span dateSpan) chartjs.Chart {
	preds := report.Forecast.Predictions
	ranges := span.clip(groupByDay(preds, func(p forecast.Prediction) time.Time { return p.Time }))
	chart := chartjs.NewChart(chartjs.TypeLine, "Forecast", dayLabels(ranges))
	chart.WithYTitle("Energy (kWh)")

	actualByDay := make(map[string]float64)
	for _, rg := range groupByDay(report.Series, func(p energy.Point) time.Time { return p.Time }) {
		for _, p := range report.Series[rg.From:rg.To] {
			actualByDay[rg.Date.String()] += p.Value
		}
	}

	actual := chart.AddDataset("Actual", chartjs.ColorYellow)
	predicted := chart.AddDataset("Forecast", chartjs.ColorBlue)
	lower := chart.AddDataset("Lower", chartjs.ColorBand)
	upper := chart.AddDataset("Upper", chartjs.ColorBand)
	upper.Fill = "-1"

	for i, rg := range ranges {
		var value, lo, hi float64
		for _, p := range preds[rg.From:rg.To] {
			value += p.Value
			lo += p.Lower
			hi += p.Upper
		}
		predicted.Data[i] = chartjs.FixedFloat64(value, 2)
		lower.Data[i] = chartjs.FixedFloat64(lo, 2)
		upper.Data[i] = chartjs.FixedFloat64(hi, 2)
		if v, ok := actualByDay[rg.Date.String()]; ok {
			actual.Data[i] = chartjs.FixedFloat64(v, 2)
		}
	}
	return chart
}

// componentsChart plots the daily mean of each forecast component.
func componentsChart(report *pipeline.Report, span dateSpan) chartjs.Chart {
	preds := report.Forecast.Predictions
	ranges := span.clip(groupByDay(preds, func(p forecast.Prediction) time.Time { return p.Time }))
	chart := chartjs.NewChart(chartjs.TypeLine, "Forecast components", dayLabels(ranges))
	chart.WithYTitle("Energy (kWh)")

	for i, comp := range report.Forecast.Components() {
		ds := chart.AddDataset(comp.Name, chartjs.Palette[i%len(chartjs.Palette)])
		for j, rg := range ranges {
			sum := 0.0
			for _, v := range comp.Values[rg.From:rg.To] {
				sum += v
			}
			ds.Data[j] = chartjs.FixedFloat64(sum/float64(rg.To-rg.From), 3)
		}
	}
	return chart
}

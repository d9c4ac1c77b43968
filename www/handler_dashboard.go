package www

import (
	"log/slog"
	"net/http"

	"github.com/angas/solarforecast-go/forecast"
	"github.com/angas/solarforecast-go/pipeline"
)

type dashboardTemplData struct {
	Version string
	Status  *reportTemplData
	MaxDays int
}

func NewDashboardHandler(logger *slog.Logger, tm *TemplateManager, svc *pipeline.Service, version string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		data := dashboardTemplData{Version: version, MaxDays: forecast.MaxWindowDays}
		if report, ok := svc.Latest(); ok {
			data.Status = &reportTemplData{Report: report, Action: "Loaded"}
		}
		if err := render(w, tm, "index.html", data); err != nil {
			logger.Error("handling dashboard request", slog.Any("error", err))
		}
	}
}

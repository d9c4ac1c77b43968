package www

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/angas/solarforecast-go/energy"
	"github.com/angas/solarforecast-go/pipeline"
)

// NewRetrainHandler drops the cached model and fits a new one on the current
// dataset.
func NewRetrainHandler(logger *slog.Logger, tm *TemplateManager, svc *pipeline.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		report, err := svc.Retrain(r.Context())
		if errors.Is(err, energy.ErrNoData) {
			http.Error(w, errNoReport.Error(), http.StatusConflict)
			return
		}
		if err != nil {
			logger.Error("handling retrain request", slog.Any("error", err))
			http.Error(w, err.Error(), statusFor(err))
			return
		}

		if err := render(w, tm, "report.html", reportTemplData{Report: report, Action: "Retrained"}); err != nil {
			logger.Error("handling retrain request", slog.Any("error", err))
		}
	}
}

package www

import (
	"log/slog"
	"net/http"

	"github.com/angas/solarforecast-go/energy"
	"github.com/angas/solarforecast-go/pipeline"
)

type monthlyTemplData struct {
	Months []string
	Rows   []energy.PivotRow
}

func NewMonthlyHandler(logger *slog.Logger, tm *TemplateManager, svc *pipeline.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		data := monthlyTemplData{}
		for _, m := range energy.Months {
			data.Months = append(data.Months, m.String()[:3])
		}
		if report, ok := svc.Latest(); ok {
			data.Rows = report.Pivot.Rows()
		}

		if err := render(w, tm, "monthly.html", data); err != nil {
			logger.Error("handling monthly request", slog.Any("error", err))
		}
	}
}

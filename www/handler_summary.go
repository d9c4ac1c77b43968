package www

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/angas/solarforecast-go/days"
	"github.com/angas/solarforecast-go/forecast"
	"github.com/angas/solarforecast-go/pipeline"
	"github.com/gorilla/sessions"
)

const (
	sessionName    = "solarforecast"
	windowDaysKey  = "window_days"
	badDaysMessage = "days must be a whole number between 1 and %d"
)

type summaryTemplData struct {
	Report       *pipeline.Report
	Window       forecast.Window
	Days         int
	MaxDays      int
	HistoryTotal float64
}

// windowDays returns the window length from the query, falling back to the
// one remembered in the session and then the configured default. A valid
// query value is stored in the session.
func windowDays(logger *slog.Logger, store sessions.Store, w http.ResponseWriter, r *http.Request, defaultDays int) (int, error) {
	session, err := store.Get(r, sessionName)
	if err != nil {
		// A cookie signed with an old key, a fresh session is returned anyway.
		logger.Debug("session decode failed", slog.Any("error", err))
	}

	q := r.URL.Query().Get("days")
	if q == "" {
		if n, ok := session.Values[windowDaysKey].(int); ok && forecast.ValidateWindow(n) == nil {
			return n, nil
		}
		return defaultDays, nil
	}

	n, err := strconv.Atoi(q)
	if err != nil || forecast.ValidateWindow(n) != nil {
		return 0, fmt.Errorf("%w: "+badDaysMessage, forecast.ErrInvalidHorizon, forecast.MaxWindowDays)
	}

	session.Values[windowDaysKey] = n
	if err := session.Save(r, w); err != nil {
		logger.Warn("session save failed", slog.Any("error", err))
	}
	return n, nil
}

func NewSummaryHandler(logger *slog.Logger, tm *TemplateManager, svc *pipeline.Service, store sessions.Store, defaultDays int) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		n, err := windowDays(logger, store, w, r, defaultDays)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}

		data := summaryTemplData{Days: n, MaxDays: forecast.MaxWindowDays}
		if report, ok := svc.Latest(); ok {
			window, err := report.Window(n)
			if err != nil {
				logger.Error("handling summary request", slog.Any("error", err))
				http.Error(w, err.Error(), statusFor(err))
				return
			}
			data.Report = report
			data.Window = window
			data.HistoryTotal = report.Series.Total()
		}

		if err := render(w, tm, "summary.html", data); err != nil {
			logger.Error("handling summary request", slog.Any("error", err))
		}
	}
}

type windowResponse struct {
	ReportID  string    `json:"reportId"`
	Start     string    `json:"start"`
	End       string    `json:"end"`
	Days      int       `json:"days"`
	Entries   int       `json:"entries"`
	Total     float64   `json:"total"`
	Truncated bool      `json:"truncated"`
	LastSeen  time.Time `json:"lastObserved"`
}

// NewWindowHandler answers GET /api/window?days=N&start=YYYY-MM-DD with the
// predicted total as JSON. start defaults to the day after the last
// observation.
func NewWindowHandler(logger *slog.Logger, svc *pipeline.Service, defaultDays int) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		report, ok := svc.Latest()
		if !ok {
			http.Error(w, errNoReport.Error(), http.StatusNotFound)
			return
		}

		n := defaultDays
		if q := r.URL.Query().Get("days"); q != "" {
			v, err := strconv.Atoi(q)
			if err != nil {
				http.Error(w, fmt.Sprintf(badDaysMessage, forecast.MaxWindowDays), http.StatusBadRequest)
				return
			}
			n = v
		}

		start := report.DefaultWindowStart()
		if q := r.URL.Query().Get("start"); q != "" {
			d, err := days.Parse(q)
			if err != nil {
				http.Error(w, err.Error(), http.StatusBadRequest)
				return
			}
			start = d.Time()
		}

		window, err := forecast.SumWindow(report.Forecast, start, n)
		if err != nil {
			http.Error(w, err.Error(), statusFor(err))
			return
		}

		w.Header().Set("Content-Type", "application/json")
		err = json.NewEncoder(w).Encode(windowResponse{
			ReportID:  report.ID,
			Start:     days.FromTime(window.Start).String(),
			End:       days.FromTime(window.End).String(),
			Days:      window.Days,
			Entries:   window.Entries,
			Total:     window.Total,
			Truncated: window.Truncated,
			LastSeen:  report.Forecast.LastObserved,
		})
		if err != nil {
			logger.Error("handling window request", slog.Any("error", err))
		}
	}
}

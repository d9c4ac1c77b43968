package www

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/angas/solarforecast-go/database"
)

type LogReader interface {
	GetLogEntries(ctx context.Context, minLvl slog.Level, page, pageSize int) ([]database.LogEntryRow, error)
}

func NewLogHandler(logger *slog.Logger, db LogReader, tm *TemplateManager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		page, err := strconv.Atoi(r.URL.Query().Get("page"))
		if err != nil || page < 1 {
			if err := render(w, tm, "log.html", nil); err != nil {
				logger.Error("handling log request", slog.Any("error", err))
			}
			return
		}

		pageSize := intOrDefault(r.URL, "pageSize", 25)
		if pageSize < 1 {
			pageSize = 25
		}

		minLvl := slog.LevelDebug
		if lvl := r.URL.Query().Get("level"); lvl != "" {
			if err := minLvl.UnmarshalText([]byte(lvl)); err != nil {
				http.Error(w, err.Error(), http.StatusBadRequest)
				return
			}
		}

		e, err := db.GetLogEntries(r.Context(), minLvl, page, pageSize)
		if err != nil {
			logger.Error("handling log request", slog.Any("error", err))
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}

		data := struct {
			Page     int
			PageSize int
			Level    string
			Entries  []database.LogEntryRow
		}{
			Page:     page + 1,
			PageSize: pageSize,
			Level:    minLvl.String(),
			Entries:  e,
		}

		if err := render(w, tm, "log_entries.html", data); err != nil {
			logger.Error("handling log request", slog.Any("error", err))
		}
	}
}

package www

import (
	"log/slog"
	"net/http"

	"github.com/angas/solarforecast-go/pipeline"
)

const uploadField = "file"

type reportTemplData struct {
	Report *pipeline.Report
	Action string
}

func NewUploadHandler(logger *slog.Logger, tm *TemplateManager, svc *pipeline.Service, maxBytes int64) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, maxBytes)
		if err := r.ParseMultipartForm(maxBytes); err != nil {
			status := statusFor(err)
			if status == http.StatusInternalServerError {
				status = http.StatusBadRequest
			}
			logger.Warn("invalid upload", slog.Any("error", err))
			http.Error(w, err.Error(), status)
			return
		}
		defer r.MultipartForm.RemoveAll()

		file, header, err := r.FormFile(uploadField)
		if err != nil {
			logger.Warn("invalid upload", slog.Any("error", err))
			http.Error(w, "missing CSV file in form field \""+uploadField+"\"", http.StatusBadRequest)
			return
		}
		defer file.Close()

		report, err := svc.Run(r.Context(), header.Filename, file)
		if err != nil {
			status := statusFor(err)
			if status >= http.StatusInternalServerError {
				logger.Error("handling upload request", slog.String("file", header.Filename), slog.Any("error", err))
			} else {
				logger.Info("rejected upload", slog.String("file", header.Filename), slog.Any("error", err))
			}
			http.Error(w, err.Error(), status)
			return
		}

		if err := render(w, tm, "report.html", reportTemplData{Report: report, Action: "Uploaded"}); err != nil {
			logger.Error("handling upload request", slog.Any("error", err))
		}
	}
}

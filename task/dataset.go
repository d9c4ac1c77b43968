package task

import (
	"context"
	"log/slog"
	"os"
	"time"

	"github.com/angas/solarforecast-go/pipeline"
)

const datasetReloadTimeout = 5 * time.Minute

// NewDatasetReloadTask runs the pipeline on the configured CSV file. A
// failing file keeps the current report.
func NewDatasetReloadTask(logger *slog.Logger, svc *pipeline.Service, path string) func() {
	return func() {
		logger.Debug("running dataset reload task...", slog.String("path", path))

		ctx, cancel := context.WithTimeout(context.Background(), datasetReloadTimeout)
		defer cancel()

		if err := LoadDataset(ctx, svc, path); err != nil {
			logger.Error("dataset reload error", slog.String("path", path), slog.Any("error", err))
			return
		}

		logger.Info("dataset reload task done", slog.String("path", path))
	}
}

func LoadDataset(ctx context.Context, svc *pipeline.Service, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	_, err = svc.Run(ctx, path, f)
	return err
}

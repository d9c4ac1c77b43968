package task

import (
	"context"
	"log/slog"
	"time"

	"github.com/angas/solarforecast-go/config"
)

type Maintainer interface {
	Backup(ctx context.Context) (string, error)
	PurgeBackups(ctx context.Context, retentionDays int) error
	PurgeLog(ctx context.Context, maxLogEntries int) error
	PurgeDatasets(ctx context.Context, keep int) error
}

func NewMaintenanceTask(logger *slog.Logger, db Maintainer, cnfg *config.AppConfig) func() {
	return func() {
		logger.Debug("running maintenance task...")

		ctx, cancel := context.WithTimeout(context.Background(), 1*time.Minute)
		defer cancel()

		if file, err := db.Backup(ctx); err != nil {
			logger.Error("database backup error", slog.Any("error", err))
		} else {
			logger.Debug("database backup done", slog.String("file", file))
		}

		if err := db.PurgeBackups(ctx, cnfg.Database.GetBackupRetentionDays()); err != nil {
			logger.Error("backup maintenance error", slog.Any("error", err))
		}

		if err := db.PurgeLog(ctx, cnfg.Logging.GetDbMaxEntries()); err != nil {
			logger.Error("log maintenance error", slog.Any("error", err))
		}

		if err := db.PurgeDatasets(ctx, cnfg.Database.GetDatasetRetention()); err != nil {
			logger.Error("dataset maintenance error", slog.Any("error", err))
		}

		logger.Info("maintenance task done")
	}
}

package task

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/angas/solarforecast-go/config"
	"github.com/angas/solarforecast-go/pipeline"
	"github.com/robfig/cron/v3"
)

const maintenanceSchedule = "30 2 * * *"

type Tasks struct {
	cron              *cron.Cron
	cnfg              *config.AppConfig
	logger            *slog.Logger
	DatasetReloadTask func()
	MaintenanceTask   func()
}

func NewTasks(logger *slog.Logger, db Maintainer, svc *pipeline.Service, cnfg *config.AppConfig) *Tasks {
	logger = logger.With("module", "tasks")
	return &Tasks{
		cron:              cron.New(),
		cnfg:              cnfg,
		logger:            logger,
		DatasetReloadTask: NewDatasetReloadTask(logger.With(slog.String("task", "dataset_reload")), svc, cnfg.Dataset.Path),
		MaintenanceTask:   NewMaintenanceTask(logger.With(slog.String("task", "maintenance")), db, cnfg),
	}
}

// Run schedules the tasks and starts the scheduler.
func (t *Tasks) Run() error {
	if t.cnfg.Dataset.ReloadAt != "" {
		if t.cnfg.Dataset.Path == "" {
			return fmt.Errorf("dataset.reload_at is set but dataset.path is empty")
		}
		if _, err := t.cron.AddFunc(t.cnfg.Dataset.ReloadAt, t.DatasetReloadTask); err != nil {
			return fmt.Errorf("invalid dataset.reload_at %q: %w", t.cnfg.Dataset.ReloadAt, err)
		}
	}
	if _, err := t.cron.AddFunc(maintenanceSchedule, t.MaintenanceTask); err != nil {
		return err
	}
	t.cron.Start()
	t.logger.Debug("tasks scheduled", slog.Int("count", len(t.cron.Entries())))
	return nil
}

func (t *Tasks) Stop() context.Context {
	return t.cron.Stop()
}

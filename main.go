package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/angas/solarforecast-go/cache"
	"github.com/angas/solarforecast-go/config"
	"github.com/angas/solarforecast-go/database"
	"github.com/angas/solarforecast-go/days"
	"github.com/angas/solarforecast-go/energy"
	"github.com/angas/solarforecast-go/forecast"
	"github.com/angas/solarforecast-go/logging"
	"github.com/angas/solarforecast-go/pipeline"
	"github.com/angas/solarforecast-go/publish"
	"github.com/angas/solarforecast-go/task"
	"github.com/angas/solarforecast-go/www"
	"github.com/lmittmann/tint"
)

var Version = "?.?.?"

func main() {
	defer func() {
		if err := recover(); err != nil {
			exitWithError(slog.Default(), fmt.Errorf("application panicked: %v", err))
		} else {
			slog.Default().Info("application is shutting down...")
		}
	}()

	configPath := flag.String("config", "", "path to config file")
	flag.Parse()

	cnfg, err := config.Load(*configPath)
	if err != nil {
		panic(fmt.Sprintf("failed to load config: %v", err))
	}

	if err := days.SetGuiTimezone(cnfg.Gui.GetTimezone()); err != nil {
		panic(fmt.Sprintf("failed to set GUI timezone: %v", err))
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	consoleHandler := tint.NewHandler(os.Stdout, &tint.Options{
		Level:      cnfg.Logging.GetConsoleLevel(),
		TimeFormat: time.RFC3339,
	})
	slog.New(consoleHandler).Debug("solarforecast is starting...", slog.String("version", Version))

	db, err := database.New(ctx, cnfg.Database.Path)
	if err != nil {
		panic(fmt.Sprintf("failed to connect to database: %v", err))
	}
	defer db.Close()

	logger := slog.New(logging.NewMultiHandler(
		consoleHandler,
		logging.NewSQLiteHandler(db, cnfg.Logging.GetDbLevel(), cnfg.Logging.GetDbAttrsFormat())))
	slog.SetDefault(logger)

	// Now we can use the logger to log database operations into the database itself
	db.SetLogger(logger.With("module", "database"))

	store, err := newModelStore(cnfg.Cache, db)
	if err != nil {
		panic(fmt.Sprintf("failed to create model store: %v", err))
	}

	modelCache := cache.New(
		logger.With("module", "cache"),
		store,
		forecast.NewAdditive(cnfg.Forecast.AdditiveOptions()),
		cnfg.Cache.Key)
	svc := pipeline.New(logger.With("module", "pipeline"), modelCache, db, cnfg.Forecast.GetHorizonDays())

	if cnfg.Mqtt.Enabled {
		publisher := publish.New(cnfg.Mqtt, nil)
		if err := publisher.Connect(); err != nil {
			panic(fmt.Sprintf("mqtt connection error: %v", err))
		}
		defer publisher.Disconnect()
		svc.OnReport(publisher.Notify)
		go publisher.Run(ctx)
	}

	server, err := www.NewServer(logger, svc, db, cnfg, Version)
	if err != nil {
		panic(fmt.Sprintf("failed to create server: %v", err))
	}

	loadInitialReport(ctx, logger, svc, cnfg.Dataset)

	tasks := task.NewTasks(logger, db, svc, cnfg)
	if isDevMode() {
		logger.Info("dev mode, skipping task scheduling")
	} else {
		if err := tasks.Run(); err != nil {
			panic(fmt.Sprintf("failed to schedule tasks: %v", err))
		}
		defer tasks.Stop()
	}

	if cnfg.Dataset.Watch && cnfg.Dataset.Path != "" {
		watcher, err := task.WatchDataset(
			logger.With(slog.String("task", "dataset_watch")),
			cnfg.Dataset.Path,
			tasks.DatasetReloadTask)
		if err != nil {
			panic(fmt.Sprintf("failed to watch dataset: %v", err))
		}
		defer watcher.Close()
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	go func() {
		select {
		case <-ctx.Done():
			logger.Info("main context done")
		case sig := <-sigCh:
			logger.Info("received signal", slog.Any("signal", sig))
			cancel()
		}
	}()

	if err := server.Run(ctx); err != nil {
		exitWithError(logger, err)
	}
}

func newModelStore(cnfg config.AppConfigCache, db *database.Database) (cache.Store, error) {
	backend, err := cnfg.GetBackend()
	if err != nil {
		return nil, err
	}

	switch backend {
	case config.CacheBackendFile:
		return cache.NewFileStore(cnfg.GetDir())
	case config.CacheBackendMemory:
		return cache.NewMemoryStore(), nil
	default:
		return db.ModelStore(), nil
	}
}

// loadInitialReport prefers the configured dataset file and falls back to
// the last uploaded dataset. Failures are logged, the dashboard still starts.
func loadInitialReport(ctx context.Context, logger *slog.Logger, svc *pipeline.Service, cnfg config.AppConfigDataset) {
	if cnfg.Path != "" {
		err := task.LoadDataset(ctx, svc, cnfg.Path)
		if err == nil {
			return
		}
		logger.Error("failed to load dataset", slog.String("path", cnfg.Path), slog.Any("error", err))
	}

	_, err := svc.Restore(ctx)
	switch {
	case err == nil:
	case errors.Is(err, energy.ErrNoData):
		logger.Info("no stored dataset, waiting for an upload")
	case errors.Is(err, cache.ErrCorrupt):
		logger.Error("stored model could not be decoded, retrain from the dashboard", slog.Any("error", err))
	default:
		logger.Error("failed to restore dataset", slog.Any("error", err))
	}
}

func isDevMode() bool {
	return strings.EqualFold(os.Getenv("APP_ENV"), "development")
}

func exitWithError(logger *slog.Logger, err error) {
	if err != nil {
		logger.Error("application shutting down with error", slog.Any("error", err))
	}
	if syncer, ok := logger.Handler().(interface{ Sync() error }); ok {
		if syncErr := syncer.Sync(); syncErr != nil {
			logger.Error("failed to flush logger", slog.Any("error", syncErr))
		}
	}

	time.Sleep(2 * time.Second)
	os.Exit(1)
}

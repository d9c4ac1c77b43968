package task

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/angas/solarforecast-go/cache"
	"github.com/angas/solarforecast-go/config"
	"github.com/angas/solarforecast-go/forecast"
	"github.com/angas/solarforecast-go/pipeline"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var discard = slog.New(slog.NewTextHandler(io.Discard, nil))

type fakeMaintainer struct {
	calls         []string
	backupErr     error
	retentionDays int
	maxLog        int
	keep          int
}

func (f *fakeMaintainer) Backup(context.Context) (string, error) {
	f.calls = append(f.calls, "backup")
	return "backup.zip", f.backupErr
}

func (f *fakeMaintainer) PurgeBackups(_ context.Context, retentionDays int) error {
	f.calls = append(f.calls, "purge_backups")
	f.retentionDays = retentionDays
	return nil
}

func (f *fakeMaintainer) PurgeLog(_ context.Context, maxLogEntries int) error {
	f.calls = append(f.calls, "purge_log")
	f.maxLog = maxLogEntries
	return nil
}

func (f *fakeMaintainer) PurgeDatasets(_ context.Context, keep int) error {
	f.calls = append(f.calls, "purge_datasets")
	f.keep = keep
	return nil
}

func newService() *pipeline.Service {
	c := cache.New(discard, cache.NewMemoryStore(), forecast.NewAdditive(forecast.DefaultAdditiveOptions()), "")
	return pipeline.New(discard, c, nil, 30)
}

func writeCSV(t *testing.T, path string, n int) {
	t.Helper()
	var b strings.Builder
	b.WriteString("Date and Time,Expected Value kWh,PR %\n")
	start := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	for i := range n {
		fmt.Fprintf(&b, "%s,12,75\n", start.AddDate(0, 0, i).Format("2006-01-02 15:04:05"))
	}
	require.NoError(t, os.WriteFile(path, []byte(b.String()), 0o644))
}

func TestMaintenanceTaskRunsEveryStep(t *testing.T) {
	db := &fakeMaintainer{backupErr: errors.New("disk full")}
	keep, maxLog := 3, 500
	cnfg := &config.AppConfig{
		Database: config.AppConfigDatabase{DatasetRetention: &keep},
		Logging:  config.AppConfigLogging{DbMaxEntries: &maxLog},
	}

	NewMaintenanceTask(discard, db, cnfg)()

	assert.Equal(t, []string{"backup", "purge_backups", "purge_log", "purge_datasets"}, db.calls)
	assert.Equal(t, 90, db.retentionDays)
	assert.Equal(t, 500, db.maxLog)
	assert.Equal(t, 3, db.keep)
}

func TestDatasetReloadTask(t *testing.T) {
	path := filepath.Join(t.TempDir(), "solar.csv")
	svc := newService()

	NewDatasetReloadTask(discard, svc, path)()
	_, ok := svc.Latest()
	assert.False(t, ok, "missing file must not produce a report")

	writeCSV(t, path, 10)
	NewDatasetReloadTask(discard, svc, path)()
	report, ok := svc.Latest()
	require.True(t, ok)
	assert.Equal(t, path, report.Source)
	assert.Len(t, report.Series, 10)

	require.NoError(t, os.WriteFile(path, []byte("garbage\n"), 0o644))
	NewDatasetReloadTask(discard, svc, path)()
	latest, _ := svc.Latest()
	assert.Same(t, report, latest)
}

func TestTasksRun(t *testing.T) {
	svc := newService()

	tests := []struct {
		name    string
		dataset config.AppConfigDataset
		wantErr string
	}{
		{"maintenance only", config.AppConfigDataset{}, ""},
		{"with reload", config.AppConfigDataset{Path: "solar.csv", ReloadAt: "0 * * * *"}, ""},
		{"bad cron spec", config.AppConfigDataset{Path: "solar.csv", ReloadAt: "every hour"}, "invalid dataset.reload_at"},
		{"reload without path", config.AppConfigDataset{ReloadAt: "@hourly"}, "dataset.path is empty"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tasks := NewTasks(discard, &fakeMaintainer{}, svc, &config.AppConfig{Dataset: tt.dataset})
			err := tasks.Run()
			if tt.wantErr != "" {
				assert.ErrorContains(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			<-tasks.Stop().Done()
		})
	}
}

func TestDatasetWatcher(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "solar.csv")
	writeCSV(t, path, 5)

	var calls atomic.Int32
	w, err := WatchDataset(discard, path, func() { calls.Add(1) })
	require.NoError(t, err)
	defer w.Close()

	// other files in the directory are ignored
	require.NoError(t, os.WriteFile(filepath.Join(dir, "other.csv"), []byte("x"), 0o644))

	for i := range 3 {
		writeCSV(t, path, 6+i)
	}

	require.Eventually(t, func() bool { return calls.Load() == 1 }, 5*time.Second, 50*time.Millisecond)
	time.Sleep(2 * watchDebounce)
	assert.Equal(t, int32(1), calls.Load())
}

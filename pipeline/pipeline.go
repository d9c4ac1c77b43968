package pipeline

import (
	"bytes"
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/angas/solarforecast-go/cache"
	"github.com/angas/solarforecast-go/database"
	"github.com/angas/solarforecast-go/energy"
	"github.com/angas/solarforecast-go/forecast"
	"github.com/google/uuid"
)

// Report is everything the dashboard shows for one dataset.
type Report struct {
	ID       string
	Source   string
	LoadedAt time.Time
	Rows     int // rows in the file
	Records  []energy.EnergyRecord
	Series   energy.TimeSeries
	Pivot    energy.MonthlyPivot
	Forecast forecast.Result
	Origin   cache.Origin
}

// DefaultWindowStart is the day after the last observation.
func (r *Report) DefaultWindowStart() time.Time {
	return forecast.DefaultStart(r.Forecast.LastObserved)
}

func (r *Report) Window(days int) (forecast.Window, error) {
	return forecast.SumWindow(r.Forecast, r.DefaultWindowStart(), days)
}

type DatasetStore interface {
	SaveDataset(ctx context.Context, row database.DatasetRow) error
	GetLatestDataset(ctx context.Context) (database.DatasetRow, error)
}

// Service runs the load, clean, aggregate and forecast steps and keeps the
// latest successful report. Runs are serialised.
type Service struct {
	logger      *slog.Logger
	cache       *cache.Cache
	datasets    DatasetStore
	horizonDays int

	runMu   sync.Mutex
	mu      sync.RWMutex
	latest  *Report
	content []byte

	listeners []func(*Report)
}

// New creates a service, datasets may be nil when uploads should not be
// persisted.
func New(logger *slog.Logger, c *cache.Cache, datasets DatasetStore, horizonDays int) *Service {
	if horizonDays < 1 {
		horizonDays = forecast.DefaultHorizonDays
	}
	return &Service{
		logger:      logger,
		cache:       c,
		datasets:    datasets,
		horizonDays: horizonDays,
	}
}

// OnReport registers fn to be called after every successful run.
func (s *Service) OnReport(fn func(*Report)) {
	s.runMu.Lock()
	defer s.runMu.Unlock()
	s.listeners = append(s.listeners, fn)
}

// Run processes a CSV. On error the previous report stays in place.
func (s *Service) Run(ctx context.Context, source string, r io.Reader) (*Report, error) {
	content, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", source, err)
	}

	s.runMu.Lock()
	defer s.runMu.Unlock()

	report, err := s.build(ctx, source, content)
	if err != nil {
		return nil, err
	}

	if s.datasets != nil {
		err := s.datasets.SaveDataset(ctx, database.DatasetRow{
			ID:         report.ID,
			Source:     source,
			UploadedAt: report.LoadedAt,
			Content:    content,
		})
		if err != nil {
			s.logger.Warn("dataset not persisted", slog.String("id", report.ID), slog.Any("error", err))
		}
	}

	s.publish(report, content)
	return report, nil
}

// Restore rebuilds the report from the most recently stored dataset. It
// returns energy.ErrNoData if there is none.
func (s *Service) Restore(ctx context.Context) (*Report, error) {
	if s.datasets == nil {
		return nil, energy.ErrNoData
	}

	row, err := s.datasets.GetLatestDataset(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, energy.ErrNoData
	}
	if err != nil {
		return nil, fmt.Errorf("restore dataset: %w", err)
	}

	s.runMu.Lock()
	defer s.runMu.Unlock()

	report, err := s.build(ctx, row.Source, row.Content)
	if err != nil {
		return nil, fmt.Errorf("restore dataset %s: %w", row.ID, err)
	}
	report.ID = row.ID
	report.LoadedAt = row.UploadedAt

	s.publish(report, row.Content)
	return report, nil
}

// Retrain drops the cached model and reruns the last dataset. Without a
// report in memory, e.g. after the stored model failed to decode at startup,
// the most recently stored dataset is used.
func (s *Service) Retrain(ctx context.Context) (*Report, error) {
	s.runMu.Lock()
	defer s.runMu.Unlock()

	id, source, content, err := s.current(ctx)
	if err != nil {
		return nil, err
	}

	if err := s.cache.Invalidate(ctx); err != nil {
		return nil, err
	}

	report, err := s.build(ctx, source, content)
	if err != nil {
		return nil, err
	}
	report.ID = id

	s.publish(report, content)
	return report, nil
}

func (s *Service) current(ctx context.Context) (id, source string, content []byte, err error) {
	s.mu.RLock()
	latest, content := s.latest, s.content
	s.mu.RUnlock()
	if latest != nil {
		return latest.ID, latest.Source, content, nil
	}

	if s.datasets == nil {
		return "", "", nil, energy.ErrNoData
	}
	row, err := s.datasets.GetLatestDataset(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return "", "", nil, energy.ErrNoData
	}
	if err != nil {
		return "", "", nil, fmt.Errorf("load dataset: %w", err)
	}
	return row.ID, row.Source, row.Content, nil
}

func (s *Service) Latest() (*Report, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.latest, s.latest != nil
}

// Window sums the latest forecast over days starting the day after the last
// observation.
func (s *Service) Window(days int) (forecast.Window, error) {
	report, ok := s.Latest()
	if !ok {
		return forecast.Window{}, energy.ErrNoData
	}
	return report.Window(days)
}

func (s *Service) build(ctx context.Context, source string, content []byte) (*Report, error) {
	logger := s.logger.With(slog.String("source", source))
	start := time.Now()

	rows, err := energy.LoadCSV(bytes.NewReader(content))
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", source, err)
	}

	cleaned, err := energy.Clean(rows)
	if err != nil {
		return nil, fmt.Errorf("clean %s: %w", source, err)
	}

	series, err := energy.BuildTimeSeries(cleaned)
	if err != nil {
		return nil, fmt.Errorf("aggregate %s: %w", source, err)
	}

	pivot, err := energy.BuildMonthlyPivot(cleaned)
	if err != nil {
		return nil, fmt.Errorf("aggregate %s: %w", source, err)
	}

	result, origin, err := s.cache.Forecast(ctx, series, s.horizonDays)
	if err != nil {
		return nil, fmt.Errorf("forecast %s: %w", source, err)
	}

	report := &Report{
		ID:       uuid.NewString(),
		Source:   source,
		LoadedAt: time.Now().UTC(),
		Rows:     len(rows),
		Records:  cleaned,
		Series:   series,
		Pivot:    pivot,
		Forecast: result,
		Origin:   origin,
	}

	logger.Info("dataset processed",
		slog.String("id", report.ID),
		slog.Int("rows", len(rows)),
		slog.Int("kept", len(cleaned)),
		slog.Int("points", len(series)),
		slog.String("model", string(origin)),
		slog.Duration("duration", time.Since(start)))

	return report, nil
}

func (s *Service) publish(report *Report, content []byte) {
	s.mu.Lock()
	s.latest = report
	s.content = content
	s.mu.Unlock()

	for _, fn := range s.listeners {
		fn(report)
	}
}

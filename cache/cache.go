package cache

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/angas/solarforecast-go/energy"
	"github.com/angas/solarforecast-go/forecast"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const DefaultKey = "solar_forecast"

var ErrCorrupt = errors.New("cached model is corrupt")

var (
	cacheHits = promauto.NewCounter(prometheus.CounterOpts{
		Name: "solarforecast_model_cache_hits_total",
		Help: "Number of times a persisted model was reused",
	})
	modelFits = promauto.NewCounter(prometheus.CounterOpts{
		Name: "solarforecast_model_fits_total",
		Help: "Number of models fitted and persisted",
	})
	cacheErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "solarforecast_model_cache_errors_total",
		Help: "Model cache failures by operation",
	}, []string{"op"})
)

// Origin tells where a model came from.
type Origin string

const (
	OriginCache  Origin = "cache"
	OriginFitted Origin = "fitted"
)

// Cache fits a model once and reuses the persisted one on later runs. A
// stored model is never refreshed automatically, only Invalidate removes it.
type Cache struct {
	logger     *slog.Logger
	store      Store
	forecaster forecast.Forecaster
	key        string
}

func New(logger *slog.Logger, store Store, forecaster forecast.Forecaster, key string) *Cache {
	if key == "" {
		key = DefaultKey
	}
	return &Cache{
		logger:     logger,
		store:      store,
		forecaster: forecaster,
		key:        key,
	}
}

// Model returns the persisted model if there is one, otherwise it fits a new
// model on ts and persists it. A stored blob that can't be decoded is
// reported as ErrCorrupt rather than replaced.
func (c *Cache) Model(ctx context.Context, ts energy.TimeSeries) (forecast.Model, Origin, error) {
	data, err := c.store.Load(ctx, c.key)
	switch {
	case err == nil:
		m, err := c.forecaster.Unmarshal(data)
		if err != nil {
			cacheErrors.WithLabelValues("decode").Inc()
			return nil, "", fmt.Errorf("%w: key %s: %w", ErrCorrupt, c.key, err)
		}
		cacheHits.Inc()
		c.logger.Info("model loaded from cache", slog.String("key", c.key))
		return m, OriginCache, nil

	case !errors.Is(err, ErrNotFound):
		cacheErrors.WithLabelValues("load").Inc()
		return nil, "", fmt.Errorf("load cached model: %w", err)
	}

	m, err := c.forecaster.Fit(ctx, ts)
	if err != nil {
		cacheErrors.WithLabelValues("fit").Inc()
		return nil, "", fmt.Errorf("fit model: %w", err)
	}

	data, err = c.forecaster.Marshal(m)
	if err != nil {
		cacheErrors.WithLabelValues("encode").Inc()
		return nil, "", fmt.Errorf("encode model: %w", err)
	}

	if err := c.store.Save(ctx, c.key, data); err != nil {
		cacheErrors.WithLabelValues("save").Inc()
		return nil, "", fmt.Errorf("persist model: %w", err)
	}

	modelFits.Inc()
	c.logger.Info("model trained and saved to cache", slog.String("key", c.key), slog.Int("points", len(ts)))
	return m, OriginFitted, nil
}

// Forecast predicts horizonDays past the last observation of the cached or
// freshly fitted model.
func (c *Cache) Forecast(ctx context.Context, ts energy.TimeSeries, horizonDays int) (forecast.Result, Origin, error) {
	m, origin, err := c.Model(ctx, ts)
	if err != nil {
		return forecast.Result{}, "", err
	}

	res, err := m.Predict(horizonDays)
	if err != nil {
		return forecast.Result{}, "", fmt.Errorf("predict: %w", err)
	}
	return res, origin, nil
}

// Invalidate drops the persisted model so the next call refits.
func (c *Cache) Invalidate(ctx context.Context) error {
	if err := c.store.Delete(ctx, c.key); err != nil {
		cacheErrors.WithLabelValues("delete").Inc()
		return fmt.Errorf("invalidate cached model: %w", err)
	}
	c.logger.Info("cached model invalidated", slog.String("key", c.key))
	return nil
}

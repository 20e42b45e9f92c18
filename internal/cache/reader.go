package cache

import (
	"context"

	"github.com/benvon/taskboard/internal/models"
	"go.uber.org/zap"
)

// MetricsGetter loads a metrics row from the store
type MetricsGetter interface {
	Get(ctx context.Context, botName string) (*models.TradingMetrics, error)
}

type metricsStore interface {
	Get(ctx context.Context, botName string) (*models.TradingMetrics, bool, error)
	Set(ctx context.Context, m *models.TradingMetrics) error
}

// MetricsReader serves metrics from the cache and falls back to the store.
// Cache failures are logged and never fail a read.
type MetricsReader struct {
	store  MetricsGetter
	cache  metricsStore
	logger *zap.Logger
}

// NewMetricsReader wraps store with cache. A nil cache reads straight from the store.
func NewMetricsReader(store MetricsGetter, cache *MetricsCache, logger *zap.Logger) *MetricsReader {
	r := &MetricsReader{store: store, logger: logger}
	if cache != nil {
		r.cache = cache
	}
	return r
}

// Get returns the metrics row of botName
func (r *MetricsReader) Get(ctx context.Context, botName string) (*models.TradingMetrics, error) {
	if r.cache != nil {
		m, ok, err := r.cache.Get(ctx, botName)
		if err != nil {
			r.logger.Warn("metrics_cache_read_failed", zap.String("bot_name", botName), zap.Error(err))
		} else if ok {
			return m, nil
		}
	}

	m, err := r.store.Get(ctx, botName)
	if err != nil {
		return nil, err
	}

	if r.cache != nil {
		if err := r.cache.Set(ctx, m); err != nil {
			r.logger.Warn("metrics_cache_write_failed", zap.String("bot_name", botName), zap.Error(err))
		}
	}
	return m, nil
}

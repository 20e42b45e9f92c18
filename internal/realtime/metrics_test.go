package realtime

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/benvon/taskboard/internal/changefeed"
	"github.com/benvon/taskboard/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeMetricsReader struct {
	metrics *models.TradingMetrics
}

func (f *fakeMetricsReader) Get(_ context.Context, botName string) (*models.TradingMetrics, error) {
	if f.metrics == nil || f.metrics.BotName != botName {
		return nil, errors.New("not found")
	}
	copied := *f.metrics
	return &copied, nil
}

func TestMetricsWatchFollowsUpdates(t *testing.T) {
	t.Parallel()

	hub := changefeed.NewHub()
	reader := &fakeMetricsReader{metrics: &models.TradingMetrics{BotName: "Crypto_Chad", TotalProfit: 10}}
	watch := NewMetricsWatch(reader, hub, "Crypto_Chad", zap.NewNop())
	require.NoError(t, watch.Start(context.Background()))
	t.Cleanup(watch.Stop)

	m, ok := watch.Metrics()
	require.True(t, ok)
	assert.Equal(t, 10.0, m.TotalProfit)

	hub.Publish(rowEvent(metricsTable, changefeed.Update, models.TradingMetrics{BotName: "Other_Bot", TotalProfit: 999}))
	hub.Publish(rowEvent(metricsTable, changefeed.Update, models.TradingMetrics{
		BotName:     "Crypto_Chad",
		TotalProfit: 42.5,
		TradesTotal: 7,
		UpdatedAt:   time.Now(),
	}))

	require.Eventually(t, func() bool {
		m, ok := watch.Metrics()
		return ok && m.TotalProfit == 42.5
	}, waitFor, tick)
	m, _ = watch.Metrics()
	assert.Equal(t, int64(7), m.TradesTotal)
}

func TestMetricsWatchStartsWithoutRow(t *testing.T) {
	t.Parallel()

	hub := changefeed.NewHub()
	watch := NewMetricsWatch(&fakeMetricsReader{}, hub, "Crypto_Chad", zap.NewNop())
	require.NoError(t, watch.Start(context.Background()))
	t.Cleanup(watch.Stop)

	_, ok := watch.Metrics()
	assert.False(t, ok)

	hub.Publish(rowEvent(metricsTable, changefeed.Insert, models.TradingMetrics{BotName: "Crypto_Chad", WinRateTotal: 61}))
	require.Eventually(t, func() bool {
		_, ok := watch.Metrics()
		return ok
	}, waitFor, tick)
}

func TestMetricsWatchReloadsOnResync(t *testing.T) {
	t.Parallel()

	hub := changefeed.NewHub()
	reader := &fakeMetricsReader{metrics: &models.TradingMetrics{BotName: "Crypto_Chad", TotalProfit: 10}}
	watch := NewMetricsWatch(reader, hub, "Crypto_Chad", zap.NewNop())
	require.NoError(t, watch.Start(context.Background()))
	t.Cleanup(watch.Stop)

	reader.metrics = &models.TradingMetrics{BotName: "Crypto_Chad", TotalProfit: 75}
	hub.Publish(changefeed.Event{Type: changefeed.Resync})

	require.Eventually(t, func() bool {
		m, ok := watch.Metrics()
		return ok && m.TotalProfit == 75
	}, waitFor, tick)
}

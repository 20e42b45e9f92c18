package realtime

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/benvon/taskboard/internal/changefeed"
	"github.com/benvon/taskboard/internal/models"
	"go.uber.org/zap"
)

// MetricsReader loads the metrics row of a bot
type MetricsReader interface {
	Get(ctx context.Context, botName string) (*models.TradingMetrics, error)
}

// MetricsWatch keeps the latest metrics row of one bot
type MetricsWatch struct {
	reader  MetricsReader
	feed    changefeed.Feed
	botName string
	logger  *zap.Logger

	changes notifier

	mu      sync.Mutex
	current *models.TradingMetrics
	sub     *changefeed.Subscription
	cancel  context.CancelFunc
}

// NewMetricsWatch creates a watcher for botName
func NewMetricsWatch(reader MetricsReader, feed changefeed.Feed, botName string, logger *zap.Logger) *MetricsWatch {
	return &MetricsWatch{
		reader:  reader,
		feed:    feed,
		botName: botName,
		logger:  logger,
		changes: newNotifier(),
	}
}

// Start loads the row and follows its changes. A missing row is not an error; the watch
// fills in once the row is written.
func (w *MetricsWatch) Start(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	sub, err := w.feed.Subscribe(ctx, changefeed.Filter{
		Table:  metricsTable,
		Column: "bot_name",
		Value:  w.botName,
	})
	if err != nil {
		cancel()
		return fmt.Errorf("failed to subscribe to metrics: %w", err)
	}

	metrics, err := w.reader.Get(ctx, w.botName)
	if err != nil {
		w.logger.Warn("metrics_load_failed", zap.String("bot_name", w.botName), zap.Error(err))
	}

	w.mu.Lock()
	if metrics != nil {
		w.current = metrics
	}
	w.sub = sub
	w.cancel = cancel
	w.mu.Unlock()
	w.changes.notify()

	go consume(ctx, sub, w.logger, w.apply, w.reload)
	return nil
}

func (w *MetricsWatch) apply(e changefeed.Event) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if e.Type == changefeed.Delete {
		w.current = nil
		w.changes.notify()
		return nil
	}

	var m models.TradingMetrics
	if err := json.Unmarshal(e.New, &m); err != nil {
		return fmt.Errorf("failed to decode metrics row: %w", err)
	}
	w.current = &m
	w.changes.notify()
	return nil
}

func (w *MetricsWatch) reload(ctx context.Context) error {
	metrics, err := w.reader.Get(ctx, w.botName)
	if err != nil {
		return fmt.Errorf("failed to reload metrics: %w", err)
	}
	w.mu.Lock()
	w.current = metrics
	w.mu.Unlock()
	w.changes.notify()
	return nil
}

// Metrics returns the latest row, if any
func (w *MetricsWatch) Metrics() (*models.TradingMetrics, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.current == nil {
		return nil, false
	}
	m := *w.current
	return &m, true
}

// Changes signals after the row changes
func (w *MetricsWatch) Changes() <-chan struct{} {
	return w.changes.ch
}

// Stop releases the subscription
func (w *MetricsWatch) Stop() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.sub != nil {
		w.sub.Close()
		w.sub = nil
	}
	if w.cancel != nil {
		w.cancel()
		w.cancel = nil
	}
}

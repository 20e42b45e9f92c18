package changefeed

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/benvon/taskboard/internal/logger"
	"github.com/lib/pq"
	"go.uber.org/zap"
)

const (
	minReconnectInterval = 10 * time.Second
	maxReconnectInterval = time.Minute
	pingInterval         = 90 * time.Second
	resolveTimeout       = 5 * time.Second
)

// RowReader re-reads a row image for notifications whose payload was too large to carry it
type RowReader interface {
	RowJSON(ctx context.Context, table, key string) (json.RawMessage, error)
}

// PGFeed listens on a Postgres NOTIFY channel and fans decoded events out to subscribers
type PGFeed struct {
	listener *pq.Listener
	channel  string
	hub      *Hub
	rows     RowReader
	logger   *zap.Logger
}

// NewPGFeed opens a dedicated listener connection and starts listening on channel
func NewPGFeed(databaseURL, channel string, rows RowReader, log *zap.Logger) (*PGFeed, error) {
	listener := pq.NewListener(databaseURL, minReconnectInterval, maxReconnectInterval,
		func(ev pq.ListenerEventType, err error) {
			switch ev {
			case pq.ListenerEventConnected:
				log.Info("feed_listener_connected", zap.String("channel", channel))
			case pq.ListenerEventDisconnected:
				log.Warn("feed_listener_disconnected", zap.String("channel", channel), zap.Error(err))
			case pq.ListenerEventReconnected:
				log.Info("feed_listener_reconnected", zap.String("channel", channel))
			case pq.ListenerEventConnectionAttemptFailed:
				log.Warn("feed_listener_connect_failed", zap.String("channel", channel), zap.Error(err))
			}
		})

	if err := listener.Listen(channel); err != nil {
		_ = listener.Close()
		return nil, fmt.Errorf("failed to listen on %s: %w", channel, err)
	}

	return &PGFeed{
		listener: listener,
		channel:  channel,
		hub:      NewHub(),
		rows:     rows,
		logger:   log,
	}, nil
}

// Subscribe registers a subscriber for events matching filter
func (f *PGFeed) Subscribe(ctx context.Context, filter Filter) (*Subscription, error) {
	sub, err := f.hub.Subscribe(ctx, filter)
	if err != nil {
		return nil, err
	}
	f.logger.Debug("feed_subscribed", zap.String("filter", filter.String()))
	return sub, nil
}

// Run dispatches notifications until ctx is done
func (f *PGFeed) Run(ctx context.Context) error {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case n := <-f.listener.Notify:
			if n == nil {
				// pq sends nil after a reconnect; notifications raised while disconnected are lost
				f.logger.Warn("feed_notifications_possibly_lost", zap.String("channel", f.channel))
				f.hub.Publish(Event{Type: Resync})
				continue
			}
			f.dispatch(ctx, []byte(n.Extra))
		case <-ticker.C:
			go func() {
				if err := f.listener.Ping(); err != nil {
					f.logger.Warn("feed_listener_ping_failed", zap.Error(err))
				}
			}()
		}
	}
}

// Close stops the listener and closes every subscription
func (f *PGFeed) Close() error {
	f.hub.Close()
	if f.listener == nil {
		return nil
	}
	if err := f.listener.Close(); err != nil {
		return fmt.Errorf("failed to close feed listener: %w", err)
	}
	return nil
}

func (f *PGFeed) dispatch(ctx context.Context, payload []byte) {
	e, err := Decode(payload)
	if err != nil {
		f.logger.Warn("feed_event_dropped",
			zap.String("payload", logger.SanitizeString(string(payload), 200)),
			zap.Error(err))
		return
	}

	if e.Truncated {
		e, err = f.resolve(ctx, e)
		if err != nil {
			f.logger.Warn("feed_event_resolve_failed",
				zap.String("table", e.Table),
				zap.String("id", e.ID),
				zap.Error(err))
			return
		}
	}

	f.logger.Debug("feed_event_received",
		zap.String("table", e.Table),
		zap.String("type", string(e.Type)),
		zap.String("id", e.RowID()))
	f.hub.Publish(e)
}

func (f *PGFeed) resolve(ctx context.Context, e Event) (Event, error) {
	if e.Type == Delete {
		e.Old = keyImage(e)
		e.Truncated = false
		return e, nil
	}
	if f.rows == nil {
		return e, fmt.Errorf("no row reader for truncated %s event", e.Table)
	}

	ctx, cancel := context.WithTimeout(ctx, resolveTimeout)
	defer cancel()

	row, err := f.rows.RowJSON(ctx, e.Table, e.ID)
	if err != nil {
		return e, err
	}
	e.New = row
	e.Truncated = false
	return e, nil
}

func keyImage(e Event) json.RawMessage {
	key := e.Key
	if key == "" {
		key = KeyColumn(e.Table)
	}
	image, _ := json.Marshal(map[string]string{key: e.ID})
	return image
}

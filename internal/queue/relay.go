package queue

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/benvon/taskboard/internal/changefeed"
	"go.uber.org/zap"
)

const publishTimeout = 5 * time.Second

// Relay forwards every event of the given tables from a source feed to a publisher
type Relay struct {
	source    changefeed.Feed
	publisher Publisher
	tables    []string
	logger    *zap.Logger
}

// NewRelay creates a relay for tables
func NewRelay(source changefeed.Feed, publisher Publisher, tables []string, logger *zap.Logger) *Relay {
	return &Relay{
		source:    source,
		publisher: publisher,
		tables:    tables,
		logger:    logger,
	}
}

// Run forwards events until ctx is cancelled. A failed publish is logged and the event skipped.
func (r *Relay) Run(ctx context.Context) error {
	subs := make([]*changefeed.Subscription, 0, len(r.tables))
	for _, table := range r.tables {
		sub, err := r.source.Subscribe(ctx, changefeed.Filter{Table: table})
		if err != nil {
			for _, s := range subs {
				s.Close()
			}
			return fmt.Errorf("failed to subscribe to %s: %w", table, err)
		}
		subs = append(subs, sub)
	}

	var wg sync.WaitGroup
	for _, sub := range subs {
		wg.Add(1)
		go func(sub *changefeed.Subscription) {
			defer wg.Done()
			defer sub.Close()
			r.forward(ctx, sub)
		}(sub)
	}

	r.logger.Info("relay_started", zap.Strings("tables", r.tables))
	wg.Wait()
	return ctx.Err()
}

func (r *Relay) forward(ctx context.Context, sub *changefeed.Subscription) {
	for {
		select {
		case <-ctx.Done():
			return
		case e, ok := <-sub.Events():
			if !ok {
				return
			}
			if e.Type == changefeed.Resync {
				r.logger.Warn("relay_resync_not_forwarded", zap.String("filter", sub.Filter().String()))
				continue
			}
			pubCtx, cancel := context.WithTimeout(ctx, publishTimeout)
			err := r.publisher.Publish(pubCtx, e)
			cancel()
			if err != nil {
				r.logger.Error("relay_publish_failed",
					zap.String("routing_key", e.RoutingKey()),
					zap.String("id", e.RowID()),
					zap.Error(err))
				continue
			}
			r.logger.Debug("relay_event_published", zap.String("routing_key", e.RoutingKey()), zap.String("id", e.RowID()))
		}
	}
}

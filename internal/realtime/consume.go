package realtime

import (
	"context"
	"fmt"

	"github.com/benvon/taskboard/internal/changefeed"
	"go.uber.org/zap"
)

// consume applies events until the subscription closes or ctx is done.
// A failing or panicking event is logged and skipped; later events are still applied.
// Resync markers go to resync when it is set and to apply otherwise.
func consume(ctx context.Context, sub *changefeed.Subscription, logger *zap.Logger, apply func(changefeed.Event) error, resync func(context.Context) error) {
	for {
		select {
		case <-ctx.Done():
			return
		case e, ok := <-sub.Events():
			if !ok {
				return
			}
			if e.Type == changefeed.Resync && resync != nil {
				logger.Info("feed_resync", zap.String("filter", sub.Filter().String()))
				safeApply(logger, e, func(changefeed.Event) error { return resync(ctx) })
				continue
			}
			safeApply(logger, e, apply)
		}
	}
}

func safeApply(logger *zap.Logger, e changefeed.Event, apply func(changefeed.Event) error) {
	defer func() {
		if r := recover(); r != nil {
			logger.Error("feed_event_panic",
				zap.String("table", e.Table),
				zap.String("type", string(e.Type)),
				zap.String("panic", fmt.Sprint(r)))
		}
	}()

	if err := apply(e); err != nil {
		logger.Warn("feed_event_skipped",
			zap.String("table", e.Table),
			zap.String("type", string(e.Type)),
			zap.String("id", e.RowID()),
			zap.Error(err))
	}
}

package bot

import (
	"bytes"
	"context"
	"encoding/json"

	"github.com/benvon/taskboard/internal/logger"
	"github.com/benvon/taskboard/internal/models"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// MetricsRequest is the body accepted by the metrics updater
type MetricsRequest struct {
	BotName string          `json:"bot_name"`
	Metrics json.RawMessage `json:"metrics"`
}

// MetricsStore writes partial metrics rows
type MetricsStore interface {
	Update(ctx context.Context, botName string, patch models.MetricsPatch) (*models.TradingMetrics, error)
}

// MetricsInvalidator drops cached copies of a metrics row
type MetricsInvalidator interface {
	Invalidate(ctx context.Context, botName string) error
}

// MetricsUpdater applies partial metrics updates sent by the agent
type MetricsUpdater struct {
	store          MetricsStore
	cache          MetricsInvalidator
	defaultBotName string
	logger         *zap.Logger
	tracer         trace.Tracer
}

// NewMetricsUpdater creates an updater. cache may be nil.
func NewMetricsUpdater(store MetricsStore, cache MetricsInvalidator, defaultBotName string, log *zap.Logger) *MetricsUpdater {
	if defaultBotName == "" {
		defaultBotName = models.DefaultBotName
	}
	return &MetricsUpdater{
		store:          store,
		cache:          cache,
		defaultBotName: defaultBotName,
		logger:         log,
		tracer:         otelTracer(),
	}
}

// Update writes the recognized fields present in req.Metrics in one statement
func (u *MetricsUpdater) Update(ctx context.Context, req MetricsRequest) (*models.TradingMetrics, error) {
	botName := req.BotName
	if botName == "" {
		botName = u.defaultBotName
	}

	ctx, span := u.tracer.Start(ctx, "bot.update_metrics",
		trace.WithAttributes(attribute.String("bot.name", botName)))
	defer span.End()

	patch, err := decodeMetrics(req.Metrics)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	u.logger.Info("bot_metrics_update_requested",
		zap.String("bot_name", logger.SanitizeString(botName, 100)),
		zap.Int("fields", len(patch.Columns())))

	metrics, err := u.store.Update(ctx, botName, patch)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		u.logger.Error("bot_metrics_update_failed", zap.String("bot_name", logger.SanitizeString(botName, 100)), zap.Error(err))
		return nil, &StoreError{Message: "Failed to update metrics", Err: err}
	}

	if u.cache != nil {
		if err := u.cache.Invalidate(ctx, botName); err != nil {
			u.logger.Warn("metrics_cache_invalidate_failed", zap.String("bot_name", botName), zap.Error(err))
		}
	}
	return metrics, nil
}

func decodeMetrics(raw json.RawMessage) (models.MetricsPatch, error) {
	var patch models.MetricsPatch
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return patch, &ValidationError{Message: "Invalid metrics payload"}
	}
	if err := json.Unmarshal(trimmed, &patch); err != nil {
		return patch, &ValidationError{Message: "Invalid metrics payload"}
	}
	return patch, nil
}

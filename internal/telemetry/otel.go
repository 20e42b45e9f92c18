// Package telemetry wires OpenTelemetry tracing for the servers.
package telemetry

import (
	"context"
	"fmt"
	"net/http"

	"github.com/gorilla/mux"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gorilla/mux/otelmux"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.20.0"
	"go.uber.org/zap"
)

// ShutdownFunc flushes and stops tracing
type ShutdownFunc func(ctx context.Context) error

// InitTracer initializes the OpenTelemetry tracer provider exporting to an OTLP HTTP endpoint
func InitTracer(ctx context.Context, serviceName, endpoint string) (*sdktrace.TracerProvider, error) {
	exporter, err := otlptracehttp.New(ctx,
		otlptracehttp.WithEndpoint(endpoint),
		otlptracehttp.WithInsecure(),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create OTLP exporter: %w", err)
	}

	res, err := resource.New(ctx,
		resource.WithAttributes(
			semconv.ServiceName(serviceName),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create resource: %w", err)
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sdktrace.AlwaysSample()),
	)
	Install(tp)
	return tp, nil
}

// Install makes tp the global provider and enables W3C trace context propagation
func Install(tp *sdktrace.TracerProvider) {
	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))
}

// Setup starts tracing when enabled. When disabled the returned shutdown is a no-op and
// spans go to the global no-op provider.
func Setup(ctx context.Context, enabled bool, serviceName, endpoint string, logger *zap.Logger) (ShutdownFunc, error) {
	if !enabled {
		logger.Debug("tracing_disabled")
		return func(context.Context) error { return nil }, nil
	}

	tp, err := InitTracer(ctx, serviceName, endpoint)
	if err != nil {
		return nil, err
	}
	logger.Info("tracing_enabled", zap.String("service", serviceName), zap.String("endpoint", endpoint))
	return func(ctx context.Context) error { return Shutdown(ctx, tp) }, nil
}

// Middleware returns router middleware that opens a server span per request
func Middleware(serviceName string) mux.MiddlewareFunc {
	mw := otelmux.Middleware(serviceName)
	return func(next http.Handler) http.Handler {
		return mw(next)
	}
}

// Shutdown gracefully shuts down the tracer provider
func Shutdown(ctx context.Context, tp *sdktrace.TracerProvider) error {
	if tp == nil {
		return nil
	}
	return tp.Shutdown(ctx)
}

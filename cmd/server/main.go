package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/benvon/taskboard/internal/bot"
	"github.com/benvon/taskboard/internal/cache"
	"github.com/benvon/taskboard/internal/config"
	"github.com/benvon/taskboard/internal/database"
	"github.com/benvon/taskboard/internal/handlers"
	"github.com/benvon/taskboard/internal/logger"
	"github.com/benvon/taskboard/internal/middleware"
	"github.com/benvon/taskboard/internal/queue"
	"github.com/benvon/taskboard/internal/telemetry"
	"go.uber.org/zap"
)

const serviceName = "taskboard-api"

func main() {
	debugFlag := flag.Bool("debug", false, "Enable debug logging")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	debugMode := cfg.ServerDebugMode || *debugFlag

	zapLogger, err := logger.NewProductionLogger(debugMode)
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer func() { _ = logger.Sync(zapLogger) }()

	zapLogger.Info("starting_server",
		zap.Bool("debug_mode", debugMode),
		zap.String("server_port", cfg.ServerPort),
		zap.Bool("bot_secret_configured", cfg.BotSecretConfigured()),
		zap.Bool("otel_enabled", cfg.OTELEnabled),
	)
	if !cfg.BotSecretConfigured() {
		zapLogger.Warn("bot_secret_not_configured_bot_endpoints_disabled")
	}

	shutdownTracing, err := telemetry.Setup(context.Background(), cfg.OTELEnabled && cfg.OTELEndpoint != "", serviceName, cfg.OTELEndpoint, zapLogger)
	if err != nil {
		zapLogger.Warn("failed_to_initialize_otel_tracer", zap.Error(err))
		shutdownTracing = nil
	}
	if shutdownTracing != nil {
		defer func() {
			shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer shutdownCancel()
			if err := shutdownTracing(shutdownCtx); err != nil {
				zapLogger.Error("failed_to_shutdown_otel_tracer", zap.Error(err))
			}
		}()
	}

	db, err := database.New(cfg.DatabaseURL)
	if err != nil {
		zapLogger.Fatal("failed_to_connect_to_database", zap.Error(err))
	}
	defer func() {
		if err := db.Close(); err != nil {
			zapLogger.Warn("failed_to_close_database_connection", zap.Error(err))
		}
	}()
	zapLogger.Info("connected_to_database")

	healthChecker := handlers.NewHealthChecker(db.PingContext)

	// The metrics cache is optional; reads fall through to the database without it
	var metricsCache *cache.MetricsCache
	if cfg.RedisURL != "" {
		metricsCache, err = cache.NewMetricsCache(cfg.RedisURL, cfg.MetricsCacheTTL)
		if err != nil {
			zapLogger.Warn("failed_to_connect_to_redis_cache_disabled", zap.Error(err))
			metricsCache = nil
		} else {
			zapLogger.Info("connected_to_redis", zap.Duration("metrics_cache_ttl", cfg.MetricsCacheTTL))
			healthChecker.WithCheck("redis", metricsCache.Ping)
			defer func() {
				if err := metricsCache.Close(); err != nil {
					zapLogger.Warn("failed_to_close_redis_connection", zap.Error(err))
				}
			}()
		}
	}

	// The broker belongs to the relay; the server only reports on it
	if cfg.RabbitMQURL != "" {
		broker, err := queue.NewRabbitMQFeed(cfg.RabbitMQURL, zapLogger)
		if err != nil {
			zapLogger.Warn("failed_to_connect_to_rabbitmq", zap.Error(err))
			healthChecker.WithCheck("rabbitmq", func(context.Context) error { return err })
		} else {
			healthChecker.WithCheck("rabbitmq", broker.HealthCheck)
			defer func() {
				if err := broker.Close(); err != nil {
					zapLogger.Warn("failed_to_close_rabbitmq_connection", zap.Error(err))
				}
			}()
		}
	}

	taskRepo := database.NewTaskRepository(db)
	commentRepo := database.NewCommentRepository(db)
	metricsRepo := database.NewMetricsRepository(db)

	var invalidator bot.MetricsInvalidator
	if metricsCache != nil {
		invalidator = metricsCache
	}

	botHandler := handlers.NewBotHandler(
		bot.NewDispatcher(taskRepo, commentRepo, zapLogger),
		bot.NewMetricsUpdater(metricsRepo, invalidator, cfg.DefaultBotName, zapLogger),
		zapLogger,
	)
	boardHandler := handlers.NewBoardHandler(taskRepo, commentRepo)
	metricsHandler := handlers.NewMetricsHandler(cache.NewMetricsReader(metricsRepo, metricsCache, zapLogger), zapLogger)
	openAPIHandler := handlers.NewOpenAPIHandler(filepath.Join("api", "openapi", "openapi.yaml"))

	opts := handlers.RouterOptions{
		BotSecret:      cfg.BotSecret,
		AllowedOrigins: cfg.CORSAllowedOrigins,
		EnableHSTS:     cfg.EnableHSTS,
		MaxRequestSize: middleware.DefaultMaxRequestSize,
		RequestTimeout: middleware.DefaultRequestTimeout,
		Logger:         zapLogger,
	}
	if shutdownTracing != nil && cfg.OTELEnabled {
		opts.Outer = append(opts.Outer, telemetry.Middleware(serviceName))
	}
	handler := handlers.NewServerHandler(handlers.Routes{
		Health:  healthChecker,
		Bot:     botHandler,
		Board:   boardHandler,
		Metrics: metricsHandler,
		OpenAPI: openAPIHandler,
	}, opts)

	srv := &http.Server{
		Addr:           ":" + cfg.ServerPort,
		Handler:        handler,
		ReadTimeout:    15 * time.Second,
		WriteTimeout:   middleware.DefaultRequestTimeout + 5*time.Second,
		IdleTimeout:    60 * time.Second,
		MaxHeaderBytes: 1 << 20,
	}

	go func() {
		zapLogger.Info("server_starting", zap.String("port", cfg.ServerPort))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			zapLogger.Fatal("server_failed_to_start", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	zapLogger.Info("server_shutting_down")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		zapLogger.Error("server_forced_to_shutdown", zap.Error(err))
	}

	zapLogger.Info("server_exited")
}

package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/benvon/taskboard/internal/changefeed"
	"github.com/benvon/taskboard/internal/config"
	"github.com/benvon/taskboard/internal/database"
	"github.com/benvon/taskboard/internal/logger"
	"github.com/benvon/taskboard/internal/queue"
	"go.uber.org/zap"
)

const (
	maxRetries   = 10
	initialDelay = 2 * time.Second
	maxDelay     = 30 * time.Second
)

func main() {
	debugFlag := flag.Bool("debug", false, "Enable debug logging")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	zapLogger, err := logger.NewProductionLogger(cfg.ServerDebugMode || *debugFlag)
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer func() { _ = logger.Sync(zapLogger) }()

	if cfg.RabbitMQURL == "" {
		zapLogger.Fatal("rabbitmq_url_not_configured")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

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

	feed, err := changefeed.NewPGFeed(cfg.DatabaseURL, cfg.FeedChannel, db, zapLogger)
	if err != nil {
		zapLogger.Fatal("failed_to_start_change_feed", zap.Error(err))
	}
	defer func() {
		if err := feed.Close(); err != nil {
			zapLogger.Warn("failed_to_close_change_feed", zap.Error(err))
		}
	}()

	broker, err := connectRabbitMQ(ctx, cfg.RabbitMQURL, zapLogger)
	if err != nil {
		zapLogger.Fatal("failed_to_connect_to_rabbitmq_after_retries",
			zap.Int("max_retries", maxRetries),
			zap.Error(err),
		)
	}
	defer func() {
		if err := broker.Close(); err != nil {
			zapLogger.Warn("failed_to_close_rabbitmq_connection", zap.Error(err))
		}
	}()

	relay := queue.NewRelay(feed, broker, []string{
		database.TasksTable,
		database.CommentsTable,
		database.MetricsTable,
	}, zapLogger)

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		if err := feed.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			zapLogger.Error("change_feed_stopped_with_error", zap.Error(err))
			stop()
		}
	}()
	go func() {
		defer wg.Done()
		if err := relay.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			zapLogger.Error("relay_stopped_with_error", zap.Error(err))
			stop()
		}
	}()

	<-ctx.Done()
	zapLogger.Info("relay_shutting_down")
	wg.Wait()
	zapLogger.Info("relay_exited")
}

// connectRabbitMQ retries with exponential backoff so the relay tolerates a broker that starts late
func connectRabbitMQ(ctx context.Context, url string, zapLogger *zap.Logger) (*queue.RabbitMQFeed, error) {
	var lastErr error
	for attempt := 0; attempt < maxRetries; attempt++ {
		broker, err := queue.NewRabbitMQFeed(url, zapLogger)
		if err == nil {
			zapLogger.Info("connected_to_rabbitmq")
			return broker, nil
		}
		lastErr = err

		delay := initialDelay * time.Duration(1<<uint(attempt))
		if delay > maxDelay {
			delay = maxDelay
		}
		zapLogger.Warn("failed_to_connect_to_rabbitmq_retrying",
			zap.Int("attempt", attempt+1),
			zap.Int("max_retries", maxRetries),
			zap.Error(err),
			zap.Duration("retry_delay", delay),
		)

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(delay):
		}
	}
	return nil, lastErr
}

// Package cache holds Redis-backed read caches.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/benvon/taskboard/internal/models"
	"github.com/redis/go-redis/v9"
)

const metricsKeyPrefix = "taskboard:metrics:"

// MetricsCache stores serialized metrics rows in Redis
type MetricsCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewMetricsCache connects to Redis and verifies the connection
func NewMetricsCache(redisURL string, ttl time.Duration) (*MetricsCache, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}

	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return &MetricsCache{client: client, ttl: ttl}, nil
}

func metricsKey(botName string) string {
	return metricsKeyPrefix + botName
}

// Get returns the cached row. A miss returns false with a nil error.
func (c *MetricsCache) Get(ctx context.Context, botName string) (*models.TradingMetrics, bool, error) {
	raw, err := c.client.Get(ctx, metricsKey(botName)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to read cached metrics: %w", err)
	}

	var m models.TradingMetrics
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, false, fmt.Errorf("failed to decode cached metrics: %w", err)
	}
	return &m, true, nil
}

// Set stores m for the cache TTL
func (c *MetricsCache) Set(ctx context.Context, m *models.TradingMetrics) error {
	raw, err := json.Marshal(m)
	if err != nil {
		return fmt.Errorf("failed to encode metrics: %w", err)
	}
	if err := c.client.Set(ctx, metricsKey(m.BotName), raw, c.ttl).Err(); err != nil {
		return fmt.Errorf("failed to cache metrics: %w", err)
	}
	return nil
}

// Invalidate drops the cached row of botName
func (c *MetricsCache) Invalidate(ctx context.Context, botName string) error {
	if err := c.client.Del(ctx, metricsKey(botName)).Err(); err != nil {
		return fmt.Errorf("failed to invalidate cached metrics: %w", err)
	}
	return nil
}

// Ping checks if Redis is reachable
func (c *MetricsCache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

// Close closes the Redis connection
func (c *MetricsCache) Close() error {
	return c.client.Close()
}

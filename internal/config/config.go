package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/benvon/taskboard/internal/models"
)

// Config holds application configuration
type Config struct {
	DatabaseURL        string
	ServerPort         string
	BotSecret          string
	DefaultBotName     string
	CORSAllowedOrigins []string
	EnableHSTS         bool
	ServerDebugMode    bool
	RedisURL           string
	MetricsCacheTTL    time.Duration
	RabbitMQURL        string
	FeedChannel        string
	OTELEnabled        bool
	OTELEndpoint       string
	BoardLogFile       string
	// BoardAPIURL is where the agent view sends bot actions
	BoardAPIURL string
}

// Load loads configuration from environment variables
func Load() (*Config, error) {
	return loadFrom(os.Getenv)
}

func loadFrom(lookup func(string) string) (*Config, error) {
	env := envReader{lookup: lookup}

	cfg := &Config{
		DatabaseURL:        env.get("DATABASE_URL", ""),
		ServerPort:         env.get("SERVER_PORT", "8080"),
		BotSecret:          lookup("BOT_SECRET"),
		DefaultBotName:     env.get("DEFAULT_BOT_NAME", models.DefaultBotName),
		CORSAllowedOrigins: splitList(env.get("CORS_ALLOWED_ORIGINS", "*")),
		EnableHSTS:         env.getBool("ENABLE_HSTS", false),
		ServerDebugMode:    env.getBool("SERVER_DEBUG_MODE", false),
		RedisURL:           env.get("REDIS_URL", ""),
		MetricsCacheTTL:    env.getDuration("METRICS_CACHE_TTL", 30*time.Second),
		RabbitMQURL:        env.get("RABBITMQ_URL", ""),
		FeedChannel:        env.get("FEED_CHANNEL", "taskboard_changes"),
		OTELEnabled:        env.getBool("OTEL_ENABLED", false),
		OTELEndpoint:       env.get("OTEL_EXPORTER_OTLP_ENDPOINT", ""),
		BoardLogFile:       env.get("BOARD_LOG_FILE", "taskboard-board.log"),
		BoardAPIURL:        strings.TrimRight(env.get("TASKBOARD_API_URL", "http://localhost:8080"), "/"),
	}

	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}

	return cfg, nil
}

// BotSecretConfigured reports whether the bot endpoints can authenticate anyone
func (c *Config) BotSecretConfigured() bool {
	return c.BotSecret != ""
}

type envReader struct {
	lookup func(string) string
}

func (e envReader) get(key, defaultValue string) string {
	if value := e.lookup(key); value != "" {
		return value
	}
	return defaultValue
}

func (e envReader) getBool(key string, defaultValue bool) bool {
	if value := e.lookup(key); value != "" {
		return value == "true" || value == "1" || value == "yes"
	}
	return defaultValue
}

func (e envReader) getInt(key string, defaultValue int) int {
	if value := e.lookup(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

// getDuration accepts Go durations ("45s") or a bare number of seconds
func (e envReader) getDuration(key string, defaultValue time.Duration) time.Duration {
	value := e.lookup(key)
	if value == "" {
		return defaultValue
	}
	if d, err := time.ParseDuration(value); err == nil {
		return d
	}
	if secs := e.getInt(key, -1); secs >= 0 {
		return time.Duration(secs) * time.Second
	}
	return defaultValue
}

func splitList(raw string) []string {
	var out []string
	seen := make(map[string]bool)
	for _, part := range strings.Split(raw, ",") {
		s := strings.TrimSpace(part)
		if s != "" && !seen[s] {
			seen[s] = true
			out = append(out, s)
		}
	}
	return out
}

package commands

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/benvon/taskboard/internal/cache"
	"github.com/benvon/taskboard/internal/config"
	"github.com/benvon/taskboard/internal/database"
	"github.com/benvon/taskboard/internal/queue"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// NewTestCmd creates the test command
func NewTestCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "test",
		Short: "Test connectivity",
		Long:  "Check that the database, the Redis metrics cache and the RabbitMQ broker are reachable. Unconfigured services are skipped.",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}

			ctx, cancel := context.WithTimeout(cmd.Context(), 15*time.Second)
			defer cancel()

			out := cmd.OutOrStdout()
			failed := 0
			for _, check := range connectivityChecks(cfg) {
				if !runCheck(ctx, out, check) {
					failed++
				}
			}

			if failed > 0 {
				return fmt.Errorf("%d connectivity check(s) failed", failed)
			}
			fmt.Fprintln(out, "\n✓ All configured services are reachable")
			return nil
		},
	}

	return cmd
}

type connectivityCheck struct {
	name       string
	configured bool
	run        func(ctx context.Context) error
}

func connectivityChecks(cfg *config.Config) []connectivityCheck {
	return []connectivityCheck{
		{
			name:       "database",
			configured: cfg.DatabaseURL != "",
			run: func(ctx context.Context) error {
				db, err := database.New(cfg.DatabaseURL)
				if err != nil {
					return err
				}
				defer closeDatabase(db)
				return db.PingContext(ctx)
			},
		},
		{
			name:       "redis",
			configured: cfg.RedisURL != "",
			run: func(ctx context.Context) error {
				c, err := cache.NewMetricsCache(cfg.RedisURL, cfg.MetricsCacheTTL)
				if err != nil {
					return err
				}
				defer func() { _ = c.Close() }()
				return c.Ping(ctx)
			},
		},
		{
			name:       "rabbitmq",
			configured: cfg.RabbitMQURL != "",
			run: func(ctx context.Context) error {
				q, err := queue.NewRabbitMQFeed(cfg.RabbitMQURL, zap.NewNop())
				if err != nil {
					return err
				}
				defer func() { _ = q.Close() }()
				return q.HealthCheck(ctx)
			},
		},
	}
}

// runCheck prints the outcome of one check and reports whether it passed
func runCheck(ctx context.Context, out io.Writer, check connectivityCheck) bool {
	if !check.configured {
		fmt.Fprintf(out, "- %s: not configured, skipped\n", check.name)
		return true
	}
	if err := check.run(ctx); err != nil {
		fmt.Fprintf(out, "✗ %s: %v\n", check.name, err)
		return false
	}
	fmt.Fprintf(out, "✓ %s: reachable\n", check.name)
	return true
}

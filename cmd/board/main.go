package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/benvon/taskboard/internal/board"
	"github.com/benvon/taskboard/internal/cache"
	"github.com/benvon/taskboard/internal/changefeed"
	"github.com/benvon/taskboard/internal/config"
	"github.com/benvon/taskboard/internal/database"
	"github.com/benvon/taskboard/internal/logger"
	"github.com/benvon/taskboard/internal/models"
	"github.com/benvon/taskboard/internal/queue"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

type options struct {
	token   string
	feed    string
	botName string
	apiURL  string
	debug   bool
}

func main() {
	opts := &options{}

	var rootCmd = &cobra.Command{
		Use:   "taskboard",
		Short: "Terminal kanban board shared by a human and a trading agent",
		Long:  "Interactive board over the task store with live updates, comment threads and bot metrics",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runBoard(cmd.Context(), opts)
		},
	}
	rootCmd.PersistentFlags().StringVar(&opts.token, "token", "", "Agent view token; any non-empty value views the board as the agent and is sent as the bot secret")
	rootCmd.PersistentFlags().StringVar(&opts.feed, "feed", "postgres", "Change feed source: postgres or rabbitmq")
	rootCmd.PersistentFlags().StringVar(&opts.botName, "bot", "", "Bot whose metrics are shown (defaults to DEFAULT_BOT_NAME)")
	rootCmd.PersistentFlags().StringVar(&opts.apiURL, "api-url", "", "Board server used for bot actions in agent view (defaults to TASKBOARD_API_URL)")
	rootCmd.PersistentFlags().BoolVar(&opts.debug, "debug", false, "Enable debug logging")

	rootCmd.AddCommand(&cobra.Command{
		Use:   "watch",
		Short: "Print board changes and unread flips without a UI",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWatch(cmd.Context(), opts)
		},
	})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func (o *options) party() models.Party {
	if o.token != "" {
		return models.PartyAgent
	}
	return models.PartyHuman
}

func runBoard(ctx context.Context, opts *options) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	session, cleanup, err := openSession(ctx, opts)
	if err != nil {
		return err
	}
	defer cleanup()

	p := tea.NewProgram(board.NewModel(ctx, session), tea.WithAltScreen(), tea.WithContext(ctx))
	if _, err := p.Run(); err != nil && !errors.Is(err, tea.ErrProgramKilled) {
		return fmt.Errorf("board exited with error: %w", err)
	}
	return nil
}

func runWatch(ctx context.Context, opts *options) error {
	session, cleanup, err := openSession(ctx, opts)
	if err != nil {
		return err
	}
	defer cleanup()
	return board.RunWatch(ctx, session, os.Stdout)
}

// openSession connects the stores and the selected feed and starts the mirrors
func openSession(ctx context.Context, opts *options) (*board.Session, func(), error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	if cfg.DatabaseURL == "" {
		return nil, nil, errors.New("DATABASE_URL is not set")
	}
	botName := opts.botName
	if botName == "" {
		botName = cfg.DefaultBotName
	}

	zapLogger, err := logger.NewFileLogger(cfg.BoardLogFile, opts.debug)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to initialize logger: %w", err)
	}

	var closers []func()
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
		_ = logger.Sync(zapLogger)
	}
	fail := func(err error) (*board.Session, func(), error) {
		cleanup()
		return nil, nil, err
	}

	db, err := database.New(cfg.DatabaseURL)
	if err != nil {
		return fail(fmt.Errorf("failed to connect to database: %w", err))
	}
	closers = append(closers, func() {
		if err := db.Close(); err != nil {
			zapLogger.Warn("failed_to_close_database_connection", zap.Error(err))
		}
	})

	feed, err := openFeed(ctx, opts.feed, cfg, db, zapLogger)
	if err != nil {
		return fail(err)
	}
	closers = append(closers, func() {
		if err := feed.Close(); err != nil {
			zapLogger.Warn("failed_to_close_change_feed", zap.Error(err))
		}
	})

	var metricsCache *cache.MetricsCache
	if cfg.RedisURL != "" {
		metricsCache, err = cache.NewMetricsCache(cfg.RedisURL, cfg.MetricsCacheTTL)
		if err != nil {
			zapLogger.Warn("metrics_cache_unavailable", zap.Error(err))
			metricsCache = nil
		} else {
			closers = append(closers, func() { _ = metricsCache.Close() })
		}
	}

	tasks := database.NewTaskRepository(db)
	comments := database.NewCommentRepository(db)
	session := board.NewSession(board.Stores{
		Tasks:    tasks,
		Comments: comments,
		Views:    tasks,
		Latest:   comments,
		Metrics:  cache.NewMetricsReader(database.NewMetricsRepository(db), metricsCache, zapLogger),
	}, feed, opts.party(), botName, zapLogger)
	if opts.token != "" {
		apiURL := strings.TrimRight(opts.apiURL, "/")
		if apiURL == "" {
			apiURL = cfg.BoardAPIURL
		}
		session.Bot = board.NewBotClient(apiURL, opts.token, nil)
	}

	if err := session.Start(ctx); err != nil {
		return fail(fmt.Errorf("failed to start board: %w", err))
	}
	closers = append(closers, session.Close)
	return session, cleanup, nil
}

type closableFeed interface {
	changefeed.Feed
	Close() error
}

// openFeed returns the LISTEN/NOTIFY feed or the relay's RabbitMQ exchange
func openFeed(ctx context.Context, kind string, cfg *config.Config, db *database.DB, zapLogger *zap.Logger) (closableFeed, error) {
	switch kind {
	case "postgres", "":
		feed, err := changefeed.NewPGFeed(cfg.DatabaseURL, cfg.FeedChannel, db, zapLogger)
		if err != nil {
			return nil, fmt.Errorf("failed to start change feed: %w", err)
		}
		go func() {
			if err := feed.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				zapLogger.Error("change_feed_stopped_with_error", zap.Error(err))
			}
		}()
		return feed, nil
	case "rabbitmq":
		if cfg.RabbitMQURL == "" {
			return nil, errors.New("RABBITMQ_URL is not set")
		}
		feed, err := queue.NewRabbitMQFeed(cfg.RabbitMQURL, zapLogger)
		if err != nil {
			return nil, err
		}
		return feed, nil
	default:
		return nil, fmt.Errorf("unknown feed %q: use postgres or rabbitmq", kind)
	}
}

package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/benvon/taskboard/internal/models"
)

const metricsColumns = `bot_name, total_profit, profit_yesterday, profit_week, win_rate_total,
	win_rate_yesterday, win_rate_week, trades_total, trades_yesterday, trades_week,
	avg_trade_size, max_drawdown, updated_at`

// MetricsRepository handles trading metrics rows, one per bot
type MetricsRepository struct {
	db *DB
}

// NewMetricsRepository creates a new metrics repository
func NewMetricsRepository(db *DB) *MetricsRepository {
	return &MetricsRepository{db: db}
}

func scanMetrics(row rowScanner) (*models.TradingMetrics, error) {
	m := &models.TradingMetrics{}
	err := row.Scan(
		&m.BotName,
		&m.TotalProfit,
		&m.ProfitYesterday,
		&m.ProfitWeek,
		&m.WinRateTotal,
		&m.WinRateYesterday,
		&m.WinRateWeek,
		&m.TradesTotal,
		&m.TradesYesterday,
		&m.TradesWeek,
		&m.AvgTradeSize,
		&m.MaxDrawdown,
		&m.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return m, nil
}

// Get retrieves the metrics row of a bot
func (r *MetricsRepository) Get(ctx context.Context, botName string) (*models.TradingMetrics, error) {
	query := `SELECT ` + metricsColumns + ` FROM trading_metrics WHERE bot_name = $1`

	m, err := scanMetrics(r.db.QueryRowContext(ctx, query, botName))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("metrics for %s: %w", botName, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get metrics: %w", err)
	}
	return m, nil
}

// Update writes only the fields present in patch in a single statement.
// updated_at is always refreshed.
func (r *MetricsRepository) Update(ctx context.Context, botName string, patch models.MetricsPatch) (*models.TradingMetrics, error) {
	query, args := buildMetricsUpdate(botName, patch.Columns())

	m, err := scanMetrics(r.db.QueryRowContext(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("metrics for %s: %w", botName, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to update metrics: %w", err)
	}
	return m, nil
}

func buildMetricsUpdate(botName string, cols []models.MetricsColumn) (string, []any) {
	args := []any{botName}
	sets := make([]string, 0, len(cols)+1)
	for _, c := range cols {
		args = append(args, c.Value)
		sets = append(sets, fmt.Sprintf("%s = $%d", c.Column, len(args)))
	}
	sets = append(sets, "updated_at = now()")

	query := `UPDATE trading_metrics SET ` + strings.Join(sets, ", ") +
		` WHERE bot_name = $1 RETURNING ` + metricsColumns
	return query, args
}

// Seed creates a zeroed metrics row for botName if none exists
func (r *MetricsRepository) Seed(ctx context.Context, botName string) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO trading_metrics (bot_name) VALUES ($1) ON CONFLICT (bot_name) DO NOTHING`,
		botName,
	)
	if err != nil {
		return fmt.Errorf("failed to seed metrics: %w", err)
	}
	return nil
}

package commands

import (
	"fmt"
	"io"

	"github.com/benvon/taskboard/internal/database"
	"github.com/benvon/taskboard/internal/models"
	"github.com/spf13/cobra"
)

// NewMetricsCmd creates the metrics command group
func NewMetricsCmd() *cobra.Command {
	var botName string

	cmd := &cobra.Command{
		Use:   "metrics",
		Short: "Inspect or seed trading metrics",
	}
	cmd.PersistentFlags().StringVar(&botName, "bot", "", "Bot name (defaults to DEFAULT_BOT_NAME)")

	show := &cobra.Command{
		Use:   "show",
		Short: "Print the metrics row of a bot",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, db, err := openDatabase()
			if err != nil {
				return err
			}
			defer closeDatabase(db)

			name := botName
			if name == "" {
				name = cfg.DefaultBotName
			}
			m, err := database.NewMetricsRepository(db).Get(cmd.Context(), name)
			if err != nil {
				return fmt.Errorf("failed to read metrics for %s: %w", name, err)
			}
			printMetrics(cmd.OutOrStdout(), m)
			return nil
		},
	}

	seed := &cobra.Command{
		Use:   "seed",
		Short: "Create a zeroed metrics row if none exists",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, db, err := openDatabase()
			if err != nil {
				return err
			}
			defer closeDatabase(db)

			name := botName
			if name == "" {
				name = cfg.DefaultBotName
			}
			if err := database.NewMetricsRepository(db).Seed(cmd.Context(), name); err != nil {
				return fmt.Errorf("failed to seed metrics for %s: %w", name, err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Metrics row ready for %s\n", name)
			return nil
		},
	}

	cmd.AddCommand(show, seed)
	return cmd
}

func printMetrics(w io.Writer, m *models.TradingMetrics) {
	fmt.Fprintf(w, "Bot: %s (updated %s)\n", m.BotName, m.UpdatedAt.Format("2006-01-02 15:04:05"))
	fmt.Fprintf(w, "  Profit     total %.2f  yesterday %.2f  week %.2f\n", m.TotalProfit, m.ProfitYesterday, m.ProfitWeek)
	fmt.Fprintf(w, "  Win rate   total %.1f%%  yesterday %.1f%%  week %.1f%%\n", m.WinRateTotal, m.WinRateYesterday, m.WinRateWeek)
	fmt.Fprintf(w, "  Trades     total %d  yesterday %d  week %d\n", m.TradesTotal, m.TradesYesterday, m.TradesWeek)
	fmt.Fprintf(w, "  Avg size   %.2f\n", m.AvgTradeSize)
	fmt.Fprintf(w, "  Drawdown   %.2f\n", m.MaxDrawdown)
}

package commands

import (
	"fmt"

	"github.com/spf13/cobra"
)

// NewMigrateCmd creates the migrate command
func NewMigrateCmd() *cobra.Command {
	var channel string

	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply the database schema",
		Long:  "Create the tasks, task_comments and trading_metrics tables and the change notification triggers. Safe to run repeatedly.",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, db, err := openDatabase()
			if err != nil {
				return err
			}
			defer closeDatabase(db)

			if channel == "" {
				channel = cfg.FeedChannel
			}
			if err := db.Migrate(cmd.Context(), channel); err != nil {
				return fmt.Errorf("failed to migrate: %w", err)
			}

			fmt.Printf("Schema applied (change feed channel: %s)\n", channel)
			return nil
		},
	}

	cmd.Flags().StringVar(&channel, "channel", "", "NOTIFY channel for change events (defaults to FEED_CHANNEL)")

	return cmd
}

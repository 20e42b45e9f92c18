package main

import (
	"fmt"
	"os"

	"github.com/benvon/taskboard/cmd/configure/commands"
	"github.com/spf13/cobra"
)

func main() {
	var rootCmd = &cobra.Command{
		Use:   "taskboard-configure",
		Short: "Administration tool for the task board",
		Long:  "CLI tool for applying the schema, seeding metrics and checking connectivity",
	}

	rootCmd.AddCommand(commands.NewMigrateCmd())
	rootCmd.AddCommand(commands.NewMetricsCmd())
	rootCmd.AddCommand(commands.NewTasksCmd())
	rootCmd.AddCommand(commands.NewTestCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

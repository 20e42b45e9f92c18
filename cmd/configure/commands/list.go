package commands

import (
	"fmt"
	"io"

	"github.com/benvon/taskboard/internal/database"
	"github.com/benvon/taskboard/internal/models"
	"github.com/benvon/taskboard/internal/validation"
	"github.com/spf13/cobra"
)

// NewTasksCmd creates the tasks command group
func NewTasksCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tasks",
		Short: "Inspect tasks",
	}
	cmd.AddCommand(newTasksListCmd())
	return cmd
}

func newTasksListCmd() *cobra.Command {
	var status string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List tasks ordered by creation time",
		RunE: func(cmd *cobra.Command, args []string) error {
			if status != "" {
				if err := validation.ValidateTaskStatus(status); err != nil {
					return err
				}
			}

			_, db, err := openDatabase()
			if err != nil {
				return err
			}
			defer closeDatabase(db)

			tasks, err := database.NewTaskRepository(db).List(cmd.Context())
			if err != nil {
				return fmt.Errorf("failed to list tasks: %w", err)
			}

			printTasks(cmd.OutOrStdout(), tasks, models.TaskStatus(status))
			return nil
		},
	}

	cmd.Flags().StringVar(&status, "status", "", "Only show tasks with this status")

	return cmd
}

func printTasks(w io.Writer, tasks []*models.Task, status models.TaskStatus) {
	shown := 0
	for _, t := range tasks {
		if status != "" && t.Status != status {
			continue
		}
		fmt.Fprintln(w, formatTask(t))
		shown++
	}
	if shown == 0 {
		fmt.Fprintln(w, "No tasks")
	}
}

// formatTask renders one task as a single line
func formatTask(t *models.Task) string {
	return fmt.Sprintf("%s  %-11s  %-6s  %-5s  %s", t.ID, t.Status, t.Priority, t.Assignee, t.Title)
}

package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/benvon/taskboard/internal/models"
	"github.com/google/uuid"
	"github.com/lib/pq"
)

const taskColumns = `id, title, description, status, assignee, priority, created_at, last_viewed_user, last_viewed_bot`

// TaskRepository handles task database operations
type TaskRepository struct {
	db *DB
}

// NewTaskRepository creates a new task repository
func NewTaskRepository(db *DB) *TaskRepository {
	return &TaskRepository{db: db}
}

func scanTask(row rowScanner) (*models.Task, error) {
	task := &models.Task{}
	var viewedHuman, viewedAgent sql.NullTime
	err := row.Scan(
		&task.ID,
		&task.Title,
		&task.Description,
		&task.Status,
		&task.Assignee,
		&task.Priority,
		&task.CreatedAt,
		&viewedHuman,
		&viewedAgent,
	)
	if err != nil {
		return nil, err
	}
	task.LastViewedHuman = nullTimePtr(viewedHuman)
	task.LastViewedAgent = nullTimePtr(viewedAgent)
	return task, nil
}

// Create inserts a task. ID is generated when unset; created_at is assigned by the store.
func (r *TaskRepository) Create(ctx context.Context, task *models.Task) error {
	if task.ID == uuid.Nil {
		task.ID = uuid.New()
	}
	if task.Priority == "" {
		task.Priority = models.TaskPriorityMedium
	}
	if task.Status == "" {
		task.Status = models.TaskStatusTodo
	}

	query := `
		INSERT INTO tasks (id, title, description, status, assignee, priority)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING created_at
	`
	err := r.db.QueryRowContext(ctx, query,
		task.ID,
		task.Title,
		task.Description,
		task.Status,
		task.Assignee,
		task.Priority,
	).Scan(&task.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create task: %w", err)
	}
	return nil
}

// GetByID retrieves a task by ID
func (r *TaskRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Task, error) {
	query := `SELECT ` + taskColumns + ` FROM tasks WHERE id = $1`

	task, err := scanTask(r.db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("task %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get task: %w", err)
	}
	return task, nil
}

// List returns every task ordered by creation time ascending
func (r *TaskRepository) List(ctx context.Context) ([]*models.Task, error) {
	query := `SELECT ` + taskColumns + ` FROM tasks ORDER BY created_at ASC, id ASC`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query tasks: %w", err)
	}
	defer rows.Close()

	var tasks []*models.Task
	for rows.Next() {
		task, err := scanTask(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan task: %w", err)
		}
		tasks = append(tasks, task)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating tasks: %w", err)
	}
	return tasks, nil
}

// Update applies the allow-listed fields of patch and returns the updated row
func (r *TaskRepository) Update(ctx context.Context, id uuid.UUID, patch models.TaskPatch) (*models.Task, error) {
	query, args, err := buildTaskUpdate(id, patch)
	if err != nil {
		return nil, err
	}

	task, err := scanTask(r.db.QueryRowContext(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("task %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to update task: %w", err)
	}
	return task, nil
}

// buildTaskUpdate renders the UPDATE for the fields present in patch
func buildTaskUpdate(id uuid.UUID, patch models.TaskPatch) (string, []any, error) {
	var sets []string
	args := []any{id}

	add := func(column string, value any) {
		args = append(args, value)
		sets = append(sets, fmt.Sprintf("%s = $%d", column, len(args)))
	}
	if patch.Title != nil {
		add("title", *patch.Title)
	}
	if patch.Description != nil {
		add("description", *patch.Description)
	}
	if patch.Status != nil {
		add("status", string(*patch.Status))
	}
	if patch.Assignee != nil {
		add("assignee", string(*patch.Assignee))
	}
	if patch.Priority != nil {
		add("priority", string(*patch.Priority))
	}

	if len(sets) == 0 {
		return "", nil, fmt.Errorf("task update has no fields")
	}

	query := `UPDATE tasks SET ` + strings.Join(sets, ", ") + ` WHERE id = $1 RETURNING ` + taskColumns
	return query, args, nil
}

// MarkViewed writes at into the party's last-viewed column
func (r *TaskRepository) MarkViewed(ctx context.Context, id uuid.UUID, party models.Party, at time.Time) (*models.Task, error) {
	// Column name comes from a closed set, never from input.
	query := fmt.Sprintf(`UPDATE tasks SET %s = $2 WHERE id = $1 RETURNING %s`, party.LastViewedColumn(), taskColumns)

	task, err := scanTask(r.db.QueryRowContext(ctx, query, id, at))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("task %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to mark task viewed: %w", err)
	}
	return task, nil
}

// Views returns both last-viewed markers for the given tasks
func (r *TaskRepository) Views(ctx context.Context, ids []uuid.UUID) ([]models.TaskViews, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	query := `SELECT id, last_viewed_user, last_viewed_bot FROM tasks WHERE id = ANY($1::uuid[])`
	rows, err := r.db.QueryContext(ctx, query, pq.Array(uuidStrings(ids)))
	if err != nil {
		return nil, fmt.Errorf("failed to query task views: %w", err)
	}
	defer rows.Close()

	var views []models.TaskViews
	for rows.Next() {
		var v models.TaskViews
		var viewedHuman, viewedAgent sql.NullTime
		if err := rows.Scan(&v.TaskID, &viewedHuman, &viewedAgent); err != nil {
			return nil, fmt.Errorf("failed to scan task views: %w", err)
		}
		v.LastViewedHuman = nullTimePtr(viewedHuman)
		v.LastViewedAgent = nullTimePtr(viewedAgent)
		views = append(views, v)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating task views: %w", err)
	}
	return views, nil
}

// Delete deletes a task by ID. Comments go with it through the foreign key cascade.
func (r *TaskRepository) Delete(ctx context.Context, id uuid.UUID) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM tasks WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete task: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("task %s: %w", id, ErrNotFound)
	}
	return nil
}

func uuidStrings(ids []uuid.UUID) []string {
	out := make([]string, len(ids))
	for i, id := range ids {
		out[i] = id.String()
	}
	return out
}

package database

import (
	"context"
	"fmt"
	"time"

	"github.com/benvon/taskboard/internal/models"
	"github.com/google/uuid"
	"github.com/lib/pq"
)

// CommentRepository handles task comment database operations
type CommentRepository struct {
	db *DB
}

// NewCommentRepository creates a new comment repository
func NewCommentRepository(db *DB) *CommentRepository {
	return &CommentRepository{db: db}
}

// Create inserts a comment. ID is generated when unset.
func (r *CommentRepository) Create(ctx context.Context, comment *models.Comment) error {
	if comment.ID == uuid.Nil {
		comment.ID = uuid.New()
	}

	query := `
		INSERT INTO task_comments (id, task_id, author, content)
		VALUES ($1, $2, $3, $4)
		RETURNING created_at
	`
	err := r.db.QueryRowContext(ctx, query,
		comment.ID,
		comment.TaskID,
		comment.Author,
		comment.Content,
	).Scan(&comment.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create comment: %w", err)
	}
	return nil
}

// ListByTask returns a task's comments ordered by creation time ascending
func (r *CommentRepository) ListByTask(ctx context.Context, taskID uuid.UUID) ([]*models.Comment, error) {
	query := `
		SELECT id, task_id, author, content, created_at
		FROM task_comments
		WHERE task_id = $1
		ORDER BY created_at ASC, id ASC
	`
	rows, err := r.db.QueryContext(ctx, query, taskID)
	if err != nil {
		return nil, fmt.Errorf("failed to query comments: %w", err)
	}
	defer rows.Close()

	var comments []*models.Comment
	for rows.Next() {
		c := &models.Comment{}
		if err := rows.Scan(&c.ID, &c.TaskID, &c.Author, &c.Content, &c.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan comment: %w", err)
		}
		comments = append(comments, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating comments: %w", err)
	}
	return comments, nil
}

// LatestByAuthor returns, per task, the creation time of the newest comment written by author.
// Tasks without such a comment are absent from the map.
func (r *CommentRepository) LatestByAuthor(ctx context.Context, taskIDs []uuid.UUID, author models.Party) (map[uuid.UUID]time.Time, error) {
	latest := make(map[uuid.UUID]time.Time)
	if len(taskIDs) == 0 {
		return latest, nil
	}

	query := `
		SELECT task_id, max(created_at)
		FROM task_comments
		WHERE task_id = ANY($1::uuid[]) AND author = $2
		GROUP BY task_id
	`
	rows, err := r.db.QueryContext(ctx, query, pq.Array(uuidStrings(taskIDs)), string(author))
	if err != nil {
		return nil, fmt.Errorf("failed to query latest comments: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var taskID uuid.UUID
		var createdAt time.Time
		if err := rows.Scan(&taskID, &createdAt); err != nil {
			return nil, fmt.Errorf("failed to scan latest comment: %w", err)
		}
		latest[taskID] = createdAt
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating latest comments: %w", err)
	}
	return latest, nil
}

// Delete deletes a comment by ID
func (r *CommentRepository) Delete(ctx context.Context, id uuid.UUID) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM task_comments WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete comment: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("comment %s: %w", id, ErrNotFound)
	}
	return nil
}

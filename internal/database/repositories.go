package database

import (
	"context"
	"time"

	"github.com/benvon/taskboard/internal/models"
	"github.com/google/uuid"
)

// TaskRepositoryInterface defines the task operations other packages depend on.
// It enables fakes in tests.
type TaskRepositoryInterface interface {
	Create(ctx context.Context, task *models.Task) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Task, error)
	List(ctx context.Context) ([]*models.Task, error)
	Update(ctx context.Context, id uuid.UUID, patch models.TaskPatch) (*models.Task, error)
	MarkViewed(ctx context.Context, id uuid.UUID, party models.Party, at time.Time) (*models.Task, error)
	Views(ctx context.Context, ids []uuid.UUID) ([]models.TaskViews, error)
	Delete(ctx context.Context, id uuid.UUID) error
}

// CommentRepositoryInterface defines the comment operations other packages depend on
type CommentRepositoryInterface interface {
	Create(ctx context.Context, comment *models.Comment) error
	ListByTask(ctx context.Context, taskID uuid.UUID) ([]*models.Comment, error)
	LatestByAuthor(ctx context.Context, taskIDs []uuid.UUID, author models.Party) (map[uuid.UUID]time.Time, error)
	Delete(ctx context.Context, id uuid.UUID) error
}

// MetricsRepositoryInterface defines the metrics operations other packages depend on
type MetricsRepositoryInterface interface {
	Get(ctx context.Context, botName string) (*models.TradingMetrics, error)
	Update(ctx context.Context, botName string, patch models.MetricsPatch) (*models.TradingMetrics, error)
}

// Ensure concrete types implement the interfaces
var (
	_ TaskRepositoryInterface    = (*TaskRepository)(nil)
	_ CommentRepositoryInterface = (*CommentRepository)(nil)
	_ MetricsRepositoryInterface = (*MetricsRepository)(nil)
)

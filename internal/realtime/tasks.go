package realtime

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/benvon/taskboard/internal/changefeed"
	"github.com/benvon/taskboard/internal/models"
	"github.com/benvon/taskboard/internal/validation"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	tasksTable    = "tasks"
	commentsTable = "task_comments"
	metricsTable  = "trading_metrics"
)

// ErrNotStarted is returned by operations that need an active sync
var ErrNotStarted = errors.New("sync not started")

// TaskStore is the subset of the task repository the sync writes through
type TaskStore interface {
	List(ctx context.Context) ([]*models.Task, error)
	Create(ctx context.Context, task *models.Task) error
	Update(ctx context.Context, id uuid.UUID, patch models.TaskPatch) (*models.Task, error)
	Delete(ctx context.Context, id uuid.UUID) error
}

// NewTask holds the fields for creating a task. Empty Priority and Status fall back to medium and todo.
type NewTask struct {
	Title       string
	Description string
	Assignee    models.Party
	Priority    models.TaskPriority
	Status      models.TaskStatus
}

// TaskSync mirrors the tasks table. Mutations write to the store only;
// the mirror changes when the feed reflects the write back.
type TaskSync struct {
	store  TaskStore
	feed   changefeed.Feed
	logger *zap.Logger

	tasks   *Collection[*models.Task]
	changes notifier

	mu     sync.Mutex
	sub    *changefeed.Subscription
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewTaskSync creates a task mirror over store and feed
func NewTaskSync(store TaskStore, feed changefeed.Feed, logger *zap.Logger) *TaskSync {
	return &TaskSync{
		store:   store,
		feed:    feed,
		logger:  logger,
		tasks:   NewCollection(func(t *models.Task) string { return t.ID.String() }),
		changes: newNotifier(),
	}
}

// Start subscribes to the tasks table, loads every task, then applies feed events.
// Events raised while the bulk read is in flight are queued and applied afterwards.
func (s *TaskSync) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.sub != nil {
		return nil
	}

	ctx, cancel := context.WithCancel(ctx)
	sub, err := s.feed.Subscribe(ctx, changefeed.Filter{Table: tasksTable})
	if err != nil {
		cancel()
		return fmt.Errorf("failed to subscribe to tasks: %w", err)
	}

	tasks, err := s.store.List(ctx)
	if err != nil {
		sub.Close()
		cancel()
		return fmt.Errorf("failed to load tasks: %w", err)
	}
	s.tasks.Reset(tasks)
	s.changes.notify()
	s.logger.Info("task_sync_started", zap.Int("tasks", len(tasks)))

	s.sub = sub
	s.cancel = cancel
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		consume(ctx, sub, s.logger, s.apply, s.reload)
	}()
	return nil
}

// Stop releases the subscription and waits for the consumer to exit
func (s *TaskSync) Stop() {
	s.mu.Lock()
	sub, cancel := s.sub, s.cancel
	s.sub, s.cancel = nil, nil
	s.mu.Unlock()

	if sub == nil {
		return
	}
	sub.Close()
	cancel()
	s.wg.Wait()
}

func (s *TaskSync) apply(e changefeed.Event) error {
	changed, err := s.tasks.Apply(e)
	if err != nil {
		return err
	}
	if changed {
		s.logger.Debug("task_change_applied", zap.String("type", string(e.Type)), zap.String("id", e.RowID()))
		s.changes.notify()
	}
	return nil
}

// reload replaces the mirror with a fresh bulk read
func (s *TaskSync) reload(ctx context.Context) error {
	tasks, err := s.store.List(ctx)
	if err != nil {
		return fmt.Errorf("failed to reload tasks: %w", err)
	}
	s.tasks.Reset(tasks)
	s.changes.notify()
	s.logger.Info("task_sync_reloaded", zap.Int("tasks", len(tasks)))
	return nil
}

// Changes signals after the mirror changes. Bursts coalesce into one signal.
func (s *TaskSync) Changes() <-chan struct{} {
	return s.changes.ch
}

// Tasks returns a snapshot of all tasks ordered by creation time
func (s *TaskSync) Tasks() []*models.Task {
	return s.tasks.Items()
}

// Task returns the mirrored task with id
func (s *TaskSync) Task(id uuid.UUID) (*models.Task, bool) {
	return s.tasks.Get(id.String())
}

// ByStatus returns the tasks in one board column
func (s *TaskSync) ByStatus(status models.TaskStatus) []*models.Task {
	var out []*models.Task
	for _, t := range s.tasks.Items() {
		if t.Status == status {
			out = append(out, t)
		}
	}
	return out
}

// IDs returns the ids of every mirrored task
func (s *TaskSync) IDs() []uuid.UUID {
	items := s.tasks.Items()
	ids := make([]uuid.UUID, 0, len(items))
	for _, t := range items {
		ids = append(ids, t.ID)
	}
	return ids
}

// Create writes a new task to the store
func (s *TaskSync) Create(ctx context.Context, in NewTask) (*models.Task, error) {
	title, err := validation.TaskTitle(in.Title)
	if err != nil {
		return nil, err
	}
	if in.Priority == "" {
		in.Priority = models.TaskPriorityMedium
	}
	if in.Status == "" {
		in.Status = models.TaskStatusTodo
	}
	if err := validation.ValidateTaskPriority(string(in.Priority)); err != nil {
		return nil, err
	}
	if err := validation.ValidateTaskStatus(string(in.Status)); err != nil {
		return nil, err
	}
	if err := validation.ValidateParty(string(in.Assignee)); err != nil {
		return nil, err
	}

	task := &models.Task{
		Title:       title,
		Description: validation.SanitizeText(in.Description),
		Status:      in.Status,
		Assignee:    in.Assignee,
		Priority:    in.Priority,
	}
	if err := s.store.Create(ctx, task); err != nil {
		s.logger.Error("task_create_failed", zap.Error(err))
		return nil, err
	}
	return task, nil
}

// Update writes the allow-listed fields present in patch
func (s *TaskSync) Update(ctx context.Context, id uuid.UUID, patch models.TaskPatch) error {
	if patch.IsEmpty() {
		return nil
	}
	if err := validation.ValidateTaskPatch(&patch); err != nil {
		return err
	}
	if _, err := s.store.Update(ctx, id, patch); err != nil {
		s.logger.Error("task_update_failed", zap.String("id", id.String()), zap.Error(err))
		return err
	}
	return nil
}

// Move changes the status of a task
func (s *TaskSync) Move(ctx context.Context, id uuid.UUID, status models.TaskStatus) error {
	return s.Update(ctx, id, models.TaskPatch{Status: &status})
}

// Delete removes a task from the store
func (s *TaskSync) Delete(ctx context.Context, id uuid.UUID) error {
	if err := s.store.Delete(ctx, id); err != nil {
		s.logger.Error("task_delete_failed", zap.String("id", id.String()), zap.Error(err))
		return err
	}
	return nil
}

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

// ErrNoTaskSelected is returned when adding a comment while no task is watched
var ErrNoTaskSelected = errors.New("no task selected")

// CommentStore is the subset of the comment repository the sync writes through
type CommentStore interface {
	ListByTask(ctx context.Context, taskID uuid.UUID) ([]*models.Comment, error)
	Create(ctx context.Context, comment *models.Comment) error
	Delete(ctx context.Context, id uuid.UUID) error
}

// CommentSync mirrors the comment thread of one task at a time
type CommentSync struct {
	store  CommentStore
	feed   changefeed.Feed
	logger *zap.Logger

	comments *Collection[*models.Comment]
	changes  notifier

	mu     sync.Mutex
	taskID *uuid.UUID
	gen    uint64
	sub    *changefeed.Subscription
	cancel context.CancelFunc
}

// NewCommentSync creates a comment mirror over store and feed
func NewCommentSync(store CommentStore, feed changefeed.Feed, logger *zap.Logger) *CommentSync {
	return &CommentSync{
		store:    store,
		feed:     feed,
		logger:   logger,
		comments: NewCollection(func(c *models.Comment) string { return c.ID.String() }),
		changes:  newNotifier(),
	}
}

// Watch switches the mirror to taskID. A nil id clears the thread and releases the subscription.
// Results of a load that finishes after a newer Watch are discarded.
func (s *CommentSync) Watch(ctx context.Context, taskID *uuid.UUID) error {
	s.mu.Lock()
	if sameTask(s.taskID, taskID) && (taskID == nil || s.sub != nil) {
		s.mu.Unlock()
		return nil
	}
	s.gen++
	gen := s.gen
	s.teardownLocked()
	s.comments.Reset(nil)
	if taskID == nil {
		s.taskID = nil
		s.mu.Unlock()
		s.changes.notify()
		return nil
	}
	id := *taskID
	s.taskID = &id
	s.mu.Unlock()
	s.changes.notify()

	subCtx, cancel := context.WithCancel(ctx)
	sub, err := s.feed.Subscribe(subCtx, changefeed.Filter{
		Table:  commentsTable,
		Column: "task_id",
		Value:  id.String(),
	})
	if err != nil {
		cancel()
		return fmt.Errorf("failed to subscribe to comments: %w", err)
	}

	comments, err := s.store.ListByTask(subCtx, id)
	if err != nil {
		sub.Close()
		cancel()
		return fmt.Errorf("failed to load comments: %w", err)
	}

	s.mu.Lock()
	if s.gen != gen {
		s.mu.Unlock()
		sub.Close()
		cancel()
		s.logger.Debug("comment_load_discarded", zap.String("task_id", id.String()))
		return nil
	}
	s.comments.Reset(comments)
	s.sub = sub
	s.cancel = cancel
	s.mu.Unlock()
	s.changes.notify()

	go consume(subCtx, sub, s.logger, func(e changefeed.Event) error {
		return s.apply(gen, e)
	}, func(ctx context.Context) error {
		return s.reload(ctx, gen, id)
	})
	return nil
}

// reload re-reads the thread of id unless a newer Watch superseded gen
func (s *CommentSync) reload(ctx context.Context, gen uint64, id uuid.UUID) error {
	comments, err := s.store.ListByTask(ctx, id)
	if err != nil {
		return fmt.Errorf("failed to reload comments: %w", err)
	}

	s.mu.Lock()
	if s.gen != gen {
		s.mu.Unlock()
		return nil
	}
	s.comments.Reset(comments)
	s.mu.Unlock()
	s.changes.notify()
	return nil
}

func (s *CommentSync) apply(gen uint64, e changefeed.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.gen != gen {
		return nil
	}
	// comments are immutable
	if e.Type == changefeed.Update {
		return nil
	}

	changed, err := s.comments.Apply(e)
	if err != nil {
		return err
	}
	if changed {
		s.logger.Debug("comment_change_applied", zap.String("type", string(e.Type)), zap.String("id", e.RowID()))
		s.changes.notify()
	}
	return nil
}

func (s *CommentSync) teardownLocked() {
	if s.sub != nil {
		s.sub.Close()
		s.sub = nil
	}
	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
}

// Close releases any open subscription
func (s *CommentSync) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.gen++
	s.taskID = nil
	s.teardownLocked()
	s.comments.Reset(nil)
}

// TaskID returns the watched task id
func (s *CommentSync) TaskID() (uuid.UUID, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.taskID == nil {
		return uuid.Nil, false
	}
	return *s.taskID, true
}

// Changes signals after the thread changes
func (s *CommentSync) Changes() <-chan struct{} {
	return s.changes.ch
}

// Comments returns the thread ordered by creation time
func (s *CommentSync) Comments() []*models.Comment {
	return s.comments.Items()
}

// Add writes a comment on the watched task. Blank content is rejected without a store call.
func (s *CommentSync) Add(ctx context.Context, content string, author models.Party) (*models.Comment, error) {
	content, err := validation.CommentContent(content)
	if err != nil {
		return nil, err
	}
	taskID, ok := s.TaskID()
	if !ok {
		return nil, ErrNoTaskSelected
	}

	comment := &models.Comment{
		TaskID:  taskID,
		Author:  author,
		Content: content,
	}
	if err := s.store.Create(ctx, comment); err != nil {
		s.logger.Error("comment_create_failed", zap.String("task_id", taskID.String()), zap.Error(err))
		return nil, err
	}
	return comment, nil
}

// Delete removes a comment from the store
func (s *CommentSync) Delete(ctx context.Context, id uuid.UUID) error {
	if err := s.store.Delete(ctx, id); err != nil {
		s.logger.Error("comment_delete_failed", zap.String("id", id.String()), zap.Error(err))
		return err
	}
	return nil
}

func sameTask(a, b *uuid.UUID) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}

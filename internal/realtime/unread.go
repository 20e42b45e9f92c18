package realtime

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/benvon/taskboard/internal/changefeed"
	"github.com/benvon/taskboard/internal/models"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// ViewStore reads and writes per-party last-viewed markers
type ViewStore interface {
	Views(ctx context.Context, ids []uuid.UUID) ([]models.TaskViews, error)
	MarkViewed(ctx context.Context, id uuid.UUID, party models.Party, at time.Time) (*models.Task, error)
}

// LatestCommentStore reports the newest comment time per task for one author
type LatestCommentStore interface {
	LatestByAuthor(ctx context.Context, taskIDs []uuid.UUID, author models.Party) (map[uuid.UUID]time.Time, error)
}

// IsUnread applies the unread rule for one task: a comment from the other party is unread
// when the viewer never opened the task or the comment is strictly newer than the last view.
func IsUnread(latestOther *time.Time, lastViewed *time.Time) bool {
	if latestOther == nil {
		return false
	}
	if lastViewed == nil {
		return true
	}
	return latestOther.After(*lastViewed)
}

// ComputeUnread derives the unread flag of every id for viewer.
// latest holds the newest comment time by the other party; ids absent from it have none.
func ComputeUnread(ids []uuid.UUID, viewer models.Party, views []models.TaskViews, latest map[uuid.UUID]time.Time) map[uuid.UUID]bool {
	lastViewed := make(map[uuid.UUID]*time.Time, len(views))
	for _, v := range views {
		lastViewed[v.TaskID] = v.For(viewer)
	}

	unread := make(map[uuid.UUID]bool, len(ids))
	for _, id := range ids {
		var other *time.Time
		if t, ok := latest[id]; ok {
			other = &t
		}
		unread[id] = IsUnread(other, lastViewed[id])
	}
	return unread
}

// UnreadTracker keeps the unread flag of a watched task set for one viewing party.
// Any comment change triggers a full recheck of the set.
type UnreadTracker struct {
	views    ViewStore
	comments LatestCommentStore
	feed     changefeed.Feed
	party    models.Party
	logger   *zap.Logger
	now      func() time.Time

	changes notifier

	mu     sync.Mutex
	ids    []uuid.UUID
	unread map[uuid.UUID]bool
	// marked holds local markAsRead times so a recheck that raced the write cannot resurrect the flag
	marked map[uuid.UUID]time.Time
	gen    uint64
	sub    *changefeed.Subscription
	cancel context.CancelFunc
}

// NewUnreadTracker creates a tracker for party
func NewUnreadTracker(views ViewStore, comments LatestCommentStore, feed changefeed.Feed, party models.Party, logger *zap.Logger) *UnreadTracker {
	return &UnreadTracker{
		views:    views,
		comments: comments,
		feed:     feed,
		party:    party,
		logger:   logger,
		now:      time.Now,
		changes:  newNotifier(),
		unread:   make(map[uuid.UUID]bool),
		marked:   make(map[uuid.UUID]time.Time),
	}
}

// Party returns the viewing party
func (u *UnreadTracker) Party() models.Party {
	return u.party
}

// Watch replaces the watched set, recomputes it and rechecks on every comment event.
// Watching the set already watched is a no-op.
func (u *UnreadTracker) Watch(ctx context.Context, ids []uuid.UUID) error {
	u.mu.Lock()
	if u.sub != nil && sameIDs(u.ids, ids) {
		u.mu.Unlock()
		return nil
	}
	u.gen++
	gen := u.gen
	u.teardownLocked()
	u.ids = append([]uuid.UUID(nil), ids...)
	u.unread = make(map[uuid.UUID]bool, len(ids))
	u.mu.Unlock()

	if len(ids) == 0 {
		u.changes.notify()
		return nil
	}

	subCtx, cancel := context.WithCancel(ctx)
	sub, err := u.feed.Subscribe(subCtx, changefeed.Filter{Table: commentsTable})
	if err != nil {
		cancel()
		return fmt.Errorf("failed to subscribe to comments: %w", err)
	}

	u.mu.Lock()
	if u.gen != gen {
		u.mu.Unlock()
		sub.Close()
		cancel()
		return nil
	}
	u.sub = sub
	u.cancel = cancel
	u.mu.Unlock()

	if err := u.recheck(subCtx, gen); err != nil {
		u.logger.Warn("unread_recheck_failed", zap.Error(err))
	}

	// every event, resync markers included, triggers a full recheck
	go consume(subCtx, sub, u.logger, func(changefeed.Event) error {
		return u.recheck(subCtx, gen)
	}, nil)
	return nil
}

// Recheck recomputes every watched flag from the store
func (u *UnreadTracker) Recheck(ctx context.Context) error {
	u.mu.Lock()
	gen := u.gen
	u.mu.Unlock()
	return u.recheck(ctx, gen)
}

func (u *UnreadTracker) recheck(ctx context.Context, gen uint64) error {
	u.mu.Lock()
	ids := append([]uuid.UUID(nil), u.ids...)
	u.mu.Unlock()
	if len(ids) == 0 {
		return nil
	}

	views, err := u.views.Views(ctx, ids)
	if err != nil {
		return fmt.Errorf("failed to read last viewed markers: %w", err)
	}
	latest, err := u.comments.LatestByAuthor(ctx, ids, u.party.Other())
	if err != nil {
		return fmt.Errorf("failed to read latest comments: %w", err)
	}

	u.mu.Lock()
	defer u.mu.Unlock()
	if u.gen != gen {
		return nil
	}
	u.unread = ComputeUnread(ids, u.party, u.withLocalMarks(views), latest)
	u.changes.notify()
	u.logger.Debug("unread_rechecked", zap.Int("tasks", len(ids)))
	return nil
}

// withLocalMarks raises stored markers to any later local markAsRead time. Caller holds mu.
func (u *UnreadTracker) withLocalMarks(views []models.TaskViews) []models.TaskViews {
	if len(u.marked) == 0 {
		return views
	}
	out := make([]models.TaskViews, len(views))
	for i, v := range views {
		if at, ok := u.marked[v.TaskID]; ok {
			stored := v.For(u.party)
			if stored == nil || at.After(*stored) {
				local := at
				if u.party == models.PartyAgent {
					v.LastViewedAgent = &local
				} else {
					v.LastViewedHuman = &local
				}
			}
		}
		out[i] = v
	}
	return out
}

// MarkAsRead clears the local flag immediately, then records the view in the store.
// A failed write drops the local mark and rechecks against the store.
func (u *UnreadTracker) MarkAsRead(ctx context.Context, id uuid.UUID) error {
	at := u.now()

	u.mu.Lock()
	u.unread[id] = false
	u.marked[id] = at
	u.mu.Unlock()
	u.changes.notify()

	if _, err := u.views.MarkViewed(ctx, id, u.party, at); err != nil {
		u.logger.Error("mark_as_read_failed", zap.String("task_id", id.String()), zap.Error(err))

		// the write never landed, so store truth decides the flag again
		u.mu.Lock()
		if m, ok := u.marked[id]; ok && m.Equal(at) {
			delete(u.marked, id)
		}
		u.mu.Unlock()
		if rerr := u.Recheck(ctx); rerr != nil {
			u.logger.Warn("unread_recheck_failed", zap.Error(rerr))
		}
		return err
	}
	return nil
}

// IsUnread reports the current flag for id
func (u *UnreadTracker) IsUnread(id uuid.UUID) bool {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.unread[id]
}

// Snapshot returns a copy of every watched flag
func (u *UnreadTracker) Snapshot() map[uuid.UUID]bool {
	u.mu.Lock()
	defer u.mu.Unlock()
	out := make(map[uuid.UUID]bool, len(u.unread))
	for id, v := range u.unread {
		out[id] = v
	}
	return out
}

// Changes signals after any flag may have changed
func (u *UnreadTracker) Changes() <-chan struct{} {
	return u.changes.ch
}

// Close releases the subscription
func (u *UnreadTracker) Close() {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.gen++
	u.teardownLocked()
}

func (u *UnreadTracker) teardownLocked() {
	if u.sub != nil {
		u.sub.Close()
		u.sub = nil
	}
	if u.cancel != nil {
		u.cancel()
		u.cancel = nil
	}
}

func sameIDs(a, b []uuid.UUID) bool {
	if len(a) != len(b) {
		return false
	}
	seen := make(map[uuid.UUID]int, len(a))
	for _, id := range a {
		seen[id]++
	}
	for _, id := range b {
		if seen[id] == 0 {
			return false
		}
		seen[id]--
	}
	return true
}

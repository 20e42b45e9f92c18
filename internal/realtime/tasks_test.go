package realtime

import (
	"context"
	"testing"
	"time"

	"github.com/benvon/taskboard/internal/changefeed"
	"github.com/benvon/taskboard/internal/models"
	"github.com/benvon/taskboard/internal/validation"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const waitFor = 2 * time.Second
const tick = 5 * time.Millisecond

func sampleTask(title string, status models.TaskStatus, createdAt time.Time) *models.Task {
	return &models.Task{
		ID:        uuid.New(),
		Title:     title,
		Status:    status,
		Assignee:  models.PartyHuman,
		Priority:  models.TaskPriorityMedium,
		CreatedAt: createdAt,
	}
}

func startTaskSync(t *testing.T, store *fakeTaskStore, hub *changefeed.Hub) *TaskSync {
	t.Helper()
	sync := NewTaskSync(store, hub, zap.NewNop())
	require.NoError(t, sync.Start(context.Background()))
	t.Cleanup(sync.Stop)
	return sync
}

func TestTaskSyncBulkReadAndFeed(t *testing.T) {
	t.Parallel()

	hub := changefeed.NewHub()
	store := newFakeTaskStore(hub, false)
	base := time.Now().Add(-time.Hour)
	first := sampleTask("first", models.TaskStatusTodo, base)
	second := sampleTask("second", models.TaskStatusReview, base.Add(time.Minute))
	store.seed(second, first)

	sync := startTaskSync(t, store, hub)

	tasks := sync.Tasks()
	require.Len(t, tasks, 2)
	assert.Equal(t, "first", tasks[0].Title, "bulk read is ordered by creation time")

	// the feed may echo rows the bulk read already returned
	hub.Publish(rowEvent(tasksTable, changefeed.Insert, first))
	third := sampleTask("third", models.TaskStatusTodo, base.Add(2*time.Minute))
	hub.Publish(rowEvent(tasksTable, changefeed.Insert, third))

	require.Eventually(t, func() bool { return len(sync.Tasks()) == 3 }, waitFor, tick)

	moved := *first
	moved.Status = models.TaskStatusCompleted
	hub.Publish(rowEvent(tasksTable, changefeed.Update, moved))
	hub.Publish(deleteEvent(tasksTable, second.ID))

	require.Eventually(t, func() bool {
		got, ok := sync.Task(first.ID)
		return ok && got.Status == models.TaskStatusCompleted && len(sync.Tasks()) == 2
	}, waitFor, tick)

	assert.Len(t, sync.ByStatus(models.TaskStatusCompleted), 1)
	assert.ElementsMatch(t, []uuid.UUID{first.ID, third.ID}, sync.IDs())
}

func TestTaskSyncSurvivesBadEvents(t *testing.T) {
	t.Parallel()

	hub := changefeed.NewHub()
	sync := startTaskSync(t, newFakeTaskStore(hub, false), hub)

	hub.Publish(changefeed.Event{Table: tasksTable, Type: changefeed.Insert, New: []byte(`"not an object"`)})
	hub.Publish(changefeed.Event{Table: tasksTable, Type: changefeed.Delete, Old: []byte(`{}`)})
	good := sampleTask("good", models.TaskStatusTodo, time.Now())
	hub.Publish(rowEvent(tasksTable, changefeed.Insert, good))

	require.Eventually(t, func() bool { return len(sync.Tasks()) == 1 }, waitFor, tick)
}

func TestTaskSyncWritesAreNotOptimistic(t *testing.T) {
	t.Parallel()

	hub := changefeed.NewHub()
	store := newFakeTaskStore(hub, false)
	sync := startTaskSync(t, store, hub)

	task, err := sync.Create(context.Background(), NewTask{Title: "  Review PR  ", Assignee: models.PartyAgent})
	require.NoError(t, err)
	assert.Equal(t, "Review PR", task.Title)
	assert.Equal(t, models.TaskPriorityMedium, task.Priority)
	assert.Equal(t, models.TaskStatusTodo, task.Status)
	assert.Empty(t, sync.Tasks(), "mirror waits for the feed")

	hub.Publish(rowEvent(tasksTable, changefeed.Insert, task))
	require.Eventually(t, func() bool { return len(sync.Tasks()) == 1 }, waitFor, tick)
}

func TestTaskSyncRoundTripThroughFeed(t *testing.T) {
	t.Parallel()

	hub := changefeed.NewHub()
	store := newFakeTaskStore(hub, true)
	sync := startTaskSync(t, store, hub)
	ctx := context.Background()

	task, err := sync.Create(ctx, NewTask{Title: "Deploy", Assignee: models.PartyHuman, Priority: models.TaskPriorityHigh})
	require.NoError(t, err)
	require.Eventually(t, func() bool { return len(sync.Tasks()) == 1 }, waitFor, tick)

	require.NoError(t, sync.Move(ctx, task.ID, models.TaskStatusInProgress))
	require.Eventually(t, func() bool {
		got, ok := sync.Task(task.ID)
		return ok && got.Status == models.TaskStatusInProgress
	}, waitFor, tick)

	require.NoError(t, sync.Delete(ctx, task.ID))
	require.Eventually(t, func() bool { return len(sync.Tasks()) == 0 }, waitFor, tick)
}

func TestTaskSyncFailuresLeaveStateUnchanged(t *testing.T) {
	t.Parallel()

	hub := changefeed.NewHub()
	store := newFakeTaskStore(hub, true)
	existing := sampleTask("existing", models.TaskStatusTodo, time.Now())
	store.seed(existing)
	sync := startTaskSync(t, store, hub)
	ctx := context.Background()

	store.mu.Lock()
	store.err = errStoreDown
	store.mu.Unlock()

	task, err := sync.Create(ctx, NewTask{Title: "x", Assignee: models.PartyHuman})
	assert.Nil(t, task)
	assert.ErrorIs(t, err, errStoreDown)

	assert.ErrorIs(t, sync.Move(ctx, existing.ID, models.TaskStatusReview), errStoreDown)
	assert.ErrorIs(t, sync.Delete(ctx, existing.ID), errStoreDown)

	got, ok := sync.Task(existing.ID)
	require.True(t, ok)
	assert.Equal(t, models.TaskStatusTodo, got.Status)
}

func TestTaskSyncValidatesBeforeWriting(t *testing.T) {
	t.Parallel()

	hub := changefeed.NewHub()
	store := newFakeTaskStore(hub, true)
	sync := startTaskSync(t, store, hub)
	ctx := context.Background()

	_, err := sync.Create(ctx, NewTask{Title: "   ", Assignee: models.PartyHuman})
	assert.ErrorIs(t, err, validation.ErrEmptyTitle)

	_, err = sync.Create(ctx, NewTask{Title: "ok", Assignee: "robot"})
	assert.Error(t, err)

	bad := models.TaskStatus("archived")
	assert.Error(t, sync.Update(ctx, uuid.New(), models.TaskPatch{Status: &bad}))

	assert.NoError(t, sync.Update(ctx, uuid.New(), models.TaskPatch{}), "empty patch is a no-op")
	assert.Equal(t, 0, store.callCount())
}

func TestTaskSyncStartFailure(t *testing.T) {
	t.Parallel()

	hub := changefeed.NewHub()
	store := newFakeTaskStore(hub, false)
	store.err = errStoreDown

	sync := NewTaskSync(store, hub, zap.NewNop())
	assert.ErrorIs(t, sync.Start(context.Background()), errStoreDown)
	assert.Equal(t, 0, hub.Len(), "subscription released after a failed load")
}

func TestTaskSyncReloadsOnResync(t *testing.T) {
	t.Parallel()

	hub := changefeed.NewHub()
	store := newFakeTaskStore(hub, false)
	base := time.Now().Add(-time.Hour)
	kept := sampleTask("kept", models.TaskStatusTodo, base)
	gone := sampleTask("gone", models.TaskStatusTodo, base.Add(time.Minute))
	store.seed(kept, gone)

	sync := startTaskSync(t, store, hub)
	require.Len(t, sync.Tasks(), 2)

	// changes made while the listener was disconnected never reach the feed
	missed := sampleTask("missed", models.TaskStatusReview, base.Add(2*time.Minute))
	store.mu.Lock()
	delete(store.tasks, gone.ID)
	store.tasks[missed.ID] = missed
	store.mu.Unlock()

	hub.Publish(changefeed.Event{Type: changefeed.Resync})

	require.Eventually(t, func() bool {
		_, hasMissed := sync.Task(missed.ID)
		_, hasGone := sync.Task(gone.ID)
		return hasMissed && !hasGone
	}, waitFor, tick)
	assert.Len(t, sync.Tasks(), 2)
}

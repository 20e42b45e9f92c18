package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/benvon/taskboard/internal/changefeed"
	"github.com/benvon/taskboard/internal/models"
	"github.com/google/uuid"
)

var errStoreDown = errors.New("store unavailable")

func rowEvent(table string, typ changefeed.EventType, row any) changefeed.Event {
	image, err := json.Marshal(row)
	if err != nil {
		panic(err)
	}
	e := changefeed.Event{Table: table, Type: typ}
	if typ == changefeed.Delete {
		e.Old = image
	} else {
		e.New = image
	}
	return e
}

func deleteEvent(table string, id uuid.UUID) changefeed.Event {
	return rowEvent(table, changefeed.Delete, map[string]string{"id": id.String()})
}

// fakeTaskStore keeps tasks in memory. When publish is set, writes are echoed to the hub
// the way the store triggers would.
type fakeTaskStore struct {
	mu      sync.Mutex
	hub     *changefeed.Hub
	publish bool
	tasks   map[uuid.UUID]*models.Task
	err     error
	calls   int
}

func newFakeTaskStore(hub *changefeed.Hub, publish bool) *fakeTaskStore {
	return &fakeTaskStore{hub: hub, publish: publish, tasks: make(map[uuid.UUID]*models.Task)}
}

func (f *fakeTaskStore) seed(tasks ...*models.Task) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, t := range tasks {
		f.tasks[t.ID] = t
	}
}

func (f *fakeTaskStore) List(_ context.Context) ([]*models.Task, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	out := make([]*models.Task, 0, len(f.tasks))
	for _, t := range f.tasks {
		copied := *t
		out = append(out, &copied)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (f *fakeTaskStore) Create(_ context.Context, task *models.Task) error {
	f.mu.Lock()
	f.calls++
	if f.err != nil {
		f.mu.Unlock()
		return f.err
	}
	task.ID = uuid.New()
	task.CreatedAt = time.Now()
	copied := *task
	f.tasks[task.ID] = &copied
	f.mu.Unlock()

	if f.publish {
		f.hub.Publish(rowEvent(tasksTable, changefeed.Insert, copied))
	}
	return nil
}

func (f *fakeTaskStore) Update(_ context.Context, id uuid.UUID, patch models.TaskPatch) (*models.Task, error) {
	f.mu.Lock()
	f.calls++
	if f.err != nil {
		f.mu.Unlock()
		return nil, f.err
	}
	t, ok := f.tasks[id]
	if !ok {
		f.mu.Unlock()
		return nil, errors.New("not found")
	}
	if patch.Title != nil {
		t.Title = *patch.Title
	}
	if patch.Description != nil {
		t.Description = *patch.Description
	}
	if patch.Status != nil {
		t.Status = *patch.Status
	}
	if patch.Assignee != nil {
		t.Assignee = *patch.Assignee
	}
	if patch.Priority != nil {
		t.Priority = *patch.Priority
	}
	copied := *t
	f.mu.Unlock()

	if f.publish {
		f.hub.Publish(rowEvent(tasksTable, changefeed.Update, copied))
	}
	return &copied, nil
}

func (f *fakeTaskStore) Delete(_ context.Context, id uuid.UUID) error {
	f.mu.Lock()
	f.calls++
	if f.err != nil {
		f.mu.Unlock()
		return f.err
	}
	delete(f.tasks, id)
	f.mu.Unlock()

	if f.publish {
		f.hub.Publish(deleteEvent(tasksTable, id))
	}
	return nil
}

func (f *fakeTaskStore) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

// fakeCommentStore keeps comments and last-viewed markers in memory
type fakeCommentStore struct {
	mu       sync.Mutex
	hub      *changefeed.Hub
	comments []*models.Comment
	views    map[uuid.UUID]models.TaskViews
	err      error
	calls    int
	// listGate, when set, blocks ListByTask until it is closed
	listGate chan struct{}
}

func newFakeCommentStore(hub *changefeed.Hub) *fakeCommentStore {
	return &fakeCommentStore{hub: hub, views: make(map[uuid.UUID]models.TaskViews)}
}

func (f *fakeCommentStore) seed(comments ...*models.Comment) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.comments = append(f.comments, comments...)
}

func (f *fakeCommentStore) ListByTask(_ context.Context, taskID uuid.UUID) ([]*models.Comment, error) {
	f.mu.Lock()
	gate := f.listGate
	f.mu.Unlock()
	if gate != nil {
		<-gate
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	var out []*models.Comment
	for _, c := range f.comments {
		if c.TaskID == taskID {
			copied := *c
			out = append(out, &copied)
		}
	}
	return out, nil
}

func (f *fakeCommentStore) Create(_ context.Context, comment *models.Comment) error {
	f.mu.Lock()
	f.calls++
	if f.err != nil {
		f.mu.Unlock()
		return f.err
	}
	comment.ID = uuid.New()
	comment.CreatedAt = time.Now()
	copied := *comment
	f.comments = append(f.comments, &copied)
	f.mu.Unlock()

	f.hub.Publish(rowEvent(commentsTable, changefeed.Insert, copied))
	return nil
}

func (f *fakeCommentStore) Delete(_ context.Context, id uuid.UUID) error {
	f.mu.Lock()
	f.calls++
	for i, c := range f.comments {
		if c.ID == id {
			f.comments = append(f.comments[:i], f.comments[i+1:]...)
			break
		}
	}
	f.mu.Unlock()

	f.hub.Publish(deleteEvent(commentsTable, id))
	return nil
}

func (f *fakeCommentStore) LatestByAuthor(_ context.Context, taskIDs []uuid.UUID, author models.Party) (map[uuid.UUID]time.Time, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	wanted := make(map[uuid.UUID]bool, len(taskIDs))
	for _, id := range taskIDs {
		wanted[id] = true
	}
	latest := make(map[uuid.UUID]time.Time)
	for _, c := range f.comments {
		if !wanted[c.TaskID] || c.Author != author {
			continue
		}
		if current, ok := latest[c.TaskID]; !ok || c.CreatedAt.After(current) {
			latest[c.TaskID] = c.CreatedAt
		}
	}
	return latest, nil
}

func (f *fakeCommentStore) Views(_ context.Context, ids []uuid.UUID) ([]models.TaskViews, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]models.TaskViews, 0, len(ids))
	for _, id := range ids {
		v, ok := f.views[id]
		if !ok {
			v = models.TaskViews{TaskID: id}
		}
		out = append(out, v)
	}
	return out, nil
}

func (f *fakeCommentStore) MarkViewed(_ context.Context, id uuid.UUID, party models.Party, at time.Time) (*models.Task, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	v, ok := f.views[id]
	if !ok {
		v = models.TaskViews{TaskID: id}
	}
	if party == models.PartyAgent {
		v.LastViewedAgent = &at
	} else {
		v.LastViewedHuman = &at
	}
	f.views[id] = v
	return &models.Task{ID: id}, nil
}

func (f *fakeCommentStore) setErr(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.err = err
}

func (f *fakeCommentStore) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

// rejectMarks reads views normally but fails every MarkViewed
type rejectMarks struct {
	*fakeCommentStore
}

func (rejectMarks) MarkViewed(context.Context, uuid.UUID, models.Party, time.Time) (*models.Task, error) {
	return nil, errStoreDown
}

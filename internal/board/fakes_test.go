package board

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/benvon/taskboard/internal/changefeed"
	"github.com/benvon/taskboard/internal/models"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const (
	settle = 2 * time.Second
	tick   = 5 * time.Millisecond
)

var errNotFound = errors.New("not found")

func publishRow(hub *changefeed.Hub, table string, typ changefeed.EventType, row any) {
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
	hub.Publish(e)
}

// memTasks is an in-memory task repository that echoes writes to the hub
type memTasks struct {
	mu    sync.Mutex
	hub   *changefeed.Hub
	tasks map[uuid.UUID]*models.Task
	seq   int
}

func (f *memTasks) add(title string, status models.TaskStatus) *models.Task {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.seq++
	t := &models.Task{
		ID:        uuid.New(),
		Title:     title,
		Status:    status,
		Assignee:  models.PartyHuman,
		Priority:  models.TaskPriorityMedium,
		CreatedAt: time.Unix(int64(f.seq), 0),
	}
	f.tasks[t.ID] = t
	return t
}

func (f *memTasks) get(id uuid.UUID) (models.Task, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	t, ok := f.tasks[id]
	if !ok {
		return models.Task{}, false
	}
	return *t, true
}

func (f *memTasks) List(_ context.Context) ([]*models.Task, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]*models.Task, 0, len(f.tasks))
	for _, t := range f.tasks {
		copied := *t
		out = append(out, &copied)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (f *memTasks) Create(_ context.Context, task *models.Task) error {
	f.mu.Lock()
	f.seq++
	task.ID = uuid.New()
	task.CreatedAt = time.Unix(int64(f.seq), 0)
	copied := *task
	f.tasks[task.ID] = &copied
	f.mu.Unlock()
	publishRow(f.hub, "tasks", changefeed.Insert, copied)
	return nil
}

func (f *memTasks) Update(_ context.Context, id uuid.UUID, patch models.TaskPatch) (*models.Task, error) {
	f.mu.Lock()
	t, ok := f.tasks[id]
	if !ok {
		f.mu.Unlock()
		return nil, errNotFound
	}
	if patch.Title != nil {
		t.Title = *patch.Title
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
	publishRow(f.hub, "tasks", changefeed.Update, copied)
	return &copied, nil
}

func (f *memTasks) Delete(_ context.Context, id uuid.UUID) error {
	f.mu.Lock()
	delete(f.tasks, id)
	f.mu.Unlock()
	publishRow(f.hub, "tasks", changefeed.Delete, map[string]string{"id": id.String()})
	return nil
}

func (f *memTasks) Views(_ context.Context, ids []uuid.UUID) ([]models.TaskViews, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]models.TaskViews, 0, len(ids))
	for _, id := range ids {
		if t, ok := f.tasks[id]; ok {
			out = append(out, models.TaskViews{TaskID: id, LastViewedHuman: t.LastViewedHuman, LastViewedAgent: t.LastViewedAgent})
		}
	}
	return out, nil
}

func (f *memTasks) MarkViewed(_ context.Context, id uuid.UUID, party models.Party, at time.Time) (*models.Task, error) {
	f.mu.Lock()
	t, ok := f.tasks[id]
	if !ok {
		f.mu.Unlock()
		return nil, errNotFound
	}
	if party == models.PartyAgent {
		t.LastViewedAgent = &at
	} else {
		t.LastViewedHuman = &at
	}
	copied := *t
	f.mu.Unlock()
	publishRow(f.hub, "tasks", changefeed.Update, copied)
	return &copied, nil
}

// memComments is an in-memory comment repository that echoes writes to the hub
type memComments struct {
	mu       sync.Mutex
	hub      *changefeed.Hub
	comments []*models.Comment
}

func (f *memComments) ListByTask(_ context.Context, taskID uuid.UUID) ([]*models.Comment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*models.Comment
	for _, c := range f.comments {
		if c.TaskID == taskID {
			copied := *c
			out = append(out, &copied)
		}
	}
	return out, nil
}

func (f *memComments) Create(_ context.Context, comment *models.Comment) error {
	f.mu.Lock()
	comment.ID = uuid.New()
	comment.CreatedAt = time.Now()
	copied := *comment
	f.comments = append(f.comments, &copied)
	f.mu.Unlock()
	publishRow(f.hub, "task_comments", changefeed.Insert, copied)
	return nil
}

func (f *memComments) Delete(_ context.Context, id uuid.UUID) error {
	f.mu.Lock()
	for i, c := range f.comments {
		if c.ID == id {
			f.comments = append(f.comments[:i], f.comments[i+1:]...)
			break
		}
	}
	f.mu.Unlock()
	publishRow(f.hub, "task_comments", changefeed.Delete, map[string]string{"id": id.String()})
	return nil
}

func (f *memComments) LatestByAuthor(_ context.Context, taskIDs []uuid.UUID, author models.Party) (map[uuid.UUID]time.Time, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	want := make(map[uuid.UUID]bool, len(taskIDs))
	for _, id := range taskIDs {
		want[id] = true
	}
	out := make(map[uuid.UUID]time.Time)
	for _, c := range f.comments {
		if want[c.TaskID] && c.Author == author && c.CreatedAt.After(out[c.TaskID]) {
			out[c.TaskID] = c.CreatedAt
		}
	}
	return out, nil
}

func (f *memComments) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.comments)
}

type memMetrics struct {
	row *models.TradingMetrics
}

func (f *memMetrics) Get(_ context.Context, botName string) (*models.TradingMetrics, error) {
	if f.row == nil || f.row.BotName != botName {
		return nil, errNotFound
	}
	copied := *f.row
	return &copied, nil
}

type fixture struct {
	hub      *changefeed.Hub
	tasks    *memTasks
	comments *memComments
	metrics  *memMetrics
}

func newFixture() *fixture {
	hub := changefeed.NewHub()
	return &fixture{
		hub:      hub,
		tasks:    &memTasks{hub: hub, tasks: make(map[uuid.UUID]*models.Task)},
		comments: &memComments{hub: hub},
		metrics:  &memMetrics{},
	}
}

// start opens a session as party over the fixture stores
func (fx *fixture) start(t *testing.T, party models.Party) *Session {
	t.Helper()
	s := NewSession(Stores{
		Tasks:    fx.tasks,
		Comments: fx.comments,
		Views:    fx.tasks,
		Latest:   fx.comments,
		Metrics:  fx.metrics,
	}, fx.hub, party, models.DefaultBotName, zap.NewNop())
	require.NoError(t, s.Start(context.Background()))
	t.Cleanup(s.Close)
	return s
}

// syncBuffer is a bytes.Buffer safe for one writer and one reader
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func contains(s, sub string) bool {
	return strings.Contains(s, sub)
}

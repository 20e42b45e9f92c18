package handlers

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/benvon/taskboard/internal/database"
	"github.com/benvon/taskboard/internal/models"
	"github.com/google/uuid"
)

var errStoreDown = errors.New("connection reset by peer")

type fakeTasks struct {
	mu      sync.Mutex
	tasks   map[uuid.UUID]*models.Task
	writes  int
	failAll bool
}

func newFakeTasks(tasks ...*models.Task) *fakeTasks {
	f := &fakeTasks{tasks: make(map[uuid.UUID]*models.Task)}
	for _, t := range tasks {
		f.tasks[t.ID] = t
	}
	return f
}

func (f *fakeTasks) Create(ctx context.Context, task *models.Task) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failAll {
		return errStoreDown
	}
	f.writes++
	task.ID = uuid.New()
	task.CreatedAt = time.Now()
	f.tasks[task.ID] = task
	return nil
}

func (f *fakeTasks) GetByID(ctx context.Context, id uuid.UUID) (*models.Task, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	t, ok := f.tasks[id]
	if !ok {
		return nil, database.ErrNotFound
	}
	return t, nil
}

func (f *fakeTasks) List(ctx context.Context) ([]*models.Task, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failAll {
		return nil, errStoreDown
	}
	out := make([]*models.Task, 0, len(f.tasks))
	for _, t := range f.tasks {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (f *fakeTasks) Update(ctx context.Context, id uuid.UUID, patch models.TaskPatch) (*models.Task, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failAll {
		return nil, errStoreDown
	}
	t, ok := f.tasks[id]
	if !ok {
		return nil, database.ErrNotFound
	}
	f.writes++
	if patch.Title != nil {
		t.Title = *patch.Title
	}
	if patch.Description != nil {
		t.Description = *patch.Description
	}
	if patch.Status != nil {
		t.Status = *patch.Status
	}
	if patch.Priority != nil {
		t.Priority = *patch.Priority
	}
	return t, nil
}

func (f *fakeTasks) MarkViewed(ctx context.Context, id uuid.UUID, party models.Party, at time.Time) (*models.Task, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	t, ok := f.tasks[id]
	if !ok {
		return nil, database.ErrNotFound
	}
	f.writes++
	if party == models.PartyAgent {
		t.LastViewedAgent = &at
	} else {
		t.LastViewedHuman = &at
	}
	return t, nil
}

func (f *fakeTasks) Views(ctx context.Context, ids []uuid.UUID) ([]models.TaskViews, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.TaskViews
	for _, id := range ids {
		if t, ok := f.tasks[id]; ok {
			out = append(out, models.TaskViews{TaskID: id, LastViewedHuman: t.LastViewedHuman, LastViewedAgent: t.LastViewedAgent})
		}
	}
	return out, nil
}

func (f *fakeTasks) writeCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.writes
}

type fakeComments struct {
	mu       sync.Mutex
	comments []*models.Comment
	failAll  bool
}

func (f *fakeComments) Create(ctx context.Context, c *models.Comment) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failAll {
		return errStoreDown
	}
	c.ID = uuid.New()
	if c.CreatedAt.IsZero() {
		c.CreatedAt = time.Now()
	}
	f.comments = append(f.comments, c)
	return nil
}

func (f *fakeComments) ListByTask(ctx context.Context, taskID uuid.UUID) ([]*models.Comment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failAll {
		return nil, errStoreDown
	}
	var out []*models.Comment
	for _, c := range f.comments {
		if c.TaskID == taskID {
			out = append(out, c)
		}
	}
	return out, nil
}

func (f *fakeComments) LatestByAuthor(ctx context.Context, taskIDs []uuid.UUID, author models.Party) (map[uuid.UUID]time.Time, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	want := make(map[uuid.UUID]bool, len(taskIDs))
	for _, id := range taskIDs {
		want[id] = true
	}
	latest := make(map[uuid.UUID]time.Time)
	for _, c := range f.comments {
		if c.Author != author || !want[c.TaskID] {
			continue
		}
		if c.CreatedAt.After(latest[c.TaskID]) {
			latest[c.TaskID] = c.CreatedAt
		}
	}
	return latest, nil
}

func (f *fakeComments) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.comments)
}

type fakeMetrics struct {
	rows map[string]*models.TradingMetrics
	err  error
}

func (f *fakeMetrics) Get(ctx context.Context, botName string) (*models.TradingMetrics, error) {
	if f.err != nil {
		return nil, f.err
	}
	m, ok := f.rows[botName]
	if !ok {
		return nil, database.ErrNotFound
	}
	return m, nil
}

func (f *fakeMetrics) Update(ctx context.Context, botName string, patch models.MetricsPatch) (*models.TradingMetrics, error) {
	if f.err != nil {
		return nil, f.err
	}
	m, ok := f.rows[botName]
	if !ok {
		return nil, database.ErrNotFound
	}
	if patch.TotalProfit != nil {
		m.TotalProfit = *patch.TotalProfit
	}
	if patch.TradesTotal != nil {
		m.TradesTotal = int64(*patch.TradesTotal)
	}
	m.UpdatedAt = time.Now()
	return m, nil
}

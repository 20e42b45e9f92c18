package queue

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/benvon/taskboard/internal/changefeed"
	"go.uber.org/zap"
)

type mockPublisher struct {
	mu        sync.Mutex
	published []changefeed.Event
	failKey   string
}

func (m *mockPublisher) Publish(_ context.Context, e changefeed.Event) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if e.RoutingKey() == m.failKey {
		return errors.New("broker unavailable")
	}
	m.published = append(m.published, e)
	return nil
}

func (m *mockPublisher) Close() error                        { return nil }
func (m *mockPublisher) HealthCheck(_ context.Context) error { return nil }

func (m *mockPublisher) keys() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	keys := make([]string, 0, len(m.published))
	for _, e := range m.published {
		keys = append(keys, e.RoutingKey())
	}
	return keys
}

func waitForSubscribers(t *testing.T, hub *changefeed.Hub, n int) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for hub.Len() < n {
		if time.Now().After(deadline) {
			t.Fatalf("Timed out waiting for %d subscribers", n)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestRelayForwardsWatchedTables(t *testing.T) {
	t.Parallel()

	hub := changefeed.NewHub()
	pub := &mockPublisher{failKey: "tasks.delete"}
	relay := NewRelay(hub, pub, []string{"tasks", "task_comments"}, zap.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- relay.Run(ctx) }()
	waitForSubscribers(t, hub, 2)

	hub.Publish(changefeed.Event{Table: "tasks", Type: changefeed.Insert, New: json.RawMessage(`{"id":"t1"}`)})
	hub.Publish(changefeed.Event{Table: "tasks", Type: changefeed.Delete, Old: json.RawMessage(`{"id":"t1"}`)})
	hub.Publish(changefeed.Event{Table: "trading_metrics", Type: changefeed.Update, New: json.RawMessage(`{"bot_name":"b"}`)})
	hub.Publish(changefeed.Event{Table: "task_comments", Type: changefeed.Insert, New: json.RawMessage(`{"id":"c1"}`)})
	hub.Publish(changefeed.Event{Table: "tasks", Type: changefeed.Update, New: json.RawMessage(`{"id":"t2"}`)})

	deadline := time.Now().Add(2 * time.Second)
	for len(pub.keys()) < 3 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}

	cancel()
	if err := <-done; !errors.Is(err, context.Canceled) {
		t.Errorf("Expected context cancelled, got %v", err)
	}

	got := map[string]bool{}
	for _, k := range pub.keys() {
		got[k] = true
	}
	for _, want := range []string{"tasks.insert", "task_comments.insert", "tasks.update"} {
		if !got[want] {
			t.Errorf("Expected %s to be relayed, got %v", want, pub.keys())
		}
	}
	if got["trading_metrics.update"] {
		t.Error("Unwatched table must not be relayed")
	}
	if hub.Len() != 0 {
		t.Errorf("Expected subscriptions released, got %d", hub.Len())
	}
}

func TestRelayStopsOnCancelledContext(t *testing.T) {
	t.Parallel()

	hub := changefeed.NewHub()
	relay := NewRelay(hub, &mockPublisher{}, []string{"tasks"}, zap.NewNop())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := relay.Run(ctx); err == nil {
		t.Error("Expected context cancelled error")
	}
}

func TestRelaySubscribeFailure(t *testing.T) {
	t.Parallel()

	hub := changefeed.NewHub()
	hub.Close()
	relay := NewRelay(hub, &mockPublisher{}, []string{"tasks"}, zap.NewNop())

	if err := relay.Run(context.Background()); !errors.Is(err, changefeed.ErrClosed) {
		t.Errorf("Expected ErrClosed, got %v", err)
	}
}

func TestRelaySkipsResyncMarkers(t *testing.T) {
	t.Parallel()

	hub := changefeed.NewHub()
	pub := &mockPublisher{}
	relay := NewRelay(hub, pub, []string{"tasks", "task_comments"}, zap.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = relay.Run(ctx) }()
	waitForSubscribers(t, hub, 2)

	hub.Publish(changefeed.Event{Type: changefeed.Resync})
	hub.Publish(changefeed.Event{Table: "tasks", Type: changefeed.Insert, New: json.RawMessage(`{"id":"t1"}`)})
	hub.Publish(changefeed.Event{Table: "task_comments", Type: changefeed.Insert, New: json.RawMessage(`{"id":"c1"}`)})

	deadline := time.Now().Add(2 * time.Second)
	for len(pub.keys()) < 2 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}

	keys := pub.keys()
	if len(keys) != 2 {
		t.Fatalf("Expected only the two row events relayed, got %v", keys)
	}
	for _, k := range keys {
		if k == ".resync" {
			t.Errorf("Resync marker must not be relayed, got %v", keys)
		}
	}
}

// Package realtime keeps in-memory mirrors of store tables current from the change feed.
package realtime

import (
	"encoding/json"
	"fmt"
	"sync"

	"github.com/benvon/taskboard/internal/changefeed"
)

// Collection is an ordered, id-deduplicated mirror of rows.
// Every change-feed event passes through Apply, so replaying or duplicating
// events converges to the same state.
type Collection[T any] struct {
	mu    sync.RWMutex
	items []T
	index map[string]int
	key   func(T) string
}

// NewCollection creates an empty collection keyed by key
func NewCollection[T any](key func(T) string) *Collection[T] {
	return &Collection[T]{
		index: make(map[string]int),
		key:   key,
	}
}

// Reset replaces the contents with items, dropping duplicate ids
func (c *Collection[T]) Reset(items []T) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.items = c.items[:0]
	c.index = make(map[string]int, len(items))
	for _, item := range items {
		id := c.key(item)
		if _, exists := c.index[id]; exists {
			continue
		}
		c.index[id] = len(c.items)
		c.items = append(c.items, item)
	}
}

// Insert appends item unless its id is already present
func (c *Collection[T]) Insert(item T) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	id := c.key(item)
	if _, exists := c.index[id]; exists {
		return false
	}
	c.index[id] = len(c.items)
	c.items = append(c.items, item)
	return true
}

// Replace swaps the row with item's id in place. Unknown ids are a no-op.
func (c *Collection[T]) Replace(item T) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	i, exists := c.index[c.key(item)]
	if !exists {
		return false
	}
	c.items[i] = item
	return true
}

// Remove drops the row with id. Unknown ids are a no-op.
func (c *Collection[T]) Remove(id string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	i, exists := c.index[id]
	if !exists {
		return false
	}
	c.items = append(c.items[:i], c.items[i+1:]...)
	delete(c.index, id)
	for j := i; j < len(c.items); j++ {
		c.index[c.key(c.items[j])] = j
	}
	return true
}

// Apply reconciles one change event into the collection and reports whether state changed
func (c *Collection[T]) Apply(e changefeed.Event) (bool, error) {
	switch e.Type {
	case changefeed.Insert, changefeed.Update:
		var item T
		if err := json.Unmarshal(e.New, &item); err != nil {
			return false, fmt.Errorf("failed to decode %s row: %w", e.Table, err)
		}
		if e.Type == changefeed.Insert {
			return c.Insert(item), nil
		}
		return c.Replace(item), nil
	case changefeed.Delete:
		id := e.RowID()
		if id == "" {
			return false, fmt.Errorf("%s delete without key", e.Table)
		}
		return c.Remove(id), nil
	default:
		return false, fmt.Errorf("unknown event type %q", e.Type)
	}
}

// Get returns the row with id
func (c *Collection[T]) Get(id string) (T, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	i, exists := c.index[id]
	if !exists {
		var zero T
		return zero, false
	}
	return c.items[i], true
}

// Items returns a snapshot of the rows in order
func (c *Collection[T]) Items() []T {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make([]T, len(c.items))
	copy(out, c.items)
	return out
}

// Len returns the number of rows
func (c *Collection[T]) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.items)
}

// notifier is a coalescing change signal: many changes before a read collapse into one wakeup
type notifier struct {
	ch chan struct{}
}

func newNotifier() notifier {
	return notifier{ch: make(chan struct{}, 1)}
}

func (n notifier) notify() {
	select {
	case n.ch <- struct{}{}:
	default:
	}
}

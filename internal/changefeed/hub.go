package changefeed

import (
	"context"
	"errors"
	"sync"
)

// ErrClosed is returned when subscribing to a closed feed
var ErrClosed = errors.New("change feed closed")

// Hub fans events out to every matching subscription
type Hub struct {
	mu     sync.Mutex
	subs   map[*Subscription]struct{}
	closed bool
}

// NewHub creates an empty hub
func NewHub() *Hub {
	return &Hub{subs: make(map[*Subscription]struct{})}
}

// Subscribe registers a subscription that lives until it is closed or ctx is done
func (h *Hub) Subscribe(ctx context.Context, filter Filter) (*Subscription, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return nil, ErrClosed
	}

	var sub *Subscription
	sub = NewSubscription(filter, func() { h.remove(sub) })
	h.subs[sub] = struct{}{}
	sub.closeOnDone(ctx)
	return sub, nil
}

// Publish delivers e to every subscription whose filter matches
func (h *Hub) Publish(e Event) {
	h.mu.Lock()
	subs := make([]*Subscription, 0, len(h.subs))
	for sub := range h.subs {
		subs = append(subs, sub)
	}
	h.mu.Unlock()

	for _, sub := range subs {
		sub.Push(e)
	}
}

// Len returns the number of open subscriptions
func (h *Hub) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs)
}

// Close closes every subscription and rejects new ones
func (h *Hub) Close() {
	h.mu.Lock()
	h.closed = true
	subs := make([]*Subscription, 0, len(h.subs))
	for sub := range h.subs {
		subs = append(subs, sub)
	}
	h.mu.Unlock()

	for _, sub := range subs {
		sub.Close()
	}
}

func (h *Hub) remove(sub *Subscription) {
	h.mu.Lock()
	delete(h.subs, sub)
	h.mu.Unlock()
}

package changefeed

import (
	"context"
	"sync"
)

// Feed is a source of change events
type Feed interface {
	Subscribe(ctx context.Context, filter Filter) (*Subscription, error)
}

// Subscription is a cancellable stream of events matching a filter.
// Events are queued in an unbounded mailbox so a slow reader never blocks the producer.
type Subscription struct {
	filter Filter
	out    chan Event

	mu     sync.Mutex
	queue  []Event
	closed bool

	wake      chan struct{}
	done      chan struct{}
	closeOnce sync.Once
	onClose   func()
}

// NewSubscription creates a subscription delivering events that match filter.
// onClose, when non-nil, runs once when the subscription is closed.
func NewSubscription(filter Filter, onClose func()) *Subscription {
	s := &Subscription{
		filter:  filter,
		out:     make(chan Event),
		wake:    make(chan struct{}, 1),
		done:    make(chan struct{}),
		onClose: onClose,
	}
	go s.pump()
	return s
}

// Filter returns the filter the subscription was opened with
func (s *Subscription) Filter() Filter {
	return s.filter
}

// Events returns the delivery channel. It is closed after Close.
func (s *Subscription) Events() <-chan Event {
	return s.out
}

// Push queues e if it matches the filter. It never blocks.
func (s *Subscription) Push(e Event) {
	if !s.filter.Match(e) {
		return
	}
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.queue = append(s.queue, e)
	s.mu.Unlock()

	select {
	case s.wake <- struct{}{}:
	default:
	}
}

// Close stops delivery and releases the subscription. It is safe to call more than once.
func (s *Subscription) Close() {
	s.closeOnce.Do(func() {
		s.mu.Lock()
		s.closed = true
		s.queue = nil
		s.mu.Unlock()
		close(s.done)
		if s.onClose != nil {
			s.onClose()
		}
	})
}

// Done is closed once the subscription is closed
func (s *Subscription) Done() <-chan struct{} {
	return s.done
}

// closeOnDone ties the subscription lifetime to ctx
func (s *Subscription) closeOnDone(ctx context.Context) {
	go func() {
		select {
		case <-ctx.Done():
			s.Close()
		case <-s.done:
		}
	}()
}

func (s *Subscription) pump() {
	defer close(s.out)
	for {
		s.mu.Lock()
		if len(s.queue) == 0 {
			s.mu.Unlock()
			select {
			case <-s.wake:
				continue
			case <-s.done:
				return
			}
		}
		e := s.queue[0]
		s.queue[0] = Event{}
		s.queue = s.queue[1:]
		s.mu.Unlock()

		select {
		case s.out <- e:
		case <-s.done:
			return
		}
	}
}

package queue

import (
	"context"

	"github.com/benvon/taskboard/internal/changefeed"
)

// Publisher forwards change events to a broker.
// Implementations also act as a changefeed.Feed for consumers on other hosts.
type Publisher interface {
	// Publish sends one event, routed by its table and change type
	Publish(ctx context.Context, e changefeed.Event) error

	// Close closes the broker connection
	Close() error

	// HealthCheck verifies the broker connection is healthy
	HealthCheck(ctx context.Context) error
}

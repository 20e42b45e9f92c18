package queue

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/benvon/taskboard/internal/changefeed"
	"github.com/google/uuid"
)

// Envelope wraps a change event on the wire
type Envelope struct {
	ID          uuid.UUID        `json:"id"`
	Event       changefeed.Event `json:"event"`
	PublishedAt time.Time        `json:"published_at"`
}

// NewEnvelope wraps e with a fresh message id
func NewEnvelope(e changefeed.Event) *Envelope {
	return &Envelope{
		ID:          uuid.New(),
		Event:       e,
		PublishedAt: time.Now(),
	}
}

// decodeEnvelope parses a message body and checks the event it carries
func decodeEnvelope(body []byte) (*Envelope, error) {
	var env Envelope
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, fmt.Errorf("failed to unmarshal envelope: %w", err)
	}
	if env.Event.Table == "" || !env.Event.Type.Valid() {
		return nil, fmt.Errorf("envelope %s carries no valid event", env.ID)
	}
	return &env, nil
}

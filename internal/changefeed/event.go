// Package changefeed delivers row-level change events from the store to in-process subscribers.
package changefeed

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// EventType tags a row change
type EventType string

const (
	Insert EventType = "INSERT"
	Update EventType = "UPDATE"
	Delete EventType = "DELETE"
	// Resync marks a gap in the feed. It carries no row; subscribers re-read their state.
	Resync EventType = "RESYNC"
)

// Valid reports whether t is one of the three row change types.
// Resync is raised locally and never decoded from a notification.
func (t EventType) Valid() bool {
	return t == Insert || t == Update || t == Delete
}

// Event is a single committed row change.
// New carries the row image for INSERT and UPDATE; Old carries the key for DELETE.
type Event struct {
	Table     string          `json:"table"`
	Type      EventType       `json:"type"`
	New       json.RawMessage `json:"new,omitempty"`
	Old       json.RawMessage `json:"old,omitempty"`
	Key       string          `json:"key,omitempty"`
	ID        string          `json:"id,omitempty"`
	Truncated bool            `json:"truncated,omitempty"`
}

var errMalformedEvent = errors.New("malformed change event")

// keyColumns maps each published table to its primary key column
var keyColumns = map[string]string{
	"tasks":           "id",
	"task_comments":   "id",
	"trading_metrics": "bot_name",
}

// KeyColumn returns the primary key column of table, defaulting to id
func KeyColumn(table string) string {
	if column, ok := keyColumns[table]; ok {
		return column
	}
	return "id"
}

// Decode parses a notification payload
func Decode(payload []byte) (Event, error) {
	var e Event
	if err := json.Unmarshal(payload, &e); err != nil {
		return Event{}, fmt.Errorf("%w: %v", errMalformedEvent, err)
	}
	if e.Table == "" || !e.Type.Valid() {
		return Event{}, fmt.Errorf("%w: table %q type %q", errMalformedEvent, e.Table, e.Type)
	}
	if e.Truncated {
		if e.ID == "" {
			return Event{}, fmt.Errorf("%w: truncated event without id", errMalformedEvent)
		}
		return e, nil
	}
	if e.Type == Delete && len(e.Old) == 0 {
		return Event{}, fmt.Errorf("%w: delete without old image", errMalformedEvent)
	}
	if e.Type != Delete && len(e.New) == 0 {
		return Event{}, fmt.Errorf("%w: %s without new image", errMalformedEvent, e.Type)
	}
	return e, nil
}

// Row returns the image carried by the event: Old for DELETE, New otherwise
func (e Event) Row() json.RawMessage {
	if e.Type == Delete {
		return e.Old
	}
	return e.New
}

// Field returns a top-level field of the row image rendered as a string
func (e Event) Field(column string) (string, bool) {
	row := e.Row()
	if len(row) == 0 {
		return "", false
	}
	var fields map[string]any
	if err := json.Unmarshal(row, &fields); err != nil {
		return "", false
	}
	value, ok := fields[column]
	if !ok || value == nil {
		return "", false
	}
	if s, isString := value.(string); isString {
		return s, true
	}
	return fmt.Sprint(value), true
}

// RowID returns the primary key of the changed row
func (e Event) RowID() string {
	if e.ID != "" {
		return e.ID
	}
	id, _ := e.Field(KeyColumn(e.Table))
	return id
}

// RoutingKey returns the topic used when relaying the event, e.g. tasks.insert
func (e Event) RoutingKey() string {
	return e.Table + "." + strings.ToLower(string(e.Type))
}

// Filter selects the events a subscriber receives
type Filter struct {
	Table string
	// Column and Value narrow delivery to rows whose field equals Value. Empty Column means every row.
	Column string
	Value  string
	// Types limits delivery to the listed change types. Empty means all.
	Types []EventType
}

// Match reports whether e passes the filter. Resync markers pass every filter.
// DELETE images carry only the key, so a DELETE lacking the filter column is delivered;
// removing an id a subscriber does not hold is a no-op.
func (f Filter) Match(e Event) bool {
	if e.Type == Resync {
		return true
	}
	if f.Table != "" && f.Table != e.Table {
		return false
	}
	if len(f.Types) > 0 {
		found := false
		for _, t := range f.Types {
			if t == e.Type {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	if f.Column == "" {
		return true
	}
	value, ok := e.Field(f.Column)
	if !ok {
		return e.Type == Delete
	}
	return value == f.Value
}

func (f Filter) String() string {
	if f.Column == "" {
		return f.Table
	}
	return fmt.Sprintf("%s:%s=eq.%s", f.Table, f.Column, f.Value)
}

package models

import (
	"time"

	"github.com/google/uuid"
)

// Comment is an immutable message on a task thread
type Comment struct {
	ID        uuid.UUID `json:"id"`
	TaskID    uuid.UUID `json:"task_id"`
	Author    Party     `json:"author"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
}

// TaskViews holds both parties' last-viewed markers for a task
type TaskViews struct {
	TaskID          uuid.UUID
	LastViewedHuman *time.Time
	LastViewedAgent *time.Time
}

// For returns the marker belonging to p
func (v TaskViews) For(p Party) *time.Time {
	if p == PartyAgent {
		return v.LastViewedAgent
	}
	return v.LastViewedHuman
}

package models

import (
	"time"

	"github.com/google/uuid"
)

// TaskStatus represents the board column a task sits in
type TaskStatus string

const (
	TaskStatusTodo       TaskStatus = "todo"
	TaskStatusInProgress TaskStatus = "in-progress"
	TaskStatusReview     TaskStatus = "review"
	TaskStatusCompleted  TaskStatus = "completed"
)

// TaskStatuses lists every status in board order
var TaskStatuses = []TaskStatus{
	TaskStatusTodo,
	TaskStatusInProgress,
	TaskStatusReview,
	TaskStatusCompleted,
}

// Valid reports whether s is one of the four board statuses
func (s TaskStatus) Valid() bool {
	switch s {
	case TaskStatusTodo, TaskStatusInProgress, TaskStatusReview, TaskStatusCompleted:
		return true
	default:
		return false
	}
}

// Title returns the column heading for the status
func (s TaskStatus) Title() string {
	switch s {
	case TaskStatusTodo:
		return "To Do"
	case TaskStatusInProgress:
		return "In Progress"
	case TaskStatusReview:
		return "Review"
	case TaskStatusCompleted:
		return "Completed"
	default:
		return string(s)
	}
}

// TaskPriority represents the urgency of a task
type TaskPriority string

const (
	TaskPriorityLow    TaskPriority = "low"
	TaskPriorityMedium TaskPriority = "medium"
	TaskPriorityHigh   TaskPriority = "high"
)

// Valid reports whether p is a known priority
func (p TaskPriority) Valid() bool {
	switch p {
	case TaskPriorityLow, TaskPriorityMedium, TaskPriorityHigh:
		return true
	default:
		return false
	}
}

// Task represents a card on the board.
// JSON tags follow the column names so change-feed row images decode directly.
type Task struct {
	ID              uuid.UUID    `json:"id"`
	Title           string       `json:"title"`
	Description     string       `json:"description"`
	Status          TaskStatus   `json:"status"`
	Assignee        Party        `json:"assignee"`
	Priority        TaskPriority `json:"priority"`
	CreatedAt       time.Time    `json:"created_at"`
	LastViewedHuman *time.Time   `json:"last_viewed_user,omitempty"`
	LastViewedAgent *time.Time   `json:"last_viewed_bot,omitempty"`
}

// LastViewedBy returns the last-viewed marker for the given party
func (t *Task) LastViewedBy(p Party) *time.Time {
	if p == PartyAgent {
		return t.LastViewedAgent
	}
	return t.LastViewedHuman
}

// TaskPatch carries the fields a task update may change. Nil fields are left untouched.
type TaskPatch struct {
	Title       *string       `json:"title,omitempty"`
	Description *string       `json:"description,omitempty"`
	Status      *TaskStatus   `json:"status,omitempty"`
	Assignee    *Party        `json:"assignee,omitempty"`
	Priority    *TaskPriority `json:"priority,omitempty"`
}

// IsEmpty reports whether the patch changes nothing
func (p TaskPatch) IsEmpty() bool {
	return p.Title == nil && p.Description == nil && p.Status == nil && p.Assignee == nil && p.Priority == nil
}

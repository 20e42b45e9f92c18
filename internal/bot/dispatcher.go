// Package bot executes the actions an external agent performs on the board.
package bot

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/benvon/taskboard/internal/logger"
	"github.com/benvon/taskboard/internal/models"
	"github.com/benvon/taskboard/internal/validation"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// Action names an operation the agent may request
type Action string

const (
	ActionCreateTask   Action = "create_task"
	ActionAddComment   Action = "add_comment"
	ActionUpdateTask   Action = "update_task"
	ActionCompleteTask Action = "complete_task"
	ActionMarkAsRead   Action = "mark_as_read"
)

// Request is the body accepted by the dispatcher
type Request struct {
	Action  Action          `json:"action"`
	Payload json.RawMessage `json:"payload"`
}

// Result is the outcome of one action. Task or Comment is set depending on the action;
// complete_task may set both, and reports a failed follow-up comment in CommentError.
type Result struct {
	Task         *models.Task
	Comment      *models.Comment
	CommentError error
}

// TaskStore is the subset of the task repository the agent may write
type TaskStore interface {
	Create(ctx context.Context, task *models.Task) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Task, error)
	Update(ctx context.Context, id uuid.UUID, patch models.TaskPatch) (*models.Task, error)
	MarkViewed(ctx context.Context, id uuid.UUID, party models.Party, at time.Time) (*models.Task, error)
}

// CommentStore is the subset of the comment repository the agent may write
type CommentStore interface {
	Create(ctx context.Context, comment *models.Comment) error
}

func otelTracer() trace.Tracer {
	return otel.Tracer("github.com/benvon/taskboard/internal/bot")
}

// Dispatcher routes agent actions to the store. Every write is attributed to the agent.
type Dispatcher struct {
	tasks    TaskStore
	comments CommentStore
	logger   *zap.Logger
	tracer   trace.Tracer
	now      func() time.Time
}

// NewDispatcher creates a dispatcher over the given stores
func NewDispatcher(tasks TaskStore, comments CommentStore, logger *zap.Logger) *Dispatcher {
	return &Dispatcher{
		tasks:    tasks,
		comments: comments,
		logger:   logger,
		tracer:   otelTracer(),
		now:      time.Now,
	}
}

type createTaskPayload struct {
	Title       string `json:"title" validate:"required"`
	Description string `json:"description"`
	Priority    string `json:"priority" validate:"omitempty,task_priority"`
	Status      string `json:"status" validate:"omitempty,task_status"`
}

type addCommentPayload struct {
	TaskID  string `json:"task_id" validate:"required"`
	Content string `json:"content" validate:"required"`
}

type taskUpdates struct {
	Title       *string `json:"title"`
	Description *string `json:"description"`
	Status      *string `json:"status"`
	Priority    *string `json:"priority"`
}

type updateTaskPayload struct {
	TaskID  string       `json:"task_id" validate:"required"`
	Updates *taskUpdates `json:"updates" validate:"required"`
}

type completeTaskPayload struct {
	TaskID  string `json:"task_id" validate:"required"`
	Comment string `json:"comment"`
}

type markAsReadPayload struct {
	TaskID string `json:"task_id" validate:"required"`
}

// Dispatch validates and executes one action
func (d *Dispatcher) Dispatch(ctx context.Context, req Request) (*Result, error) {
	ctx, span := d.tracer.Start(ctx, "bot."+string(req.Action),
		trace.WithAttributes(attribute.String("bot.action", string(req.Action))))
	defer span.End()

	d.logger.Info("bot_action_requested", zap.String("action", logger.SanitizeString(string(req.Action), 50)))

	result, err := d.dispatch(ctx, req)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		if IsValidation(err) {
			d.logger.Warn("bot_action_rejected", zap.String("action", logger.SanitizeString(string(req.Action), 50)), zap.Error(err))
		} else {
			d.logger.Error("bot_action_failed", zap.String("action", logger.SanitizeString(string(req.Action), 50)), zap.Error(err))
		}
		return nil, err
	}
	if result.CommentError != nil {
		span.SetAttributes(attribute.Bool("bot.partial_success", true))
	}
	return result, nil
}

func (d *Dispatcher) dispatch(ctx context.Context, req Request) (*Result, error) {
	switch req.Action {
	case ActionCreateTask:
		var p createTaskPayload
		if err := decodePayload(req.Payload, &p, "Missing title"); err != nil {
			return nil, err
		}
		return d.createTask(ctx, p)
	case ActionAddComment:
		var p addCommentPayload
		if err := decodePayload(req.Payload, &p, "Missing task_id or content"); err != nil {
			return nil, err
		}
		return d.addComment(ctx, p)
	case ActionUpdateTask:
		var p updateTaskPayload
		if err := decodePayload(req.Payload, &p, "Missing task_id or updates"); err != nil {
			return nil, err
		}
		return d.updateTask(ctx, p)
	case ActionCompleteTask:
		var p completeTaskPayload
		if err := decodePayload(req.Payload, &p, "Missing task_id"); err != nil {
			return nil, err
		}
		return d.completeTask(ctx, p)
	case ActionMarkAsRead:
		var p markAsReadPayload
		if err := decodePayload(req.Payload, &p, "Missing task_id"); err != nil {
			return nil, err
		}
		return d.markAsRead(ctx, p)
	default:
		return nil, validationErrorf("Unknown action: %s", logger.SanitizeString(string(req.Action), 100))
	}
}

// decodePayload unmarshals raw into dst and checks its validate tags.
// A missing required field yields missingMessage.
func decodePayload(raw json.RawMessage, dst any, missingMessage string) error {
	if len(raw) == 0 || string(raw) == "null" {
		return &ValidationError{Message: missingMessage}
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return validationErrorf("Invalid payload: %v", err)
	}
	if err := validation.Validate.Struct(dst); err != nil {
		if verrs, ok := err.(validator.ValidationErrors); ok {
			for _, fe := range verrs {
				if fe.Tag() == "required" {
					return &ValidationError{Message: missingMessage}
				}
			}
			fe := verrs[0]
			return validationErrorf("Invalid %s: %v", strings.ToLower(fe.Field()), fe.Value())
		}
		return validationErrorf("Invalid payload: %v", err)
	}
	return nil
}

func parseTaskID(raw string) (uuid.UUID, error) {
	id, err := uuid.Parse(strings.TrimSpace(raw))
	if err != nil {
		return uuid.Nil, validationErrorf("Invalid task_id: %s", logger.SanitizeString(raw, 64))
	}
	return id, nil
}

func (d *Dispatcher) createTask(ctx context.Context, p createTaskPayload) (*Result, error) {
	title, err := validation.TaskTitle(p.Title)
	if err != nil {
		return nil, &ValidationError{Message: "Missing title"}
	}

	task := &models.Task{
		Title:       title,
		Description: validation.SanitizeText(p.Description),
		Assignee:    models.PartyAgent,
		Priority:    models.TaskPriority(p.Priority),
		Status:      models.TaskStatus(p.Status),
	}
	if task.Priority == "" {
		task.Priority = models.TaskPriorityMedium
	}
	if task.Status == "" {
		task.Status = models.TaskStatusTodo
	}

	if err := d.tasks.Create(ctx, task); err != nil {
		return nil, &StoreError{Message: "Failed to create task", Err: err}
	}
	d.logger.Info("bot_task_created", zap.String("task_id", task.ID.String()))
	return &Result{Task: task}, nil
}

func (d *Dispatcher) addComment(ctx context.Context, p addCommentPayload) (*Result, error) {
	taskID, err := parseTaskID(p.TaskID)
	if err != nil {
		return nil, err
	}
	content, err := validation.CommentContent(p.Content)
	if err != nil {
		return nil, &ValidationError{Message: "Missing task_id or content"}
	}

	comment, err := d.insertComment(ctx, taskID, content)
	if err != nil {
		return nil, &StoreError{Message: "Failed to add comment", Err: err}
	}
	d.logger.Info("bot_comment_added",
		zap.String("task_id", taskID.String()),
		zap.String("content_preview", logger.Preview(content)))
	return &Result{Comment: comment}, nil
}

func (d *Dispatcher) insertComment(ctx context.Context, taskID uuid.UUID, content string) (*models.Comment, error) {
	comment := &models.Comment{
		TaskID:  taskID,
		Author:  models.PartyAgent,
		Content: content,
	}
	if err := d.comments.Create(ctx, comment); err != nil {
		return nil, err
	}
	return comment, nil
}

func (d *Dispatcher) updateTask(ctx context.Context, p updateTaskPayload) (*Result, error) {
	taskID, err := parseTaskID(p.TaskID)
	if err != nil {
		return nil, err
	}

	// assignee and the last-viewed markers are not writable here
	patch := models.TaskPatch{
		Title:       p.Updates.Title,
		Description: p.Updates.Description,
	}
	if p.Updates.Status != nil {
		status := models.TaskStatus(*p.Updates.Status)
		patch.Status = &status
	}
	if p.Updates.Priority != nil {
		priority := models.TaskPriority(*p.Updates.Priority)
		patch.Priority = &priority
	}
	if err := validation.ValidateTaskPatch(&patch); err != nil {
		return nil, &ValidationError{Message: err.Error()}
	}

	var task *models.Task
	if patch.IsEmpty() {
		task, err = d.tasks.GetByID(ctx, taskID)
	} else {
		task, err = d.tasks.Update(ctx, taskID, patch)
	}
	if err != nil {
		return nil, &StoreError{Message: "Failed to update task", Err: err}
	}
	d.logger.Info("bot_task_updated", zap.String("task_id", taskID.String()))
	return &Result{Task: task}, nil
}

func (d *Dispatcher) completeTask(ctx context.Context, p completeTaskPayload) (*Result, error) {
	taskID, err := parseTaskID(p.TaskID)
	if err != nil {
		return nil, err
	}

	var content string
	if p.Comment != "" {
		content, err = validation.CommentContent(p.Comment)
		if err != nil {
			return nil, &ValidationError{Message: "Comment cannot be empty"}
		}
	}

	completed := models.TaskStatusCompleted
	task, err := d.tasks.Update(ctx, taskID, models.TaskPatch{Status: &completed})
	if err != nil {
		return nil, &StoreError{Message: "Failed to complete task", Err: err}
	}
	result := &Result{Task: task}

	// the status change stands even if the comment insert fails
	if content != "" {
		comment, err := d.insertComment(ctx, taskID, content)
		if err != nil {
			d.logger.Error("bot_completion_comment_failed", zap.String("task_id", taskID.String()), zap.Error(err))
			result.CommentError = err
		} else {
			result.Comment = comment
		}
	}

	d.logger.Info("bot_task_completed",
		zap.String("task_id", taskID.String()),
		zap.Bool("with_comment", result.Comment != nil))
	return result, nil
}

func (d *Dispatcher) markAsRead(ctx context.Context, p markAsReadPayload) (*Result, error) {
	taskID, err := parseTaskID(p.TaskID)
	if err != nil {
		return nil, err
	}

	task, err := d.tasks.MarkViewed(ctx, taskID, models.PartyAgent, d.now())
	if err != nil {
		return nil, &StoreError{Message: "Failed to mark task as read", Err: err}
	}
	d.logger.Info("bot_task_marked_read", zap.String("task_id", taskID.String()))
	return &Result{Task: task}, nil
}

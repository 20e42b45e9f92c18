package handlers

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/benvon/taskboard/internal/database"
	"github.com/benvon/taskboard/internal/models"
	"github.com/benvon/taskboard/internal/realtime"
	"github.com/benvon/taskboard/internal/validation"
	"github.com/google/uuid"
	"github.com/gorilla/mux"
)

// BoardTaskStore is the read side of the task repository
type BoardTaskStore interface {
	List(ctx context.Context) ([]*models.Task, error)
	Views(ctx context.Context, ids []uuid.UUID) ([]models.TaskViews, error)
}

// BoardCommentStore is the read side of the comment repository
type BoardCommentStore interface {
	ListByTask(ctx context.Context, taskID uuid.UUID) ([]*models.Comment, error)
	LatestByAuthor(ctx context.Context, taskIDs []uuid.UUID, author models.Party) (map[uuid.UUID]time.Time, error)
}

// BoardHandler serves the bulk reads a board client performs before following the change feed
type BoardHandler struct {
	tasks    BoardTaskStore
	comments BoardCommentStore
}

// NewBoardHandler creates a board handler
func NewBoardHandler(tasks BoardTaskStore, comments BoardCommentStore) *BoardHandler {
	return &BoardHandler{tasks: tasks, comments: comments}
}

// RegisterRoutes registers board routes on the /api/v1 router
func (h *BoardHandler) RegisterRoutes(r *mux.Router) {
	r.HandleFunc("/tasks", h.ListTasks).Methods("GET")
	r.HandleFunc("/tasks/{id}/comments", h.ListComments).Methods("GET")
	r.HandleFunc("/unread", h.Unread).Methods("GET")
}

// taskFilter narrows the task list; zero values match everything
type taskFilter struct {
	status   models.TaskStatus
	assignee models.Party
}

func (f taskFilter) match(t *models.Task) bool {
	if f.status != "" && t.Status != f.status {
		return false
	}
	if f.assignee != "" && t.Assignee != f.assignee {
		return false
	}
	return true
}

func parseTaskFilter(r *http.Request) (taskFilter, error) {
	var f taskFilter
	if s := r.URL.Query().Get("status"); s != "" {
		if err := validation.ValidateTaskStatus(s); err != nil {
			return f, err
		}
		f.status = models.TaskStatus(s)
	}
	if a := r.URL.Query().Get("assignee"); a != "" {
		if err := validation.ValidateParty(a); err != nil {
			return f, err
		}
		f.assignee = models.Party(a)
	}
	return f, nil
}

// ListTasks returns every task ordered by creation time, optionally filtered by status or assignee
func (h *BoardHandler) ListTasks(w http.ResponseWriter, r *http.Request) {
	filter, err := parseTaskFilter(r)
	if err != nil {
		respondJSONError(w, http.StatusBadRequest, "Bad Request", err.Error())
		return
	}

	tasks, err := h.tasks.List(r.Context())
	if err != nil {
		respondJSONError(w, http.StatusInternalServerError, "Internal Server Error", "Failed to retrieve tasks")
		return
	}

	out := make([]*models.Task, 0, len(tasks))
	for _, t := range tasks {
		if filter.match(t) {
			out = append(out, t)
		}
	}
	respondJSON(w, http.StatusOK, out)
}

// ListComments returns the comments of one task, oldest first
func (h *BoardHandler) ListComments(w http.ResponseWriter, r *http.Request) {
	taskID, err := uuid.Parse(mux.Vars(r)["id"])
	if err != nil {
		respondJSONError(w, http.StatusBadRequest, "Bad Request", "Invalid task ID")
		return
	}

	comments, err := h.comments.ListByTask(r.Context(), taskID)
	if err != nil {
		respondJSONError(w, http.StatusInternalServerError, "Internal Server Error", "Failed to retrieve comments")
		return
	}
	if comments == nil {
		comments = []*models.Comment{}
	}
	respondJSON(w, http.StatusOK, comments)
}

// Unread reports, for the given party, which tasks carry a comment from the other party
// newer than the party's last view. Without task_id every task is checked.
func (h *BoardHandler) Unread(w http.ResponseWriter, r *http.Request) {
	partyParam := r.URL.Query().Get("party")
	if err := validation.ValidateParty(partyParam); err != nil {
		respondJSONError(w, http.StatusBadRequest, "Bad Request", "party must be human or agent")
		return
	}
	party := models.Party(partyParam)

	ids, err := parseTaskIDs(r.URL.Query()["task_id"])
	if err != nil {
		respondJSONError(w, http.StatusBadRequest, "Bad Request", err.Error())
		return
	}

	ctx := r.Context()
	if len(ids) == 0 {
		tasks, err := h.tasks.List(ctx)
		if err != nil {
			respondJSONError(w, http.StatusInternalServerError, "Internal Server Error", "Failed to retrieve tasks")
			return
		}
		for _, t := range tasks {
			ids = append(ids, t.ID)
		}
	}

	unread := map[string]bool{}
	if len(ids) > 0 {
		views, err := h.tasks.Views(ctx, ids)
		if err != nil {
			respondJSONError(w, http.StatusInternalServerError, "Internal Server Error", "Failed to read last viewed markers")
			return
		}
		latest, err := h.comments.LatestByAuthor(ctx, ids, party.Other())
		if err != nil {
			respondJSONError(w, http.StatusInternalServerError, "Internal Server Error", "Failed to read latest comments")
			return
		}
		for id, flag := range realtime.ComputeUnread(ids, party, views, latest) {
			unread[id.String()] = flag
		}
	}
	respondJSON(w, http.StatusOK, unread)
}

// parseTaskIDs accepts repeated and comma separated task_id values
func parseTaskIDs(values []string) ([]uuid.UUID, error) {
	var ids []uuid.UUID
	seen := make(map[uuid.UUID]bool)
	for _, v := range values {
		for _, part := range strings.Split(v, ",") {
			part = strings.TrimSpace(part)
			if part == "" {
				continue
			}
			id, err := uuid.Parse(part)
			if err != nil {
				return nil, fmt.Errorf("invalid task_id: %s", sanitizeErrorMessage(part))
			}
			if !seen[id] {
				seen[id] = true
				ids = append(ids, id)
			}
		}
	}
	return ids, nil
}

var _ BoardTaskStore = (*database.TaskRepository)(nil)
var _ BoardCommentStore = (*database.CommentRepository)(nil)

package handlers

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/benvon/taskboard/internal/bot"
	"github.com/benvon/taskboard/internal/models"
	"github.com/gorilla/mux"
	"go.uber.org/zap"
)

// ActionDispatcher executes agent actions
type ActionDispatcher interface {
	Dispatch(ctx context.Context, req bot.Request) (*bot.Result, error)
}

// MetricsWriter applies partial metrics updates
type MetricsWriter interface {
	Update(ctx context.Context, req bot.MetricsRequest) (*models.TradingMetrics, error)
}

// BotHandler serves the endpoints an external agent calls. The router it is registered on
// must already enforce the bot secret.
type BotHandler struct {
	dispatcher ActionDispatcher
	metrics    MetricsWriter
	logger     *zap.Logger
}

// NewBotHandler creates a bot handler
func NewBotHandler(dispatcher ActionDispatcher, metrics MetricsWriter, logger *zap.Logger) *BotHandler {
	return &BotHandler{dispatcher: dispatcher, metrics: metrics, logger: logger}
}

// RegisterRoutes registers bot routes on a router with the /bot prefix
func (h *BotHandler) RegisterRoutes(r *mux.Router) {
	r.HandleFunc("/actions", h.HandleAction).Methods("POST")
	r.HandleFunc("/metrics", h.UpdateMetrics).Methods("POST")
}

// completeTaskResponse reports both outcomes of complete_task
type completeTaskResponse struct {
	Success      bool            `json:"success"`
	Task         *models.Task    `json:"task"`
	Comment      *models.Comment `json:"comment"`
	CommentError string          `json:"comment_error,omitempty"`
	Timestamp    string          `json:"timestamp"`
}

// HandleAction dispatches one {action, payload} request
func (h *BotHandler) HandleAction(w http.ResponseWriter, r *http.Request) {
	var req bot.Request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondJSONError(w, http.StatusBadRequest, "Invalid JSON body", "Request body must be a JSON object with action and payload")
		return
	}

	result, err := h.dispatcher.Dispatch(r.Context(), req)
	if err != nil {
		h.respondBotError(w, err)
		return
	}

	switch {
	case req.Action == bot.ActionCompleteTask:
		resp := completeTaskResponse{
			Success:   true,
			Task:      result.Task,
			Comment:   result.Comment,
			Timestamp: timestamp(),
		}
		if result.CommentError != nil {
			resp.CommentError = sanitizeErrorMessage(result.CommentError.Error())
		}
		writeJSON(w, http.StatusOK, resp)
	case result.Comment != nil:
		respondJSON(w, http.StatusOK, result.Comment)
	default:
		respondJSON(w, http.StatusOK, result.Task)
	}
}

// UpdateMetrics applies a partial metrics update and returns the updated row
func (h *BotHandler) UpdateMetrics(w http.ResponseWriter, r *http.Request) {
	var req bot.MetricsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondJSONError(w, http.StatusBadRequest, "Invalid JSON body", "Request body must be a JSON object with bot_name and metrics")
		return
	}

	metrics, err := h.metrics.Update(r.Context(), req)
	if err != nil {
		h.respondBotError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, metrics)
}

// respondBotError maps the bot error taxonomy onto status codes
func (h *BotHandler) respondBotError(w http.ResponseWriter, err error) {
	if bot.IsValidation(err) {
		respondJSONError(w, http.StatusBadRequest, err.Error(), "The request payload is invalid")
		return
	}
	if storeErr, ok := bot.AsStoreError(err); ok {
		respondJSONErrorDetails(w, http.StatusInternalServerError, storeErr.Message, "The store rejected the operation", storeErr.Details())
		return
	}
	h.logger.Error("bot_unexpected_error", zap.Error(err))
	respondJSONErrorDetails(w, http.StatusInternalServerError, "Internal Server Error", "The action could not be completed", err.Error())
}

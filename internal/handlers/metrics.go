package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/benvon/taskboard/internal/database"
	"github.com/benvon/taskboard/internal/logger"
	"github.com/benvon/taskboard/internal/models"
	"github.com/gorilla/mux"
	"go.uber.org/zap"
)

// MetricsSource reads a metrics row
type MetricsSource interface {
	Get(ctx context.Context, botName string) (*models.TradingMetrics, error)
}

// MetricsHandler serves the trading metrics sidebar
type MetricsHandler struct {
	source MetricsSource
	logger *zap.Logger
}

// NewMetricsHandler creates a metrics handler
func NewMetricsHandler(source MetricsSource, logger *zap.Logger) *MetricsHandler {
	return &MetricsHandler{source: source, logger: logger}
}

// RegisterRoutes registers metrics routes on the /api/v1 router
func (h *MetricsHandler) RegisterRoutes(r *mux.Router) {
	r.HandleFunc("/metrics/{bot_name}", h.GetMetrics).Methods("GET")
}

// GetMetrics returns the metrics row of one bot
func (h *MetricsHandler) GetMetrics(w http.ResponseWriter, r *http.Request) {
	botName := mux.Vars(r)["bot_name"]

	metrics, err := h.source.Get(r.Context(), botName)
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			respondJSONError(w, http.StatusNotFound, "Not Found", "No metrics for this bot")
			return
		}
		h.logger.Error("metrics_read_failed", zap.String("bot_name", logger.SanitizeString(botName, 100)), zap.Error(err))
		respondJSONError(w, http.StatusInternalServerError, "Internal Server Error", "Failed to retrieve metrics")
		return
	}
	respondJSON(w, http.StatusOK, metrics)
}

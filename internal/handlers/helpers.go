package handlers

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/benvon/taskboard/internal/logger"
)

// maxErrorDetailLength caps store detail echoed to clients
const maxErrorDetailLength = 200

func timestamp() string {
	return time.Now().UTC().Format(time.RFC3339)
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(body); err != nil {
		http.Error(w, "Failed to encode response", http.StatusInternalServerError)
	}
}

// respondJSON sends a success envelope around data
func respondJSON(w http.ResponseWriter, status int, data any) {
	writeJSON(w, status, map[string]any{
		"success":   true,
		"data":      data,
		"timestamp": timestamp(),
	})
}

// sanitizeErrorMessage strips control characters and caps the length of text shown to clients
func sanitizeErrorMessage(message string) string {
	return logger.SanitizeString(message, maxErrorDetailLength)
}

// respondJSONError sends an error envelope with sanitized text
func respondJSONError(w http.ResponseWriter, status int, errorType, message string) {
	respondJSONErrorDetails(w, status, errorType, message, "")
}

// respondJSONErrorDetails is respondJSONError with the underlying failure attached
func respondJSONErrorDetails(w http.ResponseWriter, status int, errorType, message, details string) {
	response := map[string]any{
		"success":   false,
		"error":     errorType,
		"message":   sanitizeErrorMessage(message),
		"timestamp": timestamp(),
	}
	if details != "" {
		response["details"] = sanitizeErrorMessage(details)
	}
	writeJSON(w, status, response)
}

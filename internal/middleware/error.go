package middleware

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	logpkg "github.com/benvon/taskboard/internal/logger"
	"github.com/benvon/taskboard/internal/request"
	"go.uber.org/zap"
)

// ErrorResponse mirrors the handlers' error envelope, plus the request path
type ErrorResponse struct {
	Success   bool   `json:"success"`
	Error     string `json:"error"`
	Message   string `json:"message"`
	Path      string `json:"path"`
	Timestamp string `json:"timestamp"`
}

// ErrorHandler recovers panics in later handlers. A panic before any byte was written
// answers with the JSON 500 envelope; after that the partial response is left as is.
// http.ErrAbortHandler is re-raised so net/http can abort the connection.
func ErrorHandler(logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			tracked := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}

			defer func() {
				rec := recover()
				if rec == nil {
					return
				}
				if err, ok := rec.(error); ok && errors.Is(err, http.ErrAbortHandler) {
					panic(rec)
				}

				logger.Error("panic_recovered",
					zap.String("panic", logpkg.SanitizeString(fmt.Sprint(rec), logpkg.MaxErrorMessageLength)),
					zap.String("method", r.Method),
					zap.String("path", logpkg.SanitizePath(r.URL.Path)),
					zap.String("client_ip", request.ClientIP(r)),
					zap.Bool("response_started", tracked.wroteHeader),
					zap.Stack("stack"),
				)
				if tracked.wroteHeader {
					return
				}
				respondErrorJSON(w, r, http.StatusInternalServerError, "Internal Server Error", "An unexpected error occurred", logger)
			}()

			next.ServeHTTP(tracked, r)
		})
	}
}

// respondErrorJSON writes the error envelope. logger may be nil.
func respondErrorJSON(w http.ResponseWriter, r *http.Request, status int, errorType, message string, logger *zap.Logger) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	body := ErrorResponse{
		Error:     errorType,
		Message:   message,
		Path:      logpkg.SanitizePath(r.URL.Path),
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	}
	if err := json.NewEncoder(w).Encode(body); err != nil && logger != nil {
		logger.Warn("error_response_write_failed", zap.Int("status_code", status), zap.Error(err))
	}
}

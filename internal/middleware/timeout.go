package middleware

import (
	"net/http"
	"time"
)

const (
	// DefaultRequestTimeout is the default request timeout (30 seconds)
	DefaultRequestTimeout = 30 * time.Second
)

const timeoutBody = `{"success":false,"error":"Request Timeout","message":"The request took too long to complete"}`

// Timeout bounds handler run time. The request context is cancelled at the deadline,
// which aborts in-flight store calls.
func Timeout(timeout time.Duration) func(http.Handler) http.Handler {
	if timeout <= 0 {
		timeout = DefaultRequestTimeout
	}

	return func(next http.Handler) http.Handler {
		handler := http.TimeoutHandler(next, timeout, timeoutBody)
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			handler.ServeHTTP(&jsonTimeoutWriter{ResponseWriter: w}, r)
		})
	}
}

// jsonTimeoutWriter labels the timeout body as JSON; TimeoutHandler writes it without a content type
type jsonTimeoutWriter struct {
	http.ResponseWriter
}

func (w *jsonTimeoutWriter) WriteHeader(code int) {
	if code == http.StatusServiceUnavailable && w.Header().Get("Content-Type") == "" {
		w.Header().Set("Content-Type", "application/json")
	}
	w.ResponseWriter.WriteHeader(code)
}

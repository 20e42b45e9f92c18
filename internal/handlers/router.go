package handlers

import (
	"fmt"
	"net/http"
	"time"

	"github.com/benvon/taskboard/internal/middleware"
	"github.com/gorilla/mux"
	"go.uber.org/zap"
)

// Routes holds the handlers served by the API
type Routes struct {
	Health  *HealthChecker
	Bot     *BotHandler
	Board   *BoardHandler
	Metrics *MetricsHandler
	OpenAPI *OpenAPIHandler
}

// RouterOptions configures the middleware chain
type RouterOptions struct {
	BotSecret      string
	AllowedOrigins []string
	EnableHSTS     bool
	MaxRequestSize int64
	RequestTimeout time.Duration
	// Outer runs before every other router middleware (tracing)
	Outer  []mux.MiddlewareFunc
	Logger *zap.Logger
}

// NewServerHandler builds the router and wraps it in CORS and security headers.
//
// The bot subtree has its own chain so the shared secret is checked before any body guard:
// a request with a bad secret always gets 401, whatever its body or content type.
func NewServerHandler(routes Routes, opts RouterOptions) http.Handler {
	if opts.RequestTimeout <= 0 {
		opts.RequestTimeout = middleware.DefaultRequestTimeout
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	r := mux.NewRouter()

	// gorilla/mux runs middleware in registration order, outermost first
	for _, mw := range opts.Outer {
		r.Use(mw)
	}
	r.Use(middleware.Logging(logger))
	r.Use(middleware.ErrorHandler(logger))
	r.Use(middleware.Timeout(opts.RequestTimeout))

	if routes.Health != nil {
		r.HandleFunc("/healthz", routes.Health.HealthCheck).Methods("GET")
	}
	r.HandleFunc("/version", versionInfo).Methods("GET")

	// registered before /api/v1 so the longer prefix matches first
	if routes.Bot != nil {
		botRouter := r.PathPrefix("/api/v1/bot").Subrouter()
		botRouter.Use(middleware.BotSecret(opts.BotSecret, logger))
		botRouter.Use(middleware.MaxRequestSize(opts.MaxRequestSize))
		botRouter.Use(middleware.ContentType)
		routes.Bot.RegisterRoutes(botRouter)
	}

	apiRouter := r.PathPrefix("/api/v1").Subrouter()
	apiRouter.Use(middleware.MaxRequestSize(opts.MaxRequestSize))
	apiRouter.Use(middleware.ContentType)
	if routes.OpenAPI != nil {
		routes.OpenAPI.RegisterRoutes(apiRouter)
	}
	if routes.Board != nil {
		routes.Board.RegisterRoutes(apiRouter)
	}
	if routes.Metrics != nil {
		routes.Metrics.RegisterRoutes(apiRouter)
	}

	// CORS sits outside the router so preflight requests never reach route matching
	return middleware.SecurityHeaders(opts.EnableHSTS)(
		middleware.CORS(opts.AllowedOrigins, logger)(r),
	)
}

func versionInfo(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = fmt.Fprintf(w, `{"version":"1.0.0","timestamp":"%s"}`, timestamp())
}

package middleware

import (
	"net/http"

	"github.com/rs/cors"
	"go.uber.org/zap"
)

// corsAllowedHeaders lists the request headers browsers may send, including the bot secret
var corsAllowedHeaders = []string{
	"Authorization",
	"X-Client-Info",
	"Apikey",
	"Content-Type",
	"X-Bot-Secret",
}

// CORS answers preflight requests with 204 and sets CORS headers for allowed origins.
// An origin list containing "*" allows every origin.
func CORS(allowedOrigins []string, logger *zap.Logger) func(http.Handler) http.Handler {
	logger.Info("cors_configured", zap.Strings("allowed_origins", allowedOrigins))

	c := cors.New(cors.Options{
		AllowedOrigins: allowedOrigins,
		AllowedMethods: []string{
			http.MethodGet,
			http.MethodPost,
			http.MethodPatch,
			http.MethodDelete,
			http.MethodOptions,
		},
		AllowedHeaders:       corsAllowedHeaders,
		MaxAge:               86400,
		OptionsSuccessStatus: http.StatusNoContent,
	})
	return c.Handler
}

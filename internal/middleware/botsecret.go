package middleware

import (
	"crypto/subtle"
	"net/http"

	logpkg "github.com/benvon/taskboard/internal/logger"
	"github.com/benvon/taskboard/internal/models"
	"github.com/benvon/taskboard/internal/request"
	"go.uber.org/zap"
)

// BotSecretHeader carries the shared secret of the agent
const BotSecretHeader = "x-bot-secret"

// BotSecret admits only requests whose x-bot-secret header equals secret exactly.
// The check runs before any other work, so a rejected request has no side effects.
// An empty secret means the server is misconfigured and every request is refused with 500.
func BotSecret(secret string, logger *zap.Logger) func(http.Handler) http.Handler {
	expected := []byte(secret)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if len(expected) == 0 {
				logger.Error("bot_secret_not_configured", zap.String("path", logpkg.SanitizePath(r.URL.Path)))
				respondErrorJSON(w, r, http.StatusInternalServerError, "Server configuration error", "The bot endpoint is not configured", logger)
				return
			}

			provided := []byte(r.Header.Get(BotSecretHeader))
			if subtle.ConstantTimeCompare(provided, expected) != 1 {
				logger.Warn("bot_secret_rejected",
					zap.String("path", logpkg.SanitizePath(r.URL.Path)),
					zap.String("client_ip", request.ClientIP(r)),
					zap.Bool("header_present", len(provided) > 0),
				)
				respondErrorJSON(w, r, http.StatusUnauthorized, "Unauthorized - Invalid bot credentials", "A valid x-bot-secret header is required", logger)
				return
			}

			next.ServeHTTP(w, r.WithContext(request.WithParty(r.Context(), models.PartyAgent)))
		})
	}
}

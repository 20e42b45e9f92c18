package request

import (
	"context"
	"net/http"
	"strings"

	"github.com/benvon/taskboard/internal/models"
)

type contextKey string

const partyContextKey contextKey = "party"

// PartyContextKey returns the context key used for the acting party. Exposed for tests that inject non-party values.
func PartyContextKey() contextKey { return partyContextKey }

// ClientIP extracts the client IP from the request, respecting X-Forwarded-For and X-Real-IP.
func ClientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		parts := strings.Split(xff, ",")
		if len(parts) > 0 {
			return strings.TrimSpace(parts[0])
		}
	}
	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return strings.TrimSpace(xri)
	}
	return r.RemoteAddr
}

// WithParty returns a context recording which party is acting.
func WithParty(ctx context.Context, party models.Party) context.Context {
	return context.WithValue(ctx, partyContextKey, party)
}

// PartyFromContext returns the acting party, or false if none was authenticated.
func PartyFromContext(r *http.Request) (models.Party, bool) {
	p, ok := r.Context().Value(partyContextKey).(models.Party)
	if !ok || !p.Valid() {
		return "", false
	}
	return p, true
}

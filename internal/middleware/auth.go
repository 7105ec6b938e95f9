// Package middleware contains HTTP middleware for the octorank API.
//
// Middleware functions follow the standard Go pattern of wrapping
// http.Handler. They are designed to be composed using a middleware stack
// approach.
package middleware

import (
	"log/slog"
	"net"
	"net/http"
	"strings"

	"github.com/octorank/octorank/internal/domain"
	"github.com/octorank/octorank/internal/handler"
	"github.com/octorank/octorank/internal/identity"
)

// =============================================================================
// Authentication
// =============================================================================

// AuthMiddleware verifies bearer tokens and attaches the verified
// identity to the request context.
type AuthMiddleware struct {
	verifier identity.Verifier
	logger   *slog.Logger
}

// NewAuthMiddleware creates a new AuthMiddleware.
func NewAuthMiddleware(verifier identity.Verifier, logger *slog.Logger) *AuthMiddleware {
	return &AuthMiddleware{
		verifier: verifier,
		logger:   logger,
	}
}

// WithIdentity verifies the Authorization header when present and stores
// the identity in the context. Requests without a token pass through
// unauthenticated; RequireIdentity decides whether that matters.
func (m *AuthMiddleware) WithIdentity(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token, ok := bearerToken(r)
		if !ok {
			next.ServeHTTP(w, r)
			return
		}

		id, err := m.verifier.Verify(r.Context(), token)
		if err != nil {
			// A present-but-invalid token is rejected outright rather
			// than downgraded to anonymous.
			handler.ErrorResponse(w, r, m.logger, err)
			return
		}

		next.ServeHTTP(w, r.WithContext(identity.NewContext(r.Context(), id)))
	})
}

// RequireIdentity rejects requests that did not authenticate.
func (m *AuthMiddleware) RequireIdentity(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if identity.FromRequest(r) == nil {
			handler.ErrorResponse(w, r, m.logger,
				domain.Unauthorized("middleware.auth", "authentication required"))
			return
		}
		next.ServeHTTP(w, r)
	})
}

// bearerToken extracts the token from an Authorization: Bearer header.
func bearerToken(r *http.Request) (string, bool) {
	auth := r.Header.Get("Authorization")
	const prefix = "Bearer "
	if len(auth) <= len(prefix) || !strings.EqualFold(auth[:len(prefix)], prefix) {
		return "", false
	}
	return auth[len(prefix):], true
}

// =============================================================================
// Composition
// =============================================================================

// Stack composes middlewares so the first listed runs outermost.
func Stack(middlewares ...func(http.Handler) http.Handler) func(http.Handler) http.Handler {
	return func(final http.Handler) http.Handler {
		for i := len(middlewares) - 1; i >= 0; i-- {
			final = middlewares[i](final)
		}
		return final
	}
}

// getClientIP extracts the client IP, honoring X-Forwarded-For from the
// reverse proxy.
func getClientIP(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		parts := strings.Split(fwd, ",")
		return strings.TrimSpace(parts[0])
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

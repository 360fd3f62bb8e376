package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/makersmarket/session-auth-service/internal/http/response"
	"github.com/makersmarket/session-auth-service/internal/observability"
	"github.com/makersmarket/session-auth-service/internal/store"
)

type contextKey string

const identityContextKey contextKey = "identity"

// SessionCookieName is the cookie the transport layer sets on login.
const SessionCookieName = "session_token"

// Identity is the authenticated principal attached to a request that
// passed session validation. It is threaded through the context, never
// written onto the request itself.
type Identity struct {
	UserID    uint
	SessionID string
	Token     string
}

// RequireAuth gates endpoints where identity is mandatory. The token is
// taken from the Authorization header first, then the session cookie.
// All failures collapse to 401; the code field carries the sub-reason.
func RequireAuth(sessions store.Store) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, source := extractToken(r)
			if token == "" {
				observability.RecordSessionValidation(r.Context(), "missing", source)
				response.Error(w, r, http.StatusUnauthorized, "token_missing", "authentication token required", nil)
				return
			}
			sess, err := sessions.Validate(r.Context(), token)
			if err != nil {
				observability.RecordSessionValidation(r.Context(), "error", source)
				response.Error(w, r, http.StatusInternalServerError, "internal_error", "session validation failed", nil)
				return
			}
			if sess == nil {
				observability.RecordSessionValidation(r.Context(), "invalid", source)
				response.Error(w, r, http.StatusUnauthorized, "token_invalid_or_expired", "invalid or expired session", nil)
				return
			}
			observability.RecordSessionValidation(r.Context(), "valid", source)
			ctx := WithIdentity(r.Context(), &Identity{UserID: sess.UserID, SessionID: sess.ID, Token: token})
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// OptionalAuth performs the same extraction and validation but never
// rejects; absence or invalidity simply leaves the request
// unauthenticated.
func OptionalAuth(sessions store.Store) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, source := extractToken(r)
			if token == "" {
				next.ServeHTTP(w, r)
				return
			}
			sess, err := sessions.Validate(r.Context(), token)
			if err != nil || sess == nil {
				observability.RecordSessionValidation(r.Context(), "invalid", source)
				next.ServeHTTP(w, r)
				return
			}
			observability.RecordSessionValidation(r.Context(), "valid", source)
			ctx := WithIdentity(r.Context(), &Identity{UserID: sess.UserID, SessionID: sess.ID, Token: token})
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func IdentityFromContext(ctx context.Context) (*Identity, bool) {
	id, ok := ctx.Value(identityContextKey).(*Identity)
	return id, ok
}

// WithIdentity attaches an authenticated principal to ctx. Handlers
// under test use it to simulate a request that passed RequireAuth.
func WithIdentity(ctx context.Context, id *Identity) context.Context {
	return context.WithValue(ctx, identityContextKey, id)
}

// extractToken prefers the Authorization header over the session
// cookie. The second return names the source for diagnostics.
func extractToken(r *http.Request) (string, string) {
	auth := r.Header.Get("Authorization")
	if strings.HasPrefix(strings.ToLower(auth), "bearer ") {
		if token := strings.TrimSpace(auth[7:]); token != "" {
			return token, "bearer"
		}
	}
	if c, err := r.Cookie(SessionCookieName); err == nil && c.Value != "" {
		return c.Value, "cookie"
	}
	return "", "none"
}

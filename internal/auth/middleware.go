package auth

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/gapal/gapal/internal/platform/httpx"
	"github.com/gapal/gapal/internal/shared"
)

// Middleware wires authentication and role gates for HTTP handlers.
type Middleware struct {
	Store  *TokenStore
	Logger *slog.Logger
}

// Authenticate resolves the bearer token and stores the identity in context.
// Requests without a valid token are rejected with 401.
func (m Middleware) Authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := bearerToken(r)
		id, err := m.Store.Verify(r.Context(), token)
		if err != nil {
			httpx.RespondError(w, httpx.ErrUnauthorized)
			return
		}
		next.ServeHTTP(w, r.WithContext(shared.ContextWithIdentity(r.Context(), id)))
	})
}

// Require ensures the current identity passes the given capability check.
func (m Middleware) Require(check func(shared.Identity) bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id, ok := shared.IdentityFromContext(r.Context())
			if !ok {
				httpx.RespondError(w, httpx.ErrUnauthorized)
				return
			}
			if !check(id) {
				if m.Logger != nil {
					m.Logger.Warn("forbidden",
						slog.Int64("user_id", id.UserID),
						slog.String("role", string(id.Role)),
						slog.String("path", r.URL.Path))
				}
				httpx.RespondError(w, httpx.ErrForbidden)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RequireOrderManager gates routes that mutate order state.
func (m Middleware) RequireOrderManager() func(http.Handler) http.Handler {
	return m.Require(shared.Identity.IsOrderManager)
}

// RequireStockManager gates routes that mutate product or stock state.
func (m Middleware) RequireStockManager() func(http.Handler) http.Handler {
	return m.Require(shared.Identity.IsStockManager)
}

// RequireAdmin gates admin-only routes.
func (m Middleware) RequireAdmin() func(http.Handler) http.Handler {
	return m.Require(shared.Identity.IsAdmin)
}

// bearerToken extracts the token from the Authorization header, falling back
// to the token query parameter used by WebSocket clients.
func bearerToken(r *http.Request) string {
	header := r.Header.Get("Authorization")
	if strings.HasPrefix(header, "Bearer ") {
		return strings.TrimPrefix(header, "Bearer ")
	}
	return r.URL.Query().Get("token")
}

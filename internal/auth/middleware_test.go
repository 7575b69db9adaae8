package auth

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/gapal/gapal/internal/shared"
)

func issueToken(t *testing.T, store *TokenStore, role shared.Role) string {
	t.Helper()
	token, err := store.Issue(context.Background(), shared.Identity{UserID: 7, Name: "Awa", Role: role})
	require.NoError(t, err)
	return token
}

func TestAuthenticateBearerHeader(t *testing.T) {
	store, _ := newTestStore(t, time.Hour)
	token := issueToken(t, store, shared.RoleVendor)
	mw := Middleware{Store: store}

	var seen shared.Identity
	handler := mw.Authenticate(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen, _ = shared.IdentityFromContext(r.Context())
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/v1/orders", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	require.Equal(t, http.StatusOK, rr.Code)
	require.Equal(t, int64(7), seen.UserID)
	require.Equal(t, shared.RoleVendor, seen.Role)
}

func TestAuthenticateQueryTokenFallback(t *testing.T) {
	store, _ := newTestStore(t, time.Hour)
	token := issueToken(t, store, shared.RoleVendor)
	mw := Middleware{Store: store}

	called := false
	handler := mw.Authenticate(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	}))

	req := httptest.NewRequest(http.MethodGet, "/ws?token="+token, nil)
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	require.Equal(t, http.StatusOK, rr.Code)
	require.True(t, called)
}

func TestAuthenticateRejectsMissingOrBadToken(t *testing.T) {
	store, _ := newTestStore(t, time.Hour)
	mw := Middleware{Store: store}
	handler := mw.Authenticate(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("handler must not run")
	}))

	for _, header := range []string{"", "Bearer nope", "Basic abc"} {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/orders", nil)
		if header != "" {
			req.Header.Set("Authorization", header)
		}
		rr := httptest.NewRecorder()
		handler.ServeHTTP(rr, req)
		require.Equal(t, http.StatusUnauthorized, rr.Code)
	}
}

func TestRoleGates(t *testing.T) {
	store, _ := newTestStore(t, time.Hour)
	mw := Middleware{Store: store}

	cases := []struct {
		name string
		gate func(http.Handler) http.Handler
		role shared.Role
		want int
	}{
		{"vendor blocked from order management", mw.RequireOrderManager(), shared.RoleVendor, http.StatusForbidden},
		{"order manager allowed", mw.RequireOrderManager(), shared.RoleOrderManager, http.StatusOK},
		{"admin passes every gate", mw.RequireStockManager(), shared.RoleAdmin, http.StatusOK},
		{"order manager blocked from stock", mw.RequireStockManager(), shared.RoleOrderManager, http.StatusForbidden},
		{"stock manager allowed", mw.RequireStockManager(), shared.RoleStockManager, http.StatusOK},
		{"only admin is admin", mw.RequireAdmin(), shared.RoleStockManager, http.StatusForbidden},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			handler := tc.gate(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			ctx := shared.ContextWithIdentity(req.Context(), shared.Identity{UserID: 1, Role: tc.role})
			rr := httptest.NewRecorder()
			handler.ServeHTTP(rr, req.WithContext(ctx))
			require.Equal(t, tc.want, rr.Code)
		})
	}
}

func TestRequireWithoutIdentityIsUnauthorized(t *testing.T) {
	mw := Middleware{}
	handler := mw.RequireAdmin()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("handler must not run")
	}))
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/", nil))
	require.Equal(t, http.StatusUnauthorized, rr.Code)
}

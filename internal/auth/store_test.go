package auth

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/gapal/gapal/internal/shared"
)

func newTestStore(t *testing.T, ttl time.Duration) (*TokenStore, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	return NewTokenStore(client, ttl), mr
}

func TestIssueAndVerify(t *testing.T) {
	store, _ := newTestStore(t, time.Hour)
	ctx := context.Background()
	id := shared.Identity{UserID: 7, Name: "Awa", Role: shared.RoleVendor}

	token, err := store.Issue(ctx, id)
	require.NoError(t, err)
	require.NotEmpty(t, token)

	got, err := store.Verify(ctx, token)
	require.NoError(t, err)
	require.Equal(t, id, got)
}

func TestIssueRejectsUnknownRole(t *testing.T) {
	store, _ := newTestStore(t, time.Hour)
	_, err := store.Issue(context.Background(), shared.Identity{UserID: 7, Role: "superuser"})
	require.Error(t, err)
}

func TestVerifyRejectsUnknownToken(t *testing.T) {
	store, _ := newTestStore(t, time.Hour)
	ctx := context.Background()

	_, err := store.Verify(ctx, "nope")
	require.ErrorIs(t, err, ErrTokenInvalid)
	_, err = store.Verify(ctx, "")
	require.ErrorIs(t, err, ErrTokenInvalid)
}

func TestVerifyRejectsExpiredToken(t *testing.T) {
	store, mr := newTestStore(t, time.Minute)
	ctx := context.Background()

	token, err := store.Issue(ctx, shared.Identity{UserID: 7, Role: shared.RoleVendor})
	require.NoError(t, err)

	mr.FastForward(2 * time.Minute)
	_, err = store.Verify(ctx, token)
	require.ErrorIs(t, err, ErrTokenInvalid)
}

func TestRevoke(t *testing.T) {
	store, _ := newTestStore(t, time.Hour)
	ctx := context.Background()

	token, err := store.Issue(ctx, shared.Identity{UserID: 7, Role: shared.RoleVendor})
	require.NoError(t, err)
	require.NoError(t, store.Revoke(ctx, token))

	_, err = store.Verify(ctx, token)
	require.ErrorIs(t, err, ErrTokenInvalid)

	require.NoError(t, store.Revoke(ctx, token), "revoking twice is fine")
}

func TestTokensAreUnique(t *testing.T) {
	store, _ := newTestStore(t, time.Hour)
	ctx := context.Background()
	id := shared.Identity{UserID: 7, Role: shared.RoleVendor}

	first, err := store.Issue(ctx, id)
	require.NoError(t, err)
	second, err := store.Issue(ctx, id)
	require.NoError(t, err)
	require.NotEqual(t, first, second)
}

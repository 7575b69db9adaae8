// Package auth resolves bearer tokens to identities. Credential verification
// (login, password handling) happens outside this service; the token store
// only maps opaque tokens issued elsewhere to the user they belong to.
package auth

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/gapal/gapal/internal/shared"
)

// ErrTokenInvalid indicates an unknown or expired token.
var ErrTokenInvalid = errors.New("auth: invalid token")

// TokenStore keeps opaque bearer tokens in Redis.
type TokenStore struct {
	client *redis.Client
	ttl    time.Duration
}

type tokenPayload struct {
	UserID int64  `json:"user_id"`
	Name   string `json:"name"`
	Role   string `json:"role"`
}

// NewTokenStore constructs a TokenStore.
func NewTokenStore(client *redis.Client, ttl time.Duration) *TokenStore {
	return &TokenStore{client: client, ttl: ttl}
}

// Issue creates a token for the identity and stores it with the configured TTL.
func (s *TokenStore) Issue(ctx context.Context, id shared.Identity) (string, error) {
	if !id.Role.Valid() {
		return "", fmt.Errorf("auth: unknown role %q", id.Role)
	}
	token, err := generateToken()
	if err != nil {
		return "", err
	}
	payload, err := json.Marshal(tokenPayload{UserID: id.UserID, Name: id.Name, Role: string(id.Role)})
	if err != nil {
		return "", err
	}
	if err := s.client.Set(ctx, s.redisKey(token), payload, s.ttl).Err(); err != nil {
		return "", fmt.Errorf("auth: store token: %w", err)
	}
	return token, nil
}

// Verify resolves a token back to the identity it was issued for.
func (s *TokenStore) Verify(ctx context.Context, token string) (shared.Identity, error) {
	if token == "" {
		return shared.Identity{}, ErrTokenInvalid
	}
	raw, err := s.client.Get(ctx, s.redisKey(token)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return shared.Identity{}, ErrTokenInvalid
		}
		return shared.Identity{}, fmt.Errorf("auth: load token: %w", err)
	}
	var payload tokenPayload
	if err := json.Unmarshal(raw, &payload); err != nil {
		return shared.Identity{}, ErrTokenInvalid
	}
	id := shared.Identity{UserID: payload.UserID, Name: payload.Name, Role: shared.Role(payload.Role)}
	if !id.Role.Valid() {
		return shared.Identity{}, ErrTokenInvalid
	}
	return id, nil
}

// Revoke deletes a token.
func (s *TokenStore) Revoke(ctx context.Context, token string) error {
	if err := s.client.Del(ctx, s.redisKey(token)).Err(); err != nil && !errors.Is(err, redis.Nil) {
		return err
	}
	return nil
}

func (s *TokenStore) redisKey(token string) string {
	return "gapal:token:" + token
}

func generateToken() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}

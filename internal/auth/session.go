package auth

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/gorilla/securecookie"
	"github.com/redis/go-redis/v9"
)

// SessionStore keeps server-side sessions created by the OAuth callback.
type SessionStore interface {
	Create(ctx context.Context, userID string) (string, error)
	Lookup(ctx context.Context, token string) (string, error)
	Destroy(ctx context.Context, token string) error
}

// RedisSessionStore stores sessions under session:<id>. The cookie value is the
// id encoded by securecookie, so forged ids are rejected before touching Redis.
type RedisSessionStore struct {
	client redis.Cmdable
	codec  *securecookie.SecureCookie
	ttl    time.Duration
}

// NewRedisSessionStore creates a session store with a sliding ttl.
func NewRedisSessionStore(client redis.Cmdable, secret string, ttl time.Duration) *RedisSessionStore {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &RedisSessionStore{client: client, codec: newSessionCodec(secret), ttl: ttl}
}

// Expiry is enforced by the Redis ttl, not by the cookie timestamp.
func newSessionCodec(secret string) *securecookie.SecureCookie {
	return securecookie.New([]byte(secret), nil).
		SetSerializer(securecookie.JSONEncoder{}).
		MaxAge(0)
}

type sessionData struct {
	UserID    string    `json:"user_id"`
	CreatedAt time.Time `json:"created_at"`
}

func sessionKey(id string) string { return "session:" + id }

// Create opens a session for userID and returns the signed cookie value.
func (s *RedisSessionStore) Create(ctx context.Context, userID string) (string, error) {
	id, err := randomToken(24)
	if err != nil {
		return "", err
	}
	data, err := json.Marshal(sessionData{UserID: userID, CreatedAt: time.Now().UTC()})
	if err != nil {
		return "", err
	}
	if err := s.client.Set(ctx, sessionKey(id), data, s.ttl).Err(); err != nil {
		return "", fmt.Errorf("store session: %w", err)
	}
	signed, err := s.codec.Encode(SessionCookie, id)
	if err != nil {
		return "", fmt.Errorf("encode session: %w", err)
	}
	return signed, nil
}

// Lookup resolves a signed session token to a user id and extends its ttl.
func (s *RedisSessionStore) Lookup(ctx context.Context, token string) (string, error) {
	id, ok := s.decode(token)
	if !ok {
		return "", ErrSessionNotFound
	}
	raw, err := s.client.Get(ctx, sessionKey(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return "", ErrSessionNotFound
	}
	if err != nil {
		return "", fmt.Errorf("load session: %w", err)
	}
	var data sessionData
	if err := json.Unmarshal(raw, &data); err != nil || data.UserID == "" {
		return "", ErrSessionNotFound
	}
	_ = s.client.Expire(ctx, sessionKey(id), s.ttl).Err()
	return data.UserID, nil
}

// Destroy removes the session. Unknown tokens are ignored.
func (s *RedisSessionStore) Destroy(ctx context.Context, token string) error {
	id, ok := s.decode(token)
	if !ok {
		return nil
	}
	return s.client.Del(ctx, sessionKey(id)).Err()
}

func (s *RedisSessionStore) decode(token string) (string, bool) {
	var id string
	if err := s.codec.Decode(SessionCookie, token, &id); err != nil || id == "" {
		return "", false
	}
	return id, true
}

func randomToken(n int) (string, error) {
	b := securecookie.GenerateRandomKey(n)
	if b == nil {
		return "", errors.New("generate token: no entropy")
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

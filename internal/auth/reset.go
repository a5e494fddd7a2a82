package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// ResetTokenStore issues single-use password reset tokens.
type ResetTokenStore interface {
	Issue(ctx context.Context, userID, email string, ttl time.Duration) (string, error)
	Consume(ctx context.Context, token string) (string, error)
}

// RedisResetStore keeps tokens under password_reset:<token>.
type RedisResetStore struct {
	client redis.Cmdable
}

func NewRedisResetStore(client redis.Cmdable) *RedisResetStore {
	return &RedisResetStore{client: client}
}

func resetKey(token string) string { return fmt.Sprintf("password_reset:%s", token) }

// Issue stores a fresh random token for userID.
func (s *RedisResetStore) Issue(ctx context.Context, userID, email string, ttl time.Duration) (string, error) {
	token, err := randomToken(32)
	if err != nil {
		return "", err
	}
	data, _ := json.Marshal(map[string]string{"user_id": userID, "email": email})
	if err := s.client.Set(ctx, resetKey(token), data, ttl).Err(); err != nil {
		return "", fmt.Errorf("store reset token: %w", err)
	}
	return token, nil
}

// Consume atomically reads and deletes a token, returning its user id.
func (s *RedisResetStore) Consume(ctx context.Context, token string) (string, error) {
	raw, err := s.client.GetDel(ctx, resetKey(token)).Bytes()
	if errors.Is(err, redis.Nil) {
		return "", ErrInvalidResetToken
	}
	if err != nil {
		return "", fmt.Errorf("get reset token: %w", err)
	}
	var data map[string]string
	if err := json.Unmarshal(raw, &data); err != nil || data["user_id"] == "" {
		return "", ErrInvalidResetToken
	}
	return data["user_id"], nil
}

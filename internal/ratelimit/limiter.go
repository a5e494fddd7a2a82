// Package ratelimit implements a fixed-window request limiter backed by Redis.
package ratelimit

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	httperrors "github.com/zart/quizzer/pkg/http/errors"
)

// Counter increments the hit count of key inside a window that starts on the
// first hit, returning the new count and the time left in the window.
type Counter interface {
	Hit(ctx context.Context, key string, window time.Duration) (int64, time.Duration, error)
}

// RedisCounter implements Counter with INCR and EXPIRE NX in one pipeline.
type RedisCounter struct {
	rdb    redis.Cmdable
	prefix string
}

func NewRedisCounter(rdb redis.Cmdable, prefix string) *RedisCounter {
	if prefix == "" {
		prefix = "rl:"
	}
	return &RedisCounter{rdb: rdb, prefix: prefix}
}

func (c *RedisCounter) Hit(ctx context.Context, key string, window time.Duration) (int64, time.Duration, error) {
	k := c.prefix + key
	pipe := c.rdb.TxPipeline()
	incr := pipe.Incr(ctx, k)
	pipe.ExpireNX(ctx, k, window)
	ttl := pipe.PTTL(ctx, k)
	if _, err := pipe.Exec(ctx); err != nil {
		return 0, 0, fmt.Errorf("rate limit hit %s: %w", k, err)
	}
	left := ttl.Val()
	if left < 0 {
		left = window
	}
	return incr.Val(), left, nil
}

// Limiter allows Limit requests per Window for each client address.
type Limiter struct {
	counter Counter
	limit   int
	window  time.Duration
	logger  zerolog.Logger
}

func New(counter Counter, limit int, window time.Duration, logger zerolog.Logger) *Limiter {
	return &Limiter{
		counter: counter,
		limit:   limit,
		window:  window,
		logger:  logger.With().Str("component", "ratelimit").Logger(),
	}
}

// Middleware limits requests under scope. A Redis failure lets the request through.
func (l *Limiter) Middleware(scope string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if l == nil || l.limit <= 0 {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := scope + ":" + clientIP(r)
			count, left, err := l.counter.Hit(r.Context(), key, l.window)
			if err != nil {
				l.logger.Warn().Err(err).Str("key", key).Msg("rate limiter unavailable")
				next.ServeHTTP(w, r)
				return
			}

			remaining := max(int64(l.limit)-count, 0)
			w.Header().Set("X-RateLimit-Limit", strconv.Itoa(l.limit))
			w.Header().Set("X-RateLimit-Remaining", strconv.FormatInt(remaining, 10))
			if count > int64(l.limit) {
				secs := int((left + time.Second - 1) / time.Second)
				w.Header().Set("Retry-After", strconv.Itoa(max(secs, 1)))
				httperrors.RespondError(w, http.StatusTooManyRequests, httperrors.ErrCodeRateLimited, "Too many requests, try again later")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// clientIP expects chi's RealIP middleware to have rewritten RemoteAddr.
func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

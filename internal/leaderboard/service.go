package leaderboard

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	ws "github.com/zart/quizzer/pkg/http/ws"
)

// Supported leaderboard windows.
const (
	WindowWeekly  = "weekly"
	WindowMonthly = "monthly"
	WindowAllTime = "all_time"
)

var (
	defaultWindows = []string{WindowWeekly, WindowMonthly, WindowAllTime}

	// ErrUnknownWindow is returned for windows other than the supported ones.
	ErrUnknownWindow = errors.New("unknown leaderboard window")
)

// Bounded windows keep their key for one full period after it closes.
var windowTTL = map[string]time.Duration{
	WindowWeekly:  14 * 24 * time.Hour,
	WindowMonthly: 62 * 24 * time.Hour,
}

// Entry is one ranked user.
type Entry struct {
	UserID   string  `json:"userId"`
	Username string  `json:"username"`
	Points   float64 `json:"points"`
}

// ServiceOptions configures leaderboard service behavior.
type ServiceOptions struct {
	TopN           int
	BroadcastTopN  int
	PubSubChannel  string
	RedisKeyPrefix string
}

// Service keeps points per window in Redis sorted sets and emits updates over
// Pub/Sub.
type Service struct {
	redis         redis.Cmdable
	logger        zerolog.Logger
	topN          int
	broadcastTopN int
	pubsubChannel string
	prefix        string
	now           func() time.Time
}

// NewService constructs a leaderboard service instance.
func NewService(rdb redis.Cmdable, logger zerolog.Logger, opts ServiceOptions) *Service {
	topN := opts.TopN
	if topN <= 0 {
		topN = 100
	}
	broadcast := opts.BroadcastTopN
	if broadcast <= 0 {
		broadcast = 10
	}
	channel := opts.PubSubChannel
	if channel == "" {
		channel = "lb:updates"
	}
	prefix := opts.RedisKeyPrefix
	if prefix == "" {
		prefix = "lb"
	}

	return &Service{
		redis:         rdb,
		logger:        logger.With().Str("component", "leaderboard").Logger(),
		topN:          topN,
		broadcastTopN: broadcast,
		pubsubChannel: channel,
		prefix:        prefix,
		now:           func() time.Time { return time.Now().UTC() },
	}
}

// IsValidWindow reports whether window is supported.
func IsValidWindow(window string) bool {
	switch window {
	case WindowWeekly, WindowMonthly, WindowAllTime:
		return true
	default:
		return false
	}
}

// RecordPoints adds points to every window and publishes the new top.
func (s *Service) RecordPoints(ctx context.Context, userID, username string, points int) error {
	if points <= 0 {
		return nil
	}
	now := s.now()

	pipe := s.redis.TxPipeline()
	for _, window := range defaultWindows {
		key := s.leaderboardKey(window, now)
		pipe.ZIncrBy(ctx, key, float64(points), userID)
		if ttl := windowTTL[window]; ttl > 0 {
			pipe.Expire(ctx, key, ttl)
		}
	}
	pipe.HSet(ctx, s.namesKey(), userID, username)

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("update leaderboard: %w", err)
	}

	go s.publishUpdate(context.WithoutCancel(ctx))
	return nil
}

// Top retrieves up to limit entries for window, highest first.
func (s *Service) Top(ctx context.Context, window string, limit int) ([]Entry, error) {
	if !IsValidWindow(window) {
		return nil, ErrUnknownWindow
	}
	if limit <= 0 || limit > s.topN {
		limit = s.topN
	}

	results, err := s.redis.ZRevRangeWithScores(ctx, s.leaderboardKey(window, s.now()), 0, int64(limit-1)).Result()
	if err != nil {
		return nil, fmt.Errorf("fetch leaderboard: %w", err)
	}
	if len(results) == 0 {
		return []Entry{}, nil
	}

	ids := make([]string, len(results))
	for i, z := range results {
		ids[i], _ = z.Member.(string)
	}
	names, err := s.redis.HMGet(ctx, s.namesKey(), ids...).Result()
	if err != nil {
		s.logger.Warn().Err(err).Msg("failed to read leaderboard names")
		names = make([]any, len(ids))
	}

	entries := make([]Entry, len(results))
	for i, z := range results {
		name, _ := names[i].(string)
		entries[i] = Entry{UserID: ids[i], Username: name, Points: z.Score}
	}
	return entries, nil
}

// RemoveUser drops a user from the current windows, used on account deletion.
func (s *Service) RemoveUser(ctx context.Context, userID string) error {
	now := s.now()
	pipe := s.redis.TxPipeline()
	for _, window := range defaultWindows {
		pipe.ZRem(ctx, s.leaderboardKey(window, now), userID)
	}
	pipe.HDel(ctx, s.namesKey(), userID)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("remove from leaderboard: %w", err)
	}
	return nil
}

func (s *Service) publishUpdate(ctx context.Context) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	for _, window := range defaultWindows {
		entries, err := s.Top(ctx, window, s.broadcastTopN)
		if err != nil {
			s.logger.Warn().Err(err).Str("window", window).Msg("failed to collect leaderboard update")
			continue
		}
		data, err := json.Marshal(ws.LeaderboardUpdatePayload{Window: window, Top: toWSEntries(entries)})
		if err != nil {
			s.logger.Warn().Err(err).Msg("failed to marshal leaderboard update")
			continue
		}
		if err := s.redis.Publish(ctx, s.pubsubChannel, data).Err(); err != nil {
			s.logger.Warn().Err(err).Msg("failed to publish leaderboard update")
		}
	}
}

func (s *Service) leaderboardKey(window string, at time.Time) string {
	return fmt.Sprintf("%s:%s", s.prefix, periodKey(window, at))
}

func (s *Service) namesKey() string {
	return s.prefix + ":names"
}

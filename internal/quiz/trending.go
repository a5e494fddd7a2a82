package quiz

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/zart/quizzer/internal/db/repository"
	"github.com/zart/quizzer/internal/models"
)

const (
	trendingKey         = "quizzes:trending"
	defaultTrendingTTL  = 30 * time.Minute
	defaultTrendingTick = 10 * time.Minute
)

// TrendingCache stores the ranked ids of trending quizzes.
type TrendingCache interface {
	// Get returns ok=false on a cache miss.
	Get(ctx context.Context) (ids []string, ok bool, err error)
	Set(ctx context.Context, ids []string) error
}

// RedisTrendingCache keeps the trending ids as one JSON value.
type RedisTrendingCache struct {
	client redis.Cmdable
	ttl    time.Duration
}

var _ TrendingCache = (*RedisTrendingCache)(nil)

func NewRedisTrendingCache(client redis.Cmdable, ttl time.Duration) *RedisTrendingCache {
	if ttl <= 0 {
		ttl = defaultTrendingTTL
	}
	return &RedisTrendingCache{client: client, ttl: ttl}
}

func (c *RedisTrendingCache) Get(ctx context.Context) ([]string, bool, error) {
	data, err := c.client.Get(ctx, trendingKey).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	var ids []string
	if err := json.Unmarshal(data, &ids); err != nil {
		return nil, false, err
	}
	return ids, true, nil
}

func (c *RedisTrendingCache) Set(ctx context.Context, ids []string) error {
	if ids == nil {
		ids = []string{}
	}
	data, err := json.Marshal(ids)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, trendingKey, data, c.ttl).Err()
}

// Trending lists public quizzes with the most attempts in the trending window.
// With no recent attempts it falls back to the most attempted public quizzes.
func (s *Service) Trending(ctx context.Context, limit int) ([]models.QuizSummary, error) {
	if limit <= 0 || limit > s.opts.TrendingSize {
		limit = s.opts.TrendingSize
	}

	var ids []string
	cached := false
	if s.deps.Trending != nil {
		var err error
		ids, cached, err = s.deps.Trending.Get(ctx)
		if err != nil {
			s.logger.Warn().Err(err).Msg("trending cache read failed")
		}
	}
	if !cached {
		var err error
		if ids, err = s.RefreshTrending(ctx); err != nil {
			return nil, err
		}
	}

	summaries, err := s.summariesByIDs(ctx, "", ids)
	if err != nil {
		return nil, err
	}
	if len(summaries) == 0 {
		page, err := s.Explore(ctx, ListParams{Sort: repository.SortPopular, Limit: limit})
		if err != nil {
			return nil, err
		}
		return page.Quizzes, nil
	}
	return summaries[:min(limit, len(summaries))], nil
}

// RefreshTrending recomputes the ranking and writes it to the cache.
func (s *Service) RefreshTrending(ctx context.Context) ([]string, error) {
	since := s.now().Add(-s.opts.TrendingWindow)
	counts, err := s.attempts.TopQuizzesSince(ctx, since, s.opts.TrendingSize*2)
	if err != nil {
		return nil, fmt.Errorf("trending counts: %w", err)
	}
	ids := make([]string, 0, len(counts))
	for _, c := range counts {
		ids = append(ids, c.QuizID)
	}

	quizzes, err := s.quizzes.ListByIDs(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("trending quizzes: %w", err)
	}
	ranked := make([]string, 0, s.opts.TrendingSize)
	for _, q := range orderByIDs(quizzes, ids) {
		if q.IsPublic && len(ranked) < s.opts.TrendingSize {
			ranked = append(ranked, q.ID)
		}
	}

	if s.deps.Trending != nil {
		if err := s.deps.Trending.Set(ctx, ranked); err != nil {
			s.logger.Warn().Err(err).Msg("trending cache write failed")
		}
	}
	return ranked, nil
}

// TrendingWorker refreshes the trending cache on a fixed interval.
type TrendingWorker struct {
	service  *Service
	interval time.Duration
	timeout  time.Duration
	logger   zerolog.Logger
}

func NewTrendingWorker(service *Service, interval time.Duration, logger zerolog.Logger) *TrendingWorker {
	if interval <= 0 {
		interval = defaultTrendingTick
	}
	return &TrendingWorker{
		service:  service,
		interval: interval,
		timeout:  30 * time.Second,
		logger:   logger.With().Str("component", "trending_worker").Logger(),
	}
}

// Run refreshes once immediately and then on every tick until ctx is done.
func (w *TrendingWorker) Run(ctx context.Context) error {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	w.refresh(ctx)
	for {
		select {
		case <-ctx.Done():
			w.logger.Info().Msg("trending worker stopping")
			return nil
		case <-ticker.C:
			w.refresh(ctx)
		}
	}
}

func (w *TrendingWorker) refresh(ctx context.Context) {
	ctx, cancel := context.WithTimeout(ctx, w.timeout)
	defer cancel()
	ids, err := w.service.RefreshTrending(ctx)
	if err != nil {
		w.logger.Warn().Err(err).Msg("trending refresh failed")
		return
	}
	w.logger.Debug().Int("quizzes", len(ids)).Msg("trending refreshed")
}

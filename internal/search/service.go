// Package search tracks how often normalized search strings are used.
package search

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/zart/quizzer/internal/db/repository"
	"github.com/zart/quizzer/internal/models"
)

const (
	DefaultPopularLimit = 10
	MaxPopularLimit     = 50
	MaxQueryLength      = 200
)

// Tracker counts search queries.
type Tracker struct {
	store  repository.SearchQueryStore
	now    func() time.Time
	logger zerolog.Logger
}

func NewTracker(store repository.SearchQueryStore, logger zerolog.Logger) *Tracker {
	return &Tracker{
		store:  store,
		now:    func() time.Time { return time.Now().UTC() },
		logger: logger.With().Str("component", "search").Logger(),
	}
}

// Record bumps the counter of the normalized query and returns the normalized
// form. Blank queries are ignored.
func (t *Tracker) Record(ctx context.Context, raw string) (string, error) {
	q := models.NormalizeQuery(raw)
	if q == "" {
		return "", nil
	}
	if len(q) > MaxQueryLength {
		q = q[:MaxQueryLength]
	}
	if err := t.store.Record(ctx, q, t.now()); err != nil {
		return q, fmt.Errorf("record search %q: %w", q, err)
	}
	return q, nil
}

// Popular returns the most used queries, highest count first.
func (t *Tracker) Popular(ctx context.Context, limit int) ([]models.SearchQuery, error) {
	if limit <= 0 {
		limit = DefaultPopularLimit
	}
	limit = min(limit, MaxPopularLimit)
	out, err := t.store.Popular(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("popular searches: %w", err)
	}
	if out == nil {
		out = []models.SearchQuery{}
	}
	return out, nil
}

package quiz

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"github.com/zart/quizzer/internal/db/repository"
	"github.com/zart/quizzer/internal/models"
)

const (
	recentLimit       = 10
	recommendedLimit  = 10
	recommendHistory  = 20
	recommendPoolSize = 50
)

// Explore lists public quizzes with paging, sort and filters.
func (s *Service) Explore(ctx context.Context, params ListParams) (*Page, error) {
	return s.page(ctx, repository.QuizFilter{PublicOnly: true}, params)
}

// Search records the query and lists public quizzes matching it.
func (s *Service) Search(ctx context.Context, params ListParams) (*Page, error) {
	q := models.NormalizeQuery(params.Query)
	if q == "" {
		return nil, ErrEmptyQuery
	}
	if s.deps.Searches != nil {
		if _, err := s.deps.Searches.Record(ctx, params.Query); err != nil {
			s.logger.Warn().Err(err).Msg("failed to record search")
		}
	}
	return s.page(ctx, repository.QuizFilter{PublicOnly: true, Search: q}, params)
}

// ByUser lists a user's quizzes. Private ones are included only for the owner.
func (s *Service) ByUser(ctx context.Context, callerID, userID string, params ListParams) (*Page, error) {
	return s.page(ctx, repository.QuizFilter{
		CreatedBy:  userID,
		PublicOnly: callerID != userID,
	}, params)
}

func (s *Service) page(ctx context.Context, filter repository.QuizFilter, params ListParams) (*Page, error) {
	pageNum, limit := pageBounds(params.Page, params.Limit)
	filter.Difficulty = params.Difficulty
	filter.QuizType = params.QuizType
	filter.Tag = strings.ToLower(strings.TrimSpace(params.Tag))
	filter.Sort = sortOrDefault(params.Sort)
	filter.Offset = int64((pageNum - 1) * limit)
	filter.Limit = int64(limit)

	quizzes, total, err := s.quizzes.List(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("list quizzes: %w", err)
	}
	return &Page{
		Quizzes:    models.Summaries(quizzes),
		Total:      total,
		Page:       pageNum,
		Limit:      limit,
		TotalPages: (total + int64(limit) - 1) / int64(limit),
	}, nil
}

// Recent lists quizzes the user attempted, most recent first, without repeats.
func (s *Service) Recent(ctx context.Context, userID string) ([]models.QuizSummary, error) {
	ids, err := s.attempts.RecentQuizIDs(ctx, userID, recentLimit)
	if err != nil {
		return nil, fmt.Errorf("recent quiz ids: %w", err)
	}
	return s.summariesByIDs(ctx, userID, ids)
}

// Saved lists the user's bookmarked quizzes that are still visible to them.
func (s *Service) Saved(ctx context.Context, userID string) ([]models.QuizSummary, error) {
	ids, err := s.saved.ListQuizIDs(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("saved quiz ids: %w", err)
	}
	return s.summariesByIDs(ctx, userID, ids)
}

// Recommended suggests public quizzes by other users that match the
// difficulties and topics the user has attempted, falling back to top rated.
func (s *Service) Recommended(ctx context.Context, userID string) ([]models.QuizSummary, error) {
	history, _, err := s.attempts.ListByUser(ctx, userID, 0, recommendHistory)
	if err != nil {
		return nil, fmt.Errorf("attempt history: %w", err)
	}

	attempted := make(map[string]bool, len(history))
	ids := make([]string, 0, len(history))
	for _, a := range history {
		if !attempted[a.QuizID] {
			attempted[a.QuizID] = true
			ids = append(ids, a.QuizID)
		}
	}
	past, err := s.quizzes.ListByIDs(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("attempted quizzes: %w", err)
	}
	var difficulties []string
	words := map[string]bool{}
	for _, q := range past {
		if !slices.Contains(difficulties, q.Difficulty) {
			difficulties = append(difficulties, q.Difficulty)
		}
		for _, w := range topicWords(q.Topic) {
			words[w] = true
		}
	}

	out := make([]models.Quiz, 0, recommendedLimit)
	seen := map[string]bool{}
	collect := func(filter repository.QuizFilter) error {
		filter.PublicOnly = true
		filter.ExcludeUser = userID
		filter.Sort = repository.SortRating
		filter.Limit = recommendPoolSize
		pool, _, err := s.quizzes.List(ctx, filter)
		if err != nil {
			return fmt.Errorf("recommendation pool: %w", err)
		}
		pool = slices.DeleteFunc(pool, func(q models.Quiz) bool { return attempted[q.ID] || seen[q.ID] })
		slices.SortStableFunc(pool, func(a, b models.Quiz) int {
			return topicOverlap(b.Topic, words) - topicOverlap(a.Topic, words)
		})
		for _, q := range pool {
			if len(out) == recommendedLimit {
				break
			}
			seen[q.ID] = true
			out = append(out, q)
		}
		return nil
	}

	if len(difficulties) > 0 {
		if err := collect(repository.QuizFilter{Difficulties: difficulties}); err != nil {
			return nil, err
		}
	}
	if len(out) < recommendedLimit {
		if err := collect(repository.QuizFilter{}); err != nil {
			return nil, err
		}
	}
	return models.Summaries(out), nil
}

// History pages through the user's attempts, newest first.
func (s *Service) History(ctx context.Context, userID string, page, limit int) (*History, error) {
	page, limit = pageBounds(page, limit)
	attempts, total, err := s.attempts.ListByUser(ctx, userID, int64((page-1)*limit), int64(limit))
	if err != nil {
		return nil, fmt.Errorf("list attempts: %w", err)
	}

	ids := make([]string, 0, len(attempts))
	for _, a := range attempts {
		if !slices.Contains(ids, a.QuizID) {
			ids = append(ids, a.QuizID)
		}
	}
	quizzes, err := s.quizzes.ListByIDs(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("history quizzes: %w", err)
	}
	byID := make(map[string]models.QuizSummary, len(quizzes))
	for i := range quizzes {
		byID[quizzes[i].ID] = quizzes[i].Summary()
	}

	out := &History{Attempts: make([]HistoryEntry, 0, len(attempts)), Total: total, Page: page, Limit: limit}
	for _, a := range attempts {
		entry := HistoryEntry{QuizAttempt: a, Percentage: a.Percentage()}
		if sum, ok := byID[a.QuizID]; ok {
			entry.Quiz = &sum
		}
		out.Attempts = append(out.Attempts, entry)
	}
	return out, nil
}

// summariesByIDs loads quizzes in the order of ids, skipping missing and hidden ones.
func (s *Service) summariesByIDs(ctx context.Context, userID string, ids []string) ([]models.QuizSummary, error) {
	if len(ids) == 0 {
		return []models.QuizSummary{}, nil
	}
	quizzes, err := s.quizzes.ListByIDs(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("load quizzes: %w", err)
	}
	ordered := orderByIDs(quizzes, ids)
	ordered = slices.DeleteFunc(ordered, func(q models.Quiz) bool { return !canView(&q, userID) })
	return models.Summaries(ordered), nil
}

func orderByIDs(quizzes []models.Quiz, ids []string) []models.Quiz {
	byID := make(map[string]models.Quiz, len(quizzes))
	for _, q := range quizzes {
		byID[q.ID] = q
	}
	out := make([]models.Quiz, 0, len(ids))
	for _, id := range ids {
		if q, ok := byID[id]; ok {
			out = append(out, q)
		}
	}
	return out
}

func pageBounds(page, limit int) (int, int) {
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = DefaultPageSize
	}
	return page, min(limit, MaxPageSize)
}

func sortOrDefault(sortBy string) string {
	switch sortBy {
	case repository.SortNewest, repository.SortOldest, repository.SortPopular, repository.SortRating:
		return sortBy
	default:
		return repository.SortNewest
	}
}

// IsValidSort reports whether sortBy is accepted by list endpoints.
func IsValidSort(sortBy string) bool {
	return sortBy == "" || sortOrDefault(sortBy) == sortBy
}

func topicWords(topic string) []string {
	var out []string
	for _, w := range strings.Fields(models.NormalizeQuery(topic)) {
		if len(w) > 2 {
			out = append(out, w)
		}
	}
	return out
}

func topicOverlap(topic string, words map[string]bool) int {
	n := 0
	for _, w := range topicWords(topic) {
		if words[w] {
			n++
		}
	}
	return n
}

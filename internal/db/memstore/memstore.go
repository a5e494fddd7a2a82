// Package memstore is an in-process implementation of the repository stores,
// used by tests and by STORE_DRIVER=memory for local development.
package memstore

import (
	"cmp"
	"context"
	"fmt"
	"slices"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/zart/quizzer/internal/db/repository"
	"github.com/zart/quizzer/internal/models"
)

type db struct {
	mu       sync.RWMutex
	users    map[string]models.User
	quizzes  map[string]models.Quiz
	prompts  map[string]models.QuizPrompt
	attempts []models.QuizAttempt
	ratings  map[[2]string]models.QuizRating
	saved    []models.SavedQuiz
	searches map[string]models.SearchQuery
	profiles map[string]models.Profile
	stats    map[string]models.UserStats
}

// New returns an empty store bundle.
func New() *repository.Stores {
	d := &db{
		users:    map[string]models.User{},
		quizzes:  map[string]models.Quiz{},
		prompts:  map[string]models.QuizPrompt{},
		ratings:  map[[2]string]models.QuizRating{},
		searches: map[string]models.SearchQuery{},
		profiles: map[string]models.Profile{},
		stats:    map[string]models.UserStats{},
	}
	return &repository.Stores{
		Users:    (*userStore)(d),
		Quizzes:  (*quizStore)(d),
		Prompts:  (*promptStore)(d),
		Attempts: (*attemptStore)(d),
		Ratings:  (*ratingStore)(d),
		Saved:    (*savedStore)(d),
		Searches: (*searchStore)(d),
		Profiles: (*profileStore)(d),
		Stats:    (*statsStore)(d),
		Ping:     func(context.Context) error { return nil },
		Close:    func(context.Context) error { return nil },
	}
}

type userStore db

func (s *userStore) conflict(u *models.User) error {
	for id, other := range s.users {
		if id == u.ID {
			continue
		}
		switch {
		case other.Username == u.Username:
			return fmt.Errorf("%w: username", repository.ErrDuplicate)
		case u.Email != nil && other.EmailValue() == *u.Email:
			return fmt.Errorf("%w: email", repository.ErrDuplicate)
		}
		for _, p := range u.LinkedProviders() {
			if other.ProviderID(p) == u.ProviderID(p) {
				return fmt.Errorf("%w: %s id", repository.ErrDuplicate, p)
			}
		}
	}
	return nil
}

func (s *userStore) Create(_ context.Context, u *models.User) error {
	if err := u.Validate(); err != nil {
		return fmt.Errorf("validate user: %w", err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.users[u.ID]; ok {
		return fmt.Errorf("%w: id", repository.ErrDuplicate)
	}
	if err := s.conflict(u); err != nil {
		return err
	}
	s.users[u.ID] = *u
	return nil
}

func (s *userStore) find(match func(models.User) bool) (*models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, u := range s.users {
		if match(u) {
			return &u, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (s *userStore) GetByID(_ context.Context, id string) (*models.User, error) {
	return s.find(func(u models.User) bool { return u.ID == id })
}

func (s *userStore) GetByEmail(_ context.Context, email string) (*models.User, error) {
	return s.find(func(u models.User) bool { return u.Email != nil && *u.Email == email })
}

func (s *userStore) GetByUsername(_ context.Context, username string) (*models.User, error) {
	return s.find(func(u models.User) bool { return u.Username == username })
}

func (s *userStore) GetByProviderID(_ context.Context, provider, providerID string) (*models.User, error) {
	return s.find(func(u models.User) bool { return providerID != "" && u.ProviderID(provider) == providerID })
}

func (s *userStore) Update(_ context.Context, u *models.User) error {
	if err := u.Validate(); err != nil {
		return fmt.Errorf("validate user: %w", err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.users[u.ID]; !ok {
		return repository.ErrNotFound
	}
	if err := s.conflict(u); err != nil {
		return err
	}
	s.users[u.ID] = *u
	return nil
}

func (s *userStore) mutate(id string, fn func(*models.User)) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return repository.ErrNotFound
	}
	fn(&u)
	s.users[id] = u
	return nil
}

func (s *userStore) UpdateLastLogin(_ context.Context, id string, at time.Time) error {
	return s.mutate(id, func(u *models.User) {
		u.LastLogin = &at
		u.UpdatedAt = at
	})
}

func (s *userStore) UpdatePassword(_ context.Context, id, hash string, at time.Time) error {
	return s.mutate(id, func(u *models.User) {
		u.PasswordHash = hash
		u.PasswordChangedAt = &at
		u.UpdatedAt = at
	})
}

func (s *userStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.users[id]; !ok {
		return repository.ErrNotFound
	}
	delete(s.users, id)
	return nil
}

func (s *userStore) Count(context.Context) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return int64(len(s.users)), nil
}

type quizStore db

func (s *quizStore) Create(_ context.Context, q *models.Quiz) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.quizzes[q.ID]; ok {
		return fmt.Errorf("%w: id", repository.ErrDuplicate)
	}
	s.quizzes[q.ID] = cloneQuiz(*q)
	return nil
}

func cloneQuiz(q models.Quiz) models.Quiz {
	q.Questions = slices.Clone(q.Questions)
	q.Tags = slices.Clone(q.Tags)
	return q
}

func (s *quizStore) GetByID(_ context.Context, id string) (*models.Quiz, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	q, ok := s.quizzes[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	q = cloneQuiz(q)
	return &q, nil
}

func (s *quizStore) Update(_ context.Context, id string, p repository.QuizPatch) (*models.Quiz, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	q, ok := s.quizzes[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	if p.Topic != nil {
		q.Topic = *p.Topic
	}
	if p.Description != nil {
		q.Description = *p.Description
	}
	if p.IsPublic != nil {
		q.IsPublic = *p.IsPublic
	}
	if p.IsTimed != nil {
		q.IsTimed = *p.IsTimed
	}
	if p.TimeLimit != nil {
		q.TimeLimit = *p.TimeLimit
	}
	if p.Tags != nil {
		q.Tags = slices.Clone(p.Tags)
	}
	if p.Questions != nil {
		q.Questions = slices.Clone(p.Questions)
	}
	q.UpdatedAt = time.Now().UTC()
	s.quizzes[id] = q
	out := cloneQuiz(q)
	return &out, nil
}

func (s *quizStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.quizzes[id]; !ok {
		return repository.ErrNotFound
	}
	delete(s.quizzes, id)
	return nil
}

func (s *quizStore) DeleteByCreator(_ context.Context, userID string) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var ids []string
	for id, q := range s.quizzes {
		if q.CreatedBy == userID {
			ids = append(ids, id)
			delete(s.quizzes, id)
		}
	}
	sort.Strings(ids)
	return ids, nil
}

func matchesQuiz(q models.Quiz, f repository.QuizFilter) bool {
	if f.PublicOnly && !q.IsPublic {
		return false
	}
	if f.CreatedBy != "" && q.CreatedBy != f.CreatedBy {
		return false
	}
	if f.CreatedBy == "" && f.ExcludeUser != "" && q.CreatedBy == f.ExcludeUser {
		return false
	}
	if f.Difficulty != "" && q.Difficulty != f.Difficulty {
		return false
	}
	if f.Difficulty == "" && len(f.Difficulties) > 0 && !slices.Contains(f.Difficulties, q.Difficulty) {
		return false
	}
	if f.QuizType != "" && q.QuizType != f.QuizType {
		return false
	}
	if f.Tag != "" && !slices.Contains(q.Tags, f.Tag) {
		return false
	}
	if f.Search != "" {
		needle := strings.ToLower(f.Search)
		hit := strings.Contains(strings.ToLower(q.Topic), needle) ||
			strings.Contains(strings.ToLower(q.Description), needle) ||
			slices.ContainsFunc(q.Tags, func(t string) bool { return strings.Contains(strings.ToLower(t), needle) })
		if !hit {
			return false
		}
	}
	return true
}

func lessQuiz(sortBy string) func(a, b models.Quiz) int {
	byNewest := func(a, b models.Quiz) int { return b.CreatedAt.Compare(a.CreatedAt) }
	switch sortBy {
	case repository.SortOldest:
		return func(a, b models.Quiz) int { return a.CreatedAt.Compare(b.CreatedAt) }
	case repository.SortPopular:
		return func(a, b models.Quiz) int {
			if a.AttemptCount != b.AttemptCount {
				return cmp.Compare(b.AttemptCount, a.AttemptCount)
			}
			return byNewest(a, b)
		}
	case repository.SortRating:
		return func(a, b models.Quiz) int {
			if c := cmp.Compare(b.RatingAverage, a.RatingAverage); c != 0 {
				return c
			}
			if c := cmp.Compare(b.RatingCount, a.RatingCount); c != 0 {
				return c
			}
			return byNewest(a, b)
		}
	default:
		return byNewest
	}
}

func (s *quizStore) List(_ context.Context, f repository.QuizFilter) ([]models.Quiz, int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	matched := make([]models.Quiz, 0)
	for _, q := range s.quizzes {
		if matchesQuiz(q, f) {
			matched = append(matched, cloneQuiz(q))
		}
	}
	slices.SortStableFunc(matched, lessQuiz(f.Sort))
	total := int64(len(matched))
	return page(matched, f.Offset, f.Limit), total, nil
}

func page[T any](items []T, offset, limit int64) []T {
	if offset >= int64(len(items)) {
		return []T{}
	}
	items = items[offset:]
	if limit > 0 && limit < int64(len(items)) {
		items = items[:limit]
	}
	return items
}

func (s *quizStore) ListByIDs(_ context.Context, ids []string) ([]models.Quiz, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]models.Quiz, 0, len(ids))
	for _, id := range ids {
		if q, ok := s.quizzes[id]; ok {
			out = append(out, cloneQuiz(q))
		}
	}
	return out, nil
}

func (s *quizStore) Count(context.Context) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return int64(len(s.quizzes)), nil
}

func (s *quizStore) IncrementAttemptCount(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	q, ok := s.quizzes[id]
	if !ok {
		return repository.ErrNotFound
	}
	q.AttemptCount++
	s.quizzes[id] = q
	return nil
}

func (s *quizStore) SetRatingStats(_ context.Context, id string, stats models.RatingStats) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	q, ok := s.quizzes[id]
	if !ok {
		return repository.ErrNotFound
	}
	q.RatingCount = stats.Count
	q.RatingAverage = stats.Average
	s.quizzes[id] = q
	return nil
}

type promptStore db

func (s *promptStore) Create(_ context.Context, p *models.QuizPrompt) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.prompts[p.ID] = *p
	return nil
}

func (s *promptStore) GetByID(_ context.Context, id string) (*models.QuizPrompt, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.prompts[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &p, nil
}

func (s *promptStore) DeleteByUser(_ context.Context, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, p := range s.prompts {
		if p.UserID == userID {
			delete(s.prompts, id)
		}
	}
	return nil
}

package memstore

import (
	"cmp"
	"context"
	"slices"
	"time"

	"github.com/google/uuid"

	"github.com/zart/quizzer/internal/db/repository"
	"github.com/zart/quizzer/internal/models"
)

type attemptStore db

func (s *attemptStore) Create(_ context.Context, a *models.QuizAttempt) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *a
	cp.Answers = slices.Clone(a.Answers)
	s.attempts = append(s.attempts, cp)
	return nil
}

func (s *attemptStore) GetByID(_ context.Context, id string) (*models.QuizAttempt, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, a := range s.attempts {
		if a.ID == id {
			return &a, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (s *attemptStore) byUserNewestFirst(userID string) []models.QuizAttempt {
	var out []models.QuizAttempt
	for _, a := range s.attempts {
		if a.UserID == userID {
			out = append(out, a)
		}
	}
	slices.SortStableFunc(out, func(a, b models.QuizAttempt) int { return b.SubmittedAt.Compare(a.SubmittedAt) })
	return out
}

func (s *attemptStore) ListByUser(_ context.Context, userID string, offset, limit int64) ([]models.QuizAttempt, int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	all := s.byUserNewestFirst(userID)
	return page(all, offset, limit), int64(len(all)), nil
}

func (s *attemptStore) RecentQuizIDs(_ context.Context, userID string, limit int) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	seen := map[string]bool{}
	ids := make([]string, 0)
	for _, a := range s.byUserNewestFirst(userID) {
		if seen[a.QuizID] {
			continue
		}
		seen[a.QuizID] = true
		ids = append(ids, a.QuizID)
		if len(ids) == limit {
			break
		}
	}
	return ids, nil
}

func (s *attemptStore) TopQuizzesSince(_ context.Context, since time.Time, limit int) ([]repository.QuizCount, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	counts := map[string]int64{}
	for _, a := range s.attempts {
		if !a.SubmittedAt.Before(since) {
			counts[a.QuizID]++
		}
	}
	out := make([]repository.QuizCount, 0, len(counts))
	for id, n := range counts {
		out = append(out, repository.QuizCount{QuizID: id, Count: n})
	}
	slices.SortFunc(out, func(a, b repository.QuizCount) int {
		if c := cmp.Compare(b.Count, a.Count); c != 0 {
			return c
		}
		return cmp.Compare(a.QuizID, b.QuizID)
	})
	return page(out, 0, int64(limit)), nil
}

func (s *attemptStore) DeleteByUser(_ context.Context, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.attempts = slices.DeleteFunc(s.attempts, func(a models.QuizAttempt) bool { return a.UserID == userID })
	return nil
}

func (s *attemptStore) Count(context.Context) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return int64(len(s.attempts)), nil
}

type ratingStore db

func (s *ratingStore) Upsert(_ context.Context, r *models.QuizRating) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := [2]string{r.UserID, r.QuizID}
	if existing, ok := s.ratings[key]; ok {
		existing.Rating = r.Rating
		existing.UpdatedAt = r.UpdatedAt
		s.ratings[key] = existing
		return nil
	}
	cp := *r
	if cp.ID == "" {
		cp.ID = uuid.NewString()
	}
	s.ratings[key] = cp
	return nil
}

func (s *ratingStore) Get(_ context.Context, userID, quizID string) (*models.QuizRating, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.ratings[[2]string{userID, quizID}]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &r, nil
}

func (s *ratingStore) Aggregate(_ context.Context, quizID string) (models.RatingStats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var stats models.RatingStats
	var sum int
	for _, r := range s.ratings {
		if r.QuizID == quizID {
			stats.Count++
			sum += r.Rating
		}
	}
	if stats.Count > 0 {
		stats.Average = float64(sum) / float64(stats.Count)
	}
	return stats, nil
}

func (s *ratingStore) QuizIDsByUser(_ context.Context, userID string) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ids := make([]string, 0)
	for key := range s.ratings {
		if key[0] == userID {
			ids = append(ids, key[1])
		}
	}
	slices.Sort(ids)
	return ids, nil
}

func (s *ratingStore) DeleteByUser(_ context.Context, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for key := range s.ratings {
		if key[0] == userID {
			delete(s.ratings, key)
		}
	}
	return nil
}

type savedStore db

func (s *savedStore) Save(_ context.Context, sq *models.SavedQuiz) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.saved {
		if existing.UserID == sq.UserID && existing.QuizID == sq.QuizID {
			return false, nil
		}
	}
	s.saved = append(s.saved, *sq)
	return true, nil
}

func (s *savedStore) Remove(_ context.Context, userID, quizID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	before := len(s.saved)
	s.saved = slices.DeleteFunc(s.saved, func(sq models.SavedQuiz) bool {
		return sq.UserID == userID && sq.QuizID == quizID
	})
	return len(s.saved) < before, nil
}

func (s *savedStore) ListQuizIDs(_ context.Context, userID string) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ids := make([]string, 0)
	for i := len(s.saved) - 1; i >= 0; i-- {
		if s.saved[i].UserID == userID {
			ids = append(ids, s.saved[i].QuizID)
		}
	}
	return ids, nil
}

func (s *savedStore) IsSaved(_ context.Context, userID, quizID string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.ContainsFunc(s.saved, func(sq models.SavedQuiz) bool {
		return sq.UserID == userID && sq.QuizID == quizID
	}), nil
}

func (s *savedStore) DeleteByUser(_ context.Context, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.saved = slices.DeleteFunc(s.saved, func(sq models.SavedQuiz) bool { return sq.UserID == userID })
	return nil
}

func (s *savedStore) DeleteByQuiz(_ context.Context, quizID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.saved = slices.DeleteFunc(s.saved, func(sq models.SavedQuiz) bool { return sq.QuizID == quizID })
	return nil
}

type searchStore db

func (s *searchStore) Record(_ context.Context, query string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	q, ok := s.searches[query]
	if !ok {
		q = models.SearchQuery{ID: uuid.NewString(), Query: query}
	}
	q.Count++
	q.LastSearched = at
	s.searches[query] = q
	return nil
}

func (s *searchStore) Popular(_ context.Context, limit int) ([]models.SearchQuery, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]models.SearchQuery, 0, len(s.searches))
	for _, q := range s.searches {
		out = append(out, q)
	}
	slices.SortFunc(out, func(a, b models.SearchQuery) int {
		if c := cmp.Compare(b.Count, a.Count); c != 0 {
			return c
		}
		return b.LastSearched.Compare(a.LastSearched)
	})
	return page(out, 0, int64(limit)), nil
}

type profileStore db

func (s *profileStore) Get(_ context.Context, userID string) (*models.Profile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.profiles[userID]
	if !ok {
		return nil, repository.ErrNotFound
	}
	p.Badges = slices.Clone(p.Badges)
	return &p, nil
}

func (s *profileStore) Upsert(_ context.Context, p *models.Profile) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	existing := s.profiles[p.UserID]
	cp := *p
	cp.Badges = existing.Badges
	s.profiles[p.UserID] = cp
	return nil
}

func (s *profileStore) AddBadge(_ context.Context, userID string, badge models.Badge) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.profiles[userID]
	if !ok {
		p = models.Profile{UserID: userID, UpdatedAt: badge.AwardedAt}
	}
	if p.HasBadge(badge.ID) {
		return false, nil
	}
	p.Badges = append(slices.Clone(p.Badges), badge)
	s.profiles[userID] = p
	return true, nil
}

func (s *profileStore) Delete(_ context.Context, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.profiles, userID)
	return nil
}

type statsStore db

func (s *statsStore) Get(_ context.Context, userID string) (*models.UserStats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	st, ok := s.stats[userID]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &st, nil
}

func (s *statsStore) Increment(_ context.Context, userID string, d models.StatsDelta, at time.Time) (*models.UserStats, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	st := s.stats[userID]
	st.UserID = userID
	st.QuizzesCreated += d.QuizzesCreated
	st.QuizzesCompleted += d.QuizzesCompleted
	st.TotalScore += d.TotalScore
	st.TotalQuestions += d.TotalQuestions
	st.TotalTimeSpent += d.TotalTimeSpent
	st.Points += d.Points
	st.BadgesEarned += d.BadgesEarned
	st.LastActivity = &at
	s.stats[userID] = st
	return &st, nil
}

func (s *statsStore) Delete(_ context.Context, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.stats, userID)
	return nil
}

var (
	_ repository.UserStore        = (*userStore)(nil)
	_ repository.QuizStore        = (*quizStore)(nil)
	_ repository.PromptStore      = (*promptStore)(nil)
	_ repository.AttemptStore     = (*attemptStore)(nil)
	_ repository.RatingStore      = (*ratingStore)(nil)
	_ repository.SavedQuizStore   = (*savedStore)(nil)
	_ repository.SearchQueryStore = (*searchStore)(nil)
	_ repository.ProfileStore     = (*profileStore)(nil)
	_ repository.StatsStore       = (*statsStore)(nil)
)

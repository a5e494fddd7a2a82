package quiz

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zart/quizzer/internal/db/memstore"
	"github.com/zart/quizzer/internal/db/repository"
	"github.com/zart/quizzer/internal/models"
	"github.com/zart/quizzer/internal/quiz/ai"
	"github.com/zart/quizzer/internal/quiz/scoring"
)

type stubGenerator struct {
	mu    sync.Mutex
	calls []ai.Request
	err   error
	raw   []ai.Question
}

func (g *stubGenerator) Generate(_ context.Context, req ai.Request) ([]ai.Question, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.calls = append(g.calls, req)
	if g.err != nil {
		return nil, g.err
	}
	if g.raw != nil {
		return g.raw, nil
	}
	out := make([]ai.Question, 0, req.Count)
	for i := range req.Count {
		out = append(out, ai.Question{
			Prompt:  fmt.Sprintf("%s question %d", req.Topic, i+1),
			Options: []string{"A", "B", "C", "D"},
			Answer:  "A",
		})
	}
	return out, nil
}

type recordedPoints struct {
	userID, username string
	points           int
}

type fakeCollaborators struct {
	mu       sync.Mutex
	created  []string
	attempts []*models.QuizAttempt
	points   []recordedPoints
	searches []string
	trending []string
	cached   bool
}

func (f *fakeCollaborators) RecordQuizCreated(_ context.Context, userID string) ([]models.Badge, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.created = append(f.created, userID)
	return []models.Badge{{ID: "first_quiz"}}, nil
}

func (f *fakeCollaborators) RecordAttempt(_ context.Context, a *models.QuizAttempt) ([]models.Badge, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.attempts = append(f.attempts, a)
	return nil, nil
}

func (f *fakeCollaborators) RecordPoints(_ context.Context, userID, username string, points int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.points = append(f.points, recordedPoints{userID, username, points})
	return nil
}

func (f *fakeCollaborators) Record(_ context.Context, raw string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	q := models.NormalizeQuery(raw)
	f.searches = append(f.searches, q)
	return q, nil
}

func (f *fakeCollaborators) Get(context.Context) ([]string, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.trending, f.cached, nil
}

func (f *fakeCollaborators) Set(_ context.Context, ids []string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.trending, f.cached = ids, true
	return nil
}

type fixture struct {
	svc    *Service
	stores *repository.Stores
	gen    *stubGenerator
	fakes  *fakeCollaborators
	alice  *models.User
	bob    *models.User
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	stores := memstore.New()
	fakes := &fakeCollaborators{}
	gen := &stubGenerator{}
	svc := NewService(stores, gen, Collaborators{
		Stats:    fakes,
		Points:   fakes,
		Searches: fakes,
		Trending: fakes,
	}, ServiceOptions{}, zerolog.Nop())

	alice := &models.User{ID: "alice-id", Username: "alice", Role: models.RoleUser, IsActive: true, PasswordHash: "x"}
	bob := &models.User{ID: "bob-id", Username: "bob", Role: models.RoleUser, IsActive: true, PasswordHash: "x"}
	require.NoError(t, stores.Users.Create(context.Background(), alice))
	require.NoError(t, stores.Users.Create(context.Background(), bob))
	return &fixture{svc: svc, stores: stores, gen: gen, fakes: fakes, alice: alice, bob: bob}
}

func (f *fixture) createQuiz(t *testing.T, q models.Quiz) *models.Quiz {
	t.Helper()
	if q.ID == "" {
		q.ID = fmt.Sprintf("quiz-%d", time.Now().UnixNano())
	}
	if q.Difficulty == "" {
		q.Difficulty = models.DifficultyMedium
	}
	if q.QuizType == "" {
		q.QuizType = models.QuizTypeMultipleChoice
	}
	if q.CreatedAt.IsZero() {
		q.CreatedAt = time.Now().UTC()
	}
	if q.Questions == nil {
		q.Questions = []models.Question{
			{ID: "q1", QuestionText: "1+1?", Options: []string{"1", "2"}, CorrectAnswer: "2", Explanation: "sum", Type: models.QuizTypeMultipleChoice},
			{ID: "q2", QuestionText: "Sky is blue", Options: []string{"True", "False"}, CorrectAnswer: "True", Type: models.QuizTypeTrueFalse},
		}
	}
	require.NoError(t, f.stores.Quizzes.Create(context.Background(), &q))
	return &q
}

func TestGenerate_AlgebraScenario(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	res, err := f.svc.Generate(ctx, f.alice, GenerateRequest{Topic: "  Algebra ", Difficulty: "medium", NumberOfQuestions: 5, Tags: []string{"Math", "math ", ""}})
	require.NoError(t, err)
	require.Len(t, res.Quiz.Questions, 5)
	assert.Equal(t, "Algebra", res.Quiz.Topic)
	assert.True(t, res.Quiz.IsPublic)
	assert.Equal(t, []string{"math"}, res.Quiz.Tags)
	assert.Equal(t, f.alice.ID, res.Quiz.CreatedBy)
	assert.Equal(t, []models.Badge{{ID: "first_quiz"}}, res.NewBadges)

	prompt, err := f.stores.Prompts.GetByID(ctx, res.PromptID)
	require.NoError(t, err)
	assert.Equal(t, res.Quiz.PromptID, prompt.ID)
	assert.Equal(t, 5, prompt.NumberOfQuestions)
	assert.Equal(t, models.QuizTypeMultipleChoice, prompt.QuizType)

	stored, err := f.stores.Quizzes.GetByID(ctx, res.Quiz.ID)
	require.NoError(t, err)
	for _, q := range stored.Questions {
		assert.NotEmpty(t, q.ID)
		assert.NoError(t, q.Validate())
	}

	questions := stored.Questions
	answers := []scoring.Submission{
		{QuestionID: questions[0].ID, SelectedAnswer: "A"},
		{QuestionID: questions[1].ID, SelectedAnswer: "A"},
		{QuestionID: questions[2].ID, SelectedAnswer: "A"},
		{QuestionID: questions[3].ID, SelectedAnswer: "B"},
		{QuestionID: questions[4].ID, SelectedAnswer: "C"},
		{QuestionID: "unknown", SelectedAnswer: "A"},
	}
	sub, err := f.svc.Submit(ctx, f.bob, res.Quiz.ID, SubmitRequest{Answers: answers, TimeTaken: 42})
	require.NoError(t, err)
	assert.Equal(t, 3, sub.Score)
	assert.Equal(t, 5, sub.Total)
	assert.Equal(t, 60, sub.Percentage)
	assert.Equal(t, 60, sub.PointsEarned)
	assert.Len(t, sub.Answers, 5)

	attempt, err := f.stores.Attempts.GetByID(ctx, sub.AttemptID)
	require.NoError(t, err)
	assert.Equal(t, 42, attempt.TimeTaken)

	stored, err = f.stores.Quizzes.GetByID(ctx, res.Quiz.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), stored.AttemptCount)
	assert.Equal(t, []recordedPoints{{"bob-id", "bob", 60}}, f.fakes.points)
	require.Len(t, f.fakes.attempts, 1)
}

func TestGenerate_Defaults(t *testing.T) {
	f := newFixture(t)
	private := false
	res, err := f.svc.Generate(context.Background(), f.alice, GenerateRequest{Topic: "History", IsPublic: &private, IsTimed: true})
	require.NoError(t, err)
	assert.Len(t, res.Quiz.Questions, DefaultQuestionCount)
	assert.Equal(t, models.DifficultyMedium, res.Quiz.Difficulty)
	assert.False(t, res.Quiz.IsPublic)
	assert.Equal(t, DefaultQuestionCount*60, res.Quiz.TimeLimit)
	require.Len(t, f.gen.calls, 1)
	assert.Equal(t, DefaultQuestionCount, f.gen.calls[0].Count)
}

func TestGenerate_Failures(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.Generate(ctx, f.alice, GenerateRequest{Topic: "   "})
	assert.ErrorIs(t, err, ErrInvalidTopic)

	f.gen.err = errors.New("upstream down")
	_, err = f.svc.Generate(ctx, f.alice, GenerateRequest{Topic: "Go"})
	assert.ErrorIs(t, err, ErrGenerationFailed)

	f.gen.err = nil
	f.gen.raw = []ai.Question{{Prompt: "broken", Options: []string{"only"}, Answer: ""}}
	_, err = f.svc.Generate(ctx, f.alice, GenerateRequest{Topic: "Go"})
	assert.ErrorIs(t, err, ErrGenerationFailed)
	assert.ErrorIs(t, err, ai.ErrEmptyResult)

	count, err := f.stores.Quizzes.Count(ctx)
	require.NoError(t, err)
	assert.Zero(t, count)

	noGen := NewService(f.stores, nil, Collaborators{}, ServiceOptions{}, zerolog.Nop())
	_, err = noGen.Generate(ctx, f.alice, GenerateRequest{Topic: "Go"})
	assert.ErrorIs(t, err, ai.ErrNotConfigured)
}

func TestRegenerate(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	first, err := f.svc.Generate(ctx, f.alice, GenerateRequest{Topic: "Physics", NumberOfQuestions: 3, Difficulty: "hard"})
	require.NoError(t, err)

	again, err := f.svc.Regenerate(ctx, f.alice, first.PromptID)
	require.NoError(t, err)
	assert.NotEqual(t, first.Quiz.ID, again.Quiz.ID)
	assert.Equal(t, first.PromptID, again.Quiz.PromptID)
	assert.Len(t, again.Quiz.Questions, 3)
	assert.Equal(t, models.DifficultyHard, again.Quiz.Difficulty)

	_, err = f.svc.Regenerate(ctx, f.bob, first.PromptID)
	assert.ErrorIs(t, err, ErrPromptNotFound)
	_, err = f.svc.Regenerate(ctx, f.alice, "missing")
	assert.ErrorIs(t, err, ErrPromptNotFound)
}

func TestGet_VisibilityAndPreview(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	pub := f.createQuiz(t, models.Quiz{ID: "pub", Topic: "Public", IsPublic: true, CreatedBy: f.alice.ID})
	f.createQuiz(t, models.Quiz{ID: "priv", Topic: "Private", CreatedBy: f.alice.ID})

	view, err := f.svc.Get(ctx, f.alice.ID, pub.ID, false)
	require.NoError(t, err)
	assert.True(t, view.IsOwner)
	assert.Equal(t, "2", view.Questions[0].CorrectAnswer)

	view, err = f.svc.Get(ctx, f.alice.ID, pub.ID, true)
	require.NoError(t, err)
	assert.Empty(t, view.Questions[0].CorrectAnswer)

	view, err = f.svc.Get(ctx, f.bob.ID, pub.ID, false)
	require.NoError(t, err)
	assert.False(t, view.IsOwner)
	assert.Empty(t, view.Questions[0].CorrectAnswer)
	assert.Empty(t, view.Questions[0].Explanation)

	view, err = f.svc.Get(ctx, "", pub.ID, false)
	require.NoError(t, err)
	assert.Empty(t, view.Questions[0].CorrectAnswer)

	_, err = f.svc.Get(ctx, f.bob.ID, "priv", false)
	assert.ErrorIs(t, err, ErrQuizNotFound)
	_, err = f.svc.Get(ctx, f.alice.ID, "priv", false)
	assert.NoError(t, err)
	_, err = f.svc.Get(ctx, f.alice.ID, "missing", false)
	assert.ErrorIs(t, err, ErrQuizNotFound)
}

func TestSubmit_Rules(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.createQuiz(t, models.Quiz{ID: "easy", Topic: "Easy", IsPublic: true, CreatedBy: f.alice.ID, Difficulty: models.DifficultyEasy})
	f.createQuiz(t, models.Quiz{ID: "priv", Topic: "Private", CreatedBy: f.alice.ID})

	res, err := f.svc.Submit(ctx, f.bob, "easy", SubmitRequest{Answers: []scoring.Submission{
		{QuestionID: "q1", SelectedAnswer: "2"},
		{QuestionID: "q1", SelectedAnswer: "1"},
		{QuestionID: "q2", SelectedAnswer: "True"},
	}})
	require.NoError(t, err)
	assert.Equal(t, 2, res.Score)
	assert.Equal(t, 100, res.Percentage)
	assert.Equal(t, 30, res.PointsEarned, "perfect score adds half the base points")
	assert.Equal(t, "sum", res.Answers[0].Explanation)

	res, err = f.svc.Submit(ctx, f.bob, "easy", SubmitRequest{Answers: []scoring.Submission{{QuestionID: "q1", SelectedAnswer: "two"}}})
	require.NoError(t, err)
	assert.Zero(t, res.Score)
	assert.Zero(t, res.PointsEarned)
	assert.Len(t, f.fakes.points, 1, "no leaderboard write without points")

	_, err = f.svc.Submit(ctx, f.bob, "easy", SubmitRequest{})
	assert.ErrorIs(t, err, ErrEmptySubmission)
	_, err = f.svc.Submit(ctx, f.bob, "priv", SubmitRequest{Answers: []scoring.Submission{{QuestionID: "q1"}}})
	assert.ErrorIs(t, err, ErrQuizNotFound)
}

func TestSaveUnsave(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.createQuiz(t, models.Quiz{ID: "pub", Topic: "Public", IsPublic: true, CreatedBy: f.alice.ID})
	f.createQuiz(t, models.Quiz{ID: "priv", Topic: "Private", CreatedBy: f.alice.ID})

	created, err := f.svc.Save(ctx, f.bob.ID, "pub")
	require.NoError(t, err)
	assert.True(t, created)
	created, err = f.svc.Save(ctx, f.bob.ID, "pub")
	require.NoError(t, err)
	assert.False(t, created)

	saved, err := f.svc.Saved(ctx, f.bob.ID)
	require.NoError(t, err)
	require.Len(t, saved, 1)
	assert.Equal(t, "pub", saved[0].ID)

	_, err = f.svc.Save(ctx, f.bob.ID, "priv")
	assert.ErrorIs(t, err, ErrQuizNotFound)

	removed, err := f.svc.Unsave(ctx, f.bob.ID, "pub")
	require.NoError(t, err)
	assert.True(t, removed)
	removed, err = f.svc.Unsave(ctx, f.bob.ID, "pub")
	require.NoError(t, err)
	assert.False(t, removed)

	saved, err = f.svc.Saved(ctx, f.bob.ID)
	require.NoError(t, err)
	assert.Empty(t, saved)
}

func TestUpdateVisibilityDelete(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.createQuiz(t, models.Quiz{ID: "pub", Topic: "Public", IsPublic: true, CreatedBy: f.alice.ID})

	topic := " Renamed "
	updated, err := f.svc.Update(ctx, f.alice, "pub", UpdateRequest{
		Topic: &topic,
		Tags:  []string{"New"},
		Questions: []models.Question{
			{QuestionText: "Water is wet", Type: models.QuizTypeTrueFalse, CorrectAnswer: "True"},
		},
	})
	require.NoError(t, err)
	assert.Equal(t, "Renamed", updated.Topic)
	assert.Equal(t, []string{"new"}, updated.Tags)
	require.Len(t, updated.Questions, 1)
	assert.NotEmpty(t, updated.Questions[0].ID)
	assert.Equal(t, models.TrueFalseOptions, updated.Questions[0].Options)

	_, err = f.svc.Update(ctx, f.alice, "pub", UpdateRequest{Questions: []models.Question{
		{QuestionText: "Pick", Type: models.QuizTypeMultipleChoice, Options: []string{"a", "b"}, CorrectAnswer: "c"},
	}})
	assert.ErrorIs(t, err, ErrInvalidQuestions)

	_, err = f.svc.Update(ctx, f.bob, "pub", UpdateRequest{Topic: &topic})
	assert.ErrorIs(t, err, ErrForbidden)

	q, err := f.svc.SetVisibility(ctx, f.alice, "pub", false)
	require.NoError(t, err)
	assert.False(t, q.IsPublic)
	_, err = f.svc.SetVisibility(ctx, f.bob, "pub", true)
	assert.ErrorIs(t, err, ErrQuizNotFound, "private quizzes of others stay hidden")

	_, err = f.svc.SetVisibility(ctx, f.alice, "pub", true)
	require.NoError(t, err)
	_, err = f.svc.Save(ctx, f.bob.ID, "pub")
	require.NoError(t, err)

	assert.ErrorIs(t, f.svc.Delete(ctx, f.bob, "pub"), ErrForbidden)
	require.NoError(t, f.svc.Delete(ctx, f.alice, "pub"))
	_, err = f.stores.Quizzes.GetByID(ctx, "pub")
	assert.ErrorIs(t, err, repository.ErrNotFound)
	saved, err := f.stores.Saved.IsSaved(ctx, f.bob.ID, "pub")
	require.NoError(t, err)
	assert.False(t, saved)

	admin := &models.User{ID: "admin-id", Role: models.RoleAdmin}
	f.createQuiz(t, models.Quiz{ID: "other", Topic: "Other", CreatedBy: f.bob.ID})
	assert.NoError(t, f.svc.Delete(ctx, admin, "other"))
}

func TestExploreSearchByUser(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	f.createQuiz(t, models.Quiz{ID: "a", Topic: "Algebra Basics", IsPublic: true, CreatedBy: f.alice.ID, CreatedAt: base, Difficulty: models.DifficultyEasy, Tags: []string{"math"}})
	f.createQuiz(t, models.Quiz{ID: "b", Topic: "World History", IsPublic: true, CreatedBy: f.alice.ID, CreatedAt: base.Add(time.Hour), AttemptCount: 9})
	f.createQuiz(t, models.Quiz{ID: "c", Topic: "Linear Algebra", IsPublic: true, CreatedBy: f.bob.ID, CreatedAt: base.Add(2 * time.Hour), Tags: []string{"math"}})
	f.createQuiz(t, models.Quiz{ID: "d", Topic: "Secret Algebra", CreatedBy: f.alice.ID, CreatedAt: base.Add(3 * time.Hour)})

	page, err := f.svc.Explore(ctx, ListParams{Limit: 2})
	require.NoError(t, err)
	assert.Equal(t, int64(3), page.Total)
	assert.Equal(t, int64(2), page.TotalPages)
	require.Len(t, page.Quizzes, 2)
	assert.Equal(t, "c", page.Quizzes[0].ID)

	page, err = f.svc.Explore(ctx, ListParams{Sort: repository.SortPopular})
	require.NoError(t, err)
	assert.Equal(t, "b", page.Quizzes[0].ID)

	page, err = f.svc.Explore(ctx, ListParams{Tag: "MATH", Difficulty: models.DifficultyEasy})
	require.NoError(t, err)
	require.Len(t, page.Quizzes, 1)
	assert.Equal(t, "a", page.Quizzes[0].ID)

	page, err = f.svc.Search(ctx, ListParams{Query: "  ALGEBRA  "})
	require.NoError(t, err)
	assert.Equal(t, int64(2), page.Total)
	assert.Equal(t, []string{"algebra"}, f.fakes.searches)

	_, err = f.svc.Search(ctx, ListParams{Query: "  "})
	assert.ErrorIs(t, err, ErrEmptyQuery)

	page, err = f.svc.ByUser(ctx, f.bob.ID, f.alice.ID, ListParams{})
	require.NoError(t, err)
	assert.Equal(t, int64(2), page.Total)
	page, err = f.svc.ByUser(ctx, f.alice.ID, f.alice.ID, ListParams{})
	require.NoError(t, err)
	assert.Equal(t, int64(3), page.Total)

	page, err = f.svc.Explore(ctx, ListParams{Limit: 500})
	require.NoError(t, err)
	assert.Equal(t, MaxPageSize, page.Limit)
}

func TestRecentHistoryAttempt(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.createQuiz(t, models.Quiz{ID: "a", Topic: "A", IsPublic: true, CreatedBy: f.alice.ID})
	f.createQuiz(t, models.Quiz{ID: "b", Topic: "B", IsPublic: true, CreatedBy: f.alice.ID})

	clock := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	f.svc.now = func() time.Time { clock = clock.Add(time.Minute); return clock }

	var last string
	for _, id := range []string{"a", "b", "a"} {
		res, err := f.svc.Submit(ctx, f.bob, id, SubmitRequest{Answers: []scoring.Submission{{QuestionID: "q1", SelectedAnswer: "2"}}})
		require.NoError(t, err)
		last = res.AttemptID
	}

	recent, err := f.svc.Recent(ctx, f.bob.ID)
	require.NoError(t, err)
	require.Len(t, recent, 2)
	assert.Equal(t, "a", recent[0].ID)
	assert.Equal(t, "b", recent[1].ID)

	history, err := f.svc.History(ctx, f.bob.ID, 1, 2)
	require.NoError(t, err)
	assert.Equal(t, int64(3), history.Total)
	require.Len(t, history.Attempts, 2)
	assert.Equal(t, last, history.Attempts[0].ID)
	require.NotNil(t, history.Attempts[0].Quiz)
	assert.Equal(t, "a", history.Attempts[0].Quiz.ID)
	assert.Equal(t, 50, history.Attempts[0].Percentage)

	view, err := f.svc.Attempt(ctx, f.bob.ID, last)
	require.NoError(t, err)
	assert.Equal(t, "a", view.Quiz.ID)
	_, err = f.svc.Attempt(ctx, f.alice.ID, last)
	assert.ErrorIs(t, err, ErrAttemptNotFound)
}

func TestRecommended(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.createQuiz(t, models.Quiz{ID: "done", Topic: "Roman History", IsPublic: true, CreatedBy: f.alice.ID, Difficulty: models.DifficultyHard})
	f.createQuiz(t, models.Quiz{ID: "match", Topic: "Greek History", IsPublic: true, CreatedBy: f.alice.ID, Difficulty: models.DifficultyHard})
	f.createQuiz(t, models.Quiz{ID: "hard-other", Topic: "Chemistry", IsPublic: true, CreatedBy: f.alice.ID, Difficulty: models.DifficultyHard, RatingAverage: 5})
	f.createQuiz(t, models.Quiz{ID: "easy", Topic: "Colors", IsPublic: true, CreatedBy: f.alice.ID, Difficulty: models.DifficultyEasy, RatingAverage: 4})
	f.createQuiz(t, models.Quiz{ID: "mine", Topic: "Greek History 2", IsPublic: true, CreatedBy: f.bob.ID, Difficulty: models.DifficultyHard})
	f.createQuiz(t, models.Quiz{ID: "hidden", Topic: "Greek Myths", CreatedBy: f.alice.ID, Difficulty: models.DifficultyHard})

	_, err := f.svc.Submit(ctx, f.bob, "done", SubmitRequest{Answers: []scoring.Submission{{QuestionID: "q1", SelectedAnswer: "2"}}})
	require.NoError(t, err)

	recs, err := f.svc.Recommended(ctx, f.bob.ID)
	require.NoError(t, err)
	ids := make([]string, 0, len(recs))
	for _, r := range recs {
		ids = append(ids, r.ID)
	}
	assert.Equal(t, []string{"match", "hard-other", "easy"}, ids)

	fresh, err := f.svc.Recommended(ctx, "nobody")
	require.NoError(t, err)
	require.NotEmpty(t, fresh)
	assert.Equal(t, "hard-other", fresh[0].ID, "falls back to top rated")
}

func TestTrending(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.createQuiz(t, models.Quiz{ID: "hot", Topic: "Hot", IsPublic: true, CreatedBy: f.alice.ID})
	f.createQuiz(t, models.Quiz{ID: "warm", Topic: "Warm", IsPublic: true, CreatedBy: f.alice.ID, AttemptCount: 50})
	f.createQuiz(t, models.Quiz{ID: "private", Topic: "Private", CreatedBy: f.bob.ID})

	list, err := f.svc.Trending(ctx, 5)
	require.NoError(t, err)
	require.NotEmpty(t, list)
	assert.Equal(t, "warm", list[0].ID, "no recent attempts falls back to popular")

	answer := SubmitRequest{Answers: []scoring.Submission{{QuestionID: "q1", SelectedAnswer: "2"}}}
	for range 2 {
		_, err = f.svc.Submit(ctx, f.bob, "hot", answer)
		require.NoError(t, err)
	}
	_, err = f.svc.Submit(ctx, f.alice, "warm", answer)
	require.NoError(t, err)
	_, err = f.svc.Submit(ctx, f.bob, "private", answer)
	require.NoError(t, err)

	list, err = f.svc.Trending(ctx, 5)
	require.NoError(t, err)
	assert.Equal(t, "warm", list[0].ID, "cached ranking is served until refreshed")

	ids, err := f.svc.RefreshTrending(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"hot", "warm"}, ids)
	assert.Equal(t, ids, f.fakes.trending)

	list, err = f.svc.Trending(ctx, 1)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "hot", list[0].ID)
}

func TestTrendingWorker_RefreshesUntilCancelled(t *testing.T) {
	f := newFixture(t)
	f.createQuiz(t, models.Quiz{ID: "hot", Topic: "Hot", IsPublic: true, CreatedBy: f.alice.ID})
	_, err := f.svc.Submit(context.Background(), f.bob, "hot", SubmitRequest{Answers: []scoring.Submission{{QuestionID: "q1"}}})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- NewTrendingWorker(f.svc, time.Hour, zerolog.Nop()).Run(ctx) }()

	require.Eventually(t, func() bool {
		ids, ok, _ := f.fakes.Get(context.Background())
		return ok && len(ids) == 1
	}, time.Second, 10*time.Millisecond)
	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("worker did not stop")
	}
}

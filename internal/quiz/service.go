// Package quiz owns quiz generation, retrieval, submission and listing.
package quiz

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/zart/quizzer/internal/db/repository"
	"github.com/zart/quizzer/internal/metrics"
	"github.com/zart/quizzer/internal/models"
	"github.com/zart/quizzer/internal/quiz/ai"
	"github.com/zart/quizzer/internal/quiz/scoring"
)

// Collaborators are the optional side effects of quiz operations. Nil members are skipped.
type Collaborators struct {
	Stats    StatsRecorder
	Points   PointsRecorder
	Searches SearchRecorder
	Trending TrendingCache
	Metrics  *metrics.Metrics
}

type ServiceOptions struct {
	Scoring        scoring.Config
	TrendingWindow time.Duration
	TrendingSize   int
}

// Service implements the quiz use cases on top of the store contracts.
type Service struct {
	quizzes   repository.QuizStore
	prompts   repository.PromptStore
	attempts  repository.AttemptStore
	saved     repository.SavedQuizStore
	users     repository.UserStore
	generator ai.Generator
	engine    *scoring.Engine
	deps      Collaborators
	opts      ServiceOptions
	now       func() time.Time
	logger    zerolog.Logger
}

func NewService(stores *repository.Stores, generator ai.Generator, deps Collaborators, opts ServiceOptions, logger zerolog.Logger) *Service {
	if opts.Scoring == (scoring.Config{}) {
		opts.Scoring = scoring.DefaultConfig()
	}
	if opts.TrendingWindow <= 0 {
		opts.TrendingWindow = 7 * 24 * time.Hour
	}
	if opts.TrendingSize <= 0 {
		opts.TrendingSize = 20
	}
	return &Service{
		quizzes:   stores.Quizzes,
		prompts:   stores.Prompts,
		attempts:  stores.Attempts,
		saved:     stores.Saved,
		users:     stores.Users,
		generator: generator,
		engine:    scoring.NewEngine(opts.Scoring),
		deps:      deps,
		opts:      opts,
		now:       func() time.Time { return time.Now().UTC() },
		logger:    logger.With().Str("component", "quiz").Logger(),
	}
}

// Generate stores the prompt, asks the generator for questions and persists the quiz.
func (s *Service) Generate(ctx context.Context, user *models.User, req GenerateRequest) (*GenerateResult, error) {
	topic := strings.TrimSpace(req.Topic)
	if topic == "" || len(topic) > MaxTopicLength {
		return nil, ErrInvalidTopic
	}
	prompt := &models.QuizPrompt{
		ID:                uuid.NewString(),
		UserID:            user.ID,
		Topic:             topic,
		Difficulty:        withDefault(req.Difficulty, models.DifficultyMedium),
		NumberOfQuestions: req.NumberOfQuestions,
		QuizType:          withDefault(req.QuizType, models.QuizTypeMultipleChoice),
		Description:       strings.TrimSpace(req.Description),
		CreatedAt:         s.now(),
	}
	if prompt.NumberOfQuestions <= 0 {
		prompt.NumberOfQuestions = DefaultQuestionCount
	}
	prompt.NumberOfQuestions = min(prompt.NumberOfQuestions, MaxQuestionCount)

	if err := s.prompts.Create(ctx, prompt); err != nil {
		return nil, fmt.Errorf("save prompt: %w", err)
	}

	isPublic := true
	if req.IsPublic != nil {
		isPublic = *req.IsPublic
	}
	return s.generateFromPrompt(ctx, user, prompt, quizSettings{
		isPublic:  isPublic,
		isTimed:   req.IsTimed,
		timeLimit: req.TimeLimit,
		tags:      req.Tags,
	})
}

// Regenerate replays a stored prompt owned by the caller.
func (s *Service) Regenerate(ctx context.Context, user *models.User, promptID string) (*GenerateResult, error) {
	prompt, err := s.prompts.GetByID(ctx, promptID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, ErrPromptNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load prompt: %w", err)
	}
	if prompt.UserID != user.ID {
		return nil, ErrPromptNotFound
	}
	return s.generateFromPrompt(ctx, user, prompt, quizSettings{isPublic: true})
}

type quizSettings struct {
	isPublic  bool
	isTimed   bool
	timeLimit int
	tags      []string
}

func (s *Service) generateFromPrompt(ctx context.Context, user *models.User, prompt *models.QuizPrompt, settings quizSettings) (*GenerateResult, error) {
	log := s.logger.With().Str("prompt_id", prompt.ID).Str("user_id", user.ID).Logger()
	if s.generator == nil {
		s.deps.Metrics.QuizGenerated("failed")
		return nil, fmt.Errorf("%w: %w", ErrGenerationFailed, ai.ErrNotConfigured)
	}

	raw, err := s.generator.Generate(ctx, ai.Request{
		Topic:       prompt.Topic,
		Description: prompt.Description,
		Difficulty:  prompt.Difficulty,
		QuizType:    prompt.QuizType,
		Count:       prompt.NumberOfQuestions,
	})
	if err != nil {
		s.deps.Metrics.QuizGenerated("failed")
		log.Warn().Err(err).Msg("generator call failed")
		return nil, fmt.Errorf("%w: %w", ErrGenerationFailed, err)
	}
	questions := ai.Normalize(raw, prompt.QuizType, prompt.NumberOfQuestions)
	if len(questions) == 0 {
		s.deps.Metrics.QuizGenerated("failed")
		log.Warn().Int("raw", len(raw)).Msg("no usable questions after normalization")
		return nil, fmt.Errorf("%w: %w", ErrGenerationFailed, ai.ErrEmptyResult)
	}

	now := s.now()
	timeLimit := 0
	if settings.isTimed {
		timeLimit = settings.timeLimit
		if timeLimit <= 0 {
			timeLimit = len(questions) * 60
		}
		timeLimit = min(timeLimit, MaxTimeLimitSeconds)
	}
	quiz := &models.Quiz{
		ID:          uuid.NewString(),
		Topic:       prompt.Topic,
		Description: prompt.Description,
		QuizType:    prompt.QuizType,
		Difficulty:  prompt.Difficulty,
		IsPublic:    settings.isPublic,
		IsTimed:     settings.isTimed,
		TimeLimit:   timeLimit,
		Questions:   questions,
		Tags:        normalizeTags(settings.tags),
		PromptID:    prompt.ID,
		CreatedBy:   user.ID,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.quizzes.Create(ctx, quiz); err != nil {
		s.deps.Metrics.QuizGenerated("failed")
		return nil, fmt.Errorf("save quiz: %w", err)
	}
	s.deps.Metrics.QuizGenerated("ok")
	log.Info().Str("quiz_id", quiz.ID).Int("questions", len(questions)).Msg("quiz generated")

	res := &GenerateResult{Quiz: quiz, PromptID: prompt.ID}
	if s.deps.Stats != nil {
		badges, err := s.deps.Stats.RecordQuizCreated(ctx, user.ID)
		if err != nil {
			log.Warn().Err(err).Msg("failed to record quiz creation")
		}
		res.NewBadges = badges
	}
	return res, nil
}

// Get returns a quiz visible to userID. Answers are stripped for everyone but
// the creator, and for the creator too when preview is set.
func (s *Service) Get(ctx context.Context, userID, quizID string, preview bool) (*QuizView, error) {
	quiz, err := s.visibleQuiz(ctx, userID, quizID)
	if err != nil {
		return nil, err
	}
	owner := userID != "" && quiz.CreatedBy == userID
	view := &QuizView{Quiz: quiz, IsOwner: owner}
	if !owner || preview {
		view.Quiz = quiz.Preview()
	}
	if userID != "" {
		saved, err := s.saved.IsSaved(ctx, userID, quizID)
		if err != nil {
			s.logger.Warn().Err(err).Str("quiz_id", quizID).Msg("saved lookup failed")
		}
		view.IsSaved = saved
	}
	return view, nil
}

// Submit grades the answers, stores the attempt and updates statistics and the leaderboard.
func (s *Service) Submit(ctx context.Context, user *models.User, quizID string, req SubmitRequest) (*SubmitResult, error) {
	if len(req.Answers) == 0 {
		return nil, ErrEmptySubmission
	}
	quiz, err := s.visibleQuiz(ctx, user.ID, quizID)
	if err != nil {
		return nil, err
	}

	graded := s.engine.Grade(quiz, req.Answers)
	points := graded.Points
	attempt := &models.QuizAttempt{
		ID:             uuid.NewString(),
		UserID:         user.ID,
		QuizID:         quiz.ID,
		Answers:        graded.Answers,
		Score:          graded.Score,
		TotalQuestions: graded.Total,
		PointsEarned:   points,
		TimeTaken:      max(req.TimeTaken, 0),
		SubmittedAt:    s.now(),
	}
	if err := s.attempts.Create(ctx, attempt); err != nil {
		return nil, fmt.Errorf("save attempt: %w", err)
	}
	s.deps.Metrics.QuizAttempted()

	log := s.logger.With().Str("quiz_id", quiz.ID).Str("user_id", user.ID).Logger()
	if err := s.quizzes.IncrementAttemptCount(ctx, quiz.ID); err != nil {
		log.Warn().Err(err).Msg("failed to bump attempt count")
	}

	res := &SubmitResult{
		AttemptID:    attempt.ID,
		Score:        attempt.Score,
		Total:        attempt.TotalQuestions,
		Percentage:   attempt.Percentage(),
		PointsEarned: points,
		Answers:      attempt.Answers,
	}
	if s.deps.Stats != nil {
		badges, err := s.deps.Stats.RecordAttempt(ctx, attempt)
		if err != nil {
			log.Warn().Err(err).Msg("failed to record attempt stats")
		}
		res.NewBadges = badges
	}
	if s.deps.Points != nil && points > 0 {
		if err := s.deps.Points.RecordPoints(ctx, user.ID, user.Username, points); err != nil {
			log.Warn().Err(err).Msg("failed to record leaderboard points")
		}
	}
	return res, nil
}

// Save bookmarks a visible quiz. Saving twice is a no-op reported as created=false.
func (s *Service) Save(ctx context.Context, userID, quizID string) (bool, error) {
	if _, err := s.visibleQuiz(ctx, userID, quizID); err != nil {
		return false, err
	}
	created, err := s.saved.Save(ctx, &models.SavedQuiz{
		ID:        uuid.NewString(),
		UserID:    userID,
		QuizID:    quizID,
		CreatedAt: s.now(),
	})
	if err != nil {
		return false, fmt.Errorf("save quiz: %w", err)
	}
	return created, nil
}

// Unsave removes a bookmark and reports whether one existed.
func (s *Service) Unsave(ctx context.Context, userID, quizID string) (bool, error) {
	removed, err := s.saved.Remove(ctx, userID, quizID)
	if err != nil {
		return false, fmt.Errorf("unsave quiz: %w", err)
	}
	return removed, nil
}

// Update applies an owner edit.
func (s *Service) Update(ctx context.Context, user *models.User, quizID string, req UpdateRequest) (*models.Quiz, error) {
	quiz, err := s.ownedQuiz(ctx, user, quizID)
	if err != nil {
		return nil, err
	}

	patch := repository.QuizPatch{
		IsPublic:  req.IsPublic,
		IsTimed:   req.IsTimed,
		TimeLimit: req.TimeLimit,
	}
	if req.Topic != nil {
		topic := strings.TrimSpace(*req.Topic)
		if topic == "" {
			return nil, ErrInvalidTopic
		}
		patch.Topic = &topic
	}
	if req.Description != nil {
		desc := strings.TrimSpace(*req.Description)
		patch.Description = &desc
	}
	if req.Tags != nil {
		patch.Tags = normalizeTags(req.Tags)
		if patch.Tags == nil {
			patch.Tags = []string{}
		}
	}
	if req.Questions != nil {
		questions, err := prepareQuestions(req.Questions, quiz.QuizType)
		if err != nil {
			return nil, err
		}
		patch.Questions = questions
	}

	updated, err := s.quizzes.Update(ctx, quizID, patch)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, ErrQuizNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("update quiz: %w", err)
	}
	return updated, nil
}

// SetVisibility flips the public flag of an owned quiz.
func (s *Service) SetVisibility(ctx context.Context, user *models.User, quizID string, isPublic bool) (*models.Quiz, error) {
	return s.Update(ctx, user, quizID, UpdateRequest{IsPublic: &isPublic})
}

// Delete removes an owned quiz and its bookmarks. Admins may delete any quiz.
func (s *Service) Delete(ctx context.Context, user *models.User, quizID string) error {
	if _, err := s.ownedQuiz(ctx, user, quizID); err != nil {
		return err
	}
	if err := s.quizzes.Delete(ctx, quizID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrQuizNotFound
		}
		return fmt.Errorf("delete quiz: %w", err)
	}
	if err := s.saved.DeleteByQuiz(ctx, quizID); err != nil {
		s.logger.Warn().Err(err).Str("quiz_id", quizID).Msg("failed to delete bookmarks of quiz")
	}
	return nil
}

// Attempt returns one of the caller's attempts with its quiz.
func (s *Service) Attempt(ctx context.Context, userID, attemptID string) (*AttemptView, error) {
	attempt, err := s.attempts.GetByID(ctx, attemptID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, ErrAttemptNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load attempt: %w", err)
	}
	if attempt.UserID != userID {
		return nil, ErrAttemptNotFound
	}
	view := &AttemptView{Attempt: attempt, Percentage: attempt.Percentage()}
	quiz, err := s.quizzes.GetByID(ctx, attempt.QuizID)
	switch {
	case err == nil:
		view.Quiz = quiz
	case !errors.Is(err, repository.ErrNotFound):
		return nil, fmt.Errorf("load quiz: %w", err)
	}
	return view, nil
}

func (s *Service) visibleQuiz(ctx context.Context, userID, quizID string) (*models.Quiz, error) {
	quiz, err := s.quizzes.GetByID(ctx, quizID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, ErrQuizNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load quiz: %w", err)
	}
	if !canView(quiz, userID) {
		return nil, ErrQuizNotFound
	}
	return quiz, nil
}

// ownedQuiz hides private quizzes of other users and forbids edits of public ones.
func (s *Service) ownedQuiz(ctx context.Context, user *models.User, quizID string) (*models.Quiz, error) {
	quiz, err := s.quizzes.GetByID(ctx, quizID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, ErrQuizNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load quiz: %w", err)
	}
	if quiz.CreatedBy == user.ID || user.Role == models.RoleAdmin {
		return quiz, nil
	}
	if !quiz.IsPublic {
		return nil, ErrQuizNotFound
	}
	return nil, ErrForbidden
}

func canView(q *models.Quiz, userID string) bool {
	return q.IsPublic || (userID != "" && q.CreatedBy == userID)
}

// prepareQuestions fills missing ids and true-false options, then validates.
func prepareQuestions(in []models.Question, quizType string) ([]models.Question, error) {
	out := make([]models.Question, 0, len(in))
	seen := make(map[string]bool, len(in))
	for i, q := range in {
		q.QuestionText = strings.TrimSpace(q.QuestionText)
		if q.ID == "" || seen[q.ID] {
			q.ID = uuid.NewString()
		}
		seen[q.ID] = true
		if q.Type == "" {
			q.Type = quizType
			if q.Type == models.QuizTypeMixed {
				q.Type = models.QuizTypeMultipleChoice
			}
		}
		if q.Type == models.QuizTypeTrueFalse && len(q.Options) == 0 {
			q.Options = slices.Clone(models.TrueFalseOptions)
		}
		if err := q.Validate(); err != nil {
			return nil, fmt.Errorf("%w: question %d: %w", ErrInvalidQuestions, i+1, err)
		}
		out = append(out, q)
	}
	return out, nil
}

func normalizeTags(tags []string) []string {
	var out []string
	for _, t := range tags {
		t = strings.ToLower(strings.TrimSpace(t))
		if t != "" && !slices.Contains(out, t) {
			out = append(out, t)
		}
	}
	return out
}

func withDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}

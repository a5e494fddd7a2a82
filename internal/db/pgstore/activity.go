package pgstore

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/zart/quizzer/internal/db/repository"
	"github.com/zart/quizzer/internal/models"
)

const attemptColumns = `id, user_id, quiz_id, answers, score, total_questions, points_earned, time_taken, submitted_at`

type attemptStore struct {
	db dbtx
}

func scanAttempt(row pgx.Row) (*models.QuizAttempt, error) {
	var (
		a       models.QuizAttempt
		answers []byte
	)
	err := row.Scan(&a.ID, &a.UserID, &a.QuizID, &answers, &a.Score, &a.TotalQuestions, &a.PointsEarned,
		&a.TimeTaken, &a.SubmittedAt)
	if err != nil {
		return nil, translate(err)
	}
	if err := fromJSON(answers, &a.Answers); err != nil {
		return nil, err
	}
	return &a, nil
}

func (s *attemptStore) Create(ctx context.Context, a *models.QuizAttempt) error {
	answers, err := toJSON(a.Answers)
	if err != nil {
		return err
	}
	_, err = s.db.Exec(ctx, `INSERT INTO quiz_attempts (`+attemptColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		a.ID, a.UserID, a.QuizID, answers, a.Score, a.TotalQuestions, a.PointsEarned, a.TimeTaken, a.SubmittedAt)
	return translate(err)
}

func (s *attemptStore) GetByID(ctx context.Context, id string) (*models.QuizAttempt, error) {
	return scanAttempt(s.db.QueryRow(ctx, `SELECT `+attemptColumns+` FROM quiz_attempts WHERE id = $1`, id))
}

func (s *attemptStore) ListByUser(ctx context.Context, userID string, offset, limit int64) ([]models.QuizAttempt, int64, error) {
	var total int64
	if err := s.db.QueryRow(ctx, `SELECT COUNT(*) FROM quiz_attempts WHERE user_id = $1`, userID).Scan(&total); err != nil {
		return nil, 0, translate(err)
	}
	if limit <= 0 {
		limit = total
	}
	rows, err := s.db.Query(ctx, `SELECT `+attemptColumns+` FROM quiz_attempts
		WHERE user_id = $1 ORDER BY submitted_at DESC LIMIT $2 OFFSET $3`, userID, limit, offset)
	if err != nil {
		return nil, 0, translate(err)
	}
	defer rows.Close()

	out := make([]models.QuizAttempt, 0)
	for rows.Next() {
		a, err := scanAttempt(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, *a)
	}
	return out, total, rows.Err()
}

func (s *attemptStore) RecentQuizIDs(ctx context.Context, userID string, limit int) ([]string, error) {
	rows, err := s.db.Query(ctx, `SELECT quiz_id FROM quiz_attempts WHERE user_id = $1
		GROUP BY quiz_id ORDER BY MAX(submitted_at) DESC LIMIT $2`, userID, limit)
	if err != nil {
		return nil, translate(err)
	}
	return collectStrings(rows)
}

func (s *attemptStore) TopQuizzesSince(ctx context.Context, since time.Time, limit int) ([]repository.QuizCount, error) {
	rows, err := s.db.Query(ctx, `SELECT quiz_id, COUNT(*) FROM quiz_attempts WHERE submitted_at >= $1
		GROUP BY quiz_id ORDER BY COUNT(*) DESC, quiz_id ASC LIMIT $2`, since, limit)
	if err != nil {
		return nil, translate(err)
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (repository.QuizCount, error) {
		var qc repository.QuizCount
		err := row.Scan(&qc.QuizID, &qc.Count)
		return qc, err
	})
}

func (s *attemptStore) DeleteByUser(ctx context.Context, userID string) error {
	_, err := s.db.Exec(ctx, `DELETE FROM quiz_attempts WHERE user_id = $1`, userID)
	return translate(err)
}

func (s *attemptStore) Count(ctx context.Context) (int64, error) {
	var n int64
	err := s.db.QueryRow(ctx, `SELECT COUNT(*) FROM quiz_attempts`).Scan(&n)
	return n, translate(err)
}

type ratingStore struct {
	db dbtx
}

func (s *ratingStore) Upsert(ctx context.Context, r *models.QuizRating) error {
	id := r.ID
	if id == "" {
		id = uuid.NewString()
	}
	_, err := s.db.Exec(ctx, `INSERT INTO quiz_ratings (id, user_id, quiz_id, rating, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (user_id, quiz_id) DO UPDATE SET rating = EXCLUDED.rating, updated_at = EXCLUDED.updated_at`,
		id, r.UserID, r.QuizID, r.Rating, r.CreatedAt, r.UpdatedAt)
	return translate(err)
}

func (s *ratingStore) Get(ctx context.Context, userID, quizID string) (*models.QuizRating, error) {
	var r models.QuizRating
	err := s.db.QueryRow(ctx, `SELECT id, user_id, quiz_id, rating, created_at, updated_at
		FROM quiz_ratings WHERE user_id = $1 AND quiz_id = $2`, userID, quizID).
		Scan(&r.ID, &r.UserID, &r.QuizID, &r.Rating, &r.CreatedAt, &r.UpdatedAt)
	if err != nil {
		return nil, translate(err)
	}
	return &r, nil
}

func (s *ratingStore) Aggregate(ctx context.Context, quizID string) (models.RatingStats, error) {
	var stats models.RatingStats
	err := s.db.QueryRow(ctx, `SELECT COUNT(*), COALESCE(AVG(rating), 0)::float8
		FROM quiz_ratings WHERE quiz_id = $1`, quizID).Scan(&stats.Count, &stats.Average)
	return stats, translate(err)
}

func (s *ratingStore) QuizIDsByUser(ctx context.Context, userID string) ([]string, error) {
	rows, err := s.db.Query(ctx, `SELECT quiz_id FROM quiz_ratings WHERE user_id = $1`, userID)
	if err != nil {
		return nil, translate(err)
	}
	return collectStrings(rows)
}

func (s *ratingStore) DeleteByUser(ctx context.Context, userID string) error {
	_, err := s.db.Exec(ctx, `DELETE FROM quiz_ratings WHERE user_id = $1`, userID)
	return translate(err)
}

type savedStore struct {
	db dbtx
}

func (s *savedStore) Save(ctx context.Context, sq *models.SavedQuiz) (bool, error) {
	tag, err := s.db.Exec(ctx, `INSERT INTO saved_quizzes (id, user_id, quiz_id, created_at)
		VALUES ($1, $2, $3, $4) ON CONFLICT (user_id, quiz_id) DO NOTHING`,
		sq.ID, sq.UserID, sq.QuizID, sq.CreatedAt)
	if err != nil {
		return false, translate(err)
	}
	return tag.RowsAffected() > 0, nil
}

func (s *savedStore) Remove(ctx context.Context, userID, quizID string) (bool, error) {
	tag, err := s.db.Exec(ctx, `DELETE FROM saved_quizzes WHERE user_id = $1 AND quiz_id = $2`, userID, quizID)
	if err != nil {
		return false, translate(err)
	}
	return tag.RowsAffected() > 0, nil
}

func (s *savedStore) ListQuizIDs(ctx context.Context, userID string) ([]string, error) {
	rows, err := s.db.Query(ctx, `SELECT quiz_id FROM saved_quizzes WHERE user_id = $1 ORDER BY created_at DESC`, userID)
	if err != nil {
		return nil, translate(err)
	}
	return collectStrings(rows)
}

func (s *savedStore) IsSaved(ctx context.Context, userID, quizID string) (bool, error) {
	var ok bool
	err := s.db.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM saved_quizzes WHERE user_id = $1 AND quiz_id = $2)`,
		userID, quizID).Scan(&ok)
	return ok, translate(err)
}

func (s *savedStore) DeleteByUser(ctx context.Context, userID string) error {
	_, err := s.db.Exec(ctx, `DELETE FROM saved_quizzes WHERE user_id = $1`, userID)
	return translate(err)
}

func (s *savedStore) DeleteByQuiz(ctx context.Context, quizID string) error {
	_, err := s.db.Exec(ctx, `DELETE FROM saved_quizzes WHERE quiz_id = $1`, quizID)
	return translate(err)
}

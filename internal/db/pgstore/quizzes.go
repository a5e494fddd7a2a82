package pgstore

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/zart/quizzer/internal/db/repository"
	"github.com/zart/quizzer/internal/models"
)

const quizColumns = `id, topic, description, quiz_type, difficulty, is_public, is_timed, time_limit,
	questions, tags, prompt_id, created_by, attempt_count, rating_count, rating_average,
	created_at, updated_at`

type quizStore struct {
	db dbtx
}

func scanQuiz(row pgx.Row) (*models.Quiz, error) {
	var (
		q         models.Quiz
		questions []byte
		promptID  *string
	)
	err := row.Scan(&q.ID, &q.Topic, &q.Description, &q.QuizType, &q.Difficulty, &q.IsPublic, &q.IsTimed,
		&q.TimeLimit, &questions, &q.Tags, &promptID, &q.CreatedBy, &q.AttemptCount, &q.RatingCount,
		&q.RatingAverage, &q.CreatedAt, &q.UpdatedAt)
	if err != nil {
		return nil, translate(err)
	}
	if err := fromJSON(questions, &q.Questions); err != nil {
		return nil, err
	}
	q.PromptID = deref(promptID)
	return &q, nil
}

func scanQuizzes(rows pgx.Rows) ([]models.Quiz, error) {
	defer rows.Close()
	out := make([]models.Quiz, 0)
	for rows.Next() {
		q, err := scanQuiz(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *q)
	}
	return out, rows.Err()
}

func (s *quizStore) Create(ctx context.Context, q *models.Quiz) error {
	questions, err := toJSON(q.Questions)
	if err != nil {
		return err
	}
	tags := q.Tags
	if tags == nil {
		tags = []string{}
	}
	_, err = s.db.Exec(ctx, `INSERT INTO quizzes (`+quizColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)`,
		q.ID, q.Topic, q.Description, q.QuizType, q.Difficulty, q.IsPublic, q.IsTimed, q.TimeLimit,
		questions, tags, nullable(q.PromptID), q.CreatedBy, q.AttemptCount, q.RatingCount, q.RatingAverage,
		q.CreatedAt, q.UpdatedAt)
	return translate(err)
}

func (s *quizStore) GetByID(ctx context.Context, id string) (*models.Quiz, error) {
	return scanQuiz(s.db.QueryRow(ctx, `SELECT `+quizColumns+` FROM quizzes WHERE id = $1`, id))
}

func (s *quizStore) Update(ctx context.Context, id string, p repository.QuizPatch) (*models.Quiz, error) {
	b := &queryBuilder{}
	sets := []string{"updated_at = " + b.arg(time.Now().UTC())}
	if p.Topic != nil {
		sets = append(sets, "topic = "+b.arg(*p.Topic))
	}
	if p.Description != nil {
		sets = append(sets, "description = "+b.arg(*p.Description))
	}
	if p.IsPublic != nil {
		sets = append(sets, "is_public = "+b.arg(*p.IsPublic))
	}
	if p.IsTimed != nil {
		sets = append(sets, "is_timed = "+b.arg(*p.IsTimed))
	}
	if p.TimeLimit != nil {
		sets = append(sets, "time_limit = "+b.arg(*p.TimeLimit))
	}
	if p.Tags != nil {
		sets = append(sets, "tags = "+b.arg(p.Tags))
	}
	if p.Questions != nil {
		questions, err := toJSON(p.Questions)
		if err != nil {
			return nil, err
		}
		sets = append(sets, "questions = "+b.arg(questions))
	}
	sql := `UPDATE quizzes SET ` + strings.Join(sets, ", ") +
		` WHERE id = ` + b.arg(id) + ` RETURNING ` + quizColumns
	return scanQuiz(s.db.QueryRow(ctx, sql, b.args...))
}

func (s *quizStore) Delete(ctx context.Context, id string) error {
	return mustAffect(s.db.Exec(ctx, `DELETE FROM quizzes WHERE id = $1`, id))
}

func (s *quizStore) DeleteByCreator(ctx context.Context, userID string) ([]string, error) {
	rows, err := s.db.Query(ctx, `DELETE FROM quizzes WHERE created_by = $1 RETURNING id`, userID)
	if err != nil {
		return nil, translate(err)
	}
	return collectStrings(rows)
}

type queryBuilder struct {
	args []any
}

func (b *queryBuilder) arg(v any) string {
	b.args = append(b.args, v)
	return fmt.Sprintf("$%d", len(b.args))
}

func (b *queryBuilder) where(f repository.QuizFilter) string {
	var conds []string
	if f.PublicOnly {
		conds = append(conds, "is_public = TRUE")
	}
	switch {
	case f.CreatedBy != "":
		conds = append(conds, "created_by = "+b.arg(f.CreatedBy))
	case f.ExcludeUser != "":
		conds = append(conds, "created_by <> "+b.arg(f.ExcludeUser))
	}
	if f.Difficulty != "" {
		conds = append(conds, "difficulty = "+b.arg(f.Difficulty))
	} else if len(f.Difficulties) > 0 {
		conds = append(conds, "difficulty = ANY("+b.arg(f.Difficulties)+")")
	}
	if f.QuizType != "" {
		conds = append(conds, "quiz_type = "+b.arg(f.QuizType))
	}
	if f.Tag != "" {
		conds = append(conds, b.arg(f.Tag)+" = ANY(tags)")
	}
	if f.Search != "" {
		p := b.arg("%" + escapeLike(f.Search) + "%")
		conds = append(conds, fmt.Sprintf(
			"(topic ILIKE %[1]s OR description ILIKE %[1]s OR EXISTS (SELECT 1 FROM unnest(tags) t WHERE t ILIKE %[1]s))", p))
	}
	if len(conds) == 0 {
		return ""
	}
	return " WHERE " + strings.Join(conds, " AND ")
}

func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}

func orderBy(sort string) string {
	switch sort {
	case repository.SortOldest:
		return " ORDER BY created_at ASC"
	case repository.SortPopular:
		return " ORDER BY attempt_count DESC, created_at DESC"
	case repository.SortRating:
		return " ORDER BY rating_average DESC, rating_count DESC, created_at DESC"
	default:
		return " ORDER BY created_at DESC"
	}
}

func (s *quizStore) List(ctx context.Context, f repository.QuizFilter) ([]models.Quiz, int64, error) {
	b := &queryBuilder{}
	where := b.where(f)

	var total int64
	if err := s.db.QueryRow(ctx, `SELECT COUNT(*) FROM quizzes`+where, b.args...).Scan(&total); err != nil {
		return nil, 0, translate(err)
	}

	sql := `SELECT ` + quizColumns + ` FROM quizzes` + where + orderBy(f.Sort)
	if f.Limit > 0 {
		sql += " LIMIT " + b.arg(f.Limit)
	}
	if f.Offset > 0 {
		sql += " OFFSET " + b.arg(f.Offset)
	}
	rows, err := s.db.Query(ctx, sql, b.args...)
	if err != nil {
		return nil, 0, translate(err)
	}
	quizzes, err := scanQuizzes(rows)
	if err != nil {
		return nil, 0, err
	}
	return quizzes, total, nil
}

func (s *quizStore) ListByIDs(ctx context.Context, ids []string) ([]models.Quiz, error) {
	if len(ids) == 0 {
		return []models.Quiz{}, nil
	}
	rows, err := s.db.Query(ctx,
		`SELECT `+quizColumns+` FROM quizzes WHERE id = ANY($1) ORDER BY array_position($1, id)`, ids)
	if err != nil {
		return nil, translate(err)
	}
	return scanQuizzes(rows)
}

func (s *quizStore) Count(ctx context.Context) (int64, error) {
	var n int64
	err := s.db.QueryRow(ctx, `SELECT COUNT(*) FROM quizzes`).Scan(&n)
	return n, translate(err)
}

func (s *quizStore) IncrementAttemptCount(ctx context.Context, id string) error {
	return mustAffect(s.db.Exec(ctx, `UPDATE quizzes SET attempt_count = attempt_count + 1 WHERE id = $1`, id))
}

func (s *quizStore) SetRatingStats(ctx context.Context, id string, stats models.RatingStats) error {
	return mustAffect(s.db.Exec(ctx,
		`UPDATE quizzes SET rating_count = $2, rating_average = $3 WHERE id = $1`, id, stats.Count, stats.Average))
}

type promptStore struct {
	db dbtx
}

func (s *promptStore) Create(ctx context.Context, p *models.QuizPrompt) error {
	_, err := s.db.Exec(ctx, `INSERT INTO quiz_prompts
		(id, user_id, topic, difficulty, number_of_questions, quiz_type, description, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		p.ID, p.UserID, p.Topic, p.Difficulty, p.NumberOfQuestions, p.QuizType, p.Description, p.CreatedAt)
	return translate(err)
}

func (s *promptStore) GetByID(ctx context.Context, id string) (*models.QuizPrompt, error) {
	var p models.QuizPrompt
	err := s.db.QueryRow(ctx, `SELECT id, user_id, topic, difficulty, number_of_questions, quiz_type,
		description, created_at FROM quiz_prompts WHERE id = $1`, id).
		Scan(&p.ID, &p.UserID, &p.Topic, &p.Difficulty, &p.NumberOfQuestions, &p.QuizType, &p.Description, &p.CreatedAt)
	if err != nil {
		return nil, translate(err)
	}
	return &p, nil
}

func (s *promptStore) DeleteByUser(ctx context.Context, userID string) error {
	_, err := s.db.Exec(ctx, `DELETE FROM quiz_prompts WHERE user_id = $1`, userID)
	return translate(err)
}

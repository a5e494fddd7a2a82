package pgstore

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/zart/quizzer/internal/db/repository"
	"github.com/zart/quizzer/internal/models"
)

type searchStore struct {
	db dbtx
}

func (s *searchStore) Record(ctx context.Context, query string, at time.Time) error {
	_, err := s.db.Exec(ctx, `INSERT INTO search_queries (id, query, count, last_searched)
		VALUES ($1, $2, 1, $3)
		ON CONFLICT (query) DO UPDATE SET count = search_queries.count + 1, last_searched = EXCLUDED.last_searched`,
		uuid.NewString(), query, at)
	return translate(err)
}

func (s *searchStore) Popular(ctx context.Context, limit int) ([]models.SearchQuery, error) {
	rows, err := s.db.Query(ctx, `SELECT id, query, count, last_searched FROM search_queries
		ORDER BY count DESC, last_searched DESC LIMIT $1`, limit)
	if err != nil {
		return nil, translate(err)
	}
	defer rows.Close()

	out := make([]models.SearchQuery, 0)
	for rows.Next() {
		var q models.SearchQuery
		if err := rows.Scan(&q.ID, &q.Query, &q.Count, &q.LastSearched); err != nil {
			return nil, err
		}
		out = append(out, q)
	}
	return out, rows.Err()
}

type profileStore struct {
	db dbtx
}

func (s *profileStore) Get(ctx context.Context, userID string) (*models.Profile, error) {
	var (
		p                    models.Profile
		links, badges, extra []byte
	)
	err := s.db.QueryRow(ctx, `SELECT user_id, bio, location, website, social_links, badges, extra, updated_at
		FROM profiles WHERE user_id = $1`, userID).
		Scan(&p.UserID, &p.Bio, &p.Location, &p.Website, &links, &badges, &extra, &p.UpdatedAt)
	if err != nil {
		return nil, translate(err)
	}
	if err := fromJSON(links, &p.SocialLinks); err != nil {
		return nil, err
	}
	if err := fromJSON(badges, &p.Badges); err != nil {
		return nil, err
	}
	if err := fromJSON(extra, &p.Extra); err != nil {
		return nil, err
	}
	return &p, nil
}

func (s *profileStore) Upsert(ctx context.Context, p *models.Profile) error {
	links, err := toJSON(p.SocialLinks)
	if err != nil {
		return err
	}
	var extra []byte
	if p.Extra != nil {
		if extra, err = toJSON(p.Extra); err != nil {
			return err
		}
	}
	_, err = s.db.Exec(ctx, `INSERT INTO profiles (user_id, bio, location, website, social_links, extra, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (user_id) DO UPDATE SET bio = EXCLUDED.bio, location = EXCLUDED.location,
			website = EXCLUDED.website, social_links = EXCLUDED.social_links, extra = EXCLUDED.extra,
			updated_at = EXCLUDED.updated_at`,
		p.UserID, p.Bio, p.Location, p.Website, links, extra, p.UpdatedAt)
	return translate(err)
}

// AddBadge appends the badge unless an entry with the same id exists.
func (s *profileStore) AddBadge(ctx context.Context, userID string, badge models.Badge) (bool, error) {
	entry, err := toJSON([]models.Badge{badge})
	if err != nil {
		return false, err
	}
	tag, err := s.db.Exec(ctx, `INSERT INTO profiles (user_id, badges, updated_at) VALUES ($1, $2, $3)
		ON CONFLICT (user_id) DO UPDATE SET badges = profiles.badges || EXCLUDED.badges
		WHERE NOT profiles.badges @> jsonb_build_array(jsonb_build_object('id', $4::text))`,
		userID, entry, badge.AwardedAt, badge.ID)
	if err != nil {
		return false, translate(err)
	}
	return tag.RowsAffected() > 0, nil
}

func (s *profileStore) Delete(ctx context.Context, userID string) error {
	_, err := s.db.Exec(ctx, `DELETE FROM profiles WHERE user_id = $1`, userID)
	return translate(err)
}

const statsColumns = `user_id, quizzes_created, quizzes_completed, total_score, total_questions,
	total_time_spent, points, badges_earned, last_activity`

type statsStore struct {
	db dbtx
}

func (s *statsStore) Get(ctx context.Context, userID string) (*models.UserStats, error) {
	var st models.UserStats
	err := s.db.QueryRow(ctx, `SELECT `+statsColumns+` FROM user_stats WHERE user_id = $1`, userID).
		Scan(&st.UserID, &st.QuizzesCreated, &st.QuizzesCompleted, &st.TotalScore, &st.TotalQuestions,
			&st.TotalTimeSpent, &st.Points, &st.BadgesEarned, &st.LastActivity)
	if err != nil {
		return nil, translate(err)
	}
	return &st, nil
}

func (s *statsStore) Increment(ctx context.Context, userID string, d models.StatsDelta, at time.Time) (*models.UserStats, error) {
	var st models.UserStats
	err := s.db.QueryRow(ctx, `INSERT INTO user_stats (user_id, quizzes_created, quizzes_completed, total_score,
			total_questions, total_time_spent, points, badges_earned, last_activity)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (user_id) DO UPDATE SET
			quizzes_created = user_stats.quizzes_created + EXCLUDED.quizzes_created,
			quizzes_completed = user_stats.quizzes_completed + EXCLUDED.quizzes_completed,
			total_score = user_stats.total_score + EXCLUDED.total_score,
			total_questions = user_stats.total_questions + EXCLUDED.total_questions,
			total_time_spent = user_stats.total_time_spent + EXCLUDED.total_time_spent,
			points = user_stats.points + EXCLUDED.points,
			badges_earned = user_stats.badges_earned + EXCLUDED.badges_earned,
			last_activity = EXCLUDED.last_activity
		RETURNING `+statsColumns,
		userID, d.QuizzesCreated, d.QuizzesCompleted, d.TotalScore, d.TotalQuestions, d.TotalTimeSpent,
		d.Points, d.BadgesEarned, at).
		Scan(&st.UserID, &st.QuizzesCreated, &st.QuizzesCompleted, &st.TotalScore, &st.TotalQuestions,
			&st.TotalTimeSpent, &st.Points, &st.BadgesEarned, &st.LastActivity)
	if err != nil {
		return nil, translate(err)
	}
	return &st, nil
}

func (s *statsStore) Delete(ctx context.Context, userID string) error {
	_, err := s.db.Exec(ctx, `DELETE FROM user_stats WHERE user_id = $1`, userID)
	return translate(err)
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

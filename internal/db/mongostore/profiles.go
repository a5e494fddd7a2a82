package mongostore

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/zart/quizzer/internal/db/repository"
	"github.com/zart/quizzer/internal/models"
)

type searchStore struct {
	coll *mongo.Collection
}

func (s *searchStore) Record(ctx context.Context, query string, at time.Time) error {
	update := bson.M{
		"$inc":         bson.M{"count": 1},
		"$set":         bson.M{"lastSearched": at},
		"$setOnInsert": bson.M{"_id": uuid.NewString()},
	}
	opts := options.Update().SetUpsert(true)
	_, err := s.coll.UpdateOne(ctx, bson.M{"query": query}, update, opts)
	if mongo.IsDuplicateKeyError(err) {
		_, err = s.coll.UpdateOne(ctx, bson.M{"query": query}, update, opts)
	}
	return translate(err)
}

func (s *searchStore) Popular(ctx context.Context, limit int) ([]models.SearchQuery, error) {
	opts := options.Find().
		SetSort(bson.D{{Key: "count", Value: -1}, {Key: "lastSearched", Value: -1}}).
		SetLimit(int64(limit))
	cur, err := s.coll.Find(ctx, bson.M{}, opts)
	if err != nil {
		return nil, translate(err)
	}
	out := make([]models.SearchQuery, 0)
	if err := cur.All(ctx, &out); err != nil {
		return nil, err
	}
	return out, nil
}

type profileStore struct {
	coll *mongo.Collection
}

func (s *profileStore) Get(ctx context.Context, userID string) (*models.Profile, error) {
	var profile models.Profile
	if err := s.coll.FindOne(ctx, bson.M{"_id": userID}).Decode(&profile); err != nil {
		return nil, translate(err)
	}
	return &profile, nil
}

// Upsert writes the editable fields; badges are only touched by AddBadge.
func (s *profileStore) Upsert(ctx context.Context, p *models.Profile) error {
	update := bson.M{
		"$set": bson.M{
			"bio":         p.Bio,
			"location":    p.Location,
			"website":     p.Website,
			"socialLinks": p.SocialLinks,
			"extra":       p.Extra,
			"updatedAt":   p.UpdatedAt,
		},
		"$setOnInsert": bson.M{"badges": bson.A{}},
	}
	_, err := s.coll.UpdateOne(ctx, bson.M{"_id": p.UserID}, update, options.Update().SetUpsert(true))
	return translate(err)
}

func (s *profileStore) AddBadge(ctx context.Context, userID string, badge models.Badge) (bool, error) {
	filter := bson.M{"_id": userID, "badges.id": bson.M{"$ne": badge.ID}}
	update := bson.M{
		"$push":        bson.M{"badges": badge},
		"$setOnInsert": bson.M{"socialLinks": models.SocialLinks{}, "updatedAt": badge.AwardedAt},
	}
	res, err := s.coll.UpdateOne(ctx, filter, update, options.Update().SetUpsert(true))
	if mongo.IsDuplicateKeyError(err) {
		// the profile exists and already holds the badge
		return false, nil
	}
	if err != nil {
		return false, translate(err)
	}
	return res.ModifiedCount > 0 || res.UpsertedCount > 0, nil
}

func (s *profileStore) Delete(ctx context.Context, userID string) error {
	_, err := s.coll.DeleteOne(ctx, bson.M{"_id": userID})
	return translate(err)
}

type statsStore struct {
	coll *mongo.Collection
}

func (s *statsStore) Get(ctx context.Context, userID string) (*models.UserStats, error) {
	var stats models.UserStats
	if err := s.coll.FindOne(ctx, bson.M{"_id": userID}).Decode(&stats); err != nil {
		return nil, translate(err)
	}
	return &stats, nil
}

func (s *statsStore) Increment(ctx context.Context, userID string, d models.StatsDelta, at time.Time) (*models.UserStats, error) {
	update := bson.M{
		"$inc": bson.M{
			"quizzesCreated":   d.QuizzesCreated,
			"quizzesCompleted": d.QuizzesCompleted,
			"totalScore":       d.TotalScore,
			"totalQuestions":   d.TotalQuestions,
			"totalTimeSpent":   d.TotalTimeSpent,
			"points":           d.Points,
			"badgesEarned":     d.BadgesEarned,
		},
		"$set": bson.M{"lastActivity": at},
	}
	opts := options.FindOneAndUpdate().SetUpsert(true).SetReturnDocument(options.After)
	var stats models.UserStats
	if err := s.coll.FindOneAndUpdate(ctx, bson.M{"_id": userID}, update, opts).Decode(&stats); err != nil {
		return nil, translate(err)
	}
	return &stats, nil
}

func (s *statsStore) Delete(ctx context.Context, userID string) error {
	_, err := s.coll.DeleteOne(ctx, bson.M{"_id": userID})
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

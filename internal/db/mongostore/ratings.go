package mongostore

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/zart/quizzer/internal/db/repository"
	"github.com/zart/quizzer/internal/models"
)

type ratingStore struct {
	coll *mongo.Collection
}

// Upsert writes one rating per (user, quiz). A concurrent first insert that
// loses the unique-index race is retried once as an update.
func (s *ratingStore) Upsert(ctx context.Context, rating *models.QuizRating) error {
	filter := bson.M{"userId": rating.UserID, "quizId": rating.QuizID}
	id := rating.ID
	if id == "" {
		id = uuid.NewString()
	}
	update := bson.M{
		"$set":         bson.M{"rating": rating.Rating, "updatedAt": rating.UpdatedAt},
		"$setOnInsert": bson.M{"_id": id, "createdAt": rating.CreatedAt},
	}
	opts := options.Update().SetUpsert(true)

	_, err := s.coll.UpdateOne(ctx, filter, update, opts)
	if mongo.IsDuplicateKeyError(err) {
		_, err = s.coll.UpdateOne(ctx, filter, update, opts)
	}
	return translate(err)
}

func (s *ratingStore) Get(ctx context.Context, userID, quizID string) (*models.QuizRating, error) {
	var rating models.QuizRating
	if err := s.coll.FindOne(ctx, bson.M{"userId": userID, "quizId": quizID}).Decode(&rating); err != nil {
		return nil, translate(err)
	}
	return &rating, nil
}

func (s *ratingStore) Aggregate(ctx context.Context, quizID string) (models.RatingStats, error) {
	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: bson.M{"quizId": quizID}}},
		{{Key: "$group", Value: bson.M{
			"_id":     nil,
			"count":   bson.M{"$sum": 1},
			"average": bson.M{"$avg": "$rating"},
		}}},
	}
	cur, err := s.coll.Aggregate(ctx, pipeline)
	if err != nil {
		return models.RatingStats{}, translate(err)
	}
	var docs []struct {
		Count   int64   `bson:"count"`
		Average float64 `bson:"average"`
	}
	if err := cur.All(ctx, &docs); err != nil {
		return models.RatingStats{}, err
	}
	if len(docs) == 0 {
		return models.RatingStats{}, nil
	}
	return models.RatingStats{Count: docs[0].Count, Average: docs[0].Average}, nil
}

func (s *ratingStore) QuizIDsByUser(ctx context.Context, userID string) ([]string, error) {
	values, err := s.coll.Distinct(ctx, "quizId", bson.M{"userId": userID})
	if err != nil {
		return nil, translate(err)
	}
	ids := make([]string, 0, len(values))
	for _, v := range values {
		id, ok := v.(string)
		if !ok {
			return nil, fmt.Errorf("unexpected quizId type %T", v)
		}
		ids = append(ids, id)
	}
	return ids, nil
}

func (s *ratingStore) DeleteByUser(ctx context.Context, userID string) error {
	_, err := s.coll.DeleteMany(ctx, bson.M{"userId": userID})
	return translate(err)
}

type savedStore struct {
	coll *mongo.Collection
}

func (s *savedStore) Save(ctx context.Context, saved *models.SavedQuiz) (bool, error) {
	_, err := s.coll.InsertOne(ctx, saved)
	if err == nil {
		return true, nil
	}
	if err = translate(err); errors.Is(err, repository.ErrDuplicate) {
		return false, nil
	}
	return false, err
}

func (s *savedStore) Remove(ctx context.Context, userID, quizID string) (bool, error) {
	res, err := s.coll.DeleteOne(ctx, bson.M{"userId": userID, "quizId": quizID})
	if err != nil {
		return false, translate(err)
	}
	return res.DeletedCount > 0, nil
}

func (s *savedStore) ListQuizIDs(ctx context.Context, userID string) ([]string, error) {
	opts := options.Find().
		SetSort(bson.D{{Key: "createdAt", Value: -1}}).
		SetProjection(bson.M{"quizId": 1})
	cur, err := s.coll.Find(ctx, bson.M{"userId": userID}, opts)
	if err != nil {
		return nil, translate(err)
	}
	var docs []struct {
		QuizID string `bson:"quizId"`
	}
	if err := cur.All(ctx, &docs); err != nil {
		return nil, err
	}
	ids := make([]string, len(docs))
	for i, d := range docs {
		ids[i] = d.QuizID
	}
	return ids, nil
}

func (s *savedStore) IsSaved(ctx context.Context, userID, quizID string) (bool, error) {
	n, err := s.coll.CountDocuments(ctx, bson.M{"userId": userID, "quizId": quizID}, options.Count().SetLimit(1))
	if err != nil {
		return false, translate(err)
	}
	return n > 0, nil
}

func (s *savedStore) DeleteByUser(ctx context.Context, userID string) error {
	_, err := s.coll.DeleteMany(ctx, bson.M{"userId": userID})
	return translate(err)
}

func (s *savedStore) DeleteByQuiz(ctx context.Context, quizID string) error {
	_, err := s.coll.DeleteMany(ctx, bson.M{"quizId": quizID})
	return translate(err)
}

package mongostore

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/zart/quizzer/internal/db/repository"
	"github.com/zart/quizzer/internal/models"
)

type attemptStore struct {
	coll *mongo.Collection
}

func (s *attemptStore) Create(ctx context.Context, attempt *models.QuizAttempt) error {
	if _, err := s.coll.InsertOne(ctx, attempt); err != nil {
		return translate(err)
	}
	return nil
}

func (s *attemptStore) GetByID(ctx context.Context, id string) (*models.QuizAttempt, error) {
	var attempt models.QuizAttempt
	if err := s.coll.FindOne(ctx, bson.M{"_id": id}).Decode(&attempt); err != nil {
		return nil, translate(err)
	}
	return &attempt, nil
}

func (s *attemptStore) ListByUser(ctx context.Context, userID string, offset, limit int64) ([]models.QuizAttempt, int64, error) {
	filter := bson.M{"userId": userID}
	total, err := s.coll.CountDocuments(ctx, filter)
	if err != nil {
		return nil, 0, translate(err)
	}
	opts := options.Find().SetSort(bson.D{{Key: "submittedAt", Value: -1}}).SetSkip(offset)
	if limit > 0 {
		opts.SetLimit(limit)
	}
	cur, err := s.coll.Find(ctx, filter, opts)
	if err != nil {
		return nil, 0, translate(err)
	}
	attempts := make([]models.QuizAttempt, 0)
	if err := cur.All(ctx, &attempts); err != nil {
		return nil, 0, err
	}
	return attempts, total, nil
}

// RecentQuizIDs returns distinct quiz ids the user attempted, newest first.
func (s *attemptStore) RecentQuizIDs(ctx context.Context, userID string, limit int) ([]string, error) {
	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: bson.M{"userId": userID}}},
		{{Key: "$group", Value: bson.M{"_id": "$quizId", "last": bson.M{"$max": "$submittedAt"}}}},
		{{Key: "$sort", Value: bson.D{{Key: "last", Value: -1}}}},
		{{Key: "$limit", Value: limit}},
	}
	cur, err := s.coll.Aggregate(ctx, pipeline)
	if err != nil {
		return nil, translate(err)
	}
	var docs []idDoc
	if err := cur.All(ctx, &docs); err != nil {
		return nil, err
	}
	ids := make([]string, len(docs))
	for i, d := range docs {
		ids[i] = d.ID
	}
	return ids, nil
}

// TopQuizzesSince counts attempts per quiz since the given time.
func (s *attemptStore) TopQuizzesSince(ctx context.Context, since time.Time, limit int) ([]repository.QuizCount, error) {
	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: bson.M{"submittedAt": bson.M{"$gte": since}}}},
		{{Key: "$group", Value: bson.M{"_id": "$quizId", "count": bson.M{"$sum": 1}}}},
		{{Key: "$sort", Value: bson.D{{Key: "count", Value: -1}, {Key: "_id", Value: 1}}}},
		{{Key: "$limit", Value: limit}},
	}
	cur, err := s.coll.Aggregate(ctx, pipeline)
	if err != nil {
		return nil, translate(err)
	}
	var docs []countDoc
	if err := cur.All(ctx, &docs); err != nil {
		return nil, err
	}
	out := make([]repository.QuizCount, len(docs))
	for i, d := range docs {
		out[i] = repository.QuizCount{QuizID: d.ID, Count: d.Count}
	}
	return out, nil
}

func (s *attemptStore) DeleteByUser(ctx context.Context, userID string) error {
	_, err := s.coll.DeleteMany(ctx, bson.M{"userId": userID})
	return translate(err)
}

func (s *attemptStore) Count(ctx context.Context) (int64, error) {
	return s.coll.CountDocuments(ctx, bson.M{})
}

package mongostore

import (
	"context"
	"regexp"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/zart/quizzer/internal/db/repository"
	"github.com/zart/quizzer/internal/models"
)

type quizStore struct {
	coll *mongo.Collection
}

func (s *quizStore) Create(ctx context.Context, quiz *models.Quiz) error {
	if _, err := s.coll.InsertOne(ctx, quiz); err != nil {
		return translate(err)
	}
	return nil
}

func (s *quizStore) GetByID(ctx context.Context, id string) (*models.Quiz, error) {
	var quiz models.Quiz
	if err := s.coll.FindOne(ctx, bson.M{"_id": id}).Decode(&quiz); err != nil {
		return nil, translate(err)
	}
	return &quiz, nil
}

func (s *quizStore) Update(ctx context.Context, id string, patch repository.QuizPatch) (*models.Quiz, error) {
	set := bson.M{"updatedAt": time.Now().UTC()}
	if patch.Topic != nil {
		set["topic"] = *patch.Topic
	}
	if patch.Description != nil {
		set["description"] = *patch.Description
	}
	if patch.IsPublic != nil {
		set["isPublic"] = *patch.IsPublic
	}
	if patch.IsTimed != nil {
		set["isTimed"] = *patch.IsTimed
	}
	if patch.TimeLimit != nil {
		set["timeLimit"] = *patch.TimeLimit
	}
	if patch.Tags != nil {
		set["tags"] = patch.Tags
	}
	if patch.Questions != nil {
		set["questions"] = patch.Questions
	}

	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	var quiz models.Quiz
	if err := s.coll.FindOneAndUpdate(ctx, bson.M{"_id": id}, bson.M{"$set": set}, opts).Decode(&quiz); err != nil {
		return nil, translate(err)
	}
	return &quiz, nil
}

func (s *quizStore) Delete(ctx context.Context, id string) error {
	res, err := s.coll.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return translate(err)
	}
	if res.DeletedCount == 0 {
		return repository.ErrNotFound
	}
	return nil
}

func (s *quizStore) DeleteByCreator(ctx context.Context, userID string) ([]string, error) {
	filter := bson.M{"createdBy": userID}
	cur, err := s.coll.Find(ctx, filter, options.Find().SetProjection(bson.M{"_id": 1}))
	if err != nil {
		return nil, translate(err)
	}
	var docs []idDoc
	if err := cur.All(ctx, &docs); err != nil {
		return nil, err
	}
	if len(docs) == 0 {
		return nil, nil
	}
	if _, err := s.coll.DeleteMany(ctx, filter); err != nil {
		return nil, translate(err)
	}
	ids := make([]string, len(docs))
	for i, d := range docs {
		ids[i] = d.ID
	}
	return ids, nil
}

func buildQuizFilter(f repository.QuizFilter) bson.M {
	filter := bson.M{}
	if f.PublicOnly {
		filter["isPublic"] = true
	}
	switch {
	case f.CreatedBy != "":
		filter["createdBy"] = f.CreatedBy
	case f.ExcludeUser != "":
		filter["createdBy"] = bson.M{"$ne": f.ExcludeUser}
	}
	if f.Difficulty != "" {
		filter["difficulty"] = f.Difficulty
	} else if len(f.Difficulties) > 0 {
		filter["difficulty"] = bson.M{"$in": f.Difficulties}
	}
	if f.QuizType != "" {
		filter["quizType"] = f.QuizType
	}
	if f.Tag != "" {
		filter["tags"] = f.Tag
	}
	if f.Search != "" {
		rx := primitive.Regex{Pattern: regexp.QuoteMeta(f.Search), Options: "i"}
		filter["$or"] = bson.A{
			bson.M{"topic": rx},
			bson.M{"description": rx},
			bson.M{"tags": rx},
		}
	}
	return filter
}

func quizSort(sort string) bson.D {
	switch sort {
	case repository.SortOldest:
		return bson.D{{Key: "createdAt", Value: 1}}
	case repository.SortPopular:
		return bson.D{{Key: "attemptCount", Value: -1}, {Key: "createdAt", Value: -1}}
	case repository.SortRating:
		return bson.D{{Key: "ratingAverage", Value: -1}, {Key: "ratingCount", Value: -1}, {Key: "createdAt", Value: -1}}
	default:
		return bson.D{{Key: "createdAt", Value: -1}}
	}
}

func (s *quizStore) List(ctx context.Context, f repository.QuizFilter) ([]models.Quiz, int64, error) {
	filter := buildQuizFilter(f)

	total, err := s.coll.CountDocuments(ctx, filter)
	if err != nil {
		return nil, 0, translate(err)
	}

	opts := options.Find().SetSort(quizSort(f.Sort)).SetSkip(f.Offset)
	if f.Limit > 0 {
		opts.SetLimit(f.Limit)
	}
	cur, err := s.coll.Find(ctx, filter, opts)
	if err != nil {
		return nil, 0, translate(err)
	}
	quizzes := make([]models.Quiz, 0)
	if err := cur.All(ctx, &quizzes); err != nil {
		return nil, 0, err
	}
	return quizzes, total, nil
}

// ListByIDs returns quizzes in the order of ids, skipping missing ones.
func (s *quizStore) ListByIDs(ctx context.Context, ids []string) ([]models.Quiz, error) {
	if len(ids) == 0 {
		return []models.Quiz{}, nil
	}
	cur, err := s.coll.Find(ctx, bson.M{"_id": bson.M{"$in": ids}})
	if err != nil {
		return nil, translate(err)
	}
	var found []models.Quiz
	if err := cur.All(ctx, &found); err != nil {
		return nil, err
	}
	return orderByIDs(found, ids), nil
}

func orderByIDs(found []models.Quiz, ids []string) []models.Quiz {
	byID := make(map[string]models.Quiz, len(found))
	for _, q := range found {
		byID[q.ID] = q
	}
	out := make([]models.Quiz, 0, len(found))
	for _, id := range ids {
		if q, ok := byID[id]; ok {
			out = append(out, q)
		}
	}
	return out
}

func (s *quizStore) Count(ctx context.Context) (int64, error) {
	return s.coll.CountDocuments(ctx, bson.M{})
}

func (s *quizStore) IncrementAttemptCount(ctx context.Context, id string) error {
	res, err := s.coll.UpdateOne(ctx, bson.M{"_id": id}, bson.M{"$inc": bson.M{"attemptCount": 1}})
	if err != nil {
		return translate(err)
	}
	if res.MatchedCount == 0 {
		return repository.ErrNotFound
	}
	return nil
}

func (s *quizStore) SetRatingStats(ctx context.Context, id string, stats models.RatingStats) error {
	update := bson.M{"$set": bson.M{"ratingCount": stats.Count, "ratingAverage": stats.Average}}
	res, err := s.coll.UpdateOne(ctx, bson.M{"_id": id}, update)
	if err != nil {
		return translate(err)
	}
	if res.MatchedCount == 0 {
		return repository.ErrNotFound
	}
	return nil
}

type promptStore struct {
	coll *mongo.Collection
}

func (s *promptStore) Create(ctx context.Context, prompt *models.QuizPrompt) error {
	if _, err := s.coll.InsertOne(ctx, prompt); err != nil {
		return translate(err)
	}
	return nil
}

func (s *promptStore) GetByID(ctx context.Context, id string) (*models.QuizPrompt, error) {
	var prompt models.QuizPrompt
	if err := s.coll.FindOne(ctx, bson.M{"_id": id}).Decode(&prompt); err != nil {
		return nil, translate(err)
	}
	return &prompt, nil
}

func (s *promptStore) DeleteByUser(ctx context.Context, userID string) error {
	_, err := s.coll.DeleteMany(ctx, bson.M{"userId": userID})
	return translate(err)
}

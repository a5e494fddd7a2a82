package mongostore

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/zart/quizzer/internal/db/repository"
	"github.com/zart/quizzer/internal/models"
)

type userStore struct {
	coll *mongo.Collection
}

var providerFields = map[string]string{
	models.ProviderGoogle:   "googleId",
	models.ProviderGitHub:   "githubId",
	models.ProviderFacebook: "facebookId",
}

func (s *userStore) Create(ctx context.Context, user *models.User) error {
	if err := user.Validate(); err != nil {
		return fmt.Errorf("validate user: %w", err)
	}
	if _, err := s.coll.InsertOne(ctx, user); err != nil {
		return translate(err)
	}
	return nil
}

func (s *userStore) findOne(ctx context.Context, filter bson.M) (*models.User, error) {
	var user models.User
	if err := s.coll.FindOne(ctx, filter).Decode(&user); err != nil {
		return nil, translate(err)
	}
	return &user, nil
}

func (s *userStore) GetByID(ctx context.Context, id string) (*models.User, error) {
	return s.findOne(ctx, bson.M{"_id": id})
}

func (s *userStore) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	return s.findOne(ctx, bson.M{"email": email})
}

func (s *userStore) GetByUsername(ctx context.Context, username string) (*models.User, error) {
	return s.findOne(ctx, bson.M{"username": username})
}

func (s *userStore) GetByProviderID(ctx context.Context, provider, providerID string) (*models.User, error) {
	field, ok := providerFields[provider]
	if !ok {
		return nil, fmt.Errorf("unknown provider %q", provider)
	}
	return s.findOne(ctx, bson.M{field: providerID})
}

func (s *userStore) Update(ctx context.Context, user *models.User) error {
	if err := user.Validate(); err != nil {
		return fmt.Errorf("validate user: %w", err)
	}
	res, err := s.coll.ReplaceOne(ctx, bson.M{"_id": user.ID}, user)
	if err != nil {
		return translate(err)
	}
	if res.MatchedCount == 0 {
		return repository.ErrNotFound
	}
	return nil
}

func (s *userStore) set(ctx context.Context, id string, fields bson.M) error {
	res, err := s.coll.UpdateOne(ctx, bson.M{"_id": id}, bson.M{"$set": fields})
	if err != nil {
		return translate(err)
	}
	if res.MatchedCount == 0 {
		return repository.ErrNotFound
	}
	return nil
}

func (s *userStore) UpdateLastLogin(ctx context.Context, id string, at time.Time) error {
	return s.set(ctx, id, bson.M{"lastLogin": at, "updatedAt": at})
}

func (s *userStore) UpdatePassword(ctx context.Context, id, hash string, at time.Time) error {
	return s.set(ctx, id, bson.M{"passwordHash": hash, "passwordChangedAt": at, "updatedAt": at})
}

func (s *userStore) Delete(ctx context.Context, id string) error {
	res, err := s.coll.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return translate(err)
	}
	if res.DeletedCount == 0 {
		return repository.ErrNotFound
	}
	return nil
}

func (s *userStore) Count(ctx context.Context) (int64, error) {
	return s.coll.CountDocuments(ctx, bson.M{})
}

// Package mongostore implements the repository stores on MongoDB.
package mongostore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"

	"github.com/zart/quizzer/internal/db/repository"
)

// Collection names.
const (
	collUsers    = "users"
	collQuizzes  = "quizzes"
	collPrompts  = "quizprompts"
	collAttempts = "quizattempts"
	collRatings  = "quizratings"
	collSaved    = "savedquizzes"
	collSearches = "searchqueries"
	collProfiles = "profiles"
	collStats    = "userstats"
)

// Config holds connection settings.
type Config struct {
	URI            string
	Database       string
	ConnectTimeout time.Duration
}

// Open connects, pings, ensures indexes and returns the store bundle.
func Open(ctx context.Context, cfg Config, logger zerolog.Logger) (*repository.Stores, error) {
	if cfg.ConnectTimeout == 0 {
		cfg.ConnectTimeout = 10 * time.Second
	}
	connectCtx, cancel := context.WithTimeout(ctx, cfg.ConnectTimeout)
	defer cancel()

	client, err := mongo.Connect(connectCtx, options.Client().ApplyURI(cfg.URI))
	if err != nil {
		return nil, fmt.Errorf("connect mongo: %w", err)
	}
	if err := client.Ping(connectCtx, readpref.Primary()); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("ping mongo: %w", err)
	}

	db := client.Database(cfg.Database)
	if err := EnsureIndexes(connectCtx, db); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, err
	}

	logger.Info().Str("database", cfg.Database).Msg("mongo connected")

	stores := New(db)
	stores.Ping = func(ctx context.Context) error { return client.Ping(ctx, readpref.Primary()) }
	stores.Close = client.Disconnect
	return stores, nil
}

// New wires every store against db without touching the network.
func New(db *mongo.Database) *repository.Stores {
	return &repository.Stores{
		Users:    &userStore{coll: db.Collection(collUsers)},
		Quizzes:  &quizStore{coll: db.Collection(collQuizzes)},
		Prompts:  &promptStore{coll: db.Collection(collPrompts)},
		Attempts: &attemptStore{coll: db.Collection(collAttempts)},
		Ratings:  &ratingStore{coll: db.Collection(collRatings)},
		Saved:    &savedStore{coll: db.Collection(collSaved)},
		Searches: &searchStore{coll: db.Collection(collSearches)},
		Profiles: &profileStore{coll: db.Collection(collProfiles)},
		Stats:    &statsStore{coll: db.Collection(collStats)},
	}
}

// EnsureIndexes creates the secondary indexes. It is idempotent.
func EnsureIndexes(ctx context.Context, db *mongo.Database) error {
	unique := func() *options.IndexOptions { return options.Index().SetUnique(true) }
	uniqueSparse := func() *options.IndexOptions { return options.Index().SetUnique(true).SetSparse(true) }

	indexes := map[string][]mongo.IndexModel{
		collUsers: {
			{Keys: bson.D{{Key: "username", Value: 1}}, Options: unique()},
			{Keys: bson.D{{Key: "email", Value: 1}}, Options: uniqueSparse()},
			{Keys: bson.D{{Key: "googleId", Value: 1}}, Options: uniqueSparse()},
			{Keys: bson.D{{Key: "githubId", Value: 1}}, Options: uniqueSparse()},
			{Keys: bson.D{{Key: "facebookId", Value: 1}}, Options: uniqueSparse()},
		},
		collQuizzes: {
			{Keys: bson.D{{Key: "createdBy", Value: 1}}},
			{Keys: bson.D{{Key: "isPublic", Value: 1}, {Key: "createdAt", Value: -1}}},
			{Keys: bson.D{{Key: "tags", Value: 1}}},
		},
		collPrompts: {
			{Keys: bson.D{{Key: "userId", Value: 1}}},
		},
		collAttempts: {
			{Keys: bson.D{{Key: "userId", Value: 1}, {Key: "submittedAt", Value: -1}}},
			{Keys: bson.D{{Key: "quizId", Value: 1}}},
			{Keys: bson.D{{Key: "submittedAt", Value: -1}}},
		},
		collRatings: {
			{Keys: bson.D{{Key: "userId", Value: 1}, {Key: "quizId", Value: 1}}, Options: unique()},
			{Keys: bson.D{{Key: "quizId", Value: 1}}},
		},
		collSaved: {
			{Keys: bson.D{{Key: "userId", Value: 1}, {Key: "quizId", Value: 1}}, Options: unique()},
		},
		collSearches: {
			{Keys: bson.D{{Key: "query", Value: 1}}, Options: unique()},
			{Keys: bson.D{{Key: "count", Value: -1}}},
		},
	}

	for name, models := range indexes {
		if _, err := db.Collection(name).Indexes().CreateMany(ctx, models); err != nil {
			return fmt.Errorf("create indexes on %s: %w", name, err)
		}
	}
	return nil
}

// translate maps driver errors onto repository sentinels.
func translate(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, mongo.ErrNoDocuments):
		return repository.ErrNotFound
	case mongo.IsDuplicateKeyError(err):
		return fmt.Errorf("%w: %v", repository.ErrDuplicate, err)
	default:
		return err
	}
}

type idDoc struct {
	ID string `bson:"_id"`
}

type countDoc struct {
	ID    string `bson:"_id"`
	Count int64  `bson:"count"`
}

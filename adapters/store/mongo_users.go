package store

import (
	"context"
	"errors"
	"fmt"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/ggurbet/onchainsurveys/core"
	"github.com/ggurbet/onchainsurveys/ports"
)

const usersCollection = "users"

// MongoUserStore keeps users in a MongoDB collection with a unique index on public_key
type MongoUserStore struct {
	users *mongo.Collection
}

// NewMongoUserStore prepares the users collection of db
func NewMongoUserStore(ctx context.Context, db *mongo.Database) (ports.UserStore, error) {
	coll := db.Collection(usersCollection)

	_, err := coll.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "public_key", Value: 1}},
		Options: options.Index().SetUnique(true).SetName("public_key_unique"),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create users index: %w", err)
	}

	return &MongoUserStore{users: coll}, nil
}

// Register upserts user by public key; an existing document is never overwritten
func (s *MongoUserStore) Register(ctx context.Context, user *core.User) (*core.User, bool, error) {
	filter := bson.D{{Key: "public_key", Value: user.PublicKey}}
	update := bson.D{{Key: "$setOnInsert", Value: user}}

	res, err := s.users.UpdateOne(ctx, filter, update, options.UpdateOne().SetUpsert(true))
	if err != nil && !mongo.IsDuplicateKeyError(err) {
		return nil, false, fmt.Errorf("%w: register user: %v", core.ErrStoreOperationFailed, err)
	}
	if err == nil && res.UpsertedCount == 1 {
		stored := *user
		return &stored, true, nil
	}

	existing, err := s.FindByPublicKey(ctx, user.PublicKey)
	if err != nil {
		return nil, false, err
	}
	return existing, false, nil
}

// FindByPublicKey returns the user registered for publicKey
func (s *MongoUserStore) FindByPublicKey(ctx context.Context, publicKey string) (*core.User, error) {
	var user core.User
	err := s.users.FindOne(ctx, bson.D{{Key: "public_key", Value: publicKey}}).Decode(&user)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, core.ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("%w: find user: %v", core.ErrStoreOperationFailed, err)
	}
	return &user, nil
}

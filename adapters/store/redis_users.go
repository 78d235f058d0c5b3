package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/ggurbet/onchainsurveys/core"
	"github.com/ggurbet/onchainsurveys/ports"
)

// RedisUserStore keeps users as JSON documents, one key per public key
type RedisUserStore struct {
	client redis.UniversalClient
	prefix string
}

// NewRedisUserStore creates a Redis backed user registry
func NewRedisUserStore(client redis.UniversalClient) ports.UserStore {
	return &RedisUserStore{
		client: client,
		prefix: "onchainsurveys:user:",
	}
}

// Register stores user with SETNX so concurrent registrations of one key resolve to a single record
func (s *RedisUserStore) Register(ctx context.Context, user *core.User) (*core.User, bool, error) {
	payload, err := json.Marshal(user)
	if err != nil {
		return nil, false, fmt.Errorf("failed to marshal user: %w", err)
	}

	created, err := s.client.SetNX(ctx, s.prefix+user.PublicKey, payload, 0).Result()
	if err != nil {
		return nil, false, fmt.Errorf("%w: register user: %v", core.ErrStoreOperationFailed, err)
	}
	if created {
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
func (s *RedisUserStore) FindByPublicKey(ctx context.Context, publicKey string) (*core.User, error) {
	raw, err := s.client.Get(ctx, s.prefix+publicKey).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, core.ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("%w: find user: %v", core.ErrStoreOperationFailed, err)
	}

	var user core.User
	if err := json.Unmarshal(raw, &user); err != nil {
		return nil, fmt.Errorf("%w: decode user: %v", core.ErrStoreOperationFailed, err)
	}
	return &user, nil
}

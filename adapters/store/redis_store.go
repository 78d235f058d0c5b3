package store

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/ggurbet/onchainsurveys/core"
	"github.com/ggurbet/onchainsurveys/ports"
)

// DefaultRevocationPrefix namespaces revoked session token ids
const DefaultRevocationPrefix = "onchainsurveys:revoked:"

var errNonPositiveExpiry = errors.New("revocation expiry must be positive")

// RedisStore keeps revoked token ids until the tokens themselves would expire
type RedisStore struct {
	client redis.UniversalClient
	prefix string
	now    func() time.Time
}

// RedisStoreOption configures a RedisStore
type RedisStoreOption func(*RedisStore)

// WithRevocationPrefix replaces DefaultRevocationPrefix, e.g. to share one Redis between deployments
func WithRevocationPrefix(prefix string) RedisStoreOption {
	return func(s *RedisStore) { s.prefix = prefix }
}

// NewRedisStore creates a new Redis revocation store
func NewRedisStore(client redis.UniversalClient, opts ...RedisStoreOption) ports.Store {
	s := &RedisStore{
		client: client,
		prefix: DefaultRevocationPrefix,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *RedisStore) key(tokenID string) string {
	return s.prefix + tokenID
}

// InvalidateToken revokes tokenID for expiry. The value is the revocation time in unix seconds.
// A zero expiry would keep the key forever in Redis, so it is rejected.
func (s *RedisStore) InvalidateToken(ctx context.Context, tokenID string, expiry time.Duration) error {
	if expiry <= 0 {
		return fmt.Errorf("%w: %v", core.ErrStoreOperationFailed, errNonPositiveExpiry)
	}

	revokedAt := strconv.FormatInt(s.now().Unix(), 10)
	if err := s.client.Set(ctx, s.key(tokenID), revokedAt, expiry).Err(); err != nil {
		return fmt.Errorf("%w: revoke token: %v", core.ErrStoreOperationFailed, err)
	}
	return nil
}

// IsTokenInvalidated reports whether tokenID is still revoked
func (s *RedisStore) IsTokenInvalidated(ctx context.Context, tokenID string) (bool, error) {
	n, err := s.client.Exists(ctx, s.key(tokenID)).Result()
	if err != nil {
		return false, fmt.Errorf("%w: check revocation: %v", core.ErrStoreOperationFailed, err)
	}
	return n > 0, nil
}

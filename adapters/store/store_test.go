package store

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ggurbet/onchainsurveys/core"
)

func TestMemoryStoreInvalidation(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore().(*MemoryStore)

	now := time.Now()
	s.now = func() time.Time { return now }

	invalidated, err := s.IsTokenInvalidated(ctx, "jti-1")
	require.NoError(t, err)
	assert.False(t, invalidated)

	require.NoError(t, s.InvalidateToken(ctx, "jti-1", time.Minute))
	invalidated, err = s.IsTokenInvalidated(ctx, "jti-1")
	require.NoError(t, err)
	assert.True(t, invalidated)

	now = now.Add(2 * time.Minute)
	invalidated, err = s.IsTokenInvalidated(ctx, "jti-1")
	require.NoError(t, err)
	assert.False(t, invalidated, "invalidation lapses with the token")

	require.NoError(t, s.InvalidateToken(ctx, "jti-2", time.Minute))
	assert.NotContains(t, s.invalidatedTokens, "jti-1")
}

func TestMemoryUserStore(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryUserStore()

	_, err := s.FindByPublicKey(ctx, "01aa")
	assert.ErrorIs(t, err, core.ErrUserNotFound)

	first := &core.User{ID: "u1", PublicKey: "01aa", Email: "a@b.com"}
	stored, created, err := s.Register(ctx, first)
	require.NoError(t, err)
	assert.True(t, created)
	assert.Equal(t, "u1", stored.ID)

	stored, created, err = s.Register(ctx, &core.User{ID: "u2", PublicKey: "01aa", Email: "other@b.com"})
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, "u1", stored.ID, "identity is resolved by public key")
	assert.Equal(t, "a@b.com", stored.Email)

	found, err := s.FindByPublicKey(ctx, "01aa")
	require.NoError(t, err)
	assert.Equal(t, first.ID, found.ID)
}

func TestMemoryUserStoreConcurrentRegister(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryUserStore()

	var wg sync.WaitGroup
	var mu sync.Mutex
	ids := map[string]struct{}{}
	createdCount := 0

	for i := range 16 {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			stored, created, err := s.Register(ctx, &core.User{ID: string(rune('a' + i)), PublicKey: "02bb"})
			assert.NoError(t, err)
			mu.Lock()
			defer mu.Unlock()
			ids[stored.ID] = struct{}{}
			if created {
				createdCount++
			}
		}(i)
	}
	wg.Wait()

	assert.Len(t, ids, 1)
	assert.Equal(t, 1, createdCount)
}

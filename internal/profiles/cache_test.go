package profiles

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"graphreview/api/internal/mention"
)

type countingSource struct {
	calls int
	users []mention.UserIdentity
	err   error
}

func (s *countingSource) ListUserProfiles(context.Context) ([]mention.UserIdentity, error) {
	s.calls++
	return s.users, s.err
}

func setupCache(t *testing.T, source mention.Directory) (*Cache, *miniredis.Miniredis) {
	t.Helper()
	s := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: s.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewCache(client, source, time.Minute, zerolog.Nop()), s
}

func TestCacheServesFromRedisUntilExpiry(t *testing.T) {
	source := &countingSource{users: []mention.UserIdentity{{ID: "u1", Name: "Jane Doe", Email: "jane@example.com"}}}
	cache, s := setupCache(t, source)
	ctx := context.Background()

	first, err := cache.ListUserProfiles(ctx)
	require.NoError(t, err)
	second, err := cache.ListUserProfiles(ctx)
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, 1, source.calls)
	assert.True(t, s.Exists(defaultKey))

	s.FastForward(2 * time.Minute)
	_, err = cache.ListUserProfiles(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, source.calls)
}

func TestCacheInvalidate(t *testing.T) {
	source := &countingSource{users: []mention.UserIdentity{{ID: "u1"}}}
	cache, _ := setupCache(t, source)
	ctx := context.Background()

	_, err := cache.ListUserProfiles(ctx)
	require.NoError(t, err)
	require.NoError(t, cache.Invalidate(ctx))
	_, err = cache.ListUserProfiles(ctx)
	require.NoError(t, err)

	assert.Equal(t, 2, source.calls)
}

func TestCacheSourceFailureNotCached(t *testing.T) {
	source := &countingSource{err: errors.New("db down")}
	cache, s := setupCache(t, source)

	_, err := cache.ListUserProfiles(context.Background())
	require.Error(t, err)
	assert.False(t, s.Exists(defaultKey))
}

func TestCacheFallsThroughWhenRedisDown(t *testing.T) {
	source := &countingSource{users: []mention.UserIdentity{{ID: "u1"}}}
	cache, s := setupCache(t, source)
	s.Close()

	users, err := cache.ListUserProfiles(context.Background())
	require.NoError(t, err)
	assert.Len(t, users, 1)
}

func TestCacheDiscardsCorruptEntry(t *testing.T) {
	source := &countingSource{users: []mention.UserIdentity{{ID: "u1"}}}
	cache, s := setupCache(t, source)
	require.NoError(t, s.Set(defaultKey, "{broken"))

	users, err := cache.ListUserProfiles(context.Background())
	require.NoError(t, err)
	assert.Len(t, users, 1)
	assert.Equal(t, 1, source.calls)
}

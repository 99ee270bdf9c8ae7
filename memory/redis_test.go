package memory

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// setupRedis creates a miniredis instance and returns a connected store.
func setupRedis(t *testing.T) (*Redis, *miniredis.Miniredis) {
	t.Helper()

	mr := miniredis.RunT(t)
	s, err := NewRedis(RedisOptions{URL: "redis://" + mr.Addr()})
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s, mr
}

func TestNewRedisInvalidURL(t *testing.T) {
	_, err := NewRedis(RedisOptions{URL: "not-a-url"})
	assert.Error(t, err)
}

func TestRedisSetGet(t *testing.T) {
	s, _ := setupRedis(t)
	ctx := context.Background()

	require.NoError(t, s.Set(ctx, "k", []byte("v"), time.Minute))

	value, ok, err := s.Get(ctx, "k")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, []byte("v"), value)

	_, ok, err = s.Get(ctx, "missing")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestRedisTTLExpiry(t *testing.T) {
	s, mr := setupRedis(t)
	ctx := context.Background()

	require.NoError(t, s.Set(ctx, "k", []byte("v"), time.Minute))
	mr.FastForward(2 * time.Minute)

	_, ok, err := s.Get(ctx, "k")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestRedisSetIfAbsent(t *testing.T) {
	s, _ := setupRedis(t)
	ctx := context.Background()

	stored, err := s.SetIfAbsent(ctx, "k", []byte("first"), time.Minute)
	require.NoError(t, err)
	assert.True(t, stored)

	stored, err = s.SetIfAbsent(ctx, "k", []byte("second"), time.Minute)
	require.NoError(t, err)
	assert.False(t, stored)

	value, _, err := s.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, []byte("first"), value)
}

func TestRedisDelete(t *testing.T) {
	s, _ := setupRedis(t)
	ctx := context.Background()

	require.NoError(t, s.Set(ctx, "k", []byte("v"), 0))
	require.NoError(t, s.Delete(ctx, "k"))

	_, ok, err := s.Get(ctx, "k")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestRedisLock(t *testing.T) {
	s, _ := setupRedis(t)
	ctx := context.Background()

	release, err := s.Lock(ctx, "lk", time.Minute)
	require.NoError(t, err)

	_, err = s.Lock(ctx, "lk", time.Minute)
	assert.ErrorIs(t, err, ErrLockHeld)

	release()
	release2, err := s.Lock(ctx, "lk", time.Minute)
	require.NoError(t, err)
	release2()
}

func TestRedisLockExpiryHandover(t *testing.T) {
	s, mr := setupRedis(t)
	ctx := context.Background()

	staleRelease, err := s.Lock(ctx, "lk", time.Minute)
	require.NoError(t, err)

	mr.FastForward(2 * time.Minute)
	_, err = s.Lock(ctx, "lk", time.Minute)
	require.NoError(t, err)

	// The stale holder's release must not free the new holder's lock.
	staleRelease()
	_, err = s.Lock(ctx, "lk", time.Minute)
	assert.ErrorIs(t, err, ErrLockHeld)
}

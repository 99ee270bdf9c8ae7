package memory

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInProcessSetGet(t *testing.T) {
	s := NewInProcess()
	ctx := context.Background()

	require.NoError(t, s.Set(ctx, "k", []byte("v"), 0))

	value, ok, err := s.Get(ctx, "k")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, []byte("v"), value)

	_, ok, err = s.Get(ctx, "missing")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestInProcessRejectsEmptyKey(t *testing.T) {
	s := NewInProcess()
	ctx := context.Background()

	_, _, err := s.Get(ctx, "")
	assert.ErrorIs(t, err, ErrInvalidKey)
	assert.ErrorIs(t, s.Set(ctx, "", nil, 0), ErrInvalidKey)
	assert.ErrorIs(t, s.Delete(ctx, ""), ErrInvalidKey)
}

func TestInProcessTTLExpiry(t *testing.T) {
	s := NewInProcess()
	ctx := context.Background()
	clock := time.Now()
	s.now = func() time.Time { return clock }

	require.NoError(t, s.Set(ctx, "k", []byte("v"), time.Minute))

	_, ok, err := s.Get(ctx, "k")
	require.NoError(t, err)
	assert.True(t, ok)

	clock = clock.Add(2 * time.Minute)
	_, ok, err = s.Get(ctx, "k")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestInProcessSetIfAbsent(t *testing.T) {
	s := NewInProcess()
	ctx := context.Background()
	clock := time.Now()
	s.now = func() time.Time { return clock }

	stored, err := s.SetIfAbsent(ctx, "k", []byte("first"), time.Minute)
	require.NoError(t, err)
	assert.True(t, stored)

	stored, err = s.SetIfAbsent(ctx, "k", []byte("second"), time.Minute)
	require.NoError(t, err)
	assert.False(t, stored)

	value, _, err := s.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, []byte("first"), value)

	// An expired entry no longer blocks the store.
	clock = clock.Add(2 * time.Minute)
	stored, err = s.SetIfAbsent(ctx, "k", []byte("third"), time.Minute)
	require.NoError(t, err)
	assert.True(t, stored)
}

func TestInProcessValueIsolation(t *testing.T) {
	s := NewInProcess()
	ctx := context.Background()

	original := []byte("value")
	require.NoError(t, s.Set(ctx, "k", original, 0))
	original[0] = 'X'

	value, _, err := s.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, []byte("value"), value)

	value[0] = 'Y'
	again, _, err := s.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, []byte("value"), again)
}

func TestInProcessLock(t *testing.T) {
	s := NewInProcess()
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

func TestInProcessLockExpiry(t *testing.T) {
	s := NewInProcess()
	ctx := context.Background()
	clock := time.Now()
	s.now = func() time.Time { return clock }

	staleRelease, err := s.Lock(ctx, "lk", time.Minute)
	require.NoError(t, err)

	clock = clock.Add(2 * time.Minute)
	release, err := s.Lock(ctx, "lk", time.Minute)
	require.NoError(t, err)

	// Releasing the expired lock must not drop the new holder's lock.
	staleRelease()
	_, err = s.Lock(ctx, "lk", time.Minute)
	assert.ErrorIs(t, err, ErrLockHeld)
	release()
}

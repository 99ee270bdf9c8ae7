package idempotency

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/toolweave-ai/sdk/memory"
	"github.com/toolweave-ai/sdk/tool"
)

func TestCacheLookupMiss(t *testing.T) {
	c := NewCache(memory.NewInProcess())

	result, err := c.Lookup(context.Background(), "no-such-key")
	require.NoError(t, err)
	assert.Nil(t, result)
}

func TestCacheStoreAndLookup(t *testing.T) {
	c := NewCache(memory.NewInProcess())
	ctx := context.Background()

	stored := &tool.Result{
		Content:   map[string]any{"status": "paid"},
		LatencyMS: 12,
		Usage:     &tool.Usage{Attempts: 1},
	}
	require.NoError(t, c.Store(ctx, "k1", stored, time.Minute))

	got, err := c.Lookup(ctx, "k1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, map[string]any{"status": "paid"}, got.Content)
	assert.Equal(t, int64(12), got.LatencyMS)
	require.NotNil(t, got.Usage)
	assert.Equal(t, 1, got.Usage.Attempts)
}

func TestCacheKeysAreNamespaced(t *testing.T) {
	store := memory.NewInProcess()
	c := NewCache(store)
	ctx := context.Background()

	require.NoError(t, c.Store(ctx, "k1", &tool.Result{Content: "x"}, time.Minute))

	_, ok, err := store.Get(ctx, "idemp:k1")
	require.NoError(t, err)
	assert.True(t, ok)

	_, ok, err = store.Get(ctx, "k1")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestCacheLockSerializesKey(t *testing.T) {
	c := NewCache(memory.NewInProcess())
	ctx := context.Background()
	spec := &tool.Spec{ID: "payment", Name: "payment"}

	release, err := c.Lock(ctx, "k1", spec)
	require.NoError(t, err)

	_, err = c.Lock(ctx, "k1", spec)
	require.Error(t, err)

	// A different key is not blocked.
	release2, err := c.Lock(ctx, "k2", spec)
	require.NoError(t, err)
	release2()

	release()
	release3, err := c.Lock(ctx, "k1", spec)
	require.NoError(t, err)
	release3()
}

package limiter

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/toolweave-ai/sdk/toolerr"
)

func TestNoopAdmitsImmediately(t *testing.T) {
	release, err := Noop{}.Acquire(context.Background(), "scan")
	require.NoError(t, err)
	release()
}

func TestTokenBucketAdmitsWithinBurst(t *testing.T) {
	l := NewTokenBucket(1, 3)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		release, err := l.Acquire(ctx, "scan")
		require.NoError(t, err)
		release()
	}
}

func TestTokenBucketBlocksUntilContextExpires(t *testing.T) {
	l := NewTokenBucket(0.001, 1)
	ctx := context.Background()

	release, err := l.Acquire(ctx, "scan")
	require.NoError(t, err)
	release()

	// Bucket is drained; the next acquire cannot succeed in time.
	ctx, cancel := context.WithTimeout(ctx, 20*time.Millisecond)
	defer cancel()
	_, err = l.Acquire(ctx, "scan")
	require.Error(t, err)
	assert.Equal(t, toolerr.CodeRateLimited, toolerr.Code(err))
}

func TestTokenBucketScopesAreIndependent(t *testing.T) {
	l := NewTokenBucket(0.001, 1)
	ctx := context.Background()

	release, err := l.Acquire(ctx, "scan:alice")
	require.NoError(t, err)
	release()

	// A different scope key has its own full bucket.
	release, err = l.Acquire(ctx, "scan:bob")
	require.NoError(t, err)
	release()
}

func TestConcurrencyBoundsInFlightCalls(t *testing.T) {
	l := NewConcurrency(1)
	ctx := context.Background()

	release, err := l.Acquire(ctx, "scan")
	require.NoError(t, err)

	blocked, cancel := context.WithTimeout(ctx, 20*time.Millisecond)
	defer cancel()
	_, err = l.Acquire(blocked, "scan")
	require.Error(t, err)
	assert.Equal(t, toolerr.CodeRateLimited, toolerr.Code(err))

	release()
	release2, err := l.Acquire(ctx, "scan")
	require.NoError(t, err)
	release2()
}

func TestConcurrencyReleaseIsIdempotent(t *testing.T) {
	l := NewConcurrency(1)
	ctx := context.Background()

	release, err := l.Acquire(ctx, "scan")
	require.NoError(t, err)
	release()
	release() // second call must not free a slot we no longer hold

	release2, err := l.Acquire(ctx, "scan")
	require.NoError(t, err)

	blocked, cancel := context.WithTimeout(ctx, 20*time.Millisecond)
	defer cancel()
	_, err = l.Acquire(blocked, "scan")
	assert.Error(t, err)
	release2()
}

package idempotency

import (
	"context"
	"fmt"
	"time"

	"github.com/toolweave-ai/sdk/tool"
)

// CachePrefix namespaces idempotency entries in the backing store.
const CachePrefix = "idemp"

// lockTTLSlack extends the cache lock beyond the invocation timeout so the
// lock outlives the slowest permitted attempt sequence.
const lockTTLSlack = 5 * time.Second

// Cache wraps a tool.Memory store with the idempotency key namespace, result
// serialization, and the scoped lock that serializes concurrent executions
// of the same key.
type Cache struct {
	store tool.Memory
}

// NewCache creates a Cache over the given store.
func NewCache(store tool.Memory) *Cache {
	return &Cache{store: store}
}

func (c *Cache) entryKey(key string) string {
	return fmt.Sprintf("%s:%s", CachePrefix, key)
}

// Lookup returns the cached result for key, or (nil, nil) on a miss.
func (c *Cache) Lookup(ctx context.Context, key string) (*tool.Result, error) {
	data, ok, err := c.store.Get(ctx, c.entryKey(key))
	if err != nil {
		return nil, fmt.Errorf("idempotency: cache lookup: %w", err)
	}
	if !ok {
		return nil, nil
	}
	result, err := tool.UnmarshalResult(data)
	if err != nil {
		return nil, fmt.Errorf("idempotency: decode cached result: %w", err)
	}
	return result, nil
}

// Store persists a result under key with the given TTL.
func (c *Cache) Store(ctx context.Context, key string, result *tool.Result, ttl time.Duration) error {
	data, err := result.Marshal()
	if err != nil {
		return fmt.Errorf("idempotency: encode result: %w", err)
	}
	if err := c.store.Set(ctx, c.entryKey(key), data, ttl); err != nil {
		return fmt.Errorf("idempotency: cache store: %w", err)
	}
	return nil
}

// Lock acquires the scoped lock guarding the lookup-invoke-store sequence
// for key. The lock TTL covers the per-attempt timeout times the attempt
// budget, plus slack, so a crashed holder cannot wedge the key forever.
// The returned release function must be called on every exit path.
func (c *Cache) Lock(ctx context.Context, key string, spec *tool.Spec) (func(), error) {
	ttl := spec.EffectiveTimeout()*time.Duration(spec.Retry.Attempts()) + lockTTLSlack
	release, err := c.store.Lock(ctx, c.entryKey(key)+":lock", ttl)
	if err != nil {
		return nil, fmt.Errorf("idempotency: acquire lock: %w", err)
	}
	return release, nil
}

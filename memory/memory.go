// Package memory provides the key-value stores used by the executor for
// idempotency caching and scoped locks. Two implementations of tool.Memory
// ship with the SDK: an in-process store for single-binary deployments and
// tests, and a Redis-backed store for fleets that must share cache entries
// and locks across processes.
package memory

import (
	"context"
	"errors"
	"sync"
	"time"
)

// Common errors returned by memory operations.
var (
	// ErrInvalidKey is returned when a key is empty.
	ErrInvalidKey = errors.New("memory: invalid key")

	// ErrLockHeld is returned when a scoped lock is already held by
	// another caller.
	ErrLockHeld = errors.New("memory: lock already held")
)

// entry is one stored value with its optional expiry.
type entry struct {
	value     []byte
	expiresAt time.Time // zero means no expiry
}

func (e entry) expired(now time.Time) bool {
	return !e.expiresAt.IsZero() && now.After(e.expiresAt)
}

// InProcess is a mutex-guarded map store with lazy TTL expiry. Values are
// copied on Set and Get so callers cannot alias the stored bytes. Locks are
// advisory entries with their own TTL, matching the semantics of the Redis
// store so the two are interchangeable.
type InProcess struct {
	mu    sync.Mutex
	data  map[string]entry
	locks map[string]time.Time
	now   func() time.Time
}

// NewInProcess returns an empty in-process store.
func NewInProcess() *InProcess {
	return &InProcess{
		data:  make(map[string]entry),
		locks: make(map[string]time.Time),
		now:   time.Now,
	}
}

// Get implements tool.Memory.
func (s *InProcess) Get(ctx context.Context, key string) ([]byte, bool, error) {
	if key == "" {
		return nil, false, ErrInvalidKey
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.data[key]
	if !ok {
		return nil, false, nil
	}
	if e.expired(s.now()) {
		delete(s.data, key)
		return nil, false, nil
	}
	out := make([]byte, len(e.value))
	copy(out, e.value)
	return out, true, nil
}

// Set implements tool.Memory. A non-positive ttl stores the value without
// expiry.
func (s *InProcess) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if key == "" {
		return ErrInvalidKey
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[key] = s.newEntry(value, ttl)
	return nil
}

// SetIfAbsent implements tool.Memory. It stores the value only when the key
// has no live entry and reports whether the store happened.
func (s *InProcess) SetIfAbsent(ctx context.Context, key string, value []byte, ttl time.Duration) (bool, error) {
	if key == "" {
		return false, ErrInvalidKey
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if e, ok := s.data[key]; ok && !e.expired(s.now()) {
		return false, nil
	}
	s.data[key] = s.newEntry(value, ttl)
	return true, nil
}

// Delete implements tool.Memory.
func (s *InProcess) Delete(ctx context.Context, key string) error {
	if key == "" {
		return ErrInvalidKey
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.data, key)
	return nil
}

// Lock implements tool.Memory. It acquires an advisory lock on key with the
// given ttl and returns the release function, or ErrLockHeld when another
// caller holds a live lock on the same key.
func (s *InProcess) Lock(ctx context.Context, key string, ttl time.Duration) (func(), error) {
	if key == "" {
		return nil, ErrInvalidKey
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	if expiry, ok := s.locks[key]; ok && now.Before(expiry) {
		return nil, ErrLockHeld
	}
	expiry := now.Add(ttl)
	s.locks[key] = expiry

	release := func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		// Release only our own lock; an expired lock may have been
		// re-acquired by another caller.
		if current, ok := s.locks[key]; ok && current.Equal(expiry) {
			delete(s.locks, key)
		}
	}
	return release, nil
}

func (s *InProcess) newEntry(value []byte, ttl time.Duration) entry {
	stored := make([]byte, len(value))
	copy(stored, value)
	e := entry{value: stored}
	if ttl > 0 {
		e.expiresAt = s.now().Add(ttl)
	}
	return e
}

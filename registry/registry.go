// Package registry stores tool specs and makes them discoverable by id.
//
// Two implementations are provided:
//
//   - InMemory: process-local storage for embedding and tests
//   - Etcd: etcd-backed storage with leases, so registrations from a crashed
//     owner expire automatically
//
// Executors and workers resolve specs through the Registry interface and do
// not care which backing store is in use.
package registry

import (
	"context"
	"errors"
	"sort"
	"sync"

	"github.com/toolweave-ai/sdk/tool"
)

// ErrNotFound is returned when no spec is registered under the requested id.
var ErrNotFound = errors.New("registry: spec not found")

// ErrClosed is returned by all operations after Close.
var ErrClosed = errors.New("registry: closed")

// Registry is the spec registration and discovery interface.
//
// Implementations must be safe for concurrent use. Registering a spec under
// an id that is already taken replaces the previous registration.
type Registry interface {
	// Register stores the spec under its ID. The spec is validated first.
	Register(ctx context.Context, spec *tool.Spec) error

	// Deregister removes the spec with the given id. Removing an id that is
	// not registered is a no-op.
	Deregister(ctx context.Context, id string) error

	// Get returns the spec registered under the given id, or ErrNotFound.
	Get(ctx context.Context, id string) (*tool.Spec, error)

	// List returns descriptors for all registered specs, sorted by id.
	List(ctx context.Context) ([]tool.Descriptor, error)

	// Watch emits the spec registered under id whenever it changes. The
	// current state is sent immediately; a nil spec means the id was
	// deregistered. The channel closes when ctx is canceled or the registry
	// is closed.
	Watch(ctx context.Context, id string) (<-chan *tool.Spec, error)

	// Close releases resources and terminates all active watches.
	Close() error
}

// InMemory is a process-local Registry.
type InMemory struct {
	mu       sync.RWMutex
	specs    map[string]tool.Spec
	watchers map[string][]chan *tool.Spec
	closed   bool
}

// NewInMemory creates an empty in-memory registry.
func NewInMemory() *InMemory {
	return &InMemory{
		specs:    make(map[string]tool.Spec),
		watchers: make(map[string][]chan *tool.Spec),
	}
}

// Register stores a copy of the spec under its ID.
func (r *InMemory) Register(ctx context.Context, spec *tool.Spec) error {
	if spec == nil {
		return errors.New("registry: spec cannot be nil")
	}
	if err := spec.Validate(); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return ErrClosed
	}
	r.specs[spec.ID] = *spec
	r.notify(spec.ID)
	return nil
}

// Deregister removes the spec with the given id.
func (r *InMemory) Deregister(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return ErrClosed
	}
	if _, ok := r.specs[id]; !ok {
		return nil
	}
	delete(r.specs, id)
	r.notify(id)
	return nil
}

// Get returns the spec registered under the given id.
func (r *InMemory) Get(ctx context.Context, id string) (*tool.Spec, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.closed {
		return nil, ErrClosed
	}
	spec, ok := r.specs[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &spec, nil
}

// List returns descriptors for all registered specs, sorted by id.
func (r *InMemory) List(ctx context.Context) ([]tool.Descriptor, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.closed {
		return nil, ErrClosed
	}
	out := make([]tool.Descriptor, 0, len(r.specs))
	for id := range r.specs {
		spec := r.specs[id]
		out = append(out, tool.ToDescriptor(&spec))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// Watch emits the spec under id on every change, starting with the current
// state.
func (r *InMemory) Watch(ctx context.Context, id string) (<-chan *tool.Spec, error) {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return nil, ErrClosed
	}

	ch := make(chan *tool.Spec, 4)
	if spec, ok := r.specs[id]; ok {
		s := spec
		ch <- &s
	} else {
		ch <- nil
	}
	r.watchers[id] = append(r.watchers[id], ch)
	r.mu.Unlock()

	go func() {
		<-ctx.Done()
		r.mu.Lock()
		defer r.mu.Unlock()
		r.removeWatcher(id, ch)
	}()

	return ch, nil
}

// Close terminates all active watches.
func (r *InMemory) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return nil
	}
	r.closed = true
	for _, chans := range r.watchers {
		for _, ch := range chans {
			close(ch)
		}
	}
	r.watchers = make(map[string][]chan *tool.Spec)
	return nil
}

// notify sends the current state of id to its watchers. Callers hold r.mu.
func (r *InMemory) notify(id string) {
	for _, ch := range r.watchers[id] {
		var update *tool.Spec
		if spec, ok := r.specs[id]; ok {
			s := spec
			update = &s
		}
		select {
		case ch <- update:
		default:
			// Watcher is not keeping up; it will catch up on the next change.
		}
	}
}

// removeWatcher drops one watcher channel for id. Callers hold r.mu.
func (r *InMemory) removeWatcher(id string, ch chan *tool.Spec) {
	if r.closed {
		return
	}
	chans := r.watchers[id]
	for i, c := range chans {
		if c == ch {
			r.watchers[id] = append(chans[:i], chans[i+1:]...)
			close(ch)
			return
		}
	}
}

// Package locks hands out one mutual-exclusion handle per key.
package locks

import (
	"context"
	"sync"
)

// Registry lazily creates a lock per key and keeps it for the life of the
// process. Distinct keys never contend.
type Registry struct {
	handles sync.Map // key -> chan struct{} (capacity 1)
}

func NewRegistry() *Registry { return &Registry{} }

// Acquire blocks until the caller holds key or ctx is done. The returned
// release func must be called exactly once; callers defer it.
func (r *Registry) Acquire(ctx context.Context, key string) (release func(), err error) {
	sem := r.handle(key)

	select {
	case sem <- struct{}{}:
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	var once sync.Once
	return func() {
		once.Do(func() { <-sem })
	}, nil
}

// Len returns the number of handles created so far.
func (r *Registry) Len() int {
	n := 0
	r.handles.Range(func(_, _ any) bool {
		n++
		return true
	})
	return n
}

func (r *Registry) handle(key string) chan struct{} {
	if v, ok := r.handles.Load(key); ok {
		return v.(chan struct{})
	}
	// Two first-time callers may both allocate; LoadOrStore keeps one.
	v, _ := r.handles.LoadOrStore(key, make(chan struct{}, 1))
	return v.(chan struct{})
}

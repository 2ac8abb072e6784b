// Package guard provides a generic exclusive-access wrapper around a single
// value. Reads take a shared lock and see a consistent snapshot; writes are
// serialized against all other readers and writers on the same instance.
//
// The cache map and the throttle registry are each guarded by their own
// instance. No transaction spans two guarded values.
package guard

import "sync"

// Value wraps one value with reader/writer exclusion.
type Value[T any] struct {
	mu sync.RWMutex
	v  T
}

// New creates a guarded value initialized to v.
func New[T any](v T) *Value[T] {
	return &Value[T]{v: v}
}

// Read returns a snapshot of the value.
//
// For reference types (map, slice, pointer) the snapshot shares backing
// storage with the guarded value; treat it as read-only and use With for any
// traversal that must not race with a concurrent Update.
func (g *Value[T]) Read() T {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.v
}

// With runs fn under the shared lock. fn must not mutate the value.
func (g *Value[T]) With(fn func(v T)) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	fn(g.v)
}

// Set replaces the value, blocking out concurrent readers and writers until
// the new value is applied.
func (g *Value[T]) Set(v T) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.v = v
}

// Update applies fn to the value under the exclusive lock and stores the
// result. For map-typed values fn may mutate in place and return its argument.
func (g *Value[T]) Update(fn func(v T) T) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.v = fn(g.v)
}

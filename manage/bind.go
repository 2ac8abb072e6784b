package manage

import (
	"context"

	"github.com/dailyyoga/datakit/bind"
)

// Bind registers a typed callback for changes to key. The subscription lives
// exactly as long as owner: when owner becomes unreachable the entry is
// dropped with no action required by the caller. Binding the same owner again
// appends another callback to its entry.
func Bind[O any, T any](m *Manager, key Key, owner *O, fn func(T)) {
	bind.Bind(m.core.binds, m.Namespace(key), owner, fn)
}

// BindVoid registers a value-less change notification for key.
func BindVoid[O any](m *Manager, key Key, owner *O, fn func()) {
	bind.BindVoid(m.core.binds, m.Namespace(key), owner, fn)
}

// BindOnce invokes completion exactly once, with the next value set for key.
func BindOnce[T any](m *Manager, key Key, completion func(T)) {
	bind.BindOnce(m.core.binds, m.Namespace(key), completion)
}

// Unbind removes owner's subscription for key. Idempotent.
func Unbind[O any](m *Manager, key Key, owner *O) {
	bind.Unbind(m.core.binds, m.Namespace(key), owner)
}

// WaitFor returns the value for key: immediately if one is already readable,
// otherwise the next value set before ctx ends.
func WaitFor[T any](ctx context.Context, m *Manager, key Key) (T, error) {
	if v, ok := Value[T](m, key); ok {
		return v, nil
	}
	return bind.WaitFor[T](ctx, m.core.binds, m.Namespace(key))
}

// Values streams every value set for key until ctx ends.
func Values[T any](ctx context.Context, m *Manager, key Key) <-chan T {
	return bind.Values[T](ctx, m.core.binds, m.Namespace(key))
}

package manage

// Accessor is a read/write handle bound at construction to one
// (manager, key) pair. It keeps no state of its own; Get and Set forward to
// the manager.
type Accessor[T any] struct {
	m   *Manager
	key Key
}

// NewAccessor creates an accessor for key on m.
func NewAccessor[T any](m *Manager, key Key) Accessor[T] {
	return Accessor[T]{m: m, key: key}
}

// Get returns the current value for the bound key.
func (a Accessor[T]) Get() (T, bool) {
	return Value[T](a.m, a.key)
}

// Set writes value for the bound key.
func (a Accessor[T]) Set(value T) {
	Set(a.m, a.key, value)
}

// ReadOnly is an Accessor without Set.
type ReadOnly[T any] struct {
	m   *Manager
	key Key
}

// NewReadOnly creates a read-only accessor for key on m.
func NewReadOnly[T any](m *Manager, key Key) ReadOnly[T] {
	return ReadOnly[T]{m: m, key: key}
}

// Get returns the current value for the bound key.
func (a ReadOnly[T]) Get() (T, bool) {
	return Value[T](a.m, a.key)
}

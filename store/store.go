// Package store defines the persistence contract consumed by the manage
// facade, plus reference backends: ephemeral process memory, a JSON-blob-per-
// namespace file store, and a flat SQLite store.
//
// Backends are synchronous and best-effort. They never surface errors on the
// hot path: a decode or I/O failure reads as an absent value, and the caller
// cannot distinguish "never written" from "failed to read". Backends own
// their encoding; the only layout the core mandates is that records are
// addressed by the namespace string.
package store

// Backend is the minimal contract every persistence mechanism satisfies.
type Backend interface {
	// Get decodes the record for namespace into out, which must be a
	// non-nil pointer. It reports whether a value was decoded; decode
	// failure is an absent value, never an error.
	Get(namespace string, out any) bool

	// Set persists value under namespace. A nil value is equivalent to
	// Remove.
	Set(namespace string, value any)

	// Remove deletes the record for namespace. Removing an absent
	// namespace is a no-op.
	Remove(namespace string)
}

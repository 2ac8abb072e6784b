// Package cache provides the process-wide in-memory cache that fronts every
// storage backend in datakit.
//
// Entries are keyed by namespace string and carry an optional reference tag:
// a read hits only while its tag matches the stored one, so callers can
// invalidate by epoch (resource version) without explicit flushes. Absence is
// cached too — a read-through that found nothing is remembered under its tag
// and not recomputed until the tag changes or the entry is flushed.
//
// The cache follows go-kit conventions: all mutation routes through a guarded
// map, concurrent read-through computes are deduplicated with singleflight.
package cache

import (
	"github.com/dailyyoga/datakit/guard"
	"github.com/dailyyoga/datakit/logger"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

// entry is one cached record. present distinguishes a cached value from
// cached absence (negative cache).
type entry struct {
	value   any
	present bool
	ref     *string
}

// Memory is a string-keyed cache safe under arbitrary concurrent callers.
type Memory struct {
	log     logger.Logger
	entries *guard.Value[map[string]entry]
	group   singleflight.Group
}

// New creates an empty cache.
func New(log logger.Logger) *Memory {
	return &Memory{
		log:     log,
		entries: guard.New(map[string]entry{}),
	}
}

// Flush removes one entry.
func (c *Memory) Flush(key string) {
	c.entries.Update(func(m map[string]entry) map[string]entry {
		delete(m, key)
		return m
	})
}

// FlushAll clears every entry.
func (c *Memory) FlushAll() {
	c.entries.Set(map[string]entry{})
}

// Len returns the number of entries, cached absences included.
func (c *Memory) Len() int {
	var n int
	c.entries.With(func(m map[string]entry) {
		n = len(m)
	})
	return n
}

// lookup returns the raw entry and whether one exists under a matching
// reference tag.
func (c *Memory) lookup(key string, ref *string) (entry, bool) {
	var e entry
	var ok bool
	c.entries.With(func(m map[string]entry) {
		e, ok = m[key]
	})
	if !ok || !refMatch(e.ref, ref) {
		return entry{}, false
	}
	return e, true
}

func (c *Memory) storeEntry(key string, e entry) {
	c.entries.Update(func(m map[string]entry) map[string]entry {
		m[key] = e
		return m
	})
}

// refMatch reports whether a stored reference tag matches the supplied one.
// Both nil counts as a match.
func refMatch(stored, supplied *string) bool {
	if stored == nil || supplied == nil {
		return stored == nil && supplied == nil
	}
	return *stored == *supplied
}

// flightKey separates the key from the tag so "k" with tag "v1" never joins
// a flight for "kv1" with no tag.
func flightKey(key string, ref *string) string {
	if ref == nil {
		return key
	}
	return key + "\x1f" + *ref
}

// Get returns the cached value for key if an entry exists under a matching
// reference tag and holds a present value of type T.
func Get[T any](c *Memory, key string, ref *string) (T, bool) {
	var zero T
	e, ok := c.lookup(key, ref)
	if !ok || !e.present {
		return zero, false
	}
	v, ok := e.value.(T)
	if !ok {
		c.log.Warn("cached value type mismatch, treating as miss",
			zap.String("key", key),
		)
		return zero, false
	}
	return v, true
}

// Set unconditionally overwrites the entry for key under the given reference
// tag and returns the value for chaining.
func Set[T any](c *Memory, key string, ref *string, v T) T {
	c.storeEntry(key, entry{value: v, present: true, ref: ref})
	return v
}

// SetAbsent records that key holds no value under the given reference tag,
// so subsequent reads with the same tag do not recompute.
func SetAbsent(c *Memory, key string, ref *string) {
	c.storeEntry(key, entry{present: false, ref: ref})
}

// GetOrSet returns the cached result for key under the given reference tag.
// On a miss it evaluates compute exactly once — including across concurrent
// callers of the same (key, tag) — stores the outcome (absence included) and
// returns it.
func GetOrSet[T any](c *Memory, key string, ref *string, compute func() (T, bool)) (T, bool) {
	var zero T
	if e, ok := c.lookup(key, ref); ok {
		if !e.present {
			return zero, false
		}
		if v, ok := e.value.(T); ok {
			return v, true
		}
		// Wrong type under a matching tag: fall through and recompute.
	}

	type outcome struct {
		v  T
		ok bool
	}

	res, _, _ := c.group.Do(flightKey(key, ref), func() (any, error) {
		// Another flight member may have already stored the result.
		if e, ok := c.lookup(key, ref); ok {
			if !e.present {
				return outcome{}, nil
			}
			if v, ok := e.value.(T); ok {
				return outcome{v: v, ok: true}, nil
			}
		}

		v, ok := compute()
		if ok {
			Set(c, key, ref, v)
		} else {
			SetAbsent(c, key, ref)
		}
		return outcome{v: v, ok: ok}, nil
	})

	out := res.(outcome)
	return out.v, out.ok
}

package manage

import (
	"time"

	"github.com/dailyyoga/datakit/cache"
	"github.com/dailyyoga/datakit/store"
	"go.uber.org/zap"
)

// Key is a domain-defined discrete value convertible to a stable string.
// Uniqueness is per Manager, not global; two managers may reuse raw keys
// without collision because every record is addressed by namespace.
type Key interface {
	RawValue() string
}

// StringKey is the plain-string Key for consumers without an enum type.
type StringKey string

// RawValue returns the key's stable string form.
func (k StringKey) RawValue() string { return string(k) }

// Config configures one Manager.
type Config struct {
	// Name namespaces every key of this manager (required). By convention
	// the consuming type's name, e.g. "Session".
	Name string `mapstructure:"name"`
	// Backend is the persistence mechanism records are written to (required).
	Backend store.Backend
	// ThrottleInterval returns the debounce window for a key. Nil or a zero
	// return means synchronous persistence with no debounce.
	ThrottleInterval func(Key) time.Duration
	// AllKeys enumerates the manager's key space. Required only for
	// RemoveAll.
	AllKeys []Key
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.Name == "" {
		return ErrInvalidName(c.Name)
	}
	if c.Backend == nil {
		return ErrNilBackend
	}
	return nil
}

// Manager is the keyed-storage facade for one consuming type: cache-first
// reads, cache-then-backend writes with optional debounce, and change
// notifications for every mutation.
type Manager struct {
	core     *Core
	name     string
	backend  store.Backend
	interval func(Key) time.Duration
	allKeys  []Key
}

// New creates a Manager on the given Core.
func New(core *Core, cfg *Config) (*Manager, error) {
	if core == nil {
		return nil, ErrNilCore
	}
	if cfg == nil {
		return nil, ErrNilConfig
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Manager{
		core:     core,
		name:     cfg.Name,
		backend:  cfg.Backend,
		interval: cfg.ThrottleInterval,
		allKeys:  cfg.AllKeys,
	}, nil
}

// Namespace returns the fully-qualified record address for key:
// "{debug-prefix}{Name}.{rawKey}".
func (m *Manager) Namespace(key Key) string {
	return m.core.debugPrefix + m.name + "." + key.RawValue()
}

func (m *Manager) throttleInterval(key Key) time.Duration {
	if m.interval == nil {
		return 0
	}
	return m.interval(key)
}

// Value returns the value for key, cache-first. On a cache miss the backend
// is read exactly once and the result — absence included — is cached under
// the namespace with no reference tag.
func Value[T any](m *Manager, key Key) (T, bool) {
	ns := m.Namespace(key)
	return cache.GetOrSet(m.core.cache, ns, nil, func() (T, bool) {
		var out T
		ok := m.backend.Get(ns, &out)
		return out, ok
	})
}

// Set writes value for key. The cache is updated synchronously, so a read
// from this instant returns value regardless of the throttle window. The
// backend write happens now when the key's throttle interval is zero,
// otherwise a deferred write is armed (or an already-armed one left to pick
// up the latest value at fire time). Subscribers are notified either way.
func Set[T any](m *Manager, key Key, value T) {
	ns := m.Namespace(key)
	cache.Set(m.core.cache, ns, nil, value)

	if interval := m.throttleInterval(key); interval > 0 {
		m.core.throttle.Schedule(ns, interval, func() {
			// Persist whatever is current at fire time, not the value
			// that armed the timer.
			if current, ok := cache.Get[T](m.core.cache, ns, nil); ok {
				m.backend.Set(ns, current)
			}
		})
	} else {
		m.backend.Set(ns, value)
	}

	m.core.binds.Send(ns, value)
}

// Remove deletes the given keys everywhere and notifies subscribers with a
// nil payload (delivered as the bound type's zero value). The order — cancel
// timer, flush cache, delete backend — narrows the window in which an
// in-flight timer fire can resurrect a removed value.
func (m *Manager) Remove(keys ...Key) {
	for _, key := range keys {
		ns := m.Namespace(key)
		m.core.throttle.Cancel(ns)
		m.core.cache.Flush(ns)
		m.backend.Remove(ns)
		m.core.binds.Send(ns, nil)
	}
}

// RemoveAll removes every enumerated key not listed in except. A manager
// configured without AllKeys logs and does nothing.
func (m *Manager) RemoveAll(except ...Key) {
	if len(m.allKeys) == 0 {
		m.core.log.Warn("RemoveAll called on a manager with no enumerated keys",
			zap.String("manager", m.name),
		)
		return
	}
	keep := make(map[string]struct{}, len(except))
	for _, k := range except {
		keep[k.RawValue()] = struct{}{}
	}
	var doomed []Key
	for _, k := range m.allKeys {
		if _, ok := keep[k.RawValue()]; !ok {
			doomed = append(doomed, k)
		}
	}
	m.Remove(doomed...)
}

// Map adapts an asynchronous (value, error) outcome into a Set. The returned
// function is handed to the async operation as its completion: on success the
// value is persisted via Set; on failure the key is cleared unless
// nonDestructive. Either way the original outcome is forwarded to completion
// on the delivery context.
func Map[T any](m *Manager, key Key, nonDestructive bool, completion func(T, error)) func(T, error) {
	return func(value T, err error) {
		if err == nil {
			Set(m, key, value)
		} else if !nonDestructive {
			m.clear(key)
		}
		if completion != nil {
			m.core.binds.Dispatch(func() {
				completion(value, err)
			})
		}
	}
}

// clear records absence for key through the set path: the cache negative-
// caches it, the backend drops the record (nil set ≡ remove) and subscribers
// get a nil notification.
func (m *Manager) clear(key Key) {
	ns := m.Namespace(key)
	m.core.throttle.Cancel(ns)
	cache.SetAbsent(m.core.cache, ns, nil)
	m.backend.Set(ns, nil)
	m.core.binds.Send(ns, nil)
}

// Package bind provides the notification bus of datakit: a registry mapping
// namespaced keys to weakly-held subscribers.
//
// Owners are held through weak pointers, so a subscription dies with its
// owner and never needs manual bookkeeping; dead entries are pruned
// opportunistically on every Send. All callbacks run on a single serialized
// delivery goroutine, so a subscriber never races with itself.
package bind

import (
	"fmt"
	"sync/atomic"
	"weak"

	"github.com/dailyyoga/datakit/guard"
	"github.com/dailyyoga/datakit/logger"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// subscriber is one owner's entry under a key. Identity is the owner, not the
// callback: re-binding the same owner appends to callbacks instead of
// creating a duplicate entry.
type subscriber struct {
	id        any
	alive     func() bool
	removed   atomic.Bool
	callbacks []func(any)
}

// Registry is the subscriber registry and delivery queue.
type Registry struct {
	log  logger.Logger
	subs *guard.Value[map[string][]*subscriber]
	q    *deliverer
}

// NewRegistry creates a registry and starts its delivery goroutine.
func NewRegistry(log logger.Logger) *Registry {
	return &Registry{
		log:  log,
		subs: guard.New(map[string][]*subscriber{}),
		q:    newDeliverer(log),
	}
}

// Close stops the delivery goroutine after draining queued deliveries.
func (r *Registry) Close() {
	r.q.close()
}

// Dispatch runs fn on the delivery context, serialized with all callback
// deliveries.
func (r *Registry) Dispatch(fn func()) {
	r.q.enqueue(fn)
}

// Bind registers a typed callback for key, held only as long as owner is
// reachable. A nil owner is a no-op. Binding the same owner to the same key
// again appends an additional callback to its entry.
func Bind[O any, T any](r *Registry, key string, owner *O, fn func(T)) {
	if owner == nil {
		return
	}
	wp := weak.Make(owner)
	r.register(key, wp, func() bool { return wp.Value() != nil }, typed(key, fn))
}

// BindVoid registers a value-less callback for key, for subscribers that only
// care that something changed.
func BindVoid[O any](r *Registry, key string, owner *O, fn func()) {
	if owner == nil {
		return
	}
	wp := weak.Make(owner)
	r.register(key, wp, func() bool { return wp.Value() != nil }, func(any) { fn() })
}

// BindOnce registers completion under an internal token and guarantees it is
// invoked exactly once, with the first value sent, even if several sends are
// already queued when the first delivery lands.
func BindOnce[T any](r *Registry, key string, completion func(T)) {
	bindOnceCancelable(r, key, completion)
}

// bindOnceCancelable is BindOnce returning a cancel func for the async
// wrappers. Cancel is idempotent and a no-op after delivery.
func bindOnceCancelable[T any](r *Registry, key string, completion func(T)) func() {
	id := uuid.NewString()
	var fired atomic.Bool

	cb := typed(key, func(v T) {
		if !fired.CompareAndSwap(false, true) {
			return
		}
		r.unregister(key, id)
		completion(v)
	})

	r.register(key, id, func() bool { return !fired.Load() }, cb)

	return func() {
		if fired.CompareAndSwap(false, true) {
			r.unregister(key, id)
		}
	}
}

// Unbind removes owner's entry for key. It is idempotent; unbinding a key
// that was never bound is a no-op.
func Unbind[O any](r *Registry, key string, owner *O) {
	if owner == nil {
		return
	}
	r.unregister(key, weak.Make(owner))
}

// Send delivers value to every surviving subscriber of key, in registration
// order, on the delivery context. Entries whose owner is gone are dropped;
// pruning rides along on every Send rather than running proactively.
func (r *Registry) Send(key string, value any) {
	type delivery struct {
		sub *subscriber
		cbs []func(any)
	}
	var deliveries []delivery

	r.subs.Update(func(m map[string][]*subscriber) map[string][]*subscriber {
		entries := m[key]
		if len(entries) == 0 {
			return m
		}
		kept := entries[:0]
		for _, s := range entries {
			if s.removed.Load() || !s.alive() {
				continue
			}
			kept = append(kept, s)
			deliveries = append(deliveries, delivery{sub: s, cbs: s.callbacks})
		}
		if len(kept) == 0 {
			delete(m, key)
		} else {
			m[key] = kept
		}
		return m
	})

	if len(deliveries) == 0 {
		return
	}

	r.q.enqueue(func() {
		for _, d := range deliveries {
			// Re-checked at delivery time: an unbind or owner death between
			// Send and delivery must suppress the callbacks.
			if d.sub.removed.Load() || !d.sub.alive() {
				continue
			}
			for _, cb := range d.cbs {
				cb(value)
			}
		}
	})
}

// Sweep prunes dead and removed entries across every key and returns the
// number dropped. Send already prunes per key; Sweep exists for the janitor.
func (r *Registry) Sweep() int {
	dropped := 0
	r.subs.Update(func(m map[string][]*subscriber) map[string][]*subscriber {
		for key, entries := range m {
			kept := entries[:0]
			for _, s := range entries {
				if s.removed.Load() || !s.alive() {
					dropped++
					continue
				}
				kept = append(kept, s)
			}
			if len(kept) == 0 {
				delete(m, key)
			} else {
				m[key] = kept
			}
		}
		return m
	})
	if dropped > 0 {
		r.log.Debug("swept dead subscribers", zap.Int("dropped", dropped))
	}
	return dropped
}

// RemoveAll drops every subscriber. Used by Core.Reset for test isolation.
func (r *Registry) RemoveAll() {
	r.subs.Update(func(m map[string][]*subscriber) map[string][]*subscriber {
		for _, entries := range m {
			for _, s := range entries {
				s.removed.Store(true)
			}
		}
		return map[string][]*subscriber{}
	})
}

func (r *Registry) register(key string, id any, alive func() bool, cb func(any)) {
	r.subs.Update(func(m map[string][]*subscriber) map[string][]*subscriber {
		for _, s := range m[key] {
			if s.id == id && !s.removed.Load() {
				s.callbacks = append(s.callbacks, cb)
				return m
			}
		}
		m[key] = append(m[key], &subscriber{id: id, alive: alive, callbacks: []func(any){cb}})
		return m
	})
}

func (r *Registry) unregister(key string, id any) {
	r.subs.Update(func(m map[string][]*subscriber) map[string][]*subscriber {
		entries := m[key]
		kept := entries[:0]
		for _, s := range entries {
			if s.id == id {
				s.removed.Store(true)
				continue
			}
			kept = append(kept, s)
		}
		if len(kept) == 0 {
			delete(m, key)
		} else {
			m[key] = kept
		}
		return m
	})
}

// typed adapts a typed callback to the registry's any-payload form. A nil
// payload (removal notification) delivers the zero value of T. A payload of
// the wrong type is a structural misuse and panics; the delivery loop
// confines the panic to a log entry.
func typed[T any](key string, fn func(T)) func(any) {
	return func(v any) {
		if v == nil {
			var zero T
			fn(zero)
			return
		}
		tv, ok := v.(T)
		if !ok {
			var zero T
			panic(fmt.Sprintf("bind: key %q delivered %T, subscriber expects %T", key, v, zero))
		}
		fn(tv)
	}
}

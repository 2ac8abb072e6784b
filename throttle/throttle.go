// Package throttle provides the deferred-write scheduler that coalesces
// bursts of writes to one namespace into a single backend persistence call.
//
// At most one timer is pending per namespace. The fire action supplied by the
// caller reads whatever value is current at fire time, so intermediate values
// inside the window are never separately persisted (last-write-wins).
package throttle

import (
	"time"

	"github.com/dailyyoga/datakit/guard"
	"github.com/dailyyoga/datakit/logger"
	"github.com/dailyyoga/datakit/routine"
	"go.uber.org/zap"
)

// pendingWrite is one armed deferred write.
type pendingWrite struct {
	timer *time.Timer
	fire  func()
}

// Scheduler tracks pending deferred writes by namespace. Safe for concurrent
// use; the pending registry is its own guarded structure, independent of the
// cache it persists from.
type Scheduler struct {
	log     logger.Logger
	pending *guard.Value[map[string]*pendingWrite]
}

// NewScheduler creates an empty scheduler.
func NewScheduler(log logger.Logger) *Scheduler {
	return &Scheduler{
		log:     log,
		pending: guard.New(map[string]*pendingWrite{}),
	}
}

// Schedule arms a deferred write for namespace at now+interval. If a write is
// already pending for the namespace, Schedule is a no-op: the existing timer
// picks up the latest value at fire time. fire runs on a background timer
// goroutine with panic recovery and must read the live value, not a captured
// one.
func (s *Scheduler) Schedule(namespace string, interval time.Duration, fire func()) {
	armed := false
	s.pending.Update(func(m map[string]*pendingWrite) map[string]*pendingWrite {
		if _, ok := m[namespace]; ok {
			return m
		}
		p := &pendingWrite{fire: fire}
		p.timer = time.AfterFunc(interval, func() {
			s.fireNow(namespace)
		})
		m[namespace] = p
		armed = true
		return m
	})
	if armed {
		s.log.Debug("deferred write armed",
			zap.String("namespace", namespace),
			zap.Duration("interval", interval),
		)
	}
}

// Pending reports whether a deferred write is armed for namespace.
func (s *Scheduler) Pending(namespace string) bool {
	var ok bool
	s.pending.With(func(m map[string]*pendingWrite) {
		_, ok = m[namespace]
	})
	return ok
}

// Cancel stops a pending deferred write for namespace. Canceling a namespace
// with nothing pending is a no-op. Returns whether a write was pending.
func (s *Scheduler) Cancel(namespace string) bool {
	var p *pendingWrite
	s.pending.Update(func(m map[string]*pendingWrite) map[string]*pendingWrite {
		p = m[namespace]
		delete(m, namespace)
		return m
	})
	if p == nil {
		return false
	}
	p.timer.Stop()
	return true
}

// CancelAll stops every pending write without persisting. Used by Core.Reset.
func (s *Scheduler) CancelAll() {
	s.pending.Update(func(m map[string]*pendingWrite) map[string]*pendingWrite {
		for _, p := range m {
			p.timer.Stop()
		}
		return map[string]*pendingWrite{}
	})
}

// Flush fires every pending write immediately, inline. Used on shutdown for
// best-effort persistence of values still inside their window.
func (s *Scheduler) Flush() {
	var fires []*pendingWrite
	s.pending.Update(func(m map[string]*pendingWrite) map[string]*pendingWrite {
		for _, p := range m {
			p.timer.Stop()
			fires = append(fires, p)
		}
		return map[string]*pendingWrite{}
	})
	for _, p := range fires {
		routine.Recovered(s.log, "throttle-flush", p.fire)
	}
}

// fireNow runs on the timer goroutine. The pending marker is cleared before
// firing; if Cancel won the race the entry is gone and this is a no-op.
func (s *Scheduler) fireNow(namespace string) {
	var p *pendingWrite
	s.pending.Update(func(m map[string]*pendingWrite) map[string]*pendingWrite {
		p = m[namespace]
		delete(m, namespace)
		return m
	})
	if p == nil {
		return
	}
	routine.Recovered(s.log, "throttle-fire", p.fire)
}

package bind

import (
	"context"
	"sync"

	"github.com/dailyyoga/datakit/logger"
	"github.com/dailyyoga/datakit/routine"
	"github.com/smallnest/chanx"
)

// deliverer is the serialized delivery context: one goroutine draining an
// unbounded queue, so Send never blocks on a slow subscriber and deliveries
// for one Send never interleave with themselves.
type deliverer struct {
	log    logger.Logger
	ch     *chanx.UnboundedChan[func()]
	cancel context.CancelFunc
	done   chan struct{}

	mu     sync.RWMutex
	closed bool
}

func newDeliverer(log logger.Logger) *deliverer {
	ctx, cancel := context.WithCancel(context.Background())
	d := &deliverer{
		log:    log,
		ch:     chanx.NewUnboundedChan[func()](ctx, 64),
		cancel: cancel,
		done:   make(chan struct{}),
	}
	routine.GoNamed(log, "bind-delivery", d.loop)
	return d
}

func (d *deliverer) loop() {
	defer close(d.done)
	for fn := range d.ch.Out {
		// A panicking callback must not kill the delivery loop.
		routine.Recovered(d.log, "bind-delivery", fn)
	}
}

// enqueue schedules fn on the delivery goroutine. Dropped after close.
func (d *deliverer) enqueue(fn func()) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed {
		return
	}
	d.ch.In <- fn
}

// close drains queued deliveries and stops the loop. Idempotent.
func (d *deliverer) close() {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return
	}
	d.closed = true
	close(d.ch.In)
	d.mu.Unlock()

	<-d.done
	d.cancel()
}

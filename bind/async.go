package bind

import (
	"context"
	"sync"

	"github.com/dailyyoga/datakit/routine"
	"github.com/google/uuid"
	"github.com/smallnest/chanx"
)

// WaitFor blocks until the next value sent to key, or until ctx ends. It is a
// convenience wrapper over BindOnce and does not alter the core contract.
func WaitFor[T any](ctx context.Context, r *Registry, key string) (T, error) {
	ch := make(chan T, 1)
	cancel := bindOnceCancelable(r, key, func(v T) {
		ch <- v
	})

	select {
	case v := <-ch:
		return v, nil
	case <-ctx.Done():
		cancel()
		var zero T
		return zero, ctx.Err()
	}
}

// Values returns a channel streaming every value sent to key until ctx ends.
// The channel is unbounded on the producer side so a slow consumer never
// stalls the delivery context; it is closed when ctx is done.
func Values[T any](ctx context.Context, r *Registry, key string) <-chan T {
	ub := chanx.NewUnboundedChan[T](ctx, 8)
	id := uuid.NewString()

	var mu sync.Mutex
	closed := false

	r.register(key, id,
		func() bool {
			mu.Lock()
			defer mu.Unlock()
			return !closed
		},
		typed(key, func(v T) {
			mu.Lock()
			defer mu.Unlock()
			if !closed {
				ub.In <- v
			}
		}),
	)

	routine.GoNamed(r.log, "bind-stream", func() {
		<-ctx.Done()
		r.unregister(key, id)
		mu.Lock()
		closed = true
		close(ub.In)
		mu.Unlock()
	})

	return ub.Out
}

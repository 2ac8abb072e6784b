// Package routine provides safe goroutine execution with panic recovery.
//
// Background goroutines in datakit (the notification delivery loop, throttle
// timer fires, value streams) must never take the process down with them, so
// they all start through this package instead of a bare `go func()`.
package routine

import (
	"context"
	"runtime/debug"
	"sync"

	"github.com/dailyyoga/datakit/logger"
	"go.uber.org/zap"
)

// Runner provides safe goroutine execution with panic recovery
type Runner interface {
	// Go executes a function in a new goroutine with panic recovery
	Go(fn func())

	// GoNamed executes a named function in a new goroutine with panic recovery.
	// The name identifies the routine in panic logs.
	GoNamed(name string, fn func())

	// GoNamedWithContext executes a named function with context in a new goroutine
	GoNamedWithContext(ctx context.Context, name string, fn func(ctx context.Context))

	// Wait waits for all goroutines started by this runner to complete
	Wait()
}

type defaultRunner struct {
	log logger.Logger
	wg  sync.WaitGroup
}

// New creates a new Runner with the given logger
func New(log logger.Logger) Runner {
	return &defaultRunner{log: log}
}

func (r *defaultRunner) Go(fn func()) {
	r.GoNamed("", fn)
}

func (r *defaultRunner) GoNamed(name string, fn func()) {
	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		defer recoverWithLog(r.log, name)
		fn()
	}()
}

func (r *defaultRunner) GoNamedWithContext(ctx context.Context, name string, fn func(ctx context.Context)) {
	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		defer recoverWithLog(r.log, name)
		fn(ctx)
	}()
}

func (r *defaultRunner) Wait() {
	r.wg.Wait()
}

// Go executes a function in a new goroutine with panic recovery,
// without Runner bookkeeping.
func Go(log logger.Logger, fn func()) {
	GoNamed(log, "", fn)
}

// GoNamed executes a named function in a new goroutine with panic recovery
func GoNamed(log logger.Logger, name string, fn func()) {
	go func() {
		defer recoverWithLog(log, name)
		fn()
	}()
}

// Recovered runs fn inline with panic recovery. Used where the goroutine is
// owned elsewhere (timer callbacks) but the same recovery policy applies.
func Recovered(log logger.Logger, name string, fn func()) {
	defer recoverWithLog(log, name)
	fn()
}

// recoverWithLog handles panic recovery and logging
func recoverWithLog(log logger.Logger, name string) {
	if rec := recover(); rec != nil {
		fields := []zap.Field{
			zap.Any("panic", rec),
			zap.String("stack", string(debug.Stack())),
		}
		if name != "" {
			fields = append([]zap.Field{zap.String("routine", name)}, fields...)
		}
		log.Error("goroutine panicked", fields...)
	}
}

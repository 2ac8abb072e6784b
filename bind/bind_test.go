package bind

import (
	"context"
	"runtime"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/dailyyoga/datakit/logger"
)

func newTestLogger(t *testing.T) logger.Logger {
	log, err := logger.New(&logger.Config{
		Level:    "debug",
		Encoding: "console",
	})
	if err != nil {
		t.Fatalf("failed to create logger: %v", err)
	}
	return log
}

// flush waits until every delivery queued before it has run.
func flush(r *Registry) {
	done := make(chan struct{})
	r.Dispatch(func() { close(done) })
	<-done
}

type testOwner struct{ name string }

func TestBind_SendDelivers(t *testing.T) {
	r := NewRegistry(newTestLogger(t))
	defer r.Close()

	owner := &testOwner{name: "a"}
	var got string
	var mu sync.Mutex
	Bind(r, "k", owner, func(v string) {
		mu.Lock()
		got = v
		mu.Unlock()
	})

	r.Send("k", "hello")
	flush(r)

	mu.Lock()
	defer mu.Unlock()
	if got != "hello" {
		t.Errorf("expected %q delivered, got %q", "hello", got)
	}
	runtime.KeepAlive(owner)
}

func TestBind_RegistrationOrder(t *testing.T) {
	r := NewRegistry(newTestLogger(t))
	defer r.Close()

	a, b, c := &testOwner{"a"}, &testOwner{"b"}, &testOwner{"c"}
	var mu sync.Mutex
	var order []string
	record := func(name string) func(int) {
		return func(int) {
			mu.Lock()
			order = append(order, name)
			mu.Unlock()
		}
	}
	Bind(r, "k", a, record("a"))
	Bind(r, "k", b, record("b"))
	Bind(r, "k", c, record("c"))

	r.Send("k", 1)
	flush(r)

	mu.Lock()
	defer mu.Unlock()
	if len(order) != 3 || order[0] != "a" || order[1] != "b" || order[2] != "c" {
		t.Errorf("expected delivery in registration order a,b,c; got %v", order)
	}
	runtime.KeepAlive(a)
	runtime.KeepAlive(b)
	runtime.KeepAlive(c)
}

func TestBind_SameOwnerAppendsCallbacks(t *testing.T) {
	r := NewRegistry(newTestLogger(t))
	defer r.Close()

	owner := &testOwner{}
	var calls atomic.Int32
	Bind(r, "k", owner, func(int) { calls.Add(1) })
	Bind(r, "k", owner, func(int) { calls.Add(1) })

	r.Send("k", 1)
	flush(r)
	if calls.Load() != 2 {
		t.Errorf("expected both callbacks of the same owner to fire, got %d", calls.Load())
	}

	// One entry, so one unbind silences both.
	Unbind(r, "k", owner)
	r.Send("k", 2)
	flush(r)
	if calls.Load() != 2 {
		t.Errorf("expected no delivery after unbind, got %d calls", calls.Load())
	}
	runtime.KeepAlive(owner)
}

func TestBindVoid(t *testing.T) {
	r := NewRegistry(newTestLogger(t))
	defer r.Close()

	owner := &testOwner{}
	var calls atomic.Int32
	BindVoid(r, "k", owner, func() { calls.Add(1) })

	r.Send("k", "whatever")
	r.Send("k", nil)
	flush(r)

	if calls.Load() != 2 {
		t.Errorf("expected 2 void notifications, got %d", calls.Load())
	}
	runtime.KeepAlive(owner)
}

func TestUnbind_OthersStillNotified(t *testing.T) {
	r := NewRegistry(newTestLogger(t))
	defer r.Close()

	a, b := &testOwner{"a"}, &testOwner{"b"}
	var aCalls, bCalls atomic.Int32
	Bind(r, "k", a, func(int) { aCalls.Add(1) })
	Bind(r, "k", b, func(int) { bCalls.Add(1) })

	Unbind(r, "k", a)
	r.Send("k", 1)
	flush(r)

	if aCalls.Load() != 0 {
		t.Errorf("unbound owner received %d deliveries", aCalls.Load())
	}
	if bCalls.Load() != 1 {
		t.Errorf("remaining owner expected 1 delivery, got %d", bCalls.Load())
	}
	runtime.KeepAlive(a)
	runtime.KeepAlive(b)
}

func TestUnbind_Idempotent(t *testing.T) {
	r := NewRegistry(newTestLogger(t))
	defer r.Close()

	owner := &testOwner{}
	// Unbinding a key never bound is a silent no-op.
	Unbind(r, "never-bound", owner)
	Unbind(r, "never-bound", owner)
	runtime.KeepAlive(owner)
}

func TestBindOnce_ExactlyOnce(t *testing.T) {
	r := NewRegistry(newTestLogger(t))
	defer r.Close()

	var calls atomic.Int32
	var first atomic.Value
	BindOnce(r, "k", func(v string) {
		calls.Add(1)
		first.Store(v)
	})

	// Rapid sends before removal can complete.
	r.Send("k", "one")
	r.Send("k", "two")
	r.Send("k", "three")
	flush(r)

	if calls.Load() != 1 {
		t.Errorf("expected exactly one delivery, got %d", calls.Load())
	}
	if got := first.Load(); got != "one" {
		t.Errorf("expected first value %q, got %v", "one", got)
	}
}

func TestBind_LifetimeSafeUnsubscription(t *testing.T) {
	r := NewRegistry(newTestLogger(t))
	defer r.Close()

	var calls atomic.Int32
	func() {
		owner := &testOwner{name: "short-lived"}
		Bind(r, "k", owner, func(string) { calls.Add(1) })
		r.Send("k", "while alive")
		flush(r)
		runtime.KeepAlive(owner)
	}()

	if calls.Load() != 1 {
		t.Fatalf("expected delivery while owner alive, got %d", calls.Load())
	}

	// Owner is unreachable; collect it so the weak reference clears.
	runtime.GC()
	runtime.GC()

	r.Send("k", "after death")
	flush(r)
	if calls.Load() != 1 {
		t.Errorf("dead owner received a delivery, calls=%d", calls.Load())
	}
}

func TestSend_NilDeliversZeroValue(t *testing.T) {
	r := NewRegistry(newTestLogger(t))
	defer r.Close()

	owner := &testOwner{}
	var mu sync.Mutex
	var got *int
	set := false
	Bind(r, "k", owner, func(v *int) {
		mu.Lock()
		got = v
		set = true
		mu.Unlock()
	})

	r.Send("k", nil)
	flush(r)

	mu.Lock()
	defer mu.Unlock()
	if !set {
		t.Fatal("expected nil payload to be delivered")
	}
	if got != nil {
		t.Errorf("expected zero value (nil pointer), got %v", got)
	}
	runtime.KeepAlive(owner)
}

func TestSend_WrongPayloadTypeIsConfined(t *testing.T) {
	r := NewRegistry(newTestLogger(t))
	defer r.Close()

	owner := &testOwner{}
	var calls atomic.Int32
	Bind(r, "k", owner, func(string) { calls.Add(1) })

	// Structural misuse panics in the delivery loop; recovery keeps the
	// loop alive for later deliveries.
	r.Send("k", 42)
	flush(r)

	r.Send("k", "valid")
	flush(r)
	if calls.Load() != 1 {
		t.Errorf("expected the valid delivery to land after the panic, got %d", calls.Load())
	}
	runtime.KeepAlive(owner)
}

func TestWaitFor_Value(t *testing.T) {
	r := NewRegistry(newTestLogger(t))
	defer r.Close()

	done := make(chan struct{})
	var got string
	var err error
	go func() {
		defer close(done)
		got, err = WaitFor[string](context.Background(), r, "k")
	}()

	// Give the waiter time to register.
	time.Sleep(50 * time.Millisecond)
	r.Send("k", "awaited")
	<-done

	if err != nil {
		t.Fatalf("WaitFor returned error: %v", err)
	}
	if got != "awaited" {
		t.Errorf("expected %q, got %q", "awaited", got)
	}
}

func TestWaitFor_ContextCanceled(t *testing.T) {
	r := NewRegistry(newTestLogger(t))
	defer r.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := WaitFor[string](ctx, r, "k")
	if err == nil {
		t.Fatal("expected context error")
	}

	// The once-token was canceled: a later send must not leak a delivery.
	r.Send("k", "late")
	flush(r)
}

func TestValues_Stream(t *testing.T) {
	r := NewRegistry(newTestLogger(t))
	defer r.Close()

	ctx, cancel := context.WithCancel(context.Background())
	out := Values[int](ctx, r, "k")

	// Let the stream register before sending.
	time.Sleep(50 * time.Millisecond)
	r.Send("k", 1)
	r.Send("k", 2)
	r.Send("k", 3)
	flush(r)

	for want := 1; want <= 3; want++ {
		select {
		case got := <-out:
			if got != want {
				t.Errorf("expected %d, got %d", want, got)
			}
		case <-time.After(time.Second):
			t.Fatalf("timed out waiting for value %d", want)
		}
	}

	cancel()
	// Channel closes once the context ends.
	select {
	case _, open := <-out:
		if open {
			t.Error("expected stream channel to be closed after cancel")
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for stream close")
	}
}

func TestSweep(t *testing.T) {
	r := NewRegistry(newTestLogger(t))
	defer r.Close()

	keep := &testOwner{"keep"}
	Bind(r, "k", keep, func(int) {})
	func() {
		gone := &testOwner{"gone"}
		Bind(r, "k", gone, func(int) {})
		runtime.KeepAlive(gone)
	}()

	runtime.GC()
	runtime.GC()

	if dropped := r.Sweep(); dropped != 1 {
		t.Errorf("expected 1 dead entry swept, got %d", dropped)
	}
	runtime.KeepAlive(keep)
}

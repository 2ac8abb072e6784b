package throttle

import (
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

func TestScheduler_FireReadsLiveValue(t *testing.T) {
	s := NewScheduler(newTestLogger(t))

	var mu sync.Mutex
	current := "a"
	var persisted []string

	fire := func() {
		mu.Lock()
		defer mu.Unlock()
		persisted = append(persisted, current)
	}

	s.Schedule("ns", 100*time.Millisecond, fire)
	// Second write inside the window: no new timer, latest value wins.
	mu.Lock()
	current = "b"
	mu.Unlock()
	s.Schedule("ns", 100*time.Millisecond, fire)

	time.Sleep(300 * time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	if len(persisted) != 1 {
		t.Fatalf("expected exactly one persist, got %d", len(persisted))
	}
	if persisted[0] != "b" {
		t.Errorf("expected latest value %q persisted, got %q", "b", persisted[0])
	}
}

func TestScheduler_OneTimerPerNamespace(t *testing.T) {
	s := NewScheduler(newTestLogger(t))

	var fires atomic.Int32
	for i := 0; i < 10; i++ {
		s.Schedule("ns", 50*time.Millisecond, func() { fires.Add(1) })
	}
	if !s.Pending("ns") {
		t.Fatal("expected a pending write")
	}

	time.Sleep(200 * time.Millisecond)
	if fires.Load() != 1 {
		t.Errorf("expected one fire for a burst of schedules, got %d", fires.Load())
	}
	if s.Pending("ns") {
		t.Error("pending marker should clear after fire")
	}
}

func TestScheduler_Cancel(t *testing.T) {
	s := NewScheduler(newTestLogger(t))

	var fires atomic.Int32
	s.Schedule("ns", 50*time.Millisecond, func() { fires.Add(1) })

	if !s.Cancel("ns") {
		t.Fatal("expected Cancel to report a pending write")
	}
	if s.Cancel("ns") {
		t.Error("second Cancel should be a no-op")
	}

	time.Sleep(150 * time.Millisecond)
	if fires.Load() != 0 {
		t.Errorf("canceled write fired %d times", fires.Load())
	}
}

func TestScheduler_IndependentNamespaces(t *testing.T) {
	s := NewScheduler(newTestLogger(t))

	var a, b atomic.Int32
	s.Schedule("ns-a", 50*time.Millisecond, func() { a.Add(1) })
	s.Schedule("ns-b", 50*time.Millisecond, func() { b.Add(1) })

	s.Cancel("ns-a")
	time.Sleep(150 * time.Millisecond)

	if a.Load() != 0 {
		t.Errorf("canceled namespace fired %d times", a.Load())
	}
	if b.Load() != 1 {
		t.Errorf("independent namespace expected 1 fire, got %d", b.Load())
	}
}

func TestScheduler_Flush(t *testing.T) {
	s := NewScheduler(newTestLogger(t))

	var fires atomic.Int32
	s.Schedule("ns-1", time.Hour, func() { fires.Add(1) })
	s.Schedule("ns-2", time.Hour, func() { fires.Add(1) })

	s.Flush()
	if fires.Load() != 2 {
		t.Errorf("expected both pending writes flushed, got %d", fires.Load())
	}
	if s.Pending("ns-1") || s.Pending("ns-2") {
		t.Error("flush should clear pending markers")
	}
}

func TestScheduler_CancelAll(t *testing.T) {
	s := NewScheduler(newTestLogger(t))

	var fires atomic.Int32
	s.Schedule("ns-1", 50*time.Millisecond, func() { fires.Add(1) })
	s.Schedule("ns-2", 50*time.Millisecond, func() { fires.Add(1) })

	s.CancelAll()
	time.Sleep(150 * time.Millisecond)
	if fires.Load() != 0 {
		t.Errorf("expected no fires after CancelAll, got %d", fires.Load())
	}
}

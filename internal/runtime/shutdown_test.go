package runtime

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestNewShutdownManager(t *testing.T) {
	m := NewShutdownManager(5 * time.Second)

	if m == nil {
		t.Fatal("NewShutdownManager returned nil")
	}
	if m.timeout != 5*time.Second {
		t.Errorf("expected timeout 5s, got %v", m.timeout)
	}
	if NewShutdownManager(0).timeout != DefaultShutdownTimeout {
		t.Error("zero timeout should use the default")
	}
}

func TestShutdownManager_Register(t *testing.T) {
	m := NewShutdownManager(5 * time.Second)

	var called int32
	m.Register("test-handler", func(ctx context.Context) error {
		atomic.AddInt32(&called, 1)
		return nil
	})

	if err := m.Shutdown(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if atomic.LoadInt32(&called) != 1 {
		t.Error("handler was not called")
	}
}

func TestShutdownManager_RegisterSimple(t *testing.T) {
	m := NewShutdownManager(5 * time.Second)

	var called bool
	m.RegisterSimple("simple-handler", func() {
		called = true
	})

	m.Shutdown()
	if !called {
		t.Error("simple handler was not called")
	}
}

func TestShutdownManager_LIFO(t *testing.T) {
	m := NewShutdownManager(5 * time.Second)

	var order []string
	for _, name := range []string{"pool", "server", "listener"} {
		name := name
		m.RegisterSimple(name, func() { order = append(order, name) })
	}
	m.Shutdown()

	want := []string{"listener", "server", "pool"}
	if len(order) != len(want) {
		t.Fatalf("expected %v, got %v", want, order)
	}
	for i := range want {
		if order[i] != want[i] {
			t.Errorf("position %d: expected %s, got %s", i, want[i], order[i])
		}
	}
}

func TestShutdownManager_Errors(t *testing.T) {
	m := NewShutdownManager(5 * time.Second)
	boom := errors.New("boom")

	var after bool
	m.RegisterSimple("after", func() { after = true })
	m.Register("failing", func(ctx context.Context) error { return boom })

	err := m.Shutdown()
	if !errors.Is(err, boom) {
		t.Errorf("expected boom, got %v", err)
	}
	if !after {
		t.Error("a failing handler must not stop the rest")
	}
}

func TestShutdownManager_Once(t *testing.T) {
	m := NewShutdownManager(5 * time.Second)

	var calls int32
	m.Register("counter", func(ctx context.Context) error {
		atomic.AddInt32(&calls, 1)
		return nil
	})

	var wg sync.WaitGroup
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			m.Shutdown()
		}()
	}
	wg.Wait()

	if atomic.LoadInt32(&calls) != 1 {
		t.Errorf("expected 1 call, got %d", calls)
	}
}

func TestShutdownManager_Context(t *testing.T) {
	m := NewShutdownManager(5 * time.Second)
	ctx := m.Context()

	select {
	case <-ctx.Done():
		t.Fatal("context cancelled before shutdown")
	default:
	}

	m.Shutdown()

	select {
	case <-ctx.Done():
	case <-time.After(time.Second):
		t.Error("context not cancelled after shutdown")
	}
	select {
	case <-m.Done():
	default:
		t.Error("done channel not closed")
	}
}

func TestShutdownManager_Timeout(t *testing.T) {
	m := NewShutdownManager(50 * time.Millisecond)

	var skipped bool
	m.RegisterSimple("never", func() { skipped = true })
	m.Register("slow", func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	})

	start := time.Now()
	err := m.Shutdown()
	if time.Since(start) > 2*time.Second {
		t.Error("shutdown ignored its timeout")
	}
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("expected deadline error, got %v", err)
	}
	if skipped {
		t.Error("handlers after the deadline should be skipped")
	}
}

package dispatcher

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/garyjia/ringi/internal/domain/event"
)

// mockLogger implements Logger for testing
type mockLogger struct {
	mu     sync.Mutex
	infos  []string
	errors []string
}

func (m *mockLogger) Info(msg string, keysAndValues ...interface{}) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.infos = append(m.infos, msg)
}

func (m *mockLogger) Error(msg string, keysAndValues ...interface{}) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.errors = append(m.errors, msg)
}

func (m *mockLogger) ErrorCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.errors)
}

func (m *mockLogger) HasInfo(msg string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, info := range m.infos {
		if info == msg {
			return true
		}
	}
	return false
}

func newTestEvent(eventType event.Type) *event.Event {
	return event.NewEvent(eventType, "tenant-1", "user-1", time.Now(), nil).ForInstance("instance-1")
}

func noop(ctx context.Context, evt *event.Event) error { return nil }

func TestSubscribe(t *testing.T) {
	t.Run("subscribes multiple handlers to same event type", func(t *testing.T) {
		d := NewDispatcher()
		called1, called2 := false, false

		d.Subscribe(event.TypeInstanceCreated, func(ctx context.Context, evt *event.Event) error {
			called1 = true
			return nil
		})
		d.Subscribe(event.TypeInstanceCreated, func(ctx context.Context, evt *event.Event) error {
			called2 = true
			return nil
		})

		if err := d.Dispatch(context.Background(), newTestEvent(event.TypeInstanceCreated)); err != nil {
			t.Fatalf("dispatch failed: %v", err)
		}
		if !called1 || !called2 {
			t.Error("expected both handlers to be called")
		}
	})

	t.Run("auto-generated names are unique per type", func(t *testing.T) {
		d := NewDispatcher()
		d.Subscribe(event.TypeInstanceCreated, noop)
		d.Subscribe(event.TypeInstanceCreated, noop)

		handlers := d.ListHandlers(event.TypeInstanceCreated)
		if len(handlers) != 2 || handlers[0].Name == handlers[1].Name {
			t.Errorf("unexpected handlers %+v", handlers)
		}
	})

	t.Run("logs registration", func(t *testing.T) {
		logger := &mockLogger{}
		d := NewDispatcher(WithLogger(logger))

		d.SubscribeNamed(event.TypeInstanceCreated, "test-handler", noop)

		if !logger.HasInfo("Handler registered") {
			t.Error("expected registration to be logged")
		}
	})
}

func TestWildcardSubscription(t *testing.T) {
	d := NewDispatcher()
	var seen []event.Type
	var mu sync.Mutex

	d.SubscribeNamed(event.TypeAll, "audit", func(ctx context.Context, evt *event.Event) error {
		mu.Lock()
		defer mu.Unlock()
		seen = append(seen, evt.Type)
		return nil
	})

	for _, typ := range []event.Type{event.TypeInstanceSubmitted, event.TypeStepApproved, event.TypeCommentPosted} {
		if err := d.Dispatch(context.Background(), newTestEvent(typ)); err != nil {
			t.Fatalf("dispatch failed: %v", err)
		}
	}

	if len(seen) != 3 {
		t.Fatalf("expected wildcard handler to see 3 events, got %v", seen)
	}
}

func TestWildcardRunsAfterSpecificHandlers(t *testing.T) {
	d := NewDispatcher()
	var order []string

	d.SubscribeNamed(event.TypeAll, "wildcard", func(ctx context.Context, evt *event.Event) error {
		order = append(order, "wildcard")
		return nil
	})
	d.SubscribeNamed(event.TypeInstanceApproved, "specific", func(ctx context.Context, evt *event.Event) error {
		order = append(order, "specific")
		return nil
	})

	if err := d.Dispatch(context.Background(), newTestEvent(event.TypeInstanceApproved)); err != nil {
		t.Fatalf("dispatch failed: %v", err)
	}
	if len(order) != 2 || order[0] != "specific" || order[1] != "wildcard" {
		t.Errorf("order = %v", order)
	}
}

func TestUnsubscribe(t *testing.T) {
	d := NewDispatcher()
	called1, called2 := false, false

	d.SubscribeNamed(event.TypeInstanceCreated, "handler-1", func(ctx context.Context, evt *event.Event) error {
		called1 = true
		return nil
	})
	d.SubscribeNamed(event.TypeInstanceCreated, "handler-2", func(ctx context.Context, evt *event.Event) error {
		called2 = true
		return nil
	})

	d.Unsubscribe(event.TypeInstanceCreated, "handler-1")

	if err := d.Dispatch(context.Background(), newTestEvent(event.TypeInstanceCreated)); err != nil {
		t.Fatalf("dispatch failed: %v", err)
	}
	if called1 {
		t.Error("expected handler-1 not to be called")
	}
	if !called2 {
		t.Error("expected handler-2 to be called")
	}
}

func TestDispatch(t *testing.T) {
	t.Run("returns first error encountered", func(t *testing.T) {
		d := NewDispatcher()
		expectedErr := errors.New("handler error")
		called := false

		d.Subscribe(event.TypeInstanceCreated, func(ctx context.Context, evt *event.Event) error {
			return expectedErr
		})
		d.Subscribe(event.TypeInstanceCreated, func(ctx context.Context, evt *event.Event) error {
			called = true
			return nil
		})

		err := d.Dispatch(context.Background(), newTestEvent(event.TypeInstanceCreated))
		if !errors.Is(err, expectedErr) {
			t.Errorf("expected error to wrap %v, got %v", expectedErr, err)
		}
		if called {
			t.Error("expected second handler not to be called after first error")
		}
	})

	t.Run("recovers from handler panic", func(t *testing.T) {
		logger := &mockLogger{}
		d := NewDispatcher(WithLogger(logger))

		d.Subscribe(event.TypeInstanceCreated, func(ctx context.Context, evt *event.Event) error {
			panic("test panic")
		})

		if err := d.Dispatch(context.Background(), newTestEvent(event.TypeInstanceCreated)); err == nil {
			t.Fatal("expected error from panic recovery")
		}
		if logger.ErrorCount() == 0 {
			t.Error("expected panic to be logged as error")
		}
	})

	t.Run("returns error when dispatcher is closed", func(t *testing.T) {
		d := NewDispatcher()
		if err := d.Close(); err != nil {
			t.Fatalf("close failed: %v", err)
		}

		if err := d.Dispatch(context.Background(), newTestEvent(event.TypeInstanceCreated)); err == nil {
			t.Fatal("expected error when dispatching to closed dispatcher")
		}
	})
}

func TestDispatchAsync(t *testing.T) {
	t.Run("does not block on handler errors", func(t *testing.T) {
		logger := &mockLogger{}
		d := NewDispatcher(WithLogger(logger))
		var called atomic.Int32

		d.Subscribe(event.TypeInstanceCreated, func(ctx context.Context, evt *event.Event) error {
			return errors.New("handler error")
		})
		d.Subscribe(event.TypeInstanceCreated, func(ctx context.Context, evt *event.Event) error {
			called.Add(1)
			return nil
		})

		d.DispatchAsync(context.Background(), newTestEvent(event.TypeInstanceCreated))
		if err := d.Close(); err != nil {
			t.Fatalf("close failed: %v", err)
		}

		if called.Load() != 1 {
			t.Errorf("expected second handler to be called, got %d calls", called.Load())
		}
		if logger.ErrorCount() == 0 {
			t.Error("expected error to be logged")
		}
	})

	t.Run("survives cancellation of the caller's context", func(t *testing.T) {
		d := NewDispatcher()
		var ctxErr atomic.Value

		d.Subscribe(event.TypeInstanceApproved, func(ctx context.Context, evt *event.Event) error {
			time.Sleep(20 * time.Millisecond)
			ctxErr.Store(fmt.Sprint(ctx.Err()))
			return nil
		})

		ctx, cancel := context.WithCancel(context.Background())
		d.DispatchAsync(ctx, newTestEvent(event.TypeInstanceApproved))
		cancel()

		if err := d.Close(); err != nil {
			t.Fatalf("close failed: %v", err)
		}
		if got := ctxErr.Load(); got != "<nil>" {
			t.Errorf("handler saw ctx.Err() = %v, want <nil>", got)
		}
	})

	t.Run("applies the handler timeout", func(t *testing.T) {
		d := NewDispatcher(WithHandlerTimeout(10 * time.Millisecond))
		var sawDeadline atomic.Bool

		d.Subscribe(event.TypeInstanceApproved, func(ctx context.Context, evt *event.Event) error {
			_, ok := ctx.Deadline()
			sawDeadline.Store(ok)
			return nil
		})

		d.DispatchAsync(context.Background(), newTestEvent(event.TypeInstanceApproved))
		if err := d.Close(); err != nil {
			t.Fatalf("close failed: %v", err)
		}
		if !sawDeadline.Load() {
			t.Error("expected handler context to carry a deadline")
		}
	})

	t.Run("recovers from handler panic asynchronously", func(t *testing.T) {
		logger := &mockLogger{}
		d := NewDispatcher(WithLogger(logger))

		d.Subscribe(event.TypeInstanceCreated, func(ctx context.Context, evt *event.Event) error {
			panic("async panic")
		})

		d.DispatchAsync(context.Background(), newTestEvent(event.TypeInstanceCreated))
		if err := d.Close(); err != nil {
			t.Fatalf("close failed: %v", err)
		}
		if logger.ErrorCount() == 0 {
			t.Error("expected panic to be logged as error")
		}
	})

	t.Run("close waits for every accepted event under concurrent dispatch", func(t *testing.T) {
		logger := &mockLogger{}
		d := NewDispatcher(WithLogger(logger))
		var handled atomic.Int32

		d.Subscribe(event.TypeStepApproved, func(ctx context.Context, evt *event.Event) error {
			time.Sleep(time.Millisecond)
			handled.Add(1)
			return nil
		})

		const senders = 50
		var wg sync.WaitGroup
		start := make(chan struct{})
		for i := 0; i < senders; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				<-start
				d.DispatchAsync(context.Background(), newTestEvent(event.TypeStepApproved))
			}()
		}

		close(start)
		if err := d.Close(); err != nil {
			t.Fatalf("close failed: %v", err)
		}
		handledAtClose := handled.Load()
		wg.Wait()

		// Accepted events finish before Close returns; the rest are rejected and logged
		if got := handled.Load(); got != handledAtClose {
			t.Errorf("handlers ran after close returned: %d then %d", handledAtClose, got)
		}
		if total := int(handled.Load()) + logger.ErrorCount(); total != senders {
			t.Errorf("handled + rejected = %d, want %d", total, senders)
		}
	})

	t.Run("does not dispatch when dispatcher is closed", func(t *testing.T) {
		logger := &mockLogger{}
		d := NewDispatcher(WithLogger(logger))
		var called atomic.Int32

		d.Subscribe(event.TypeInstanceCreated, func(ctx context.Context, evt *event.Event) error {
			called.Add(1)
			return nil
		})
		if err := d.Close(); err != nil {
			t.Fatalf("close failed: %v", err)
		}

		d.DispatchAsync(context.Background(), newTestEvent(event.TypeInstanceCreated))
		time.Sleep(20 * time.Millisecond)

		if called.Load() > 0 {
			t.Error("expected handler not to be called after close")
		}
		if logger.ErrorCount() == 0 {
			t.Error("expected error log for dispatching to closed dispatcher")
		}
	})
}

func TestListHandlers(t *testing.T) {
	d := NewDispatcher()

	d.SubscribeNamed(event.TypeInstanceCreated, "test-handler", noop)
	d.SubscribeNamed(event.TypeInstanceApproved, "other-handler", noop)

	handlers := d.ListHandlers(event.TypeInstanceCreated)
	if len(handlers) != 1 {
		t.Fatalf("expected 1 handler, got %d", len(handlers))
	}
	if handlers[0].Name != "test-handler" {
		t.Errorf("expected name 'test-handler', got '%s'", handlers[0].Name)
	}
	if handlers[0].Handler != nil {
		t.Error("expected handler function not to be exposed")
	}
}

func TestClose(t *testing.T) {
	t.Run("waits for async handlers to complete", func(t *testing.T) {
		d := NewDispatcher()
		var completed atomic.Bool

		d.Subscribe(event.TypeInstanceCreated, func(ctx context.Context, evt *event.Event) error {
			time.Sleep(30 * time.Millisecond)
			completed.Store(true)
			return nil
		})

		d.DispatchAsync(context.Background(), newTestEvent(event.TypeInstanceCreated))
		if err := d.Close(); err != nil {
			t.Fatalf("close failed: %v", err)
		}
		if !completed.Load() {
			t.Error("expected async handler to complete before Close returns")
		}
	})

	t.Run("returns error on double close", func(t *testing.T) {
		d := NewDispatcher()
		if err := d.Close(); err != nil {
			t.Fatalf("first close failed: %v", err)
		}
		if err := d.Close(); err == nil {
			t.Fatal("expected error on second close")
		}
	})
}

func TestConcurrentSubscribeAndDispatch(t *testing.T) {
	d := NewDispatcher()
	var called atomic.Int32
	var wg sync.WaitGroup

	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			d.SubscribeNamed(event.TypeInstanceCreated, fmt.Sprintf("handler-%d", id), func(ctx context.Context, evt *event.Event) error {
				called.Add(1)
				return nil
			})
		}(i)
	}
	wg.Wait()

	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = d.Dispatch(context.Background(), newTestEvent(event.TypeInstanceCreated))
		}()
	}
	wg.Wait()

	if called.Load() != 100 {
		t.Errorf("expected 100 handler calls, got %d", called.Load())
	}
}

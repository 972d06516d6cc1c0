package obsbus

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/kandev/hsm/internal/hsmlog"
)

func newTestLogger(t *testing.T) *hsmlog.Logger {
	log, err := hsmlog.New(hsmlog.Config{
		Level:      "debug",
		Format:     "console",
		OutputPath: "stdout",
	})
	if err != nil {
		t.Fatalf("failed to create logger: %v", err)
	}
	return log
}

func TestNewMemoryBus(t *testing.T) {
	bus := NewMemoryBus(newTestLogger(t))

	if bus == nil {
		t.Fatal("expected non-nil bus")
	}
	if !bus.IsConnected() {
		t.Error("expected bus to be connected")
	}
}

func TestMemoryBus_PublishSubscribe(t *testing.T) {
	bus := NewMemoryBus(newTestLogger(t))
	defer bus.Close()

	ctx := context.Background()
	received := make(chan *Update, 1)

	sub, err := bus.Subscribe("hsm.transitions", func(ctx context.Context, update *Update) error {
		received <- update
		return nil
	})
	if err != nil {
		t.Fatalf("subscribe failed: %v", err)
	}
	defer func() { _ = sub.Unsubscribe() }()

	update := NewUpdate("svc-1", "TOGGLE", "active", nil, false)
	if err := bus.Publish(ctx, "hsm.transitions", update); err != nil {
		t.Fatalf("publish failed: %v", err)
	}

	select {
	case u := <-received:
		if u.ID != update.ID {
			t.Errorf("expected update id %s, got %s", update.ID, u.ID)
		}
		if u.ServiceID != update.ServiceID {
			t.Errorf("expected service id %s, got %s", update.ServiceID, u.ServiceID)
		}
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for update")
	}
}

func TestMemoryBus_MultipleSubscribers(t *testing.T) {
	bus := NewMemoryBus(newTestLogger(t))
	defer bus.Close()

	ctx := context.Background()
	var count int32
	var wg sync.WaitGroup
	wg.Add(3)

	for i := 0; i < 3; i++ {
		sub, err := bus.Subscribe("hsm.transitions", func(ctx context.Context, update *Update) error {
			atomic.AddInt32(&count, 1)
			wg.Done()
			return nil
		})
		if err != nil {
			t.Fatalf("subscribe failed: %v", err)
		}
		defer func() { _ = sub.Unsubscribe() }()
	}

	if err := bus.Publish(ctx, "hsm.transitions", NewUpdate("svc-1", "TOGGLE", "active", nil, false)); err != nil {
		t.Fatalf("publish failed: %v", err)
	}

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		if atomic.LoadInt32(&count) != 3 {
			t.Errorf("expected 3 deliveries, got %d", count)
		}
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for subscribers")
	}
}

func TestMemoryBus_WildcardMatching(t *testing.T) {
	bus := NewMemoryBus(newTestLogger(t))
	defer bus.Close()

	ctx := context.Background()
	received := make(chan *Update, 1)

	sub, err := bus.Subscribe("hsm.*.transitions", func(ctx context.Context, update *Update) error {
		received <- update
		return nil
	})
	if err != nil {
		t.Fatalf("subscribe failed: %v", err)
	}
	defer func() { _ = sub.Unsubscribe() }()

	if err := bus.Publish(ctx, "hsm.svc-1.transitions", NewUpdate("svc-1", "TOGGLE", "active", nil, false)); err != nil {
		t.Fatalf("publish failed: %v", err)
	}

	select {
	case <-received:
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for wildcard-matched update")
	}
}

func TestMemoryBus_Unsubscribe(t *testing.T) {
	bus := NewMemoryBus(newTestLogger(t))
	defer bus.Close()

	ctx := context.Background()
	received := make(chan *Update, 1)

	sub, err := bus.Subscribe("hsm.transitions", func(ctx context.Context, update *Update) error {
		received <- update
		return nil
	})
	if err != nil {
		t.Fatalf("subscribe failed: %v", err)
	}

	if err := sub.Unsubscribe(); err != nil {
		t.Fatalf("unsubscribe failed: %v", err)
	}
	if sub.IsValid() {
		t.Error("expected subscription to be invalid after unsubscribe")
	}

	if err := bus.Publish(ctx, "hsm.transitions", NewUpdate("svc-1", "TOGGLE", "active", nil, false)); err != nil {
		t.Fatalf("publish failed: %v", err)
	}

	select {
	case <-received:
		t.Fatal("unsubscribed handler should not receive updates")
	case <-time.After(100 * time.Millisecond):
	}
}

func TestMemoryBus_PublishAfterClose(t *testing.T) {
	bus := NewMemoryBus(newTestLogger(t))
	bus.Close()

	if bus.IsConnected() {
		t.Error("expected bus to report disconnected after close")
	}

	if err := bus.Publish(context.Background(), "hsm.transitions", NewUpdate("svc-1", "TOGGLE", "active", nil, false)); err == nil {
		t.Error("expected publish on closed bus to fail")
	}

	if _, err := bus.Subscribe("hsm.transitions", func(ctx context.Context, update *Update) error { return nil }); err == nil {
		t.Error("expected subscribe on closed bus to fail")
	}
}

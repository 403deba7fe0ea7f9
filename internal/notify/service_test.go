package notify

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	logx "sentinela/pkg/logx"
)

type fakeSender struct {
	mu   sync.Mutex
	sent []Notification
	fail int // fail the next n sends
}

func (f *fakeSender) Send(n Notification) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail > 0 {
		f.fail--
		return errors.New("display unavailable")
	}
	f.sent = append(f.sent, n)
	return nil
}

func (f *fakeSender) snapshot() []Notification {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]Notification(nil), f.sent...)
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("condition not met in time")
}

func TestNotifyOrderDelivered(t *testing.T) {
	fs := &fakeSender{}
	svc := NewService(Config{RatePerSec: 100}, fs, logx.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = svc.Run(ctx) }()

	svc.NotifyOrder("Venda #1234")
	waitFor(t, func() bool { return len(fs.snapshot()) == 1 })

	n := fs.snapshot()[0]
	if n.Title != "Sentinela Ranger - Nova Venda!" {
		t.Fatalf("title = %q", n.Title)
	}
	if want := "Detectada venda com 2 unidades:\nVenda #1234"; n.Message != want {
		t.Fatalf("message = %q, want %q", n.Message, want)
	}
	if !n.Urgent {
		t.Fatal("order notification must be urgent")
	}
	if !strings.HasPrefix(n.ID, "sentinela_") {
		t.Fatalf("id = %q", n.ID)
	}
}

func TestFallbackOnPrimaryFailure(t *testing.T) {
	fs := &fakeSender{fail: 1}
	svc := NewService(Config{RatePerSec: 100}, fs, logx.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = svc.Run(ctx) }()

	svc.NotifyOrder("Venda #42")
	waitFor(t, func() bool { return len(fs.snapshot()) == 1 })

	n := fs.snapshot()[0]
	if n.Title != "Sentinela Ranger" {
		t.Fatalf("fallback title = %q", n.Title)
	}
	if want := "Nova venda: Venda #42"; n.Message != want {
		t.Fatalf("fallback message = %q, want %q", n.Message, want)
	}
	if n.Urgent {
		t.Fatal("fallback must not be urgent")
	}
}

func TestActiveRegistryRetires(t *testing.T) {
	fs := &fakeSender{}
	svc := NewService(Config{RatePerSec: 100, AutoClear: 50 * time.Millisecond}, fs, logx.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = svc.Run(ctx) }()

	svc.NotifyOrder("pedido 9999")
	waitFor(t, func() bool { return len(svc.Active()) == 1 })
	waitFor(t, func() bool { return len(svc.Active()) == 0 })
}

func TestQueueFullDropsInsteadOfBlocking(t *testing.T) {
	fs := &fakeSender{}
	svc := NewService(Config{QueueSize: 1}, fs, logx.Nop())
	// No worker running: second enqueue must not block.
	done := make(chan struct{})
	go func() {
		svc.NotifyOrder("a")
		svc.NotifyOrder("b")
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("enqueue blocked on a full queue")
	}
}

func TestNewIDFormat(t *testing.T) {
	id := NewID()
	parts := strings.SplitN(id, "_", 3)
	if len(parts) != 3 || parts[0] != "sentinela" || len(parts[2]) != 7 {
		t.Fatalf("id = %q", id)
	}
	if id == NewID() {
		t.Fatal("ids must be unique")
	}
}

package memory

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/invopay/billing"
)

type busEvent struct {
	Val string
}

func (busEvent) EventType() string { return "membus.test" }

type otherEvent struct{}

func (otherEvent) EventType() string { return "membus.other" }

func allEvents(billing.Event) bool { return true }

type collectingHandler struct {
	mu     sync.Mutex
	events []billing.Event
	ctxs   []context.Context
	done   chan struct{}
}

func newCollectingHandler(expect int) *collectingHandler {
	h := &collectingHandler{done: make(chan struct{}, expect)}
	return h
}

func (h *collectingHandler) Handle(ctx context.Context, event billing.Event) error {
	h.mu.Lock()
	h.events = append(h.events, event)
	h.ctxs = append(h.ctxs, ctx)
	h.mu.Unlock()
	h.done <- struct{}{}
	return nil
}

func (h *collectingHandler) wait(t *testing.T, n int) {
	t.Helper()
	for i := 0; i < n; i++ {
		select {
		case <-h.done:
		case <-time.After(time.Second):
			t.Fatalf("timed out waiting for event %d of %d", i+1, n)
		}
	}
}

func TestEventBus_PublishDeliversToSubscriber(t *testing.T) {
	bus := NewEventBus(8)
	defer bus.Close()

	handler := newCollectingHandler(1)
	if err := bus.Subscribe(context.Background(), "sub-1", allEvents, handler); err != nil {
		t.Fatalf("subscribe: %v", err)
	}

	env := &billing.Envelope{
		EventID:  uuid.New(),
		StreamID: "s-1",
		Event:    busEvent{Val: "hello"},
		Version:  1,
	}
	if err := bus.Publish(context.Background(), env); err != nil {
		t.Fatalf("publish: %v", err)
	}

	handler.wait(t, 1)
	if got := handler.events[0].(busEvent).Val; got != "hello" {
		t.Fatalf("got %q", got)
	}
	if got := billing.StreamIDFromContext(handler.ctxs[0]); got != "s-1" {
		t.Fatalf("handler context missing envelope data, stream %q", got)
	}
}

func TestEventBus_FilterExcludesEvents(t *testing.T) {
	bus := NewEventBus(8)
	defer bus.Close()

	handler := newCollectingHandler(1)
	filter := func(e billing.Event) bool { return e.EventType() == "membus.test" }
	if err := bus.Subscribe(context.Background(), "sub-1", filter, handler); err != nil {
		t.Fatalf("subscribe: %v", err)
	}

	ctx := context.Background()
	if err := bus.Publish(ctx, &billing.Envelope{Event: otherEvent{}}); err != nil {
		t.Fatalf("publish: %v", err)
	}
	if err := bus.Publish(ctx, &billing.Envelope{Event: busEvent{Val: "kept"}}); err != nil {
		t.Fatalf("publish: %v", err)
	}

	handler.wait(t, 1)
	if len(handler.events) != 1 || handler.events[0].(busEvent).Val != "kept" {
		t.Fatalf("got %+v", handler.events)
	}
}

func TestEventBus_DuplicateSubscriberName(t *testing.T) {
	bus := NewEventBus(8)
	defer bus.Close()

	ctx := context.Background()
	if err := bus.Subscribe(ctx, "sub-1", allEvents, newCollectingHandler(0)); err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	if err := bus.Subscribe(ctx, "sub-1", allEvents, newCollectingHandler(0)); err == nil {
		t.Fatal("expected error on duplicate name")
	}
}

func TestEventBus_NilFilterOrHandler(t *testing.T) {
	bus := NewEventBus(8)
	defer bus.Close()

	ctx := context.Background()
	if err := bus.Subscribe(ctx, "sub-1", nil, newCollectingHandler(0)); err == nil {
		t.Fatal("expected error on nil filter")
	}
	if err := bus.Subscribe(ctx, "sub-2", allEvents, nil); err == nil {
		t.Fatal("expected error on nil handler")
	}
}

func TestEventBus_HandlerErrorsSurfaceOnErrorsChannel(t *testing.T) {
	bus := NewEventBus(8)
	defer bus.Close()

	boom := errors.New("handler broke")
	handler := billing.NewEventHandlerFunc(func(ctx context.Context, event billing.Event) error {
		return boom
	})
	if err := bus.Subscribe(context.Background(), "sub-1", allEvents, handler); err != nil {
		t.Fatalf("subscribe: %v", err)
	}

	if err := bus.Publish(context.Background(), &billing.Envelope{Event: busEvent{}}); err != nil {
		t.Fatalf("publish: %v", err)
	}

	select {
	case err := <-bus.Errors():
		if !errors.Is(err, boom) {
			t.Fatalf("got %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("expected an error on the errors channel")
	}
}

func TestEventBus_SubscriberRemovedWhenContextEnds(t *testing.T) {
	bus := NewEventBus(8)
	defer bus.Close()

	ctx, cancel := context.WithCancel(context.Background())
	if err := bus.Subscribe(ctx, "sub-1", allEvents, newCollectingHandler(0)); err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	cancel()

	// The name becomes reusable once the removal goroutine has run.
	deadline := time.After(time.Second)
	for {
		err := bus.Subscribe(context.Background(), "sub-1", allEvents, newCollectingHandler(0))
		if err == nil {
			return
		}
		select {
		case <-deadline:
			t.Fatalf("subscription never removed: %v", err)
		case <-time.After(5 * time.Millisecond):
		}
	}
}

func TestEventBus_ClosedBusRejectsOperations(t *testing.T) {
	bus := NewEventBus(8)
	if err := bus.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	if err := bus.Publish(context.Background(), &billing.Envelope{Event: busEvent{}}); err == nil {
		t.Fatal("expected error publishing to closed bus")
	}
	if err := bus.Subscribe(context.Background(), "sub-1", allEvents, newCollectingHandler(0)); err == nil {
		t.Fatal("expected error subscribing to closed bus")
	}
	if err := bus.Close(); err != nil {
		t.Fatalf("second close: %v", err)
	}
}

package billing

import (
	"context"
	"errors"
	"testing"
)

type handlerEventA struct{ Val string }

func (handlerEventA) EventType() string { return "handler.a" }

type handlerEventB struct{}

func (handlerEventB) EventType() string { return "handler.b" }

func TestOnEvent_HandlesMatchingType(t *testing.T) {
	var got handlerEventA
	h := OnEvent(func(ctx context.Context, ev handlerEventA) error {
		got = ev
		return nil
	})

	if err := h.Handle(context.Background(), handlerEventA{Val: "x"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Val != "x" {
		t.Fatalf("handler saw %+v", got)
	}
}

func TestOnEvent_SkipsOtherTypes(t *testing.T) {
	h := OnEvent(func(ctx context.Context, ev handlerEventA) error {
		t.Fatal("handler must not run for another type")
		return nil
	})

	err := h.Handle(context.Background(), handlerEventB{})
	var skipped *ErrSkippedEvent
	if !errors.As(err, &skipped) {
		t.Fatalf("expected ErrSkippedEvent, got %v", err)
	}
}

func TestEventGroupProcessor_RoutesByType(t *testing.T) {
	seenA, seenB := 0, 0
	group := NewEventGroupProcessor(
		OnEvent(func(ctx context.Context, ev handlerEventA) error { seenA++; return nil }),
		OnEvent(func(ctx context.Context, ev handlerEventB) error { seenB++; return nil }),
	)

	ctx := context.Background()
	if err := group.Handle(ctx, handlerEventA{}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := group.Handle(ctx, handlerEventB{}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if seenA != 1 || seenB != 1 {
		t.Fatalf("routing wrong: a=%d b=%d", seenA, seenB)
	}
}

func TestEventGroupProcessor_SkipsUnknownType(t *testing.T) {
	group := NewEventGroupProcessor(
		OnEvent(func(ctx context.Context, ev handlerEventA) error { return nil }),
	)

	err := group.Handle(context.Background(), handlerEventB{})
	if !errors.Is(err, &ErrSkippedEvent{}) {
		t.Fatalf("expected skipped event, got %v", err)
	}
}

func TestEventGroupProcessor_DuplicatePanics(t *testing.T) {
	defer func() {
		if r := recover(); r == nil {
			t.Fatal("expected panic on duplicate handlers")
		}
	}()
	NewEventGroupProcessor(
		OnEvent(func(ctx context.Context, ev handlerEventA) error { return nil }),
		OnEvent(func(ctx context.Context, ev handlerEventA) error { return nil }),
	)
}

func TestEventGroupProcessor_EventNamesSorted(t *testing.T) {
	group := NewEventGroupProcessor(
		OnEvent(func(ctx context.Context, ev handlerEventB) error { return nil }),
		OnEvent(func(ctx context.Context, ev handlerEventA) error { return nil }),
	)

	names := group.EventNames()
	if len(names) != 2 || names[0] != "handler.a" || names[1] != "handler.b" {
		t.Fatalf("got %v", names)
	}
}

func TestEventGroupProcessor_StreamFilter(t *testing.T) {
	group := NewEventGroupProcessor(
		OnEvent(func(ctx context.Context, ev handlerEventA) error { return nil }),
	)

	filter := group.StreamFilter()
	if !filter(handlerEventA{}) {
		t.Fatal("filter must match handled type")
	}
	if filter(handlerEventB{}) {
		t.Fatal("filter must reject unhandled type")
	}
}

package billing

import (
	"context"
	"fmt"
	"sort"
)

// EventHandler processes one published event.
type EventHandler interface {
	Handle(ctx context.Context, event Event) error
}

// NewEventHandlerFunc creates an EventHandler from a plain function. There is
// no type filtering; the function sees every event it is invoked with. Use
// OnEvent for type-safe handlers.
func NewEventHandlerFunc(fn func(ctx context.Context, event Event) error) EventHandler {
	return eventHandlerFunc(fn)
}

type eventHandlerFunc func(ctx context.Context, event Event) error

func (h eventHandlerFunc) Handle(ctx context.Context, event Event) error {
	return h(ctx, event)
}

// typedEventHandler is a strongly typed event handler for a specific Event type T.
type typedEventHandler[T Event] func(ctx context.Context, ev T) error

// EventName returns the routing name of the event type T.
func (h typedEventHandler[T]) EventName() string {
	var zero T
	return zero.EventType()
}

// Handle processes the event if it matches T, otherwise returns *ErrSkippedEvent.
func (h typedEventHandler[T]) Handle(ctx context.Context, event Event) error {
	ev, ok := event.(T)
	if !ok {
		return &ErrSkippedEvent{Event: event}
	}
	return h(ctx, ev)
}

// OnEvent creates a strongly typed EventHandler for one event type, suitable
// for registration in an EventGroupProcessor:
//
//	group := NewEventGroupProcessor(
//	    OnEvent(func(ctx context.Context, ev invoice.PaymentReceived) error { … }),
//	    OnEvent(func(ctx context.Context, ev invoice.InvoiceDeleted) error { … }),
//	)
func OnEvent[T Event](fn func(ctx context.Context, ev T) error) EventHandler {
	return typedEventHandler[T](fn)
}

// EventGroupProcessor routes incoming events to the correct typed handler
// based on event type. Handlers that share a group share one subscription.
type EventGroupProcessor struct {
	handlers map[string]EventHandler // key = EventName()
}

// NewEventGroupProcessor builds a group of typed handlers (created via
// OnEvent). Panics on handlers without an EventName or on duplicates.
func NewEventGroupProcessor(handlers ...EventHandler) *EventGroupProcessor {
	m := make(map[string]EventHandler, len(handlers))
	for _, h := range handlers {
		u, ok := h.(interface{ EventName() string })
		if !ok {
			panic(fmt.Errorf("handler %T does not have a function `EventName()`", h))
		}

		name := u.EventName()
		if _, exists := m[name]; exists {
			panic(fmt.Errorf("duplicate handler for event %s: %w", name, ErrDuplicateHandler))
		}
		m[name] = h
	}

	return &EventGroupProcessor{handlers: m}
}

// Handle routes the event to its typed handler, or returns *ErrSkippedEvent
// if the group has none for this type.
func (p *EventGroupProcessor) Handle(ctx context.Context, event Event) error {
	h, ok := p.handlers[event.EventType()]
	if !ok {
		return &ErrSkippedEvent{Event: event}
	}
	return h.Handle(ctx, event)
}

// EventNames returns the sorted event names this group handles.
func (p *EventGroupProcessor) EventNames() []string {
	out := make([]string, 0, len(p.handlers))
	for name := range p.handlers {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// StreamFilter returns a subscription filter matching exactly the event types
// this group handles.
func (p *EventGroupProcessor) StreamFilter() func(Event) bool {
	return func(event Event) bool {
		_, ok := p.handlers[event.EventType()]
		return ok
	}
}

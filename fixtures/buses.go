package fixtures

import (
	"context"
	"sync"

	"github.com/invopay/billing"
)

// EventBusSpy is a configurable mock EventBus for testing.
// It tracks subscriptions and allows injecting custom behavior.
type EventBusSpy struct {
	mu sync.Mutex

	// Function overrides
	PublishFn   func(ctx context.Context, envelopes ...*billing.Envelope) error
	SubscribeFn func(ctx context.Context, name string, filter func(billing.Event) bool, handler billing.EventHandler, options ...billing.SubscriberOption) error
	CloseFn     func() error

	// Call tracking
	PublishCalls   int
	SubscribeCalls int
	CloseCalls     int

	// Captured data
	PublishedEnvelopes []*billing.Envelope
	Subscriptions      []Subscription

	// Error injection
	subscribeErr error
	errChan      chan error
	closed       bool
}

// Subscription captures details of a Subscribe call.
type Subscription struct {
	Name    string
	Filter  func(billing.Event) bool
	Handler billing.EventHandler
}

// NewEventBusSpy creates a new EventBusSpy.
func NewEventBusSpy() *EventBusSpy {
	return &EventBusSpy{
		errChan: make(chan error, 10),
	}
}

// FailOnSubscribe configures the bus to return an error on Subscribe.
func (b *EventBusSpy) FailOnSubscribe(err error) *EventBusSpy {
	b.subscribeErr = err
	return b
}

// Publish records the envelopes and delivers them to matching subscriptions.
func (b *EventBusSpy) Publish(ctx context.Context, envelopes ...*billing.Envelope) error {
	b.mu.Lock()
	b.PublishCalls++
	b.PublishedEnvelopes = append(b.PublishedEnvelopes, envelopes...)
	subs := make([]Subscription, len(b.Subscriptions))
	copy(subs, b.Subscriptions)
	b.mu.Unlock()

	if b.PublishFn != nil {
		return b.PublishFn(ctx, envelopes...)
	}

	for _, envelope := range envelopes {
		for _, sub := range subs {
			if !sub.Filter(envelope.Event) {
				continue
			}
			handlerCtx := billing.WithEnvelope(ctx, envelope)
			if err := sub.Handler.Handle(handlerCtx, envelope.Event); err != nil {
				b.SendError(err)
			}
		}
	}
	return nil
}

func (b *EventBusSpy) Subscribe(ctx context.Context, name string, filter func(billing.Event) bool, handler billing.EventHandler, options ...billing.SubscriberOption) error {
	b.mu.Lock()
	b.SubscribeCalls++
	b.Subscriptions = append(b.Subscriptions, Subscription{
		Name:    name,
		Filter:  filter,
		Handler: handler,
	})
	b.mu.Unlock()

	if b.SubscribeFn != nil {
		return b.SubscribeFn(ctx, name, filter, handler, options...)
	}

	if b.subscribeErr != nil {
		return b.subscribeErr
	}

	return nil
}

func (b *EventBusSpy) Errors() <-chan error {
	return b.errChan
}

func (b *EventBusSpy) Close() error {
	b.mu.Lock()
	b.CloseCalls++
	if !b.closed {
		b.closed = true
		close(b.errChan)
	}
	b.mu.Unlock()

	if b.CloseFn != nil {
		return b.CloseFn()
	}
	return nil
}

// SendError sends an error to the error channel for testing error handling.
func (b *EventBusSpy) SendError(err error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.closed {
		select {
		case b.errChan <- err:
		default:
		}
	}
}

// HasSubscription checks if a subscription with the given name exists.
func (b *EventBusSpy) HasSubscription(name string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	for _, sub := range b.Subscriptions {
		if sub.Name == name {
			return true
		}
	}
	return false
}

// EventHandlerSpy is a configurable mock EventHandler for testing.
type EventHandlerSpy struct {
	mu sync.Mutex

	// Function override
	HandleFn func(ctx context.Context, event billing.Event) error

	// Call tracking
	HandleCalls int

	// Captured events
	ReceivedEvents []billing.Event

	// Error injection
	handleErr error
}

// NewEventHandlerSpy creates a new EventHandlerSpy.
func NewEventHandlerSpy() *EventHandlerSpy {
	return &EventHandlerSpy{}
}

// FailOnHandle configures the handler to return an error.
func (h *EventHandlerSpy) FailOnHandle(err error) *EventHandlerSpy {
	h.handleErr = err
	return h
}

func (h *EventHandlerSpy) Handle(ctx context.Context, event billing.Event) error {
	h.mu.Lock()
	h.HandleCalls++
	h.ReceivedEvents = append(h.ReceivedEvents, event)
	h.mu.Unlock()

	if h.HandleFn != nil {
		return h.HandleFn(ctx, event)
	}

	if h.handleErr != nil {
		return h.handleErr
	}

	return nil
}

// Reset clears all call counts and received events.
func (h *EventHandlerSpy) Reset() {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.HandleCalls = 0
	h.ReceivedEvents = nil
	h.handleErr = nil
}

// LastEvent returns the most recently received event, or nil if none.
func (h *EventHandlerSpy) LastEvent() billing.Event {
	h.mu.Lock()
	defer h.mu.Unlock()

	if len(h.ReceivedEvents) == 0 {
		return nil
	}
	return h.ReceivedEvents[len(h.ReceivedEvents)-1]
}

// EventCount returns the number of events received.
func (h *EventHandlerSpy) EventCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.ReceivedEvents)
}

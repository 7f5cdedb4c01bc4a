package billing

import "context"

// SubscriberOption configures a subscription; the concrete option type is
// bus-specific.
type SubscriberOption func(cfg any)

// EventBus distributes published envelopes to all matching subscribers.
// Delivery order across subscribers is not guaranteed; per-stream order is
// only as strong as the underlying transport.
type EventBus interface {
	// Publish hands envelopes to all matching subscribers.
	Publish(ctx context.Context, envelopes ...*Envelope) error

	// Subscribe registers a named handler with a filter. Returns an error if
	// the handler is nil, the name is taken, or the bus is closed. The
	// subscription ends when ctx is done.
	Subscribe(ctx context.Context, name string, filter func(Event) bool, handler EventHandler, options ...SubscriberOption) error

	// Errors returns the channel async handling errors are sent on.
	Errors() <-chan error

	// Close closes the bus and waits for all handlers to finish.
	Close() error
}

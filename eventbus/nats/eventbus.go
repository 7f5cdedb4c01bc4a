// Package nats provides a NATS-backed EventBus. Envelopes travel as JSON on
// one subject per origin id ("<prefix>.<stream id>"), so a NATS-side consumer
// can follow a single aggregate cheaply. Subscribers join a queue group under
// their own name, giving each named subscription at-most-one delivery per
// process group.
//
// Event filtering happens client-side after decode; per-stream ordering is as
// strong as NATS delivery, which is ordered per connection and subject.
package nats

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"

	"github.com/invopay/billing"
)

type subscriber struct {
	name string
	sub  *nats.Subscription
}

type eventBus struct {
	conn    *nats.Conn
	subject string
	mu      sync.RWMutex
	subs    map[string]*subscriber
	closed  bool
	errs    chan error
}

// NewEventBus creates a bus on an existing connection. subject is the prefix
// for all published envelopes, e.g. "billing.invoices".
func NewEventBus(conn *nats.Conn, subject string) billing.EventBus {
	return &eventBus{
		conn:    conn,
		subject: subject,
		subs:    make(map[string]*subscriber),
		errs:    make(chan error, 64),
	}
}

func (b *eventBus) Publish(ctx context.Context, envelopes ...*billing.Envelope) error {
	b.mu.RLock()
	closed := b.closed
	b.mu.RUnlock()
	if closed {
		return errors.New("eventbus is closed")
	}

	for _, envelope := range envelopes {
		data, err := json.Marshal(wireEnvelopeFrom(envelope))
		if err != nil {
			return fmt.Errorf("encode envelope %s: %w", envelope.EventID, err)
		}
		if err := b.conn.Publish(fmt.Sprintf("%s.%s", b.subject, envelope.StreamID), data); err != nil {
			return fmt.Errorf("publish envelope %s: %w", envelope.EventID, err)
		}
	}
	return nil
}

func (b *eventBus) Subscribe(
	ctx context.Context,
	name string,
	filter func(billing.Event) bool,
	handler billing.EventHandler,
	opts ...billing.SubscriberOption,
) error {
	if filter == nil || handler == nil {
		return errors.New("filter and handler cannot be nil")
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return errors.New("eventbus is closed")
	}
	if _, exists := b.subs[name]; exists {
		return fmt.Errorf("handler with name %q already registered", name)
	}

	sub, err := b.conn.QueueSubscribe(b.subject+".>", name, func(msg *nats.Msg) {
		envelope, err := decodeWireEnvelope(msg.Data)
		if err != nil {
			b.reportError(fmt.Errorf("subscriber %q: %w", name, err))
			return
		}
		if !filter(envelope.Event) {
			return
		}

		handlerCtx := billing.WithEnvelope(context.Background(), envelope)
		if err := handler.Handle(handlerCtx, envelope.Event); err != nil {
			b.reportError(fmt.Errorf("handler %q: %w", name, err))
		}
	})
	if err != nil {
		return fmt.Errorf("subscribe %q: %w", name, err)
	}

	b.subs[name] = &subscriber{name: name, sub: sub}

	// Remove the subscription when the caller's ctx finishes.
	go func() {
		<-ctx.Done()
		b.removeSubscriber(name)
	}()

	return nil
}

func (b *eventBus) Errors() <-chan error {
	return b.errs
}

func (b *eventBus) Close() error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil
	}
	b.closed = true

	for name, s := range b.subs {
		s.sub.Unsubscribe()
		delete(b.subs, name)
	}
	b.mu.Unlock()

	close(b.errs)
	return nil
}

func (b *eventBus) removeSubscriber(name string) {
	b.mu.Lock()
	s, ok := b.subs[name]
	if !ok {
		b.mu.Unlock()
		return
	}
	delete(b.subs, name)
	b.mu.Unlock()

	s.sub.Unsubscribe()
}

func (b *eventBus) reportError(err error) {
	select {
	case b.errs <- err:
	default:
		// Drop error if channel full.
	}
}

// wireEnvelope is the JSON layout of an Envelope on a NATS subject.
type wireEnvelope struct {
	EventID       uuid.UUID       `json:"event_id"`
	StreamID      string          `json:"stream_id"`
	CommandID     uuid.UUID       `json:"command_id"`
	Metadata      map[string]any  `json:"metadata,omitempty"`
	EventType     string          `json:"event_type"`
	Data          json.RawMessage `json:"data"`
	Version       uint64          `json:"version"`
	GlobalVersion uint64          `json:"global_version"`
	OccurredAt    time.Time       `json:"occurred_at"`
}

func wireEnvelopeFrom(env *billing.Envelope) wireEnvelope {
	data, _ := json.Marshal(env.Event)
	return wireEnvelope{
		EventID:       env.EventID,
		StreamID:      env.StreamID,
		CommandID:     env.CommandID,
		Metadata:      env.Metadata,
		EventType:     env.Event.EventType(),
		Data:          data,
		Version:       env.Version,
		GlobalVersion: env.GlobalVersion,
		OccurredAt:    env.OccurredAt,
	}
}

func decodeWireEnvelope(data []byte) (*billing.Envelope, error) {
	var wire wireEnvelope
	if err := json.Unmarshal(data, &wire); err != nil {
		return nil, fmt.Errorf("decode envelope: %w", err)
	}

	proto, err := billing.NewEventByName(wire.EventType)
	if err != nil {
		return nil, fmt.Errorf("cannot create event %q: %w", wire.EventType, err)
	}
	ptr := reflect.New(reflect.TypeOf(proto))
	if err := json.Unmarshal(wire.Data, ptr.Interface()); err != nil {
		return nil, fmt.Errorf("cannot unmarshal event %q: %w", wire.EventType, err)
	}

	return &billing.Envelope{
		EventID:       wire.EventID,
		StreamID:      wire.StreamID,
		CommandID:     wire.CommandID,
		Metadata:      wire.Metadata,
		Event:         ptr.Elem().Interface().(billing.Event),
		Version:       wire.Version,
		GlobalVersion: wire.GlobalVersion,
		OccurredAt:    wire.OccurredAt,
	}, nil
}

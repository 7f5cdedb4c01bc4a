// Package memory provides an in-process EventBus with per-subscriber worker
// goroutines and buffered delivery. Slow subscribers drop events rather than
// back-pressure the publisher.
package memory

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/invopay/billing"
)

type subscriber struct {
	name      string
	filter    func(billing.Event) bool
	handler   billing.EventHandler
	envelopes chan *billing.Envelope
	cancel    context.CancelFunc
}

type eventBus struct {
	mu         sync.RWMutex
	subs       map[string]*subscriber
	closed     bool
	errs       chan error
	wg         sync.WaitGroup
	bufferSize int
}

// NewEventBus constructs a bus with the given per-subscriber buffer size.
func NewEventBus(bufferSize int) billing.EventBus {
	return &eventBus{
		subs:       make(map[string]*subscriber),
		errs:       make(chan error, 64),
		bufferSize: bufferSize,
	}
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

	workerCtx, cancel := context.WithCancel(context.Background())
	s := &subscriber{
		name:      name,
		filter:    filter,
		handler:   handler,
		envelopes: make(chan *billing.Envelope, b.bufferSize),
		cancel:    cancel,
	}

	b.subs[name] = s

	b.wg.Add(1)
	go b.runSubscriber(workerCtx, s)

	// Remove the subscription when the caller's ctx finishes.
	go func() {
		<-ctx.Done()
		b.removeSubscriber(name)
	}()

	return nil
}

// Publish offers each envelope to every matching subscriber.
func (b *eventBus) Publish(ctx context.Context, envelopes ...*billing.Envelope) error {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		return errors.New("eventbus is closed")
	}

	for _, envelope := range envelopes {
		for _, s := range b.subs {
			if !s.filter(envelope.Event) {
				continue
			}
			select {
			case s.envelopes <- envelope:
			default:
				// Drop if the subscriber is busy.
			}
		}
	}
	return nil
}

func (b *eventBus) Errors() <-chan error {
	return b.errs
}

// Close shuts down the bus and waits for all workers.
func (b *eventBus) Close() error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil
	}
	b.closed = true

	for name, s := range b.subs {
		s.cancel()
		close(s.envelopes)
		delete(b.subs, name)
	}
	b.mu.Unlock()

	b.wg.Wait()
	close(b.errs)
	return nil
}

// runSubscriber delivers envelopes to a single handler.
func (b *eventBus) runSubscriber(ctx context.Context, s *subscriber) {
	defer b.wg.Done()

	for {
		select {
		case <-ctx.Done():
			return

		case envelope, ok := <-s.envelopes:
			if !ok {
				return
			}

			handlerCtx := billing.WithEnvelope(ctx, envelope)
			if err := s.handler.Handle(handlerCtx, envelope.Event); err != nil {
				select {
				case b.errs <- fmt.Errorf("handler %q: %w", s.name, err):
				default:
					// Drop error if channel full.
				}
			}
		}
	}
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

	s.cancel()
	close(s.envelopes)
}

// Package memory provides an in-memory EventStore, mainly for tests and
// examples. Events are kept per stream and in a global append-order log, and
// every append is offered to a publish channel for in-process subscribers.
package memory

import (
	"context"
	"fmt"
	"io"
	"sync"

	"github.com/invopay/billing"
)

var _ billing.EventStore = (*MemoryStore)(nil)

type MemoryStore struct {
	mu     sync.RWMutex
	bus    chan *billing.Envelope
	global []*billing.Envelope
	events map[string][]*billing.Envelope
	closed bool
}

// NewMemoryStore creates an in-memory store whose publish channel holds up to
// buffer envelopes. Envelopes are dropped, not blocked on, when the channel
// is full.
func NewMemoryStore(buffer int64) *MemoryStore {
	return &MemoryStore{
		events: make(map[string][]*billing.Envelope),
		global: make([]*billing.Envelope, 0),
		bus:    make(chan *billing.Envelope, buffer),
	}
}

func (m *MemoryStore) Save(ctx context.Context, events []billing.Envelope, revision billing.StreamState) (billing.AppendResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if len(events) == 0 {
		return billing.AppendResult{Successful: true}, nil
	}

	streamID := events[0].StreamID
	for i, env := range events {
		if env.StreamID != streamID {
			return billing.AppendResult{}, fmt.Errorf(
				"save events to stream %q: %w: event %d has different stream ID %q",
				streamID, billing.ErrInvalidEventBatch, i, env.StreamID,
			)
		}
	}

	currentVersion := uint64(len(m.events[streamID]))

	switch rev := revision.(type) {
	case billing.Any:
		// No concurrency check.
	case billing.NoStream:
		if currentVersion != 0 {
			return billing.AppendResult{Successful: false},
				fmt.Errorf("stream %q: already exists: %w", streamID, billing.ErrStreamExists)
		}
	case billing.StreamExists:
		if currentVersion == 0 {
			return billing.AppendResult{Successful: false},
				fmt.Errorf("stream %q: should exist: %w", streamID, billing.ErrStreamNotFound)
		}
	case billing.Revision:
		if currentVersion != uint64(rev) {
			return billing.AppendResult{}, &billing.StreamRevisionConflictError{
				Stream:           streamID,
				ExpectedRevision: rev,
				ActualRevision:   billing.Revision(currentVersion),
			}
		}
	default:
		return billing.AppendResult{Successful: false},
			fmt.Errorf("unsupported revision type for stream %q: %w", streamID, billing.ErrInvalidRevision)
	}

	for i := range events {
		events[i].GlobalVersion = uint64(len(m.global)) + 1

		// Store a copy so later caller-side mutation cannot rewrite the log.
		env := events[i]
		m.events[streamID] = append(m.events[streamID], &env)
		m.global = append(m.global, &env)
		currentVersion++

		select {
		case m.bus <- &env:
		default:
			// Drop if the channel is full.
		}
	}

	return billing.AppendResult{
		Successful:          true,
		StreamID:            streamID,
		NextExpectedVersion: currentVersion,
	}, nil
}

func (m *MemoryStore) LoadStream(ctx context.Context, id string) (*billing.Iterator[*billing.Envelope], error) {
	return m.LoadStreamFrom(ctx, id, 0)
}

func (m *MemoryStore) LoadStreamFrom(ctx context.Context, id string, version uint64) (*billing.Iterator[*billing.Envelope], error) {
	m.mu.RLock()
	events, exists := m.events[id]
	m.mu.RUnlock()

	if !exists {
		return nil, fmt.Errorf("load stream %q: %w", id, billing.ErrStreamNotFound)
	}

	index := int(version)
	return billing.NewIteratorFunc(func(ctx context.Context) (*billing.Envelope, error) {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if index >= len(events) {
			return nil, io.EOF
		}
		env := events[index]
		index++
		return env, nil
	}), nil
}

func (m *MemoryStore) LoadFromAll(ctx context.Context, version uint64) (*billing.Iterator[*billing.Envelope], error) {
	m.mu.RLock()
	all := make([]*billing.Envelope, 0, len(m.global))
	for _, env := range m.global {
		if env.GlobalVersion > version {
			all = append(all, env)
		}
	}
	m.mu.RUnlock()

	return billing.NewSliceIterator(all), nil
}

// Events exposes the publish channel for in-process subscribers.
func (m *MemoryStore) Events() <-chan *billing.Envelope {
	return m.bus
}

func (m *MemoryStore) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return nil
	}
	m.closed = true
	m.events = make(map[string][]*billing.Envelope)
	close(m.bus)
	return nil
}

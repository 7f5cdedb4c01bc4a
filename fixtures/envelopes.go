package fixtures

import (
	"time"

	"github.com/google/uuid"

	"github.com/invopay/billing"
)

// EnvelopeOption is a functional option for configuring an Envelope.
type EnvelopeOption func(*billing.Envelope)

// NewEnvelope creates an Envelope with the given stream id, event and options.
func NewEnvelope(streamID string, event billing.Event, opts ...EnvelopeOption) *billing.Envelope {
	env := &billing.Envelope{
		EventID:       uuid.New(),
		StreamID:      streamID,
		CommandID:     uuid.New(),
		Event:         event,
		Version:       1,
		GlobalVersion: 1,
		OccurredAt:    time.Now(),
		Metadata:      make(map[string]any),
	}

	for _, opt := range opts {
		opt(env)
	}

	return env
}

// WithEventID sets a specific event ID.
func WithEventID(id uuid.UUID) EnvelopeOption {
	return func(e *billing.Envelope) {
		e.EventID = id
	}
}

// WithCommandID sets the causing command ID.
func WithCommandID(id uuid.UUID) EnvelopeOption {
	return func(e *billing.Envelope) {
		e.CommandID = id
	}
}

// WithVersion sets the stream version.
func WithVersion(v uint64) EnvelopeOption {
	return func(e *billing.Envelope) {
		e.Version = v
	}
}

// WithGlobalVersion sets the global version.
func WithGlobalVersion(v uint64) EnvelopeOption {
	return func(e *billing.Envelope) {
		e.GlobalVersion = v
	}
}

// WithTimestamp sets the occurred-at timestamp.
func WithTimestamp(t time.Time) EnvelopeOption {
	return func(e *billing.Envelope) {
		e.OccurredAt = t
	}
}

// WithMetadataField adds a single metadata field.
func WithMetadataField(key string, value any) EnvelopeOption {
	return func(e *billing.Envelope) {
		if e.Metadata == nil {
			e.Metadata = make(map[string]any)
		}
		e.Metadata[key] = value
	}
}

// EnvelopesFromEvents creates envelopes for a stream with sequential versions,
// all stamped with the same command id.
func EnvelopesFromEvents(streamID string, events ...billing.Event) []*billing.Envelope {
	envelopes := make([]*billing.Envelope, len(events))
	commandID := uuid.New()
	baseTime := time.Now()

	for i, event := range events {
		envelopes[i] = &billing.Envelope{
			EventID:       uuid.New(),
			StreamID:      streamID,
			CommandID:     commandID,
			Event:         event,
			Version:       uint64(i + 1),
			GlobalVersion: uint64(i + 1),
			OccurredAt:    baseTime.Add(time.Duration(i) * time.Millisecond),
			Metadata:      make(map[string]any),
		}
	}

	return envelopes
}

// EnvelopeValuesFromEvents creates envelope values from a slice of events.
func EnvelopeValuesFromEvents(streamID string, events ...billing.Event) []billing.Envelope {
	ptrs := EnvelopesFromEvents(streamID, events...)
	values := make([]billing.Envelope, len(ptrs))
	for i, p := range ptrs {
		values[i] = *p
	}
	return values
}

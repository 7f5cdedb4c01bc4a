package billing

import (
	"reflect"
	"time"

	"github.com/google/uuid"
)

// Event is a domain event payload describing exactly one state change to an
// aggregate. Payloads are immutable values; everything positional (stream,
// version, time, originating command) lives on the Envelope.
type Event interface {
	EventType() string
}

// Envelope carries an Event together with the bookkeeping needed for ordered,
// replayable storage: the stream it belongs to, its position in that stream,
// the command that produced it and the time it was produced.
//
// Versions within one stream form a gapless sequence 1,2,3,… and every
// envelope produced by the same command shares that command's CommandID and
// OccurredAt, so downstream consumers can correlate results and detect
// duplicates.
type Envelope struct {
	EventID       uuid.UUID
	StreamID      string
	CommandID     uuid.UUID
	Metadata      map[string]any
	Event         Event
	Version       uint64
	GlobalVersion uint64
	OccurredAt    time.Time
}

// TypeName returns the bare Go type name of a value, pointer or not. It is
// used in error messages; event routing and registry lookups use
// Event.EventType instead.
func TypeName(v any) string {
	t := reflect.TypeOf(v)
	if t == nil {
		return ""
	}
	if t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	return t.Name()
}

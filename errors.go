package billing

import (
	"errors"
	"fmt"
)

var (
	// ErrBusinessRuleViolation marks command rejections that originate in
	// domain logic rather than infrastructure. Handlers wrap domain errors
	// with it so transports can tell "don't retry" from "broken".
	ErrBusinessRuleViolation = errors.New("business rule violation")

	// ErrSnapshotNotFound is returned by snapshot stores for an unseen origin id.
	ErrSnapshotNotFound = errors.New("snapshot not found")

	ErrStreamNotFound    = errors.New("stream not found")
	ErrStreamExists      = errors.New("stream already exists")
	ErrInvalidRevision   = errors.New("invalid stream revision")
	ErrInvalidEventBatch = errors.New("invalid event batch")
	ErrDuplicateHandler  = errors.New("duplicate handler")
)

// VersionConflictError is produced by the command processor when a command's
// expected version does not match the snapshot's actual version. It means the
// issuer decided against stale state; the issuer must re-fetch and resubmit.
// It is never retried automatically.
type VersionConflictError struct {
	Stream   string
	Expected uint64
	Actual   uint64
}

func (e *VersionConflictError) Error() string {
	return fmt.Sprintf("version conflict on stream %q: expected %d, actual %d", e.Stream, e.Expected, e.Actual)
}

// StreamRevisionConflictError is returned by event stores when the Revision
// guard fails at append time: another writer committed to the stream between
// snapshot load and save. Unlike VersionConflictError it is safe to retry
// with a fresh snapshot.
type StreamRevisionConflictError struct {
	Stream           string
	ExpectedRevision Revision
	ActualRevision   Revision
}

func (e *StreamRevisionConflictError) Error() string {
	return fmt.Sprintf("stream %q revision conflict: expected %d, actual %d", e.Stream, e.ExpectedRevision, e.ActualRevision)
}

// ErrSkippedEvent is returned when a handler cannot handle the event type.
type ErrSkippedEvent struct {
	Event Event
}

func (e *ErrSkippedEvent) Error() string {
	return fmt.Sprintf("skipped event of type %T", e.Event)
}

// Is lets errors.Is match any skipped-event error regardless of payload.
func (e *ErrSkippedEvent) Is(target error) bool {
	_, ok := target.(*ErrSkippedEvent)
	return ok
}

// EventStoreError wraps store-specific persistence failures.
type EventStoreError struct {
	Err error
}

func (e *EventStoreError) Error() string {
	return fmt.Sprintf("eventstore error: %v", e.Err)
}

func (e *EventStoreError) Unwrap() error {
	return e.Err
}

// WrapEventStoreError wraps err in an EventStoreError, passing nil through.
func WrapEventStoreError(err error) error {
	if err == nil {
		return nil
	}
	return &EventStoreError{Err: err}
}

package billing

import (
	"errors"
	"fmt"
	"testing"
)

func TestErrSkippedEvent_IsMatchesAnyPayload(t *testing.T) {
	err := fmt.Errorf("wrapped: %w", &ErrSkippedEvent{Event: testEvent{typ: "a"}})
	if !errors.Is(err, &ErrSkippedEvent{}) {
		t.Fatal("errors.Is must match skipped events regardless of payload")
	}
}

func TestVersionConflictError_Message(t *testing.T) {
	err := &VersionConflictError{Stream: "invoice-1", Expected: 3, Actual: 5}
	want := `version conflict on stream "invoice-1": expected 3, actual 5`
	if err.Error() != want {
		t.Fatalf("got %q, want %q", err.Error(), want)
	}
}

func TestStreamRevisionConflictError_Message(t *testing.T) {
	err := &StreamRevisionConflictError{Stream: "invoice-1", ExpectedRevision: 2, ActualRevision: 4}
	want := `stream "invoice-1" revision conflict: expected 2, actual 4`
	if err.Error() != want {
		t.Fatalf("got %q, want %q", err.Error(), want)
	}
}

func TestWrapEventStoreError(t *testing.T) {
	if WrapEventStoreError(nil) != nil {
		t.Fatal("nil must pass through")
	}

	cause := errors.New("disk full")
	err := WrapEventStoreError(cause)

	var storeErr *EventStoreError
	if !errors.As(err, &storeErr) {
		t.Fatalf("expected EventStoreError, got %T", err)
	}
	if !errors.Is(err, cause) {
		t.Fatal("wrapped error must unwrap to its cause")
	}
}

package billing

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
)

func TestWithEnvelope_AccessorsRoundTrip(t *testing.T) {
	env := &Envelope{
		EventID:       uuid.New(),
		StreamID:      "invoice-1",
		CommandID:     uuid.New(),
		Event:         testEvent{typ: "ctx.test"},
		Version:       4,
		GlobalVersion: 19,
		OccurredAt:    time.Date(2026, 5, 2, 9, 30, 0, 0, time.UTC),
		Metadata:      map[string]any{"tenant": "acme"},
	}

	ctx := WithEnvelope(context.Background(), env)

	if got := StreamIDFromContext(ctx); got != "invoice-1" {
		t.Errorf("stream id %q", got)
	}
	if got := EventIDFromContext(ctx); got != env.EventID {
		t.Errorf("event id %s", got)
	}
	if got := CommandIDFromContext(ctx); got != env.CommandID {
		t.Errorf("command id %s", got)
	}
	if got := VersionFromContext(ctx); got != 4 {
		t.Errorf("version %d", got)
	}
	if got := GlobalVersionFromContext(ctx); got != 19 {
		t.Errorf("global version %d", got)
	}
	if got := OccurredAtFromContext(ctx); !got.Equal(env.OccurredAt) {
		t.Errorf("occurred at %v", got)
	}
	if got := MetadataFromContext(ctx); got["tenant"] != "acme" {
		t.Errorf("metadata %v", got)
	}
}

func TestContextAccessors_Defaults(t *testing.T) {
	ctx := context.Background()

	if StreamIDFromContext(ctx) != "" {
		t.Error("expected empty stream id")
	}
	if EventIDFromContext(ctx) != uuid.Nil {
		t.Error("expected nil event id")
	}
	if CommandIDFromContext(ctx) != uuid.Nil {
		t.Error("expected nil command id")
	}
	if VersionFromContext(ctx) != 0 || GlobalVersionFromContext(ctx) != 0 {
		t.Error("expected zero versions")
	}
	if !OccurredAtFromContext(ctx).IsZero() {
		t.Error("expected zero time")
	}
	if MetadataFromContext(ctx) != nil {
		t.Error("expected nil metadata")
	}
}

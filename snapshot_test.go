package billing

import (
	"context"
	"errors"
	"testing"
)

func TestRehydrate_FoldsLogIntoSnapshot(t *testing.T) {
	history := []*Envelope{
		{StreamID: "agg-1", Event: testEvent{typ: "counted", val: "a"}, Version: 1},
		{StreamID: "agg-1", Event: testEvent{typ: "counted", val: "b"}, Version: 2},
		{StreamID: "agg-1", Event: testEvent{typ: "counted", val: "c"}, Version: 3},
	}

	snap, err := Rehydrate(context.Background(), counterEvolve, EmptySnapshot[counterState](), NewSliceIterator(history))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if snap.Version != 3 {
		t.Fatalf("version %d, want 3", snap.Version)
	}
	if got := snap.State.Applied; len(got) != 3 || got[0] != "a" || got[2] != "c" {
		t.Fatalf("state %v", got)
	}
}

func TestRehydrate_ReplayIsDeterministic(t *testing.T) {
	history := []*Envelope{
		{StreamID: "agg-1", Event: testEvent{typ: "counted", val: "a"}, Version: 1},
		{StreamID: "agg-1", Event: testEvent{typ: "counted", val: "b"}, Version: 2},
	}

	ctx := context.Background()
	first, err := Rehydrate(ctx, counterEvolve, EmptySnapshot[counterState](), NewSliceIterator(history))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	second, err := Rehydrate(ctx, counterEvolve, EmptySnapshot[counterState](), NewSliceIterator(history))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if first.Version != second.Version {
		t.Fatalf("versions differ: %d vs %d", first.Version, second.Version)
	}
	if len(first.State.Applied) != len(second.State.Applied) {
		t.Fatalf("states differ: %v vs %v", first.State.Applied, second.State.Applied)
	}
}

func TestRehydrate_ContinuesFromSnapshot(t *testing.T) {
	base := Snapshot[counterState]{Version: 2, State: &counterState{Applied: []string{"a", "b"}}}
	suffix := []*Envelope{
		{StreamID: "agg-1", Event: testEvent{typ: "counted", val: "c"}, Version: 3},
	}

	snap, err := Rehydrate(context.Background(), counterEvolve, base, NewSliceIterator(suffix))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if snap.Version != 3 {
		t.Fatalf("version %d, want 3", snap.Version)
	}
	if got := snap.State.Applied; len(got) != 3 {
		t.Fatalf("state %v", got)
	}
}

func TestRehydrate_PropagatesIteratorError(t *testing.T) {
	boom := errors.New("read failed")
	iter := NewIteratorFunc(func(ctx context.Context) (*Envelope, error) {
		return nil, boom
	})

	_, err := Rehydrate(context.Background(), counterEvolve, EmptySnapshot[counterState](), iter)
	if !errors.Is(err, boom) {
		t.Fatalf("expected read error, got %v", err)
	}
}

func TestEmptySnapshot(t *testing.T) {
	snap := EmptySnapshot[counterState]()
	if snap.Version != 0 || snap.State != nil {
		t.Fatalf("empty snapshot must be version 0 with nil state, got %+v", snap)
	}
}

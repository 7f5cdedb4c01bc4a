package memory

import (
	"context"
	"errors"
	"testing"

	"github.com/invopay/billing"
)

type account struct {
	Balance float64
}

func TestStore_SaveAndLoad(t *testing.T) {
	store := New[account]()
	ctx := context.Background()

	want := billing.Snapshot[account]{Version: 3, State: &account{Balance: 120.50}}
	if err := store.Save(ctx, "acct-1", want); err != nil {
		t.Fatalf("save: %v", err)
	}

	got, err := store.Load(ctx, "acct-1")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if got.Version != 3 || got.State.Balance != 120.50 {
		t.Fatalf("got %+v", got)
	}
}

func TestStore_MissReturnsNotFound(t *testing.T) {
	store := New[account]()

	_, err := store.Load(context.Background(), "unknown")
	if !errors.Is(err, billing.ErrSnapshotNotFound) {
		t.Fatalf("expected ErrSnapshotNotFound, got %v", err)
	}
}

func TestStore_SaveOverwrites(t *testing.T) {
	store := New[account]()
	ctx := context.Background()

	if err := store.Save(ctx, "acct-1", billing.Snapshot[account]{Version: 1, State: &account{Balance: 1}}); err != nil {
		t.Fatalf("save: %v", err)
	}
	if err := store.Save(ctx, "acct-1", billing.Snapshot[account]{Version: 2, State: &account{Balance: 2}}); err != nil {
		t.Fatalf("save: %v", err)
	}

	got, err := store.Load(ctx, "acct-1")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if got.Version != 2 || got.State.Balance != 2 {
		t.Fatalf("got %+v", got)
	}
}

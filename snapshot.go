package billing

import "context"

// Snapshot is a versioned cache of an aggregate: the current version counter
// plus the materialized state. State is nil while the aggregate does not
// exist yet, which implies Version 0. Snapshots are values; every applied
// event produces a new one.
type Snapshot[T any] struct {
	Version uint64
	State   *T
}

// EmptySnapshot returns the snapshot of an unseen origin id.
func EmptySnapshot[T any]() Snapshot[T] {
	return Snapshot[T]{}
}

// SnapshotStore serves the most recent committed snapshot per origin id.
//
// Implementations must return ErrSnapshotNotFound (possibly wrapped) for an
// unseen origin id, and must persist Save durably before the surrounding
// system acknowledges the command as applied.
type SnapshotStore[T any] interface {
	Load(ctx context.Context, originID string) (Snapshot[T], error)
	Save(ctx context.Context, originID string, snapshot Snapshot[T]) error
}

// Rehydrate folds a stream of envelopes into a snapshot, starting from
// whatever version snap is already at. Replaying the same committed log from
// the empty snapshot reproduces the stored snapshot exactly.
func Rehydrate[T any](ctx context.Context, evolve Evolver[T], snap Snapshot[T], iter *Iterator[*Envelope]) (Snapshot[T], error) {
	for iter.Next(ctx) {
		envelope := iter.Value()
		snap.State = evolve(snap.State, envelope)
		snap.Version = envelope.Version
	}
	if err := iter.Err(); err != nil {
		return snap, err
	}
	return snap, nil
}

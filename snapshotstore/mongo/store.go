// Package mongo provides a MongoDB-backed SnapshotStore: one document per
// origin id, replaced wholesale on every save. Snapshots are a cache over the
// event log, so compact-by-key storage is all that is needed.
package mongo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/invopay/billing"
)

type Store[T any] struct {
	col *mongo.Collection
}

var _ billing.SnapshotStore[struct{}] = (*Store[struct{}])(nil)

type snapshotEntry struct {
	OriginID string    `bson:"originId"`
	Version  uint64    `bson:"version"`
	Time     time.Time `bson:"time"`
	State    []byte    `bson:"state,omitempty"`
}

// New creates a snapshot store on the given collection. Callers should ensure
// a unique index on originId.
func New[T any](col *mongo.Collection) *Store[T] {
	return &Store[T]{col: col}
}

func (s *Store[T]) Load(ctx context.Context, originID string) (billing.Snapshot[T], error) {
	var entry snapshotEntry
	err := s.col.FindOne(ctx, bson.M{"originId": originID}).Decode(&entry)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return billing.Snapshot[T]{}, fmt.Errorf("origin %q: %w", originID, billing.ErrSnapshotNotFound)
	}
	if err != nil {
		return billing.Snapshot[T]{}, fmt.Errorf("load snapshot for origin %q: %w", originID, err)
	}

	snapshot := billing.Snapshot[T]{Version: entry.Version}
	if len(entry.State) > 0 {
		var state T
		if err := json.Unmarshal(entry.State, &state); err != nil {
			return billing.Snapshot[T]{}, fmt.Errorf("decode snapshot for origin %q: %w", originID, err)
		}
		snapshot.State = &state
	}
	return snapshot, nil
}

func (s *Store[T]) Save(ctx context.Context, originID string, snapshot billing.Snapshot[T]) error {
	entry := snapshotEntry{
		OriginID: originID,
		Version:  snapshot.Version,
		Time:     time.Now(),
	}
	if snapshot.State != nil {
		state, err := json.Marshal(snapshot.State)
		if err != nil {
			return fmt.Errorf("encode snapshot for origin %q: %w", originID, err)
		}
		entry.State = state
	}

	_, err := s.col.ReplaceOne(ctx,
		bson.M{"originId": originID},
		entry,
		options.Replace().SetUpsert(true),
	)
	if err != nil {
		return fmt.Errorf("save snapshot for origin %q: %w", originID, err)
	}
	return nil
}

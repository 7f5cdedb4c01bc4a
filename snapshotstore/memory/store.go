// Package memory provides an in-memory SnapshotStore for tests and examples.
package memory

import (
	"context"
	"fmt"
	"sync"

	"github.com/invopay/billing"
)

type Store[T any] struct {
	mu        sync.RWMutex
	snapshots map[string]billing.Snapshot[T]
}

var _ billing.SnapshotStore[struct{}] = (*Store[struct{}])(nil)

func New[T any]() *Store[T] {
	return &Store[T]{
		snapshots: make(map[string]billing.Snapshot[T]),
	}
}

func (s *Store[T]) Load(ctx context.Context, originID string) (billing.Snapshot[T], error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snapshot, ok := s.snapshots[originID]
	if !ok {
		return billing.Snapshot[T]{}, fmt.Errorf("origin %q: %w", originID, billing.ErrSnapshotNotFound)
	}
	return snapshot, nil
}

func (s *Store[T]) Save(ctx context.Context, originID string, snapshot billing.Snapshot[T]) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.snapshots[originID] = snapshot
	return nil
}

package fixtures

import (
	"context"
	"io"
	"sync"

	"github.com/invopay/billing"
)

// StoreSpy is a configurable mock EventStore for testing.
// It tracks calls and allows injecting custom behavior or failures.
type StoreSpy struct {
	mu sync.Mutex

	// Function overrides for custom behavior
	LoadStreamFn     func(ctx context.Context, id string) (*billing.Iterator[*billing.Envelope], error)
	LoadStreamFromFn func(ctx context.Context, id string, version uint64) (*billing.Iterator[*billing.Envelope], error)
	LoadFromAllFn    func(ctx context.Context, version uint64) (*billing.Iterator[*billing.Envelope], error)
	SaveFn           func(ctx context.Context, events []billing.Envelope, revision billing.StreamState) (billing.AppendResult, error)
	CloseFn          func() error

	// Call tracking
	LoadStreamCalls     int
	LoadStreamFromCalls int
	LoadFromAllCalls    int
	SaveCalls           int
	CloseCalls          int

	// Captured arguments from last call
	LastSaveEvents   []billing.Envelope
	LastSaveRevision billing.StreamState
	LastLoadStreamID string

	// Pre-configured data, streamID -> envelopes
	events map[string][]*billing.Envelope

	// Error injection
	loadErr error
	saveErr error
}

// NewStoreSpy creates a new StoreSpy with default behavior.
func NewStoreSpy() *StoreSpy {
	return &StoreSpy{
		events: make(map[string][]*billing.Envelope),
	}
}

// WithEvents pre-populates the store with events for a stream.
func (s *StoreSpy) WithEvents(streamID string, events ...*billing.Envelope) *StoreSpy {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events[streamID] = events
	return s
}

// WithEventsFromSlice pre-populates the store with envelopes built from events.
func (s *StoreSpy) WithEventsFromSlice(streamID string, events ...billing.Event) *StoreSpy {
	envelopes := EnvelopesFromEvents(streamID, events...)
	return s.WithEvents(streamID, envelopes...)
}

// FailOnLoad configures the store to return an error on load operations.
func (s *StoreSpy) FailOnLoad(err error) *StoreSpy {
	s.loadErr = err
	return s
}

// FailOnSave configures the store to return an error on save operations.
func (s *StoreSpy) FailOnSave(err error) *StoreSpy {
	s.saveErr = err
	return s
}

func (s *StoreSpy) LoadStream(ctx context.Context, id string) (*billing.Iterator[*billing.Envelope], error) {
	s.mu.Lock()
	s.LoadStreamCalls++
	s.LastLoadStreamID = id
	s.mu.Unlock()

	if s.LoadStreamFn != nil {
		return s.LoadStreamFn(ctx, id)
	}

	if s.loadErr != nil {
		return nil, s.loadErr
	}

	s.mu.Lock()
	events := s.events[id]
	s.mu.Unlock()

	return SliceIterator(events), nil
}

func (s *StoreSpy) LoadStreamFrom(ctx context.Context, id string, version uint64) (*billing.Iterator[*billing.Envelope], error) {
	s.mu.Lock()
	s.LoadStreamFromCalls++
	s.LastLoadStreamID = id
	s.mu.Unlock()

	if s.LoadStreamFromFn != nil {
		return s.LoadStreamFromFn(ctx, id, version)
	}

	if s.loadErr != nil {
		return nil, s.loadErr
	}

	s.mu.Lock()
	events := s.events[id]
	s.mu.Unlock()

	var filtered []*billing.Envelope
	for _, e := range events {
		if e.Version > version {
			filtered = append(filtered, e)
		}
	}

	return SliceIterator(filtered), nil
}

func (s *StoreSpy) LoadFromAll(ctx context.Context, version uint64) (*billing.Iterator[*billing.Envelope], error) {
	s.mu.Lock()
	s.LoadFromAllCalls++
	s.mu.Unlock()

	if s.LoadFromAllFn != nil {
		return s.LoadFromAllFn(ctx, version)
	}

	if s.loadErr != nil {
		return nil, s.loadErr
	}

	s.mu.Lock()
	var all []*billing.Envelope
	for _, events := range s.events {
		for _, e := range events {
			if e.GlobalVersion > version {
				all = append(all, e)
			}
		}
	}
	s.mu.Unlock()

	return SliceIterator(all), nil
}

func (s *StoreSpy) Save(ctx context.Context, events []billing.Envelope, revision billing.StreamState) (billing.AppendResult, error) {
	s.mu.Lock()
	s.SaveCalls++
	s.LastSaveEvents = events
	s.LastSaveRevision = revision
	s.mu.Unlock()

	if s.SaveFn != nil {
		return s.SaveFn(ctx, events, revision)
	}

	if s.saveErr != nil {
		return billing.AppendResult{Successful: false}, s.saveErr
	}

	if len(events) == 0 {
		return billing.AppendResult{Successful: true}, nil
	}

	streamID := events[0].StreamID

	s.mu.Lock()
	for i := range events {
		env := events[i]
		s.events[streamID] = append(s.events[streamID], &env)
	}
	nextVersion := uint64(len(s.events[streamID]))
	s.mu.Unlock()

	return billing.AppendResult{
		Successful:          true,
		StreamID:            streamID,
		NextExpectedVersion: nextVersion,
	}, nil
}

func (s *StoreSpy) Close() error {
	s.mu.Lock()
	s.CloseCalls++
	s.mu.Unlock()

	if s.CloseFn != nil {
		return s.CloseFn()
	}
	return nil
}

// Reset clears all call counts and stored data.
func (s *StoreSpy) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.LoadStreamCalls = 0
	s.LoadStreamFromCalls = 0
	s.LoadFromAllCalls = 0
	s.SaveCalls = 0
	s.CloseCalls = 0
	s.LastSaveEvents = nil
	s.LastSaveRevision = nil
	s.LastLoadStreamID = ""
	s.events = make(map[string][]*billing.Envelope)
	s.loadErr = nil
	s.saveErr = nil
}

// Pre-built store scenarios.

// EmptyStore returns a StoreSpy with no events.
func EmptyStore() *StoreSpy {
	return NewStoreSpy()
}

// FailingStore returns a StoreSpy that fails on all operations.
func FailingStore(err error) *StoreSpy {
	return NewStoreSpy().FailOnLoad(err).FailOnSave(err)
}

// ConcurrencyConflictStore returns a StoreSpy that returns a revision conflict
// on save.
func ConcurrencyConflictStore(streamID string, expected, actual billing.Revision) *StoreSpy {
	store := NewStoreSpy()
	store.SaveFn = func(ctx context.Context, events []billing.Envelope, revision billing.StreamState) (billing.AppendResult, error) {
		return billing.AppendResult{Successful: false}, &billing.StreamRevisionConflictError{
			Stream:           streamID,
			ExpectedRevision: expected,
			ActualRevision:   actual,
		}
	}
	return store
}

// StreamNotFoundStore returns a StoreSpy that returns ErrStreamNotFound on load.
func StreamNotFoundStore() *StoreSpy {
	store := NewStoreSpy()
	store.LoadStreamFn = func(ctx context.Context, id string) (*billing.Iterator[*billing.Envelope], error) {
		return nil, billing.ErrStreamNotFound
	}
	store.LoadStreamFromFn = func(ctx context.Context, id string, version uint64) (*billing.Iterator[*billing.Envelope], error) {
		return nil, billing.ErrStreamNotFound
	}
	return store
}

// SliceIterator creates an iterator from a slice of envelope pointers.
func SliceIterator(envelopes []*billing.Envelope) *billing.Iterator[*billing.Envelope] {
	idx := 0
	return billing.NewIteratorFunc(func(ctx context.Context) (*billing.Envelope, error) {
		if idx >= len(envelopes) {
			return nil, io.EOF
		}
		env := envelopes[idx]
		idx++
		return env, nil
	})
}

// SnapshotStoreSpy is a configurable mock SnapshotStore for testing.
type SnapshotStoreSpy[T any] struct {
	mu sync.Mutex

	LoadFn func(ctx context.Context, originID string) (billing.Snapshot[T], error)
	SaveFn func(ctx context.Context, originID string, snapshot billing.Snapshot[T]) error

	LoadCalls int
	SaveCalls int

	LastSavedSnapshot billing.Snapshot[T]

	snapshots map[string]billing.Snapshot[T]

	loadErr error
	saveErr error
}

// NewSnapshotStoreSpy creates a new SnapshotStoreSpy.
func NewSnapshotStoreSpy[T any]() *SnapshotStoreSpy[T] {
	return &SnapshotStoreSpy[T]{
		snapshots: make(map[string]billing.Snapshot[T]),
	}
}

// WithSnapshot pre-populates a snapshot for an origin id.
func (s *SnapshotStoreSpy[T]) WithSnapshot(originID string, snapshot billing.Snapshot[T]) *SnapshotStoreSpy[T] {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.snapshots[originID] = snapshot
	return s
}

// FailOnLoad configures the store to return an error on Load.
func (s *SnapshotStoreSpy[T]) FailOnLoad(err error) *SnapshotStoreSpy[T] {
	s.loadErr = err
	return s
}

// FailOnSave configures the store to return an error on Save.
func (s *SnapshotStoreSpy[T]) FailOnSave(err error) *SnapshotStoreSpy[T] {
	s.saveErr = err
	return s
}

func (s *SnapshotStoreSpy[T]) Load(ctx context.Context, originID string) (billing.Snapshot[T], error) {
	s.mu.Lock()
	s.LoadCalls++
	s.mu.Unlock()

	if s.LoadFn != nil {
		return s.LoadFn(ctx, originID)
	}

	if s.loadErr != nil {
		return billing.Snapshot[T]{}, s.loadErr
	}

	s.mu.Lock()
	snapshot, ok := s.snapshots[originID]
	s.mu.Unlock()
	if !ok {
		return billing.Snapshot[T]{}, billing.ErrSnapshotNotFound
	}
	return snapshot, nil
}

func (s *SnapshotStoreSpy[T]) Save(ctx context.Context, originID string, snapshot billing.Snapshot[T]) error {
	s.mu.Lock()
	s.SaveCalls++
	s.LastSavedSnapshot = snapshot
	s.mu.Unlock()

	if s.SaveFn != nil {
		return s.SaveFn(ctx, originID, snapshot)
	}

	if s.saveErr != nil {
		return s.saveErr
	}

	s.mu.Lock()
	s.snapshots[originID] = snapshot
	s.mu.Unlock()
	return nil
}

package billing

import "context"

// EventStore is the contract for an append-only event store. It persists the
// envelopes of each stream in sequential order, allowing full reconstruction
// of aggregate state at any point in time.
//
// Implementations must guarantee:
//   - Events of one stream are stored and yielded in version order.
//   - The StreamState guard is checked atomically with the append.
//   - Iteration from all Load* methods is deterministic (oldest → newest).
//
// The returned iterators are lazy; consume them immediately and make no
// assumptions about reuse after iteration completes.
type EventStore interface {
	// Save appends all envelopes of one batch to their stream. Every envelope
	// in the batch must carry the same StreamID; batches are all-or-nothing.
	//
	// Returns a *StreamRevisionConflictError when a Revision guard fails,
	// ErrStreamExists / ErrStreamNotFound (wrapped) for the NoStream and
	// StreamExists guards, or a store-specific persistence error.
	Save(ctx context.Context, events []Envelope, revision StreamState) (AppendResult, error)

	// LoadStream yields all envelopes of the stream from version 1 onward.
	LoadStream(ctx context.Context, id string) (*Iterator[*Envelope], error)

	// LoadStreamFrom yields the stream's envelopes with Version > version.
	LoadStreamFrom(ctx context.Context, id string, version uint64) (*Iterator[*Envelope], error)

	// LoadFromAll yields envelopes across all streams with GlobalVersion >
	// version, in global append order.
	LoadFromAll(ctx context.Context, version uint64) (*Iterator[*Envelope], error)

	// Close releases any resources held by the store. Implementations should
	// make Close idempotent.
	Close() error
}

// AppendResult describes the outcome of an append operation.
type AppendResult struct {
	Successful          bool
	StreamID            string
	NextExpectedVersion uint64
}

package billing

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// now is a hook for tests.
var now = time.Now

// StreamNamer produces the stream name for a given command, with access to context.
type StreamNamer func(ctx context.Context, cmd Command) string

// DefaultStreamNamer is used when no custom StreamNamer is provided. By
// default the command's OriginID is the stream name.
//
// It can be overridden globally, for example to support multi-tenancy or
// other naming conventions:
//
//	DefaultStreamNamer = func(ctx context.Context, cmd Command) string {
//	    tenant := ctx.Value("tenant").(string)
//	    return fmt.Sprintf("%s-invoices-%s", tenant, cmd.OriginID)
//	}
var DefaultStreamNamer StreamNamer = func(ctx context.Context, cmd Command) string {
	return cmd.OriginID
}

// CommandHandler executes one command against the durable system: it loads
// the current snapshot, runs the pure Processor, persists the produced events
// and the new snapshot, and reports the append outcome.
//
// Handlers must not panic; all failures are returned via the error value.
// Domain rejections unwrap to ErrBusinessRuleViolation.
type CommandHandler func(ctx context.Context, command Command) (AppendResult, error)

// CommandHandlerOption customizes NewCommandHandler.
type CommandHandlerOption func(*handlerOptions)

// NewCommandHandler builds the runtime command handler around a pure
// Processor. Per command it:
//
//  1. Loads the snapshot for the command's stream. An unseen origin id yields
//     the empty snapshot; on a snapshot-store miss with existing history the
//     aggregate is rehydrated by folding the event log.
//  2. Runs processor.Process. Failures short-circuit: a version conflict or
//     domain rejection produces no events and touches no state.
//  3. Appends the produced envelopes with a Revision guard pinned to the old
//     snapshot version, so the gapless-version invariant holds even if
//     another writer raced us. A revision conflict at this point is retried
//     (with a fresh snapshot) according to the configured retry strategy.
//  4. Persists the new snapshot.
//
// The snapshot save happens after the event append: if the process dies in
// between, the snapshot store is merely stale and the next load rehydrates
// the missing suffix from the log.
func NewCommandHandler[T any](
	snapshots SnapshotStore[T],
	store EventStore,
	processor *Processor[T],
	opts ...CommandHandlerOption,
) CommandHandler {
	return func(ctx context.Context, command Command) (AppendResult, error) {
		cfg := &handlerOptions{
			RetryStrategy: &backoff.StopBackOff{},
			StreamNamer:   DefaultStreamNamer,
		}
		for _, o := range opts {
			o(cfg)
		}

		stream := cfg.StreamNamer(ctx, command)

		return backoff.RetryWithData(func() (AppendResult, error) {
			snapshot, err := loadSnapshot(ctx, snapshots, store, processor, stream)
			if err != nil {
				return AppendResult{Successful: false, StreamID: stream},
					backoff.Permanent(fmt.Errorf("handle %s for aggregate %q (stream %q): %w", command.Payload.CommandType(), command.OriginID, stream, err))
			}

			result := processor.Process(now(), command, snapshot)
			if result.Err != nil {
				// Stale expectation or domain rejection. Retrying without
				// new input cannot change the outcome.
				return AppendResult{Successful: false, StreamID: stream, NextExpectedVersion: snapshot.Version},
					backoff.Permanent(fmt.Errorf("handle %s for aggregate %q (stream %q): %w: %w",
						command.Payload.CommandType(), command.OriginID, stream, ErrBusinessRuleViolation, result.Err))
			}

			if len(result.Events) == 0 {
				// Nothing to persist.
				return AppendResult{Successful: true, StreamID: stream, NextExpectedVersion: snapshot.Version}, nil
			}

			if len(cfg.MetadataFuncs) > 0 {
				metadata := make(map[string]any)
				for _, fn := range cfg.MetadataFuncs {
					for k, v := range fn(ctx) {
						metadata[k] = v
					}
				}
				for i := range result.Events {
					// Each envelope gets its own map; downstream decorators
					// mutate metadata in place.
					m := make(map[string]any, len(metadata))
					for k, v := range metadata {
						m[k] = v
					}
					result.Events[i].Metadata = m
				}
			}

			appended, err := store.Save(ctx, result.Events, Revision(result.OldSnapshot.Version))
			if err != nil {
				var conflict *StreamRevisionConflictError
				if errors.As(err, &conflict) {
					// Another writer committed between load and save; retry
					// against the fresh stream head.
					return AppendResult{Successful: false, StreamID: stream, NextExpectedVersion: snapshot.Version}, conflict
				}
				return appended, backoff.Permanent(fmt.Errorf("handle %s for aggregate %q (stream %q): save failed: %w",
					command.Payload.CommandType(), command.OriginID, stream, err))
			}

			if err := snapshots.Save(ctx, stream, result.NewSnapshot); err != nil {
				return appended, backoff.Permanent(fmt.Errorf("handle %s for aggregate %q (stream %q): snapshot save failed: %w",
					command.Payload.CommandType(), command.OriginID, stream, err))
			}

			appended.StreamID = stream
			return appended, nil
		}, cfg.RetryStrategy)
	}
}

func loadSnapshot[T any](ctx context.Context, snapshots SnapshotStore[T], store EventStore, processor *Processor[T], stream string) (Snapshot[T], error) {
	snapshot, err := snapshots.Load(ctx, stream)
	if err == nil {
		return snapshot, nil
	}
	if !errors.Is(err, ErrSnapshotNotFound) {
		return Snapshot[T]{}, fmt.Errorf("load snapshot: %w", err)
	}

	// Snapshot miss. Rebuild from the event log if the stream exists.
	iter, err := store.LoadStream(ctx, stream)
	if err != nil {
		if errors.Is(err, ErrStreamNotFound) {
			return EmptySnapshot[T](), nil
		}
		return Snapshot[T]{}, fmt.Errorf("load stream: %w", err)
	}

	snapshot, err = Rehydrate(ctx, processor.evolve, EmptySnapshot[T](), iter)
	if err != nil {
		return Snapshot[T]{}, fmt.Errorf("rehydrate: %w", err)
	}
	return snapshot, nil
}

// handlerOptions configures a CommandHandler.
type handlerOptions struct {
	// RetryStrategy controls retries after append-time revision conflicts.
	// Defaults to no retries.
	RetryStrategy backoff.BackOff

	// MetadataFuncs enrich the command's events with metadata before saving.
	MetadataFuncs []func(ctx context.Context) map[string]any

	// StreamNamer produces the name of the event stream for a command.
	StreamNamer StreamNamer
}

// WithRetryStrategy sets how often and with what delay the handler retries
// after an append-time revision conflict.
func WithRetryStrategy(strategy backoff.BackOff) CommandHandlerOption {
	return func(cfg *handlerOptions) { cfg.RetryStrategy = strategy }
}

// WithMetadataExtractor adds a metadata function. Extractors run once per
// command execution and their results are merged, in registration order, into
// every event the command produces.
func WithMetadataExtractor(fn func(ctx context.Context) map[string]any) CommandHandlerOption {
	return func(cfg *handlerOptions) {
		cfg.MetadataFuncs = append(cfg.MetadataFuncs, fn)
	}
}

// WithStreamNamer overrides the stream naming for this handler.
func WithStreamNamer(namer StreamNamer) CommandHandlerOption {
	return func(cfg *handlerOptions) {
		cfg.StreamNamer = namer
	}
}

package billing

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Decider determines which events should occur based on the current state and
// a command payload.
//
// T is the aggregate state type. state is nil while the aggregate does not
// exist yet. The Decider sees the state as of just before the command
// started; it never sees events produced earlier by the same command, so
// multi-event commands must stay internally consistent on their own.
//
// Returns the ordered event payloads the command implies, or a domain error
// if the command violates a business rule. Returning an empty slice means the
// command has no effect.
type Decider[T any] func(state *T, payload CommandPayload) ([]Event, error)

// Evolver applies one event to the current state, producing the next state.
//
// It must be pure and total over every (state, event) pair reachable from a
// well-formed event log: applying a committed event never fails. A log that
// replays into an impossible transition is corrupt upstream data, not a
// business error, and an Evolver should panic rather than absorb it.
type Evolver[T any] func(state *T, envelope *Envelope) *T

// CommandResult is the terminal outcome of processing one command. Exactly
// one is produced per command.
//
// On success Err is nil, Events holds the envelopes the command produced and
// NewSnapshot.Version == OldSnapshot.Version + len(Events). On failure Err
// carries the cause, no events exist and NewSnapshot equals OldSnapshot.
type CommandResult[T any] struct {
	OriginID    string
	CommandID   uuid.UUID
	Events      []Envelope
	OldSnapshot Snapshot[T]
	NewSnapshot Snapshot[T]
	Err         error
}

// Successful reports whether the command was applied.
func (r CommandResult[T]) Successful() bool {
	return r.Err == nil
}

// Processor is the pure command-processing core. It performs no I/O, holds no
// mutable state and is safe to call from any goroutine; persistence and
// publication of its results belong to the caller.
type Processor[T any] struct {
	decide Decider[T]
	evolve Evolver[T]
}

// NewProcessor builds a Processor from a domain's Decider and Evolver.
func NewProcessor[T any](decide Decider[T], evolve Evolver[T]) *Processor[T] {
	return &Processor[T]{decide: decide, evolve: evolve}
}

// Process executes one command against a snapshot.
//
// It validates the command's expected version, dispatches the payload, then
// folds the resulting event payloads into successive versioned envelopes:
// the i-th payload (1-based) gets version snapshot.Version+i, the command's
// timestamp and its CommandID, and is applied through the Evolver to build
// the new snapshot.
//
// Either every event of the command is produced and folded, or none are.
// Process always returns a value; domain problems surface as a failed
// CommandResult, never as a panic.
func (p *Processor[T]) Process(at time.Time, cmd Command, snapshot Snapshot[T]) CommandResult[T] {
	result := CommandResult[T]{
		OriginID:    cmd.OriginID,
		CommandID:   cmd.CommandID,
		OldSnapshot: snapshot,
		NewSnapshot: snapshot,
	}

	if cmd.ExpectedVersion != nil && *cmd.ExpectedVersion != snapshot.Version {
		result.Err = &VersionConflictError{
			Stream:   cmd.OriginID,
			Expected: *cmd.ExpectedVersion,
			Actual:   snapshot.Version,
		}
		return result
	}

	events, err := p.decide(snapshot.State, cmd.Payload)
	if err != nil {
		result.Err = fmt.Errorf("dispatch %s for aggregate %q: %w", cmd.Payload.CommandType(), cmd.OriginID, err)
		return result
	}

	envelopes := make([]Envelope, len(events))
	next := snapshot
	for i, event := range events {
		envelope := Envelope{
			EventID:    uuid.New(),
			StreamID:   cmd.OriginID,
			CommandID:  cmd.CommandID,
			Event:      event,
			Version:    snapshot.Version + uint64(i) + 1,
			OccurredAt: at,
		}
		next.State = p.evolve(next.State, &envelope)
		next.Version = envelope.Version
		envelopes[i] = envelope
	}

	result.Events = envelopes
	result.NewSnapshot = next
	return result
}

// Evolve exposes the processor's Evolver for replay paths such as Rehydrate.
func (p *Processor[T]) Evolve(state *T, envelope *Envelope) *T {
	return p.evolve(state, envelope)
}

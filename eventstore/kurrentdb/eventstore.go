// Package kurrentdb provides a KurrentDB-backed EventStore. Stream revisions
// in KurrentDB are zero-based event numbers; this package maps them to the
// one-based versions used by the rest of the module.
package kurrentdb

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"reflect"

	"github.com/google/uuid"
	"github.com/kurrent-io/KurrentDB-Client-Go/kurrentdb"

	"github.com/invopay/billing"
)

var _ billing.EventStore = (*eventstore)(nil)

type eventstore struct {
	client *kurrentdb.Client
}

// NewEventStore creates a KurrentDB-backed eventstore.
func NewEventStore(db *kurrentdb.Client) billing.EventStore {
	return &eventstore{client: db}
}

func (e *eventstore) Save(ctx context.Context, events []billing.Envelope, revision billing.StreamState) (billing.AppendResult, error) {
	if len(events) == 0 {
		return billing.AppendResult{Successful: true}, nil
	}

	streamID := events[0].StreamID
	for i, env := range events {
		if env.StreamID != streamID {
			return billing.AppendResult{}, fmt.Errorf(
				"save events to stream %q: %w: event %d has different stream ID %q",
				streamID, billing.ErrInvalidEventBatch, i, env.StreamID,
			)
		}
	}

	kevents := make([]kurrentdb.EventData, len(events))
	for i, env := range events {
		data, err := json.Marshal(env.Event)
		if err != nil {
			return billing.AppendResult{Successful: false}, err
		}

		metadata := make(map[string]any, len(env.Metadata)+1)
		for k, v := range env.Metadata {
			metadata[k] = v
		}
		metadata["commandId"] = env.CommandID.String()

		rawMetadata, err := json.Marshal(metadata)
		if err != nil {
			return billing.AppendResult{Successful: false}, err
		}

		kevents[i] = kurrentdb.EventData{
			EventID:     env.EventID,
			EventType:   env.Event.EventType(),
			ContentType: kurrentdb.ContentTypeJson,
			Data:        data,
			Metadata:    rawMetadata,
		}
	}

	state, err := streamState(revision)
	if err != nil {
		return billing.AppendResult{Successful: false},
			fmt.Errorf("stream %q: %w", streamID, err)
	}

	result, err := e.client.AppendToStream(ctx, streamID, kurrentdb.AppendToStreamOptions{
		StreamState: state,
	}, kevents...)
	if err != nil {
		if rev, ok := revision.(billing.Revision); ok && isWrongExpectedVersion(err) {
			return billing.AppendResult{}, &billing.StreamRevisionConflictError{
				Stream:           streamID,
				ExpectedRevision: rev,
			}
		}
		return billing.AppendResult{Successful: false}, billing.WrapEventStoreError(err)
	}

	return billing.AppendResult{
		Successful:          true,
		StreamID:            streamID,
		NextExpectedVersion: result.NextExpectedVersion + 1,
	}, nil
}

func (e *eventstore) LoadStream(ctx context.Context, id string) (*billing.Iterator[*billing.Envelope], error) {
	return e.LoadStreamFrom(ctx, id, 0)
}

func (e *eventstore) LoadStreamFrom(ctx context.Context, id string, version uint64) (*billing.Iterator[*billing.Envelope], error) {
	streamer, err := e.client.ReadStream(ctx, id, kurrentdb.ReadStreamOptions{
		Direction:      kurrentdb.Forwards,
		From:           kurrentdb.StreamRevision{Value: version},
		ResolveLinkTos: true,
	}, math.MaxUint64)
	if err != nil {
		return nil, billing.WrapEventStoreError(err)
	}

	return billing.NewIteratorFunc(func(ctx context.Context) (*billing.Envelope, error) {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		kEvent, err := streamer.Recv()
		if err != nil {
			// io.EOF means the stream finished normally.
			return nil, err
		}
		return envelopeFromResolved(kEvent)
	}), nil
}

func (e *eventstore) LoadFromAll(ctx context.Context, version uint64) (*billing.Iterator[*billing.Envelope], error) {
	streamer, err := e.client.ReadAll(ctx, kurrentdb.ReadAllOptions{
		Direction:      kurrentdb.Forwards,
		From:           kurrentdb.Position{Commit: version},
		ResolveLinkTos: true,
	}, math.MaxUint64)
	if err != nil {
		return nil, billing.WrapEventStoreError(err)
	}

	return billing.NewIteratorFunc(func(ctx context.Context) (*billing.Envelope, error) {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		kEvent, err := streamer.Recv()
		if err != nil {
			return nil, err
		}
		return envelopeFromResolved(kEvent)
	}), nil
}

func (e *eventstore) Close() error {
	return e.client.Close()
}

func streamState(revision billing.StreamState) (kurrentdb.StreamState, error) {
	switch rev := revision.(type) {
	case billing.Any:
		return kurrentdb.Any{}, nil
	case billing.NoStream:
		return kurrentdb.NoStream{}, nil
	case billing.StreamExists:
		return kurrentdb.StreamExists{}, nil
	case billing.Revision:
		if rev == 0 {
			return kurrentdb.NoStream{}, nil
		}
		return kurrentdb.StreamRevision{Value: uint64(rev) - 1}, nil
	default:
		return nil, billing.ErrInvalidRevision
	}
}

func isWrongExpectedVersion(err error) bool {
	var kerr *kurrentdb.Error
	return errors.As(err, &kerr) && kerr.Code() == kurrentdb.ErrorCodeWrongExpectedVersion
}

func envelopeFromResolved(kEvent *kurrentdb.ResolvedEvent) (*billing.Envelope, error) {
	recorded := kEvent.Event

	event, err := decodeEvent(recorded.EventType, recorded.Data)
	if err != nil {
		return nil, billing.WrapEventStoreError(err)
	}

	var metadata map[string]any
	if err := json.Unmarshal(recorded.UserMetadata, &metadata); err != nil {
		metadata = make(map[string]any)
	}

	var commandID uuid.UUID
	if raw, ok := metadata["commandId"].(string); ok {
		commandID, _ = uuid.Parse(raw)
		delete(metadata, "commandId")
	}

	envelope := &billing.Envelope{
		EventID:    recorded.EventID,
		StreamID:   recorded.StreamID,
		CommandID:  commandID,
		Event:      event,
		Metadata:   metadata,
		Version:    recorded.EventNumber + 1,
		OccurredAt: recorded.CreatedDate,
	}
	if kEvent.Commit != nil {
		envelope.GlobalVersion = *kEvent.Commit
	}
	return envelope, nil
}

func decodeEvent(name string, data []byte) (billing.Event, error) {
	proto, err := billing.NewEventByName(name)
	if err != nil {
		return nil, fmt.Errorf("cannot create event %q: %w", name, err)
	}

	ptr := reflect.New(reflect.TypeOf(proto))
	if err := json.Unmarshal(data, ptr.Interface()); err != nil {
		return nil, fmt.Errorf("cannot unmarshal event %q: %w", name, err)
	}
	return ptr.Elem().Interface().(billing.Event), nil
}

package otel

import (
	"context"
	"fmt"
	"io"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"

	"github.com/invopay/billing"
)

var _ billing.EventStore = (*TelemetryStore)(nil)

// TelemetryStore decorates an EventStore with spans and metrics. On save it
// also injects the current trace context into each envelope's metadata, so
// downstream subscribers can link their consumer spans back to the command
// that produced the events.
type TelemetryStore struct {
	next billing.EventStore
}

func (t TelemetryStore) Save(ctx context.Context, events []billing.Envelope, revision billing.StreamState) (billing.AppendResult, error) {
	var streamID string
	if len(events) > 0 {
		streamID = events[0].StreamID
	}

	ctx, span := tracer.Start(ctx, "EventStore.Save",
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			AttrOperation.String("save"),
			AttrStreamID.String(streamID),
			AttrEventCount.Int64(int64(len(events))),
			AttrEventStreamPos.String(fmt.Sprintf("%T", revision)),
		),
	)
	defer span.End()

	{
		carrier := propagation.MapCarrier{}
		otel.GetTextMapPropagator().Inject(ctx, carrier)

		for i := range events {
			if events[i].Metadata == nil {
				events[i].Metadata = make(map[string]any, len(carrier)+1)
			}
			if span.SpanContext().HasTraceID() {
				events[i].Metadata["correlationId"] = span.SpanContext().TraceID().String()
			}
			for key, value := range carrier {
				events[i].Metadata[key] = value
			}
		}
	}

	start := time.Now()
	result, err := t.next.Save(ctx, events, revision)

	EventStoreDuration.Record(ctx, float64(time.Since(start).Milliseconds()),
		metric.WithAttributes(AttrOperation.String("save")),
	)
	EventStoreSaves.Add(ctx, 1)
	EventsAppended.Add(ctx, int64(len(events)))

	if err != nil {
		EventStoreErrors.Add(ctx, 1)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}

	return result, err
}

func (t TelemetryStore) LoadStream(ctx context.Context, id string) (*billing.Iterator[*billing.Envelope], error) {
	iter, err := t.next.LoadStream(ctx, id)
	if err != nil {
		EventStoreErrors.Add(ctx, 1)
		return iter, err
	}
	return t.instrumentIterator(iter, "EventStore.LoadStream", id), nil
}

func (t TelemetryStore) LoadStreamFrom(ctx context.Context, id string, version uint64) (*billing.Iterator[*billing.Envelope], error) {
	iter, err := t.next.LoadStreamFrom(ctx, id, version)
	if err != nil {
		EventStoreErrors.Add(ctx, 1)
		return iter, err
	}
	return t.instrumentIterator(iter, "EventStore.LoadStreamFrom", id), nil
}

func (t TelemetryStore) LoadFromAll(ctx context.Context, version uint64) (*billing.Iterator[*billing.Envelope], error) {
	iter, err := t.next.LoadFromAll(ctx, version)
	if err != nil {
		EventStoreErrors.Add(ctx, 1)
		return iter, err
	}
	return t.instrumentIterator(iter, "EventStore.LoadFromAll", ""), nil
}

func (t TelemetryStore) Close() error {
	return t.next.Close()
}

// instrumentIterator wraps a load iterator in a single span covering the whole
// read, counting events as they stream past. The span starts lazily on the
// first Next call and ends when the iterator is exhausted or fails.
func (t TelemetryStore) instrumentIterator(iter *billing.Iterator[*billing.Envelope], operation, streamID string) *billing.Iterator[*billing.Envelope] {
	started := false
	var startedAt time.Time
	var span trace.Span
	var eventCount int64

	return billing.NewIteratorFunc(func(ctx context.Context) (*billing.Envelope, error) {
		if !started {
			started = true
			startedAt = time.Now()
			attrs := []trace.SpanStartOption{trace.WithSpanKind(trace.SpanKindClient)}
			if streamID != "" {
				attrs = append(attrs, trace.WithAttributes(AttrStreamID.String(streamID)))
			}
			ctx, span = tracer.Start(ctx, operation, attrs...)
		}

		if !iter.Next(ctx) {
			span.SetAttributes(AttrEventCount.Int64(eventCount))

			err := iter.Err()
			if err == nil || err == io.EOF {
				EventStoreDuration.Record(ctx, float64(time.Since(startedAt).Milliseconds()))
				span.End()
				if err == nil {
					err = io.EOF
				}
				return nil, err
			}

			EventStoreErrors.Add(ctx, 1)
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			span.End()
			return nil, err
		}

		eventCount++
		EventsLoaded.Add(ctx, 1)

		return iter.Value(), nil
	})
}

// WithEventStoreTelemetry wraps an EventStore with OpenTelemetry tracing and metrics.
func WithEventStoreTelemetry(next billing.EventStore) billing.EventStore {
	return TelemetryStore{next: next}
}

package otel

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/invopay/billing"
)

// WithCommandTelemetry wraps a CommandHandler with OpenTelemetry tracing and metrics.
//
// Each dispatched command produces one span named after the command type, plus
// counters for handled/failed commands and a duration histogram. A rejected
// command (a business rule violation) keeps the span status OK: the handler
// did its job, the command was simply refused. Stream revision conflicts are
// counted separately so a noisy aggregate shows up as conflict pressure rather
// than generic failures.
func WithCommandTelemetry(next billing.CommandHandler) billing.CommandHandler {
	return func(ctx context.Context, cmd billing.Command) (billing.AppendResult, error) {
		commandType := cmd.Payload.CommandType()

		typeAttr := metric.WithAttributes(AttrCommandType.String(commandType))

		ctx, span := tracer.Start(ctx, fmt.Sprintf("command.handle %s", commandType),
			trace.WithSpanKind(trace.SpanKindInternal),
			trace.WithAttributes(
				AttrCommandType.String(commandType),
				AttrOriginID.String(cmd.OriginID),
			),
		)
		defer span.End()

		CommandsInFlight.Add(ctx, 1, typeAttr)
		defer CommandsInFlight.Add(ctx, -1, typeAttr)

		startTime := time.Now()
		result, err := next(ctx, cmd)

		CommandsDuration.Record(ctx, float64(time.Since(startTime).Milliseconds()), typeAttr)

		span.SetAttributes(
			AttrStreamID.String(result.StreamID),
			AttrStreamVersion.Int64(int64(result.NextExpectedVersion)),
		)

		if err != nil {
			var conflict *billing.StreamRevisionConflictError
			if errors.As(err, &conflict) {
				ConcurrencyConflicts.Add(ctx, 1, typeAttr)
				span.AddEvent("concurrency_conflict", trace.WithAttributes(
					AttrStreamID.String(conflict.Stream),
				))
			}

			if errors.Is(err, billing.ErrBusinessRuleViolation) {
				span.SetStatus(codes.Ok, fmt.Sprintf("business rule violation: %v", err))
				span.AddEvent("business_rule_violation", trace.WithAttributes(
					AttrCommandType.String(commandType),
					AttrOriginID.String(cmd.OriginID),
				))
				CommandsFailed.Add(ctx, 1, typeAttr)
				return result, err
			}

			span.SetStatus(codes.Error, err.Error())
			span.RecordError(err)
			CommandsFailed.Add(ctx, 1, typeAttr)
			return result, err
		}

		span.SetStatus(codes.Ok, "")
		CommandsHandled.Add(ctx, 1, typeAttr)

		return result, nil
	}
}

package logging

import (
	"context"
	"errors"
	"testing"

	"github.com/sirupsen/logrus"

	"github.com/invopay/billing"
	"github.com/invopay/billing/fixtures"
)

func allEvents(billing.Event) bool { return true }

func TestWithEventLogging_AnnotatesFromEnvelopeContext(t *testing.T) {
	entry, hook := newTestLogger()

	bus := fixtures.NewEventBusSpy()
	defer bus.Close()

	spy := fixtures.NewEventHandlerSpy()
	if err := bus.Subscribe(context.Background(), "projection", allEvents, WithEventLogging(entry, spy)); err != nil {
		t.Fatalf("subscribe: %v", err)
	}

	event := fixtures.NewTestEvent().WithType("invoice.created").Build()
	envelope := fixtures.NewEnvelope("invoice-1", event, fixtures.WithVersion(2), fixtures.WithGlobalVersion(9))
	if err := bus.Publish(context.Background(), envelope); err != nil {
		t.Fatalf("publish: %v", err)
	}

	if spy.EventCount() != 1 || spy.LastEvent().EventType() != "invoice.created" {
		t.Fatalf("handler saw %d events, last %v", spy.EventCount(), spy.LastEvent())
	}

	last := hook.LastEntry()
	if last.Message != "event processed successfully" || last.Level != logrus.DebugLevel {
		t.Fatalf("unexpected final entry: %q at %s", last.Message, last.Level)
	}
	if last.Data["stream-id"] != "invoice-1" {
		t.Fatalf("stream-id field %v", last.Data["stream-id"])
	}
	if last.Data["version"] != uint64(2) || last.Data["global-version"] != uint64(9) {
		t.Fatalf("version fields %v / %v", last.Data["version"], last.Data["global-version"])
	}
}

func TestWithEventLogging_HandlerErrorIsLoggedAndReturned(t *testing.T) {
	entry, hook := newTestLogger()

	bus := fixtures.NewEventBusSpy()
	defer bus.Close()

	boom := errors.New("projection broke")
	spy := fixtures.NewEventHandlerSpy().FailOnHandle(boom)
	if err := bus.Subscribe(context.Background(), "projection", allEvents, WithEventLogging(entry, spy)); err != nil {
		t.Fatalf("subscribe: %v", err)
	}

	envelope := fixtures.NewEnvelope("invoice-1", fixtures.NewTestEvent().Build())
	if err := bus.Publish(context.Background(), envelope); err != nil {
		t.Fatalf("publish: %v", err)
	}

	// The bus surfaces the handler error on its errors channel.
	select {
	case err := <-bus.Errors():
		if !errors.Is(err, boom) {
			t.Fatalf("got %v", err)
		}
	default:
		t.Fatal("expected an error on the errors channel")
	}

	last := hook.LastEntry()
	if last.Message != "error processing event" || last.Level != logrus.ErrorLevel {
		t.Fatalf("unexpected final entry: %q at %s", last.Message, last.Level)
	}
}

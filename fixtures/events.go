// Package fixtures provides builders and spies for testing event-sourced
// components.
package fixtures

import (
	"fmt"

	"github.com/invopay/billing"
)

// TestEvent is a configurable test event implementing the Event interface.
type TestEvent struct {
	Type string
	Data string
}

func (e TestEvent) EventType() string { return e.Type }

// TestEventBuilder provides a fluent API for constructing test events.
type TestEventBuilder struct {
	typ  string
	data string
}

// NewTestEvent creates a new TestEventBuilder with sensible defaults.
func NewTestEvent() *TestEventBuilder {
	return &TestEventBuilder{
		typ: "TestEvent",
	}
}

// WithType sets the event type.
func (b *TestEventBuilder) WithType(typ string) *TestEventBuilder {
	b.typ = typ
	return b
}

// WithData sets custom data on the event.
func (b *TestEventBuilder) WithData(data string) *TestEventBuilder {
	b.data = data
	return b
}

// Build constructs the TestEvent.
func (b *TestEventBuilder) Build() TestEvent {
	return TestEvent{
		Type: b.typ,
		Data: b.data,
	}
}

// BuildN creates n events with sequential data.
func (b *TestEventBuilder) BuildN(n int) []billing.Event {
	events := make([]billing.Event, n)
	for i := 0; i < n; i++ {
		events[i] = TestEvent{
			Type: b.typ,
			Data: fmt.Sprintf("%s-%d", b.data, i+1),
		}
	}
	return events
}

package billing

import (
	"strings"
	"testing"
)

type registryEvent struct {
	name string
}

func (e registryEvent) EventType() string { return e.name }

func TestRegisterEventByType_RoundTrip(t *testing.T) {
	RegisterEventByType(func() Event { return registryEvent{name: "registry.roundtrip"} })

	event, err := NewEventByName("registry.roundtrip")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if event.EventType() != "registry.roundtrip" {
		t.Fatalf("got %q", event.EventType())
	}
}

func TestRegisterEventByName_CustomName(t *testing.T) {
	RegisterEventByName("registry.custom", func() Event { return registryEvent{name: "registry.other"} })

	event, err := NewEventByName("registry.custom")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if event.EventType() != "registry.other" {
		t.Fatalf("got %q", event.EventType())
	}
}

func TestNewEventByName_Unknown(t *testing.T) {
	_, err := NewEventByName("registry.never-registered")
	if err == nil {
		t.Fatal("expected error for unknown event")
	}
	if !strings.Contains(err.Error(), "not registered") {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestRegisterEventByType_DuplicatePanics(t *testing.T) {
	RegisterEventByType(func() Event { return registryEvent{name: "registry.duplicate"} })

	defer func() {
		if r := recover(); r == nil {
			t.Fatal("expected panic on duplicate registration")
		}
	}()
	RegisterEventByType(func() Event { return registryEvent{name: "registry.duplicate"} })
}

func TestRegisterEventByType_NilFactoryPanics(t *testing.T) {
	defer func() {
		if r := recover(); r == nil {
			t.Fatal("expected panic on nil factory")
		}
	}()
	RegisterEventByType(nil)
}

func TestRegisterEventByName_NilEventPanics(t *testing.T) {
	defer func() {
		if r := recover(); r == nil {
			t.Fatal("expected panic on factory returning nil")
		}
	}()
	RegisterEventByName("registry.nil-event", func() Event { return nil })
}

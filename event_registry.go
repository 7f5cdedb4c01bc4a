package billing

import (
	"fmt"
	"sync"
)

var (
	// registry maps event names to their factory functions. Each factory
	// must return a fresh instance of a concrete Event type.
	registry = map[string]func() Event{}

	// mu protects the registry.
	mu sync.RWMutex
)

// RegisterEventByType registers an Event type under its own EventType name.
// Stores and buses that decode events from the wire use the registry to turn
// a name back into a payload value.
//
// Panics if the factory is nil, returns nil, or the name is already taken.
//
//	RegisterEventByType(func() Event { return InvoiceCreated{} })
func RegisterEventByType(fn func() Event) {
	if fn == nil {
		panic("cannot register nil factory")
	}
	registerEventName(fn().EventType(), fn)
}

// RegisterEventByName registers an Event type under a custom name,
// independent of its EventType. Same panics as RegisterEventByType.
func RegisterEventByName(name string, fn func() Event) {
	registerEventName(name, fn)
}

// NewEventByName creates a fresh instance of a registered Event by name.
func NewEventByName(name string) (Event, error) {
	mu.RLock()
	factory, ok := registry[name]
	mu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("event not registered: %s", name)
	}
	event := factory()
	if event == nil {
		return nil, fmt.Errorf("factory returned nil for event: %s", name)
	}
	return event, nil
}

func registerEventName(name string, fn func() Event) {
	if fn == nil {
		panic("cannot register nil factory")
	}

	mu.Lock()
	defer mu.Unlock()

	if _, exists := registry[name]; exists {
		panic(fmt.Sprintf("event already registered: %s", name))
	}

	event := fn()
	if event == nil {
		panic(fmt.Sprintf("factory returned nil for event: %s", name))
	}

	registry[name] = fn
}

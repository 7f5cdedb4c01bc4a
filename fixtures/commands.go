package fixtures

import (
	"github.com/google/uuid"

	"github.com/invopay/billing"
)

// TestPayload is a configurable test payload implementing the CommandPayload
// interface.
type TestPayload struct {
	Type string
	Data string
}

func (p TestPayload) CommandType() string { return p.Type }

// CommandBuilder provides a fluent API for constructing commands.
type CommandBuilder struct {
	originID        string
	commandID       uuid.UUID
	expectedVersion *uint64
	payload         billing.CommandPayload
}

// NewCommand creates a new CommandBuilder with sensible defaults.
func NewCommand() *CommandBuilder {
	return &CommandBuilder{
		originID:  "aggregate-1",
		commandID: uuid.New(),
		payload:   TestPayload{Type: "TestCommand"},
	}
}

// WithOriginID sets the aggregate ID the command targets.
func (b *CommandBuilder) WithOriginID(id string) *CommandBuilder {
	b.originID = id
	return b
}

// WithCommandID sets a specific command ID.
func (b *CommandBuilder) WithCommandID(id uuid.UUID) *CommandBuilder {
	b.commandID = id
	return b
}

// WithExpectedVersion sets the optimistic concurrency guard.
func (b *CommandBuilder) WithExpectedVersion(v uint64) *CommandBuilder {
	b.expectedVersion = &v
	return b
}

// WithPayload sets the command payload.
func (b *CommandBuilder) WithPayload(p billing.CommandPayload) *CommandBuilder {
	b.payload = p
	return b
}

// Build constructs the Command.
func (b *CommandBuilder) Build() billing.Command {
	return billing.Command{
		OriginID:        b.originID,
		CommandID:       b.commandID,
		ExpectedVersion: b.expectedVersion,
		Payload:         b.payload,
	}
}

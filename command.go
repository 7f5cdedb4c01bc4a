package billing

import "github.com/google/uuid"

// CommandPayload describes the change a command requests. Each payload
// variant is handled by exactly one Decider branch.
type CommandPayload interface {
	CommandType() string
}

// Command is an intent to change one aggregate.
//
// OriginID identifies the aggregate (and its event stream). CommandID is the
// idempotency and correlation key: it is stamped onto every event the command
// produces, so a consumer that has already seen a CommandID may treat further
// events carrying it as duplicates.
//
// ExpectedVersion is the optimistic lock. When set, the command only proceeds
// if it equals the snapshot's current version. When nil the check is skipped
// entirely (a deliberate "force" escape hatch, not just a convenience for
// the first command on a fresh stream). Callers that want create-only
// semantics pass an explicit 0.
type Command struct {
	OriginID        string
	CommandID       uuid.UUID
	ExpectedVersion *uint64
	Payload         CommandPayload
}

// ExpectVersion is a helper for building commands with an expected version.
func ExpectVersion(v uint64) *uint64 {
	return &v
}

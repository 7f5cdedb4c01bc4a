package invoice

import "fmt"

// The closed invoice error taxonomy. Version conflicts are raised by the
// engine (billing.VersionConflictError); everything here originates in
// Decide.

// LineItemDoesNotExistError reports a removal of a line item position that is
// not present in the current aggregate.
type LineItemDoesNotExistError struct {
	Index int
}

func (e *LineItemDoesNotExistError) Error() string {
	return fmt.Sprintf("line item %d does not exist", e.Index)
}

// InvalidStateError reports a command that is structurally impossible in the
// aggregate's current lifecycle state, such as any mutation before creation
// or a second creation.
type InvalidStateError struct {
	Reason string
}

func (e *InvalidStateError) Error() string {
	return fmt.Sprintf("invalid state: %s", e.Reason)
}

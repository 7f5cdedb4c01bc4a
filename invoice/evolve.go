package invoice

import (
	"fmt"

	"github.com/invopay/billing"
)

// Evolve applies one event to the invoice state and returns the next state.
// Inputs are never mutated; every transition produces a new value.
//
// Evolve is total over every (state, event) pair reachable from a well-formed
// event log. A log that replays into an impossible transition (an event
// before creation, or a removal of a missing index) is corrupt committed
// data, not a business error: Evolve panics so the hosting process fails fast
// instead of materializing corrupt state.
func Evolve(state *Invoice, envelope *billing.Envelope) *Invoice {
	switch event := envelope.Event.(type) {
	case InvoiceCreated:
		if state != nil {
			panic(fmt.Sprintf("invoice %s: created twice (version %d)", envelope.StreamID, envelope.Version))
		}
		return &Invoice{
			CustomerName:  event.CustomerName,
			CustomerEmail: event.CustomerEmail,
			IssueDate:     event.IssueDate,
			DueDate:       event.DueDate,
			LineItems:     []LineItem{},
		}

	case LineItemAdded:
		next := mustExist(state, envelope).clone()
		next.LineItems = append(next.LineItems, LineItem{
			Description: event.Description,
			Quantity:    event.Quantity,
			Price:       event.Price,
		})
		return next

	case LineItemRemoved:
		current := mustExist(state, envelope)
		if !current.HasLineItem(event.Index) {
			panic(fmt.Sprintf("invoice %s: removal of line item %d at version %d, have %d items",
				envelope.StreamID, event.Index, envelope.Version, len(current.LineItems)))
		}
		next := current.clone()
		next.LineItems = append(next.LineItems[:event.Index], next.LineItems[event.Index+1:]...)
		return next

	case PaymentReceived:
		next := mustExist(state, envelope).clone()
		next.Paid = true
		return next

	case InvoiceDeleted:
		next := mustExist(state, envelope).clone()
		next.Deleted = true
		return next

	default:
		panic(fmt.Sprintf("invoice %s: unknown event %T at version %d", envelope.StreamID, envelope.Event, envelope.Version))
	}
}

func mustExist(state *Invoice, envelope *billing.Envelope) *Invoice {
	if state == nil {
		panic(fmt.Sprintf("invoice %s: %s before creation (version %d)",
			envelope.StreamID, envelope.Event.EventType(), envelope.Version))
	}
	return state
}

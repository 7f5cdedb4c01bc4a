package invoice

import (
	"fmt"

	"github.com/invopay/billing"
)

// Decide translates one command payload into the events it implies, given the
// invoice state as of just before the command started. state is nil while the
// invoice does not exist.
//
// Decide never sees events produced earlier by the same command: a
// CreateInvoice with initial line items decides all its events against the
// pre-command (absent) state and must stay internally consistent on its own.
func Decide(state *Invoice, payload billing.CommandPayload) ([]billing.Event, error) {
	switch cmd := payload.(type) {
	case CreateInvoice:
		if state != nil {
			return nil, &InvalidStateError{Reason: "invoice already exists"}
		}
		events := make([]billing.Event, 0, len(cmd.LineItems)+1)
		events = append(events, InvoiceCreated{
			CustomerName:  cmd.CustomerName,
			CustomerEmail: cmd.CustomerEmail,
			IssueDate:     cmd.IssueDate,
			DueDate:       cmd.DueDate,
		})
		for _, item := range cmd.LineItems {
			events = append(events, LineItemAdded{
				Description: item.Description,
				Quantity:    item.Quantity,
				Price:       item.Price,
			})
		}
		return events, nil

	case AddLineItem:
		if state == nil {
			return nil, errNotCreated(payload)
		}
		return []billing.Event{LineItemAdded{
			Description: cmd.Description,
			Quantity:    cmd.Quantity,
			Price:       cmd.Price,
		}}, nil

	case RemoveLineItem:
		if state == nil {
			return nil, errNotCreated(payload)
		}
		if !state.HasLineItem(cmd.Index) {
			return nil, &LineItemDoesNotExistError{Index: cmd.Index}
		}
		return []billing.Event{LineItemRemoved{Index: cmd.Index}}, nil

	case PayInvoice:
		if state == nil {
			return nil, errNotCreated(payload)
		}
		// The total is captured before any event of this command applies.
		return []billing.Event{PaymentReceived{Total: state.Total()}}, nil

	case DeleteInvoice:
		if state == nil {
			return nil, errNotCreated(payload)
		}
		return []billing.Event{InvoiceDeleted{}}, nil

	default:
		return nil, fmt.Errorf("unknown command payload %T", payload)
	}
}

func errNotCreated(payload billing.CommandPayload) error {
	return &InvalidStateError{Reason: fmt.Sprintf("%s on an invoice that does not exist", payload.CommandType())}
}

package invoice

import (
	"time"

	"github.com/invopay/billing"
)

// The closed set of invoice event payloads. Every consumption site (Evolve,
// projections, presentation) switches exhaustively over these five types.

// InvoiceCreated brings the aggregate into existence.
type InvoiceCreated struct {
	CustomerName  string    `json:"customerName"`
	CustomerEmail string    `json:"customerEmail"`
	IssueDate     time.Time `json:"issueDate"`
	DueDate       time.Time `json:"dueDate"`
}

func (InvoiceCreated) EventType() string { return "invoice.created" }

// LineItemAdded appends one line item.
type LineItemAdded struct {
	Description string  `json:"description"`
	Quantity    float64 `json:"quantity"`
	Price       float64 `json:"price"`
}

func (LineItemAdded) EventType() string { return "invoice.line_item_added" }

// LineItemRemoved removes the line item at Index. Index validity is checked
// at dispatch time against the same state the event will apply to.
type LineItemRemoved struct {
	Index int `json:"index"`
}

func (LineItemRemoved) EventType() string { return "invoice.line_item_removed" }

// PaymentReceived marks the invoice paid. Total is the invoice total at the
// moment of payment, recorded for audit; it does not feed back into the
// aggregate's live total.
type PaymentReceived struct {
	Total float64 `json:"total"`
}

func (PaymentReceived) EventType() string { return "invoice.payment_received" }

// InvoiceDeleted marks the invoice deleted. The aggregate is never removed in
// place; history stays replayable.
type InvoiceDeleted struct{}

func (InvoiceDeleted) EventType() string { return "invoice.deleted" }

func init() {
	billing.RegisterEventByType(func() billing.Event { return InvoiceCreated{} })
	billing.RegisterEventByType(func() billing.Event { return LineItemAdded{} })
	billing.RegisterEventByType(func() billing.Event { return LineItemRemoved{} })
	billing.RegisterEventByType(func() billing.Event { return PaymentReceived{} })
	billing.RegisterEventByType(func() billing.Event { return InvoiceDeleted{} })
}

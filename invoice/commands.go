package invoice

import "time"

// The closed set of invoice command payloads.

// CreateInvoice creates the invoice with an optional initial set of line
// items. It yields one InvoiceCreated event followed by one LineItemAdded
// per initial item, preserving input order.
type CreateInvoice struct {
	CustomerName  string
	CustomerEmail string
	IssueDate     time.Time
	DueDate       time.Time
	LineItems     []LineItem
}

func (CreateInvoice) CommandType() string { return "invoice.create" }

// AddLineItem appends one line item.
type AddLineItem struct {
	Description string
	Quantity    float64
	Price       float64
}

func (AddLineItem) CommandType() string { return "invoice.add_line_item" }

// RemoveLineItem removes the line item at Index.
type RemoveLineItem struct {
	Index int
}

func (RemoveLineItem) CommandType() string { return "invoice.remove_line_item" }

// PayInvoice marks the invoice paid, recording the current total.
type PayInvoice struct{}

func (PayInvoice) CommandType() string { return "invoice.pay" }

// DeleteInvoice marks the invoice deleted.
type DeleteInvoice struct{}

func (DeleteInvoice) CommandType() string { return "invoice.delete" }

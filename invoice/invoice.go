// Package invoice implements the event-sourced invoice write model: the
// aggregate state, its command and event payloads, the Decide dispatch
// function and the Evolve reducer. Everything here is pure; persistence and
// transport live in the surrounding packages.
package invoice

import "time"

// LineItem is one billable position on an invoice. Quantities and prices are
// assumed non-negative by the domain; validation of user input happens at the
// command origin, not here.
type LineItem struct {
	Description string  `json:"description"`
	Quantity    float64 `json:"quantity"`
	Price       float64 `json:"price"`
}

// Invoice is the aggregate state reconstructed from the event history.
//
// Paid and Deleted are independent flags, not mutually exclusive terminal
// states: a paid invoice can still be deleted and vice versa. Line item
// indices are positions in LineItems at the time of reference.
type Invoice struct {
	CustomerName  string     `json:"customerName"`
	CustomerEmail string     `json:"customerEmail"`
	IssueDate     time.Time  `json:"issueDate"`
	DueDate       time.Time  `json:"dueDate"`
	LineItems     []LineItem `json:"lineItems"`
	Paid          bool       `json:"paid"`
	Deleted       bool       `json:"deleted"`
}

// Total is the derived sum of quantity × price over all line items. Payment
// does not change it; PaymentReceived merely records the total at payment
// time.
func (inv *Invoice) Total() float64 {
	var total float64
	for _, item := range inv.LineItems {
		total += item.Quantity * item.Price
	}
	return total
}

// HasLineItem reports whether index is a valid position in the current
// line-item sequence.
func (inv *Invoice) HasLineItem(index int) bool {
	return index >= 0 && index < len(inv.LineItems)
}

// clone returns a copy whose LineItems slice is independent of the original,
// so evolving never mutates shared state.
func (inv *Invoice) clone() *Invoice {
	next := *inv
	next.LineItems = append([]LineItem(nil), inv.LineItems...)
	return &next
}

package invoice

import "github.com/invopay/billing"

// NewProcessor returns the pure command processor for invoices.
func NewProcessor() *billing.Processor[Invoice] {
	return billing.NewProcessor(Decide, Evolve)
}

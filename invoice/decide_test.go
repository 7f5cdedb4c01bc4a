package invoice

import (
	"errors"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/invopay/billing"
)

var (
	issueDate = time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)
	dueDate   = time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
)

func existingInvoice(items ...LineItem) *Invoice {
	return &Invoice{
		CustomerName:  "ACME Corp",
		CustomerEmail: "billing@acme.test",
		IssueDate:     issueDate,
		DueDate:       dueDate,
		LineItems:     items,
	}
}

func TestDecide_CreateInvoice(t *testing.T) {
	events, err := Decide(nil, CreateInvoice{
		CustomerName:  "ACME Corp",
		CustomerEmail: "billing@acme.test",
		IssueDate:     issueDate,
		DueDate:       dueDate,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	want := []billing.Event{InvoiceCreated{
		CustomerName:  "ACME Corp",
		CustomerEmail: "billing@acme.test",
		IssueDate:     issueDate,
		DueDate:       dueDate,
	}}
	if diff := cmp.Diff(want, events); diff != "" {
		t.Fatalf("events mismatch (-want +got):\n%s", diff)
	}
}

func TestDecide_CreateInvoiceWithInitialItems(t *testing.T) {
	events, err := Decide(nil, CreateInvoice{
		CustomerName:  "ACME Corp",
		CustomerEmail: "billing@acme.test",
		IssueDate:     issueDate,
		DueDate:       dueDate,
		LineItems: []LineItem{
			{Description: "consulting", Quantity: 10, Price: 150},
			{Description: "travel", Quantity: 1, Price: 320.50},
		},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	want := []billing.Event{
		InvoiceCreated{
			CustomerName:  "ACME Corp",
			CustomerEmail: "billing@acme.test",
			IssueDate:     issueDate,
			DueDate:       dueDate,
		},
		LineItemAdded{Description: "consulting", Quantity: 10, Price: 150},
		LineItemAdded{Description: "travel", Quantity: 1, Price: 320.50},
	}
	if diff := cmp.Diff(want, events); diff != "" {
		t.Fatalf("events mismatch, creation must precede items in input order (-want +got):\n%s", diff)
	}
}

func TestDecide_CreateExistingInvoice(t *testing.T) {
	_, err := Decide(existingInvoice(), CreateInvoice{CustomerName: "ACME Corp"})

	var invalid *InvalidStateError
	if !errors.As(err, &invalid) {
		t.Fatalf("expected InvalidStateError, got %v", err)
	}
}

func TestDecide_AddLineItem(t *testing.T) {
	events, err := Decide(existingInvoice(), AddLineItem{Description: "hosting", Quantity: 3, Price: 25})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	want := []billing.Event{LineItemAdded{Description: "hosting", Quantity: 3, Price: 25}}
	if diff := cmp.Diff(want, events); diff != "" {
		t.Fatalf("events mismatch (-want +got):\n%s", diff)
	}
}

func TestDecide_RemoveLineItem(t *testing.T) {
	state := existingInvoice(
		LineItem{Description: "consulting", Quantity: 10, Price: 150},
		LineItem{Description: "travel", Quantity: 1, Price: 320.50},
	)

	events, err := Decide(state, RemoveLineItem{Index: 1})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	want := []billing.Event{LineItemRemoved{Index: 1}}
	if diff := cmp.Diff(want, events); diff != "" {
		t.Fatalf("events mismatch (-want +got):\n%s", diff)
	}
}

func TestDecide_RemoveMissingLineItem(t *testing.T) {
	state := existingInvoice(LineItem{Description: "consulting", Quantity: 1, Price: 100})

	for _, index := range []int{-1, 1, 99} {
		_, err := Decide(state, RemoveLineItem{Index: index})

		var missing *LineItemDoesNotExistError
		if !errors.As(err, &missing) {
			t.Fatalf("index %d: expected LineItemDoesNotExistError, got %v", index, err)
		}
		if missing.Index != index {
			t.Fatalf("error carries index %d, want %d", missing.Index, index)
		}
	}
}

func TestDecide_PayInvoiceCapturesTotal(t *testing.T) {
	state := existingInvoice(
		LineItem{Description: "consulting", Quantity: 10, Price: 150},
		LineItem{Description: "travel", Quantity: 1, Price: 320.50},
	)

	events, err := Decide(state, PayInvoice{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	want := []billing.Event{PaymentReceived{Total: 1820.50}}
	if diff := cmp.Diff(want, events); diff != "" {
		t.Fatalf("events mismatch (-want +got):\n%s", diff)
	}
}

func TestDecide_PayEmptyInvoice(t *testing.T) {
	events, err := Decide(existingInvoice(), PayInvoice{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := events[0].(PaymentReceived).Total; got != 0 {
		t.Fatalf("total %v, want 0", got)
	}
}

func TestDecide_DeleteInvoice(t *testing.T) {
	events, err := Decide(existingInvoice(), DeleteInvoice{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	want := []billing.Event{InvoiceDeleted{}}
	if diff := cmp.Diff(want, events); diff != "" {
		t.Fatalf("events mismatch (-want +got):\n%s", diff)
	}
}

func TestDecide_MutationsRequireExistingInvoice(t *testing.T) {
	payloads := []billing.CommandPayload{
		AddLineItem{Description: "x", Quantity: 1, Price: 1},
		RemoveLineItem{Index: 0},
		PayInvoice{},
		DeleteInvoice{},
	}

	for _, payload := range payloads {
		_, err := Decide(nil, payload)

		var invalid *InvalidStateError
		if !errors.As(err, &invalid) {
			t.Fatalf("%s: expected InvalidStateError, got %v", payload.CommandType(), err)
		}
	}
}

func TestDecide_PaidAndDeletedDoNotBlockMutations(t *testing.T) {
	state := existingInvoice(LineItem{Description: "consulting", Quantity: 1, Price: 100})
	state.Paid = true
	state.Deleted = true

	if _, err := Decide(state, AddLineItem{Description: "late fee", Quantity: 1, Price: 10}); err != nil {
		t.Fatalf("add on paid+deleted invoice: %v", err)
	}
	if _, err := Decide(state, PayInvoice{}); err != nil {
		t.Fatalf("second payment: %v", err)
	}
	if _, err := Decide(state, DeleteInvoice{}); err != nil {
		t.Fatalf("second delete: %v", err)
	}
}

func TestDecide_UnknownPayload(t *testing.T) {
	_, err := Decide(nil, unknownPayload{})
	if err == nil {
		t.Fatal("expected error for unknown payload")
	}
}

type unknownPayload struct{}

func (unknownPayload) CommandType() string { return "invoice.unknown" }

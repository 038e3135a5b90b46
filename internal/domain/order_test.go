package domain

import (
	"strings"
	"testing"
)

func TestOrderStatus(t *testing.T) {
	for _, s := range []OrderStatus{
		OrderStatusPending, OrderStatusConfirmed, OrderStatusProcessing,
		OrderStatusShipped, OrderStatusDelivered, OrderStatusCancelled,
	} {
		if !s.Valid() {
			t.Errorf("expected %s to be valid", s)
		}
	}

	if OrderStatus("refunded").Valid() {
		t.Error("expected unknown status to be invalid")
	}
	if !OrderStatusPending.Cancellable() {
		t.Error("expected pending to be cancellable")
	}
	if OrderStatusConfirmed.Cancellable() {
		t.Error("expected confirmed not to be cancellable")
	}
}

func TestFormatOrderNumber(t *testing.T) {
	if got := FormatOrderNumber(42); got != "ORD-000042" {
		t.Errorf("expected ORD-000042, got %s", got)
	}
}

func TestShippingDetails_Text(t *testing.T) {
	d := ShippingDetails{
		FirstName:    "Asha",
		LastName:     "Rao",
		AddressLine1: "12 MG Road",
		City:         "Pune",
		State:        "MH",
		PostalCode:   "411001",
		Country:      "India",
	}

	want := "Asha Rao\n12 MG Road\nPune, MH - 411001\nIndia"
	if got := d.Text(); got != want {
		t.Errorf("unexpected address text:\n%s", got)
	}

	d.AddressLine2 = "Flat 4"
	if !strings.Contains(d.Text(), "12 MG Road\nFlat 4\n") {
		t.Errorf("expected second address line, got:\n%s", d.Text())
	}
}

func TestValidationError_Error(t *testing.T) {
	err := &ValidationError{Fields: map[string]string{"city": "is required", "email": "must be a valid email"}}
	want := "validation failed: city: is required; email: must be a valid email"
	if err.Error() != want {
		t.Errorf("expected %q, got %q", want, err.Error())
	}
}

package models

import (
	"testing"
	"time"
)

func TestOrderBeforeSaveStampsFulfilledAtOnce(t *testing.T) {
	order := Order{Fulfilled: false}
	if err := order.BeforeSave(nil); err != nil {
		t.Fatalf("BeforeSave failed: %v", err)
	}
	if order.FulfilledAt != nil {
		t.Fatal("unfulfilled order must not carry a timestamp")
	}

	order.Fulfilled = true
	if err := order.BeforeSave(nil); err != nil {
		t.Fatalf("BeforeSave failed: %v", err)
	}
	if order.FulfilledAt == nil {
		t.Fatal("fulfilling must stamp FulfilledAt")
	}

	stamped := *order.FulfilledAt
	time.Sleep(5 * time.Millisecond)
	if err := order.BeforeSave(nil); err != nil {
		t.Fatalf("BeforeSave failed: %v", err)
	}
	if !order.FulfilledAt.Equal(stamped) {
		t.Fatal("repeated saves must not move the fulfillment timestamp")
	}
}

func TestOrderAmountPaidDisplay(t *testing.T) {
	order := Order{AmountPaidCents: 2750}
	if got := order.AmountPaidDisplay(); got != "£27.50" {
		t.Fatalf("AmountPaidDisplay = %q", got)
	}
}

func TestOrderValidate(t *testing.T) {
	order := Order{CustomerEmail: "reader@example.com"}
	if err := order.Validate(); err != nil {
		t.Fatalf("expected valid order, got %v", err)
	}
	order.CustomerEmail = "not-an-email"
	if err := order.Validate(); err == nil {
		t.Fatal("expected invalid email to be rejected")
	}
}

package payments

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// EventTypeCheckoutCompleted is the only event type that triggers inventory
// logic; every other type is acknowledged as a no-op.
const EventTypeCheckoutCompleted = "checkout.session.completed"

// ErrMalformedPayload marks a body that verified against the signature but
// cannot be decoded into an event envelope.
var ErrMalformedPayload = errors.New("payments: malformed event payload")

// Event is the signed notification envelope delivered to the webhook.
type Event struct {
	ID   string `json:"id"`
	Type string `json:"type"`
	Data struct {
		Object json.RawMessage `json:"object"`
	} `json:"data"`
}

// Address is the structured postal address inside shipping details.
type Address struct {
	Line1      string `json:"line1"`
	Line2      string `json:"line2"`
	City       string `json:"city"`
	State      string `json:"state"`
	PostalCode string `json:"postal_code"`
	Country    string `json:"country"`
}

// ShippingDetails carries the recipient name and address.
type ShippingDetails struct {
	Name    string   `json:"name"`
	Address *Address `json:"address"`
}

// CustomerDetails carries buyer contact information.
type CustomerDetails struct {
	Email string `json:"email"`
	Name  string `json:"name"`
}

// CheckoutSession is the payload of a checkout.session.completed event.
// Every field the finalizer depends on is optional at the wire level and
// validated explicitly before any mutation.
type CheckoutSession struct {
	ID                   string            `json:"id"`
	AmountTotal          *int64            `json:"amount_total"`
	Currency             string            `json:"currency"`
	PaymentIntent        string            `json:"payment_intent"`
	Metadata             map[string]string `json:"metadata"`
	CustomerDetails      *CustomerDetails  `json:"customer_details"`
	ShippingDetails      *ShippingDetails  `json:"shipping_details"`
	CollectedInformation *struct {
		ShippingDetails *ShippingDetails `json:"shipping_details"`
	} `json:"collected_information"`
}

// Shipping returns the shipping details, preferring the newer
// collected_information placement over the legacy top-level field.
func (s *CheckoutSession) Shipping() *ShippingDetails {
	if s.CollectedInformation != nil && s.CollectedInformation.ShippingDetails != nil {
		return s.CollectedInformation.ShippingDetails
	}
	return s.ShippingDetails
}

// CustomerEmail returns the buyer email or "" when absent.
func (s *CheckoutSession) CustomerEmail() string {
	if s.CustomerDetails == nil {
		return ""
	}
	return s.CustomerDetails.Email
}

// ConstructEvent verifies the signature header against the raw payload and
// then decodes the envelope. Verification always runs first so a tampered
// body never reaches the JSON decoder.
func ConstructEvent(payload []byte, header, secret string, tolerance time.Duration) (*Event, error) {
	if err := VerifySignature(payload, header, secret, tolerance); err != nil {
		return nil, err
	}
	var event Event
	if err := json.Unmarshal(payload, &event); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedPayload, err)
	}
	return &event, nil
}

// CheckoutSession decodes the event payload into a checkout session.
func (e *Event) CheckoutSession() (*CheckoutSession, error) {
	var session CheckoutSession
	if err := json.Unmarshal(e.Data.Object, &session); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedPayload, err)
	}
	return &session, nil
}

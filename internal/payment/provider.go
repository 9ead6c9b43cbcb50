// Package payment drives appointments through the payment state machine.
// Two gateway integrations exist behind one capability interface: the
// Razorpay order/modal flow and the Stripe checkout redirect flow.
package payment

import (
	"context"
	"errors"

	"github.com/docpoint/booking-engine/internal/booking"
)

type Kind string

const (
	KindRazorpay Kind = "razorpay"
	KindStripe   Kind = "stripe"
)

var (
	ErrUnknownProvider     = errors.New("unknown payment provider")
	ErrInvalidPaymentState = errors.New("appointment is not in a payable state")
	ErrVerificationFailed  = errors.New("payment callback verification failed")
	ErrProviderTimeout     = errors.New("payment provider call timed out")
)

// Order is a provider-side transaction record.
type Order struct {
	Ref         string
	Amount      float64
	Currency    string
	CheckoutURL string // redirect-based providers only
}

// Callback is the client-delivered confirmation payload. Razorpay fills
// OrderRef/PaymentID/Signature from its modal handler; Stripe fills
// OrderRef with the checkout session id from the redirect.
type Callback struct {
	OrderRef  string `json:"order_ref"`
	PaymentID string `json:"payment_id,omitempty"`
	Signature string `json:"signature,omitempty"`
}

// Provider is the capability set a gateway must implement. Verification
// never trusts the callback alone: each implementation re-checks the
// order server-side against the stored ref.
type Provider interface {
	Kind() Kind
	CreateOrder(ctx context.Context, appt *booking.Appointment) (*Order, error)
	VerifyCallback(ctx context.Context, orderRef string, cb Callback) error
}

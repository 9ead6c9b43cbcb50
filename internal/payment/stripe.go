package payment

import (
	"context"
	"fmt"
	"strings"

	"github.com/stripe/stripe-go/v76"
	"github.com/stripe/stripe-go/v76/checkout/session"

	"github.com/docpoint/booking-engine/internal/booking"
)

// StripeProvider implements the redirect flow: a checkout session is
// created server-side, the client is sent to its URL, and the redirect
// callback is verified by re-fetching the session and checking its
// payment status rather than trusting the redirect parameters.
type StripeProvider struct {
	origin string // frontend origin for success/cancel redirects
}

func NewStripeProvider(secretKey, origin string) *StripeProvider {
	stripe.Key = secretKey
	return &StripeProvider{origin: origin}
}

func (p *StripeProvider) Kind() Kind { return KindStripe }

func (p *StripeProvider) CreateOrder(_ context.Context, appt *booking.Appointment) (*Order, error) {
	params := &stripe.CheckoutSessionParams{
		PaymentMethodTypes: stripe.StringSlice([]string{"card"}),
		LineItems: []*stripe.CheckoutSessionLineItemParams{
			{
				PriceData: &stripe.CheckoutSessionLineItemPriceDataParams{
					Currency: stripe.String(strings.ToLower(appt.Currency)),
					ProductData: &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
						Name: stripe.String("Appointment Fees"),
					},
					UnitAmount: stripe.Int64(int64(appt.Amount * 100)),
				},
				Quantity: stripe.Int64(1),
			},
		},
		Mode:              stripe.String(string(stripe.CheckoutSessionModePayment)),
		ClientReferenceID: stripe.String(appt.ID.String()),
		SuccessURL:        stripe.String(fmt.Sprintf("%s/verify?success=true&appointmentId=%s", p.origin, appt.ID)),
		CancelURL:         stripe.String(fmt.Sprintf("%s/verify?success=false&appointmentId=%s", p.origin, appt.ID)),
	}

	sess, err := session.New(params)
	if err != nil {
		return nil, fmt.Errorf("create stripe checkout session: %w", err)
	}

	return &Order{
		Ref:         sess.ID,
		Amount:      appt.Amount,
		Currency:    appt.Currency,
		CheckoutURL: sess.URL,
	}, nil
}

func (p *StripeProvider) VerifyCallback(_ context.Context, orderRef string, cb Callback) error {
	if cb.OrderRef != orderRef {
		return ErrVerificationFailed
	}

	sess, err := session.Get(orderRef, nil)
	if err != nil {
		return fmt.Errorf("fetch stripe checkout session: %w", err)
	}

	if sess.PaymentStatus != stripe.CheckoutSessionPaymentStatusPaid {
		return ErrVerificationFailed
	}

	return nil
}

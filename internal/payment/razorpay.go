package payment

import (
	"context"
	"errors"
	"fmt"

	"github.com/razorpay/razorpay-go"

	"github.com/docpoint/booking-engine/internal/booking"
)

// RazorpayProvider implements the order/modal flow: an order is created
// server-side, the client completes it in the Razorpay modal, and the
// callback is verified by re-fetching the order and checking it settled.
type RazorpayProvider struct {
	client *razorpay.Client
}

func NewRazorpayProvider(keyID, keySecret string) *RazorpayProvider {
	return &RazorpayProvider{
		client: razorpay.NewClient(keyID, keySecret),
	}
}

func (p *RazorpayProvider) Kind() Kind { return KindRazorpay }

func (p *RazorpayProvider) CreateOrder(_ context.Context, appt *booking.Appointment) (*Order, error) {
	data := map[string]interface{}{
		"amount":   int(appt.Amount * 100), // minor units (paise)
		"currency": appt.Currency,
		"receipt":  appt.ID.String(),
	}

	order, err := p.client.Order.Create(data, nil)
	if err != nil {
		return nil, fmt.Errorf("create razorpay order: %w", err)
	}

	ref, _ := order["id"].(string)
	if ref == "" {
		return nil, errors.New("razorpay order response missing id")
	}

	return &Order{
		Ref:      ref,
		Amount:   appt.Amount,
		Currency: appt.Currency,
	}, nil
}

func (p *RazorpayProvider) VerifyCallback(_ context.Context, orderRef string, cb Callback) error {
	if cb.OrderRef != orderRef {
		return ErrVerificationFailed
	}

	order, err := p.client.Order.Fetch(orderRef, nil, nil)
	if err != nil {
		return fmt.Errorf("fetch razorpay order: %w", err)
	}

	if status, _ := order["status"].(string); status != "paid" {
		return ErrVerificationFailed
	}

	return nil
}

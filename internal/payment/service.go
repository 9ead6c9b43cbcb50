package payment

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/docpoint/booking-engine/internal/booking"
)

const (
	EventPaymentInitiated      = "PAYMENT_INITIATED"
	EventPaymentConfirmed      = "PAYMENT_CONFIRMED"
	EventPaymentReconciliation = "PAYMENT_RECONCILIATION_REQUIRED"
)

// Store is the slice of the appointment repository the coordinator needs.
type Store interface {
	GetAppointmentByID(ctx context.Context, id uuid.UUID) (*booking.Appointment, error)
	SetPaymentOrder(ctx context.Context, id uuid.UUID, provider, orderRef string, from booking.Status) (*booking.Appointment, error)
	UpdateAppointmentStatus(ctx context.Context, id uuid.UUID, from, to booking.Status) (*booking.Appointment, error)
	InsertEvent(ctx context.Context, ev booking.EventLog) error
}

// InitResult is returned to the client so it can hand off to the
// provider's checkout surface.
type InitResult struct {
	OrderRef    string
	Amount      float64
	Currency    string
	CheckoutURL string
}

type Coordinator struct {
	store     Store
	providers map[Kind]Provider
	timeout   time.Duration
	log       *zap.Logger
}

func NewCoordinator(store Store, providers []Provider, timeout time.Duration, log *zap.Logger) *Coordinator {
	byKind := make(map[Kind]Provider, len(providers))
	for _, p := range providers {
		byKind[p.Kind()] = p
	}
	return &Coordinator{
		store:     store,
		providers: byKind,
		timeout:   timeout,
		log:       log,
	}
}

// Initiate opens a provider order for the appointment and moves it to
// payment_pending. A retry from payment_pending replaces the abandoned
// order ref.
func (c *Coordinator) Initiate(ctx context.Context, appointmentID uuid.UUID, kind Kind) (*InitResult, error) {
	provider, ok := c.providers[kind]
	if !ok {
		return nil, ErrUnknownProvider
	}

	appt, err := c.store.GetAppointmentByID(ctx, appointmentID)
	if err != nil {
		return nil, err
	}

	switch appt.Status {
	case booking.StatusReserved, booking.StatusPaymentPending:
	default:
		if appt.Status.Terminal() {
			return nil, booking.ErrAlreadyTerminal
		}
		return nil, ErrInvalidPaymentState
	}

	var order *Order
	err = c.callProvider(ctx, func(callCtx context.Context) error {
		o, err := provider.CreateOrder(callCtx, appt)
		order = o
		return err
	})
	if err != nil {
		return nil, err
	}

	updated, err := c.store.SetPaymentOrder(ctx, appt.ID, string(kind), order.Ref, appt.Status)
	if err != nil {
		// The row was loaded above, so a CAS miss means the status moved
		// under us (cancel racing the init).
		if errors.Is(err, booking.ErrAppointmentNotFound) {
			return nil, ErrInvalidPaymentState
		}
		return nil, fmt.Errorf("store payment order: %w", err)
	}

	c.logEvent(ctx, updated.ID, EventPaymentInitiated, map[string]any{
		"provider":  string(kind),
		"order_ref": order.Ref,
		"amount":    order.Amount,
		"currency":  order.Currency,
	})

	c.log.Info("payment initiated",
		zap.String("appointment_id", updated.ID.String()),
		zap.String("provider", string(kind)),
		zap.String("order_ref", order.Ref))

	return &InitResult{
		OrderRef:    order.Ref,
		Amount:      order.Amount,
		Currency:    order.Currency,
		CheckoutURL: order.CheckoutURL,
	}, nil
}

// Confirm verifies a provider callback and moves the appointment to
// paid. Duplicate confirmations are no-op successes. A confirmation
// landing after cancellation is accepted but flagged for reconciliation:
// money may have moved, and the slot is not resurrected.
func (c *Coordinator) Confirm(ctx context.Context, appointmentID uuid.UUID, kind Kind, cb Callback) error {
	provider, ok := c.providers[kind]
	if !ok {
		return ErrUnknownProvider
	}

	appt, err := c.store.GetAppointmentByID(ctx, appointmentID)
	if err != nil {
		return err
	}

	switch appt.Status {
	case booking.StatusPaid, booking.StatusCompleted:
		return nil
	case booking.StatusCancelled:
		return c.reconcile(ctx, provider, appt, cb)
	case booking.StatusPaymentPending:
	default:
		return ErrInvalidPaymentState
	}

	if err := c.verify(ctx, provider, appt, kind, cb); err != nil {
		return err
	}

	_, err = c.store.UpdateAppointmentStatus(ctx, appt.ID, booking.StatusPaymentPending, booking.StatusPaid)
	if err != nil {
		if !errors.Is(err, booking.ErrAppointmentNotFound) {
			return fmt.Errorf("mark appointment paid: %w", err)
		}

		// Lost the transition race; the committed state decides.
		current, gerr := c.store.GetAppointmentByID(ctx, appt.ID)
		if gerr != nil {
			return gerr
		}
		switch current.Status {
		case booking.StatusPaid, booking.StatusCompleted:
			return nil
		case booking.StatusCancelled:
			return c.reconcile(ctx, provider, current, cb)
		default:
			return ErrInvalidPaymentState
		}
	}

	c.logEvent(ctx, appt.ID, EventPaymentConfirmed, map[string]any{
		"provider":  string(kind),
		"order_ref": cb.OrderRef,
	})

	c.log.Info("payment confirmed",
		zap.String("appointment_id", appt.ID.String()),
		zap.String("provider", string(kind)))

	return nil
}

// MarkCompleted closes out a paid appointment. Terminal.
func (c *Coordinator) MarkCompleted(ctx context.Context, appointmentID uuid.UUID) (*booking.Appointment, error) {
	updated, err := c.store.UpdateAppointmentStatus(ctx, appointmentID, booking.StatusPaid, booking.StatusCompleted)
	if err == nil {
		return updated, nil
	}
	if !errors.Is(err, booking.ErrAppointmentNotFound) {
		return nil, fmt.Errorf("mark appointment completed: %w", err)
	}

	current, gerr := c.store.GetAppointmentByID(ctx, appointmentID)
	if gerr != nil {
		return nil, gerr
	}
	if current.Status.Terminal() {
		return nil, booking.ErrAlreadyTerminal
	}
	return nil, ErrInvalidPaymentState
}

func (c *Coordinator) verify(ctx context.Context, provider Provider, appt *booking.Appointment, kind Kind, cb Callback) error {
	if appt.PaymentOrderRef == nil {
		return ErrInvalidPaymentState
	}
	if appt.PaymentProvider != nil && *appt.PaymentProvider != string(kind) {
		return ErrVerificationFailed
	}

	return c.callProvider(ctx, func(callCtx context.Context) error {
		return provider.VerifyCallback(callCtx, *appt.PaymentOrderRef, cb)
	})
}

// reconcile handles a verified confirmation for a cancelled appointment.
// The caller still gets success, but the exception is logged and queued
// in the event log for an operator; it must never be silently dropped.
func (c *Coordinator) reconcile(ctx context.Context, provider Provider, appt *booking.Appointment, cb Callback) error {
	if err := c.verify(ctx, provider, appt, provider.Kind(), cb); err != nil {
		return err
	}

	c.log.Error("payment confirmed for cancelled appointment, manual review required",
		zap.String("appointment_id", appt.ID.String()),
		zap.String("provider", string(provider.Kind())),
		zap.String("order_ref", cb.OrderRef),
		zap.Float64("amount", appt.Amount))

	c.logEvent(ctx, appt.ID, EventPaymentReconciliation, map[string]any{
		"provider":  string(provider.Kind()),
		"order_ref": cb.OrderRef,
		"amount":    appt.Amount,
		"currency":  appt.Currency,
		"reason":    "confirmed_after_cancellation",
	})

	return nil
}

// callProvider bounds a gateway call. The SDKs do not take a context, so
// an overrunning call is abandoned rather than interrupted.
func (c *Coordinator) callProvider(ctx context.Context, fn func(ctx context.Context) error) error {
	callCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	done := make(chan error, 1)
	go func() {
		done <- fn(callCtx)
	}()

	select {
	case err := <-done:
		return err
	case <-callCtx.Done():
		return ErrProviderTimeout
	}
}

func (c *Coordinator) logEvent(ctx context.Context, appointmentID uuid.UUID, eventType string, payload map[string]any) {
	data, err := json.Marshal(payload)
	if err != nil {
		c.log.Error("marshal event payload", zap.String("event", eventType), zap.Error(err))
		data = nil
	}

	apptID := appointmentID

	ev := booking.EventLog{
		EventType:     eventType,
		AppointmentID: &apptID,
		Payload:       data,
		CreatedAt:     time.Now(),
	}

	if err := c.store.InsertEvent(ctx, ev); err != nil {
		c.log.Error("insert event log",
			zap.String("event", eventType),
			zap.String("appointment_id", appointmentID.String()),
			zap.Error(err))
	}
}

package payment

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/docpoint/booking-engine/internal/booking"
)

// fakeProvider verifies callbacks against the orders it issued, like the
// real gateways do server-side.
type fakeProvider struct {
	mu      sync.Mutex
	kind    Kind
	orders  map[string]float64 // ref -> amount
	nextRef int
	delay   time.Duration
	failOn  error
}

func newFakeProvider(kind Kind) *fakeProvider {
	return &fakeProvider{kind: kind, orders: make(map[string]float64)}
}

func (p *fakeProvider) Kind() Kind { return p.kind }

func (p *fakeProvider) CreateOrder(_ context.Context, appt *booking.Appointment) (*Order, error) {
	if p.delay > 0 {
		time.Sleep(p.delay)
	}
	if p.failOn != nil {
		return nil, p.failOn
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	p.nextRef++
	ref := fmt.Sprintf("%s_order_%d", p.kind, p.nextRef)
	p.orders[ref] = appt.Amount
	return &Order{Ref: ref, Amount: appt.Amount, Currency: appt.Currency}, nil
}

func (p *fakeProvider) VerifyCallback(_ context.Context, orderRef string, cb Callback) error {
	if p.delay > 0 {
		time.Sleep(p.delay)
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if cb.OrderRef != orderRef {
		return ErrVerificationFailed
	}
	if _, ok := p.orders[orderRef]; !ok {
		return ErrVerificationFailed
	}
	return nil
}

func newTestCoordinator(t *testing.T, providers ...Provider) (*Coordinator, *booking.MemoryRepository) {
	t.Helper()
	repo := booking.NewMemoryRepository()
	coord := NewCoordinator(repo, providers, time.Second, zap.NewNop())
	return coord, repo
}

func seedAppointment(t *testing.T, repo *booking.MemoryRepository, status booking.Status) *booking.Appointment {
	t.Helper()
	appt := &booking.Appointment{
		ID:        uuid.New(),
		DoctorID:  uuid.New(),
		PatientID: uuid.New(),
		SlotDate:  "20_6_2025",
		SlotTime:  "10:00 AM",
		Amount:    600,
		Currency:  "INR",
		Status:    status,
	}
	require.NoError(t, repo.CreateAppointment(context.Background(), appt))
	return appt
}

func TestInitiate(t *testing.T) {
	provider := newFakeProvider(KindRazorpay)
	coord, repo := newTestCoordinator(t, provider)
	ctx := context.Background()

	appt := seedAppointment(t, repo, booking.StatusReserved)

	result, err := coord.Initiate(ctx, appt.ID, KindRazorpay)
	require.NoError(t, err)
	assert.NotEmpty(t, result.OrderRef)
	assert.Equal(t, 600.0, result.Amount)
	assert.Equal(t, "INR", result.Currency)

	stored, err := repo.GetAppointmentByID(ctx, appt.ID)
	require.NoError(t, err)
	assert.Equal(t, booking.StatusPaymentPending, stored.Status)
	require.NotNil(t, stored.PaymentProvider)
	assert.Equal(t, "razorpay", *stored.PaymentProvider)
	require.NotNil(t, stored.PaymentOrderRef)
	assert.Equal(t, result.OrderRef, *stored.PaymentOrderRef)
}

func TestInitiateRetryReplacesOrder(t *testing.T) {
	provider := newFakeProvider(KindRazorpay)
	coord, repo := newTestCoordinator(t, provider)
	ctx := context.Background()

	appt := seedAppointment(t, repo, booking.StatusReserved)

	first, err := coord.Initiate(ctx, appt.ID, KindRazorpay)
	require.NoError(t, err)

	// The patient abandoned checkout; a second init issues a new order.
	second, err := coord.Initiate(ctx, appt.ID, KindRazorpay)
	require.NoError(t, err)
	assert.NotEqual(t, first.OrderRef, second.OrderRef)

	stored, err := repo.GetAppointmentByID(ctx, appt.ID)
	require.NoError(t, err)
	assert.Equal(t, second.OrderRef, *stored.PaymentOrderRef)
}

func TestInitiateUnknownProvider(t *testing.T) {
	coord, repo := newTestCoordinator(t, newFakeProvider(KindRazorpay))
	appt := seedAppointment(t, repo, booking.StatusReserved)

	_, err := coord.Initiate(context.Background(), appt.ID, Kind("paypal"))
	assert.ErrorIs(t, err, ErrUnknownProvider)
}

func TestInitiateInvalidStates(t *testing.T) {
	coord, repo := newTestCoordinator(t, newFakeProvider(KindRazorpay))
	ctx := context.Background()

	paid := seedAppointment(t, repo, booking.StatusPaid)
	_, err := coord.Initiate(ctx, paid.ID, KindRazorpay)
	assert.ErrorIs(t, err, ErrInvalidPaymentState)

	cancelled := seedAppointment(t, repo, booking.StatusCancelled)
	_, err = coord.Initiate(ctx, cancelled.ID, KindRazorpay)
	assert.ErrorIs(t, err, booking.ErrAlreadyTerminal)

	_, err = coord.Initiate(ctx, uuid.New(), KindRazorpay)
	assert.ErrorIs(t, err, booking.ErrAppointmentNotFound)
}

func TestConfirm(t *testing.T) {
	provider := newFakeProvider(KindRazorpay)
	coord, repo := newTestCoordinator(t, provider)
	ctx := context.Background()

	appt := seedAppointment(t, repo, booking.StatusReserved)
	result, err := coord.Initiate(ctx, appt.ID, KindRazorpay)
	require.NoError(t, err)

	cb := Callback{OrderRef: result.OrderRef, PaymentID: "pay_1", Signature: "sig"}
	require.NoError(t, coord.Confirm(ctx, appt.ID, KindRazorpay, cb))

	stored, err := repo.GetAppointmentByID(ctx, appt.ID)
	require.NoError(t, err)
	assert.Equal(t, booking.StatusPaid, stored.Status)

	confirmed := 0
	for _, ev := range repo.Events() {
		if ev.EventType == EventPaymentConfirmed {
			confirmed++
		}
	}
	assert.Equal(t, 1, confirmed)
}

func TestConfirmIdempotent(t *testing.T) {
	provider := newFakeProvider(KindRazorpay)
	coord, repo := newTestCoordinator(t, provider)
	ctx := context.Background()

	appt := seedAppointment(t, repo, booking.StatusReserved)
	result, err := coord.Initiate(ctx, appt.ID, KindRazorpay)
	require.NoError(t, err)

	cb := Callback{OrderRef: result.OrderRef}
	require.NoError(t, coord.Confirm(ctx, appt.ID, KindRazorpay, cb))

	// The gateway retries its webhook; the duplicate is a no-op success.
	require.NoError(t, coord.Confirm(ctx, appt.ID, KindRazorpay, cb))

	stored, err := repo.GetAppointmentByID(ctx, appt.ID)
	require.NoError(t, err)
	assert.Equal(t, booking.StatusPaid, stored.Status)

	confirmed := 0
	for _, ev := range repo.Events() {
		if ev.EventType == EventPaymentConfirmed {
			confirmed++
		}
	}
	assert.Equal(t, 1, confirmed)
}

func TestConfirmTamperedCallback(t *testing.T) {
	provider := newFakeProvider(KindRazorpay)
	coord, repo := newTestCoordinator(t, provider)
	ctx := context.Background()

	appt := seedAppointment(t, repo, booking.StatusReserved)
	_, err := coord.Initiate(ctx, appt.ID, KindRazorpay)
	require.NoError(t, err)

	cb := Callback{OrderRef: "forged_order_ref"}
	err = coord.Confirm(ctx, appt.ID, KindRazorpay, cb)
	assert.ErrorIs(t, err, ErrVerificationFailed)

	// A failed verification leaves the appointment payable.
	stored, err := repo.GetAppointmentByID(ctx, appt.ID)
	require.NoError(t, err)
	assert.Equal(t, booking.StatusPaymentPending, stored.Status)
}

func TestConfirmAfterCancellation(t *testing.T) {
	provider := newFakeProvider(KindRazorpay)
	coord, repo := newTestCoordinator(t, provider)
	ctx := context.Background()

	appt := seedAppointment(t, repo, booking.StatusReserved)
	result, err := coord.Initiate(ctx, appt.ID, KindRazorpay)
	require.NoError(t, err)

	_, err = repo.UpdateAppointmentStatus(ctx, appt.ID, booking.StatusPaymentPending, booking.StatusCancelled)
	require.NoError(t, err)

	// The confirmation still succeeds for the caller, but the money is
	// flagged for an operator and the appointment stays cancelled.
	cb := Callback{OrderRef: result.OrderRef}
	require.NoError(t, coord.Confirm(ctx, appt.ID, KindRazorpay, cb))

	stored, err := repo.GetAppointmentByID(ctx, appt.ID)
	require.NoError(t, err)
	assert.Equal(t, booking.StatusCancelled, stored.Status)

	reconciliations := 0
	for _, ev := range repo.Events() {
		if ev.EventType == EventPaymentReconciliation {
			reconciliations++
		}
	}
	assert.Equal(t, 1, reconciliations)
}

func TestConfirmAfterCancellationRejectsForgery(t *testing.T) {
	provider := newFakeProvider(KindRazorpay)
	coord, repo := newTestCoordinator(t, provider)
	ctx := context.Background()

	appt := seedAppointment(t, repo, booking.StatusReserved)
	_, err := coord.Initiate(ctx, appt.ID, KindRazorpay)
	require.NoError(t, err)
	_, err = repo.UpdateAppointmentStatus(ctx, appt.ID, booking.StatusPaymentPending, booking.StatusCancelled)
	require.NoError(t, err)

	err = coord.Confirm(ctx, appt.ID, KindRazorpay, Callback{OrderRef: "forged"})
	assert.ErrorIs(t, err, ErrVerificationFailed)

	for _, ev := range repo.Events() {
		assert.NotEqual(t, EventPaymentReconciliation, ev.EventType)
	}
}

func TestConfirmWithoutInit(t *testing.T) {
	coord, repo := newTestCoordinator(t, newFakeProvider(KindRazorpay))

	appt := seedAppointment(t, repo, booking.StatusReserved)
	err := coord.Confirm(context.Background(), appt.ID, KindRazorpay, Callback{OrderRef: "x"})
	assert.ErrorIs(t, err, ErrInvalidPaymentState)
}

func TestConfirmProviderMismatch(t *testing.T) {
	razorpay := newFakeProvider(KindRazorpay)
	stripe := newFakeProvider(KindStripe)
	coord, repo := newTestCoordinator(t, razorpay, stripe)
	ctx := context.Background()

	appt := seedAppointment(t, repo, booking.StatusReserved)
	result, err := coord.Initiate(ctx, appt.ID, KindRazorpay)
	require.NoError(t, err)

	err = coord.Confirm(ctx, appt.ID, KindStripe, Callback{OrderRef: result.OrderRef})
	assert.ErrorIs(t, err, ErrVerificationFailed)
}

func TestMarkCompleted(t *testing.T) {
	coord, repo := newTestCoordinator(t, newFakeProvider(KindRazorpay))
	ctx := context.Background()

	appt := seedAppointment(t, repo, booking.StatusPaid)

	updated, err := coord.MarkCompleted(ctx, appt.ID)
	require.NoError(t, err)
	assert.Equal(t, booking.StatusCompleted, updated.Status)

	// Completion is terminal.
	_, err = coord.MarkCompleted(ctx, appt.ID)
	assert.ErrorIs(t, err, booking.ErrAlreadyTerminal)
}

func TestMarkCompletedRequiresPaid(t *testing.T) {
	coord, repo := newTestCoordinator(t, newFakeProvider(KindRazorpay))
	ctx := context.Background()

	reserved := seedAppointment(t, repo, booking.StatusReserved)
	_, err := coord.MarkCompleted(ctx, reserved.ID)
	assert.ErrorIs(t, err, ErrInvalidPaymentState)

	cancelled := seedAppointment(t, repo, booking.StatusCancelled)
	_, err = coord.MarkCompleted(ctx, cancelled.ID)
	assert.ErrorIs(t, err, booking.ErrAlreadyTerminal)
}

func TestProviderTimeout(t *testing.T) {
	slow := newFakeProvider(KindRazorpay)
	slow.delay = 200 * time.Millisecond

	repo := booking.NewMemoryRepository()
	coord := NewCoordinator(repo, []Provider{slow}, 50*time.Millisecond, zap.NewNop())

	appt := seedAppointment(t, repo, booking.StatusReserved)

	_, err := coord.Initiate(context.Background(), appt.ID, KindRazorpay)
	assert.ErrorIs(t, err, ErrProviderTimeout)

	// The appointment must not reach payment_pending on a timed-out init.
	stored, gerr := repo.GetAppointmentByID(context.Background(), appt.ID)
	require.NoError(t, gerr)
	assert.Equal(t, booking.StatusReserved, stored.Status)
}

package booking

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

var (
	ErrDoctorNotFound      = errors.New("doctor not found")
	ErrAppointmentNotFound = errors.New("appointment not found")
)

// Repository contains all DB interactions needed by the booking and
// payment services.
type Repository interface {
	GetDoctorByID(ctx context.Context, id uuid.UUID) (*Doctor, error)
	ListDoctors(ctx context.Context) ([]Doctor, error)

	GetAppointmentByID(ctx context.Context, id uuid.UUID) (*Appointment, error)
	CreateAppointment(ctx context.Context, appt *Appointment) error
	ListAppointmentsByPatient(ctx context.Context, patientID uuid.UUID, limit, offset int) ([]Appointment, error)

	// UpdateAppointmentStatus is a compare-and-set: the update only lands
	// if the row is still in the `from` status, otherwise it reports
	// ErrAppointmentNotFound so racing transitions resolve
	// deterministically.
	UpdateAppointmentStatus(ctx context.Context, id uuid.UUID, from, to Status) (*Appointment, error)

	// SetPaymentOrder records a freshly created provider order and moves
	// the appointment to payment_pending, compare-and-set on `from`.
	SetPaymentOrder(ctx context.Context, id uuid.UUID, provider, orderRef string, from Status) (*Appointment, error)

	// Expiry worker
	FindStaleReserved(ctx context.Context, cutoff time.Time) ([]Appointment, error)

	// Event logging
	InsertEvent(ctx context.Context, ev EventLog) error
}

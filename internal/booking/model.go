package booking

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

type Status string

const (
	StatusReserved       Status = "reserved"
	StatusPaymentPending Status = "payment_pending"
	StatusPaid           Status = "paid"
	StatusCompleted      Status = "completed"
	StatusCancelled      Status = "cancelled"
)

// Terminal reports whether no further transitions are permitted.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusCancelled
}

// Doctor is the read-only projection this engine needs from the doctor
// directory. Profile CRUD lives outside the service boundary.
type Doctor struct {
	ID         uuid.UUID
	Name       string
	Speciality string
	Fee        float64
	Currency   string
	Available  bool
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

type Appointment struct {
	ID        uuid.UUID
	DoctorID  uuid.UUID
	PatientID uuid.UUID
	SlotDate  string // day_month_year key, e.g. "20_6_2025"
	SlotTime  string // canonical time label, e.g. "10:00 AM"
	Amount    float64
	Currency  string
	Status    Status
	// Set once a provider order is opened; a new attempt after an
	// abandoned one replaces both.
	PaymentProvider *string
	PaymentOrderRef *string
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// SlotKey is the canonical identity of the slot this appointment holds,
// used for the distributed lock.
func (a *Appointment) SlotKey() string {
	return SlotKey(a.DoctorID, a.SlotDate, a.SlotTime)
}

func SlotKey(doctorID uuid.UUID, dateKey, timeLabel string) string {
	return fmt.Sprintf("%s:%s:%s", doctorID, dateKey, timeLabel)
}

type EventLog struct {
	ID            int64
	EventType     string
	AppointmentID *uuid.UUID
	Payload       []byte
	CreatedAt     time.Time
}

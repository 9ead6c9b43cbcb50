package booking

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/docpoint/booking-engine/internal/availability"
	"github.com/docpoint/booking-engine/internal/config"
	redisclient "github.com/docpoint/booking-engine/internal/redis"
	"github.com/docpoint/booking-engine/internal/schedule"
)

const (
	EventAppointmentBooked    = "APPOINTMENT_BOOKED"
	EventAppointmentCancelled = "APPOINTMENT_CANCELLED"
	EventReservationExpired   = "RESERVATION_EXPIRED"
)

var (
	ErrInvalidSlot       = errors.New("slot is not in the doctor's bookable window")
	ErrSlotUnavailable   = errors.New("slot is already booked")
	ErrDoctorUnavailable = errors.New("doctor is not accepting appointments")
	ErrForbidden         = errors.New("appointment belongs to another patient")
	ErrAlreadyTerminal   = errors.New("appointment is already completed or cancelled")
)

// SlotOffer is one candidate slot in an availability response.
type SlotOffer struct {
	Start     time.Time
	Label     string
	Available bool
}

type Service struct {
	repo   Repository
	index  availability.Index
	locker redisclient.Locker
	cfg    config.Config
	log    *zap.Logger
}

func NewService(repo Repository, index availability.Index, locker redisclient.Locker, cfg config.Config, log *zap.Logger) *Service {
	return &Service{
		repo:   repo,
		index:  index,
		locker: locker,
		cfg:    cfg,
		log:    log,
	}
}

// Availability computes the doctor's offerable window at ref and marks
// each slot against the reserved set. Read-only; the authoritative check
// happens again inside Book.
func (s *Service) Availability(ctx context.Context, doctorID uuid.UUID, ref time.Time, days int) ([][]SlotOffer, error) {
	if days <= 0 || days > s.cfg.BookingWindowDays {
		days = s.cfg.BookingWindowDays
	}

	if _, err := s.repo.GetDoctorByID(ctx, doctorID); err != nil {
		return nil, err
	}

	window := schedule.Window(ref, days)
	result := make([][]SlotOffer, 0, len(window))

	for offset, slots := range window {
		day := ref.AddDate(0, 0, offset)
		booked, err := s.index.Booked(ctx, doctorID, schedule.DateKey(day))
		if err != nil {
			return nil, fmt.Errorf("load booked slots: %w", err)
		}

		offers := make([]SlotOffer, 0, len(slots))
		for _, slot := range slots {
			_, taken := booked[slot.Label]
			offers = append(offers, SlotOffer{
				Start:     slot.Start,
				Label:     slot.Label,
				Available: !taken,
			})
		}
		result = append(result, offers)
	}

	return result, nil
}

// Book reserves the slot for the patient and persists a Reserved
// appointment with the doctor's fee snapshotted. Two concurrent calls for
// the same slot yield one appointment and one ErrSlotUnavailable.
func (s *Service) Book(ctx context.Context, doctorID, patientID uuid.UUID, dateKey, timeLabel string, ref time.Time) (*Appointment, error) {
	doctor, err := s.repo.GetDoctorByID(ctx, doctorID)
	if err != nil {
		if errors.Is(err, ErrDoctorNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("load doctor: %w", err)
	}
	if !doctor.Available {
		return nil, ErrDoctorUnavailable
	}

	if !schedule.Contains(ref, s.cfg.BookingWindowDays, dateKey, timeLabel) {
		return nil, ErrInvalidSlot
	}

	var created *Appointment

	err = s.locker.WithSlotLock(ctx, SlotKey(doctorID, dateKey, timeLabel), func(lockCtx context.Context) error {
		ok, err := s.index.Reserve(lockCtx, doctorID, dateKey, timeLabel)
		if err != nil {
			return fmt.Errorf("reserve slot: %w", err)
		}
		if !ok {
			return ErrSlotUnavailable
		}

		appt := &Appointment{
			ID:        uuid.New(),
			DoctorID:  doctorID,
			PatientID: patientID,
			SlotDate:  dateKey,
			SlotTime:  timeLabel,
			Amount:    doctor.Fee,
			Currency:  doctor.Currency,
			Status:    StatusReserved,
			CreatedAt: time.Now(),
		}

		if err := s.repo.CreateAppointment(lockCtx, appt); err != nil {
			// Hand the slot back so a failed insert cannot strand it.
			if relErr := s.index.Release(lockCtx, doctorID, dateKey, timeLabel); relErr != nil {
				s.log.Error("rollback slot reservation failed",
					zap.String("doctor_id", doctorID.String()),
					zap.String("slot_date", dateKey),
					zap.String("slot_time", timeLabel),
					zap.Error(relErr))
			}
			return fmt.Errorf("create appointment: %w", err)
		}

		created = appt

		s.logEvent(lockCtx, appt.ID, EventAppointmentBooked, map[string]any{
			"doctor_id":  doctorID.String(),
			"patient_id": patientID.String(),
			"slot_date":  dateKey,
			"slot_time":  timeLabel,
			"amount":     doctor.Fee,
		})

		return nil
	})

	if err != nil {
		// A contended lock means someone else is taking this exact slot.
		if errors.Is(err, redisclient.ErrLockNotAcquired) {
			return nil, ErrSlotUnavailable
		}
		return nil, err
	}

	s.log.Info("appointment booked",
		zap.String("appointment_id", created.ID.String()),
		zap.String("doctor_id", doctorID.String()),
		zap.String("slot_date", dateKey),
		zap.String("slot_time", timeLabel))

	return created, nil
}

// Cancel moves the appointment to cancelled and then releases its slot.
// The status change commits first so a concurrent reader never sees a
// released slot on a live appointment.
func (s *Service) Cancel(ctx context.Context, appointmentID, actingPatientID uuid.UUID) error {
	appt, err := s.repo.GetAppointmentByID(ctx, appointmentID)
	if err != nil {
		return err
	}
	if appt.PatientID != actingPatientID {
		return ErrForbidden
	}

	// The CAS can miss if payment confirmation moves the status between
	// our read and the update; re-read and retry from the new status.
	for attempt := 0; ; attempt++ {
		if appt.Status.Terminal() {
			return ErrAlreadyTerminal
		}

		_, err = s.repo.UpdateAppointmentStatus(ctx, appointmentID, appt.Status, StatusCancelled)
		if err == nil {
			break
		}
		if !errors.Is(err, ErrAppointmentNotFound) || attempt >= 2 {
			return fmt.Errorf("cancel appointment: %w", err)
		}

		appt, err = s.repo.GetAppointmentByID(ctx, appointmentID)
		if err != nil {
			return err
		}
	}

	if err := s.index.Release(ctx, appt.DoctorID, appt.SlotDate, appt.SlotTime); err != nil {
		s.log.Error("release slot after cancel failed",
			zap.String("appointment_id", appointmentID.String()),
			zap.Error(err))
		return fmt.Errorf("release slot: %w", err)
	}

	s.logEvent(ctx, appointmentID, EventAppointmentCancelled, map[string]any{
		"patient_id": actingPatientID.String(),
		"slot_date":  appt.SlotDate,
		"slot_time":  appt.SlotTime,
	})

	s.log.Info("appointment cancelled",
		zap.String("appointment_id", appointmentID.String()),
		zap.String("slot_date", appt.SlotDate),
		zap.String("slot_time", appt.SlotTime))

	return nil
}

// Get retrieves a single appointment.
func (s *Service) Get(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	return s.repo.GetAppointmentByID(ctx, id)
}

// ListByPatient retrieves a patient's appointments, newest first.
func (s *Service) ListByPatient(ctx context.Context, patientID uuid.UUID, limit, offset int) ([]Appointment, error) {
	if limit <= 0 {
		limit = 20
	}
	if limit > 100 {
		limit = 100
	}
	if offset < 0 {
		offset = 0
	}
	return s.repo.ListAppointmentsByPatient(ctx, patientID, limit, offset)
}

// ListDoctors exposes the doctor directory for availability rendering.
func (s *Service) ListDoctors(ctx context.Context) ([]Doctor, error) {
	return s.repo.ListDoctors(ctx)
}

// ExpireStaleReservations cancels reservations that never progressed to
// payment within the reservation TTL and frees their slots. Called
// periodically by the expiry worker.
func (s *Service) ExpireStaleReservations(ctx context.Context) error {
	cutoff := time.Now().Add(-s.cfg.ReservationTTL)

	stale, err := s.repo.FindStaleReserved(ctx, cutoff)
	if err != nil {
		return fmt.Errorf("find stale reservations: %w", err)
	}

	for _, appt := range stale {
		_, err := s.repo.UpdateAppointmentStatus(ctx, appt.ID, StatusReserved, StatusCancelled)
		if err != nil {
			// Lost to a payment or an explicit cancel; skip.
			if errors.Is(err, ErrAppointmentNotFound) {
				continue
			}
			s.log.Error("expire reservation failed",
				zap.String("appointment_id", appt.ID.String()),
				zap.Error(err))
			continue
		}

		if err := s.index.Release(ctx, appt.DoctorID, appt.SlotDate, appt.SlotTime); err != nil {
			s.log.Error("release slot after expiry failed",
				zap.String("appointment_id", appt.ID.String()),
				zap.Error(err))
			continue
		}

		s.logEvent(ctx, appt.ID, EventReservationExpired, map[string]any{
			"reason":     "reservation_ttl",
			"created_at": appt.CreatedAt,
		})
	}

	return nil
}

func (s *Service) logEvent(ctx context.Context, appointmentID uuid.UUID, eventType string, payload map[string]any) {
	data, err := json.Marshal(payload)
	if err != nil {
		s.log.Error("marshal event payload", zap.String("event", eventType), zap.Error(err))
		data = nil
	}

	apptID := appointmentID

	ev := EventLog{
		EventType:     eventType,
		AppointmentID: &apptID,
		Payload:       data,
		CreatedAt:     time.Now(),
	}

	if err := s.repo.InsertEvent(ctx, ev); err != nil {
		s.log.Error("insert event log",
			zap.String("event", eventType),
			zap.String("appointment_id", appointmentID.String()),
			zap.Error(err))
	}
}

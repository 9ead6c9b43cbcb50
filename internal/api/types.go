package api

import (
	"time"

	"github.com/google/uuid"

	"github.com/docpoint/booking-engine/internal/booking"
	"github.com/docpoint/booking-engine/internal/payment"
)

type BookAppointmentRequest struct {
	DoctorID  string `json:"doctor_id" validate:"required,uuid"`
	PatientID string `json:"patient_id" validate:"required,uuid"`
	SlotDate  string `json:"slot_date" validate:"required"`
	SlotTime  string `json:"slot_time" validate:"required"`
}

type CancelAppointmentRequest struct {
	PatientID string `json:"patient_id" validate:"required,uuid"`
}

type InitPaymentRequest struct {
	Provider string `json:"provider" validate:"required,oneof=razorpay stripe"`
}

type ConfirmPaymentRequest struct {
	Provider  string `json:"provider" validate:"required,oneof=razorpay stripe"`
	OrderRef  string `json:"order_ref" validate:"required"`
	PaymentID string `json:"payment_id"`
	Signature string `json:"signature"`
}

type AppointmentResponse struct {
	ID              uuid.UUID `json:"id"`
	DoctorID        uuid.UUID `json:"doctor_id"`
	PatientID       uuid.UUID `json:"patient_id"`
	SlotDate        string    `json:"slot_date"`
	SlotTime        string    `json:"slot_time"`
	Amount          float64   `json:"amount"`
	Currency        string    `json:"currency"`
	Status          string    `json:"status"`
	PaymentProvider *string   `json:"payment_provider,omitempty"`
	PaymentOrderRef *string   `json:"payment_order_ref,omitempty"`
	CreatedAt       time.Time `json:"created_at"`
}

func toAppointmentResponse(a *booking.Appointment) AppointmentResponse {
	return AppointmentResponse{
		ID:              a.ID,
		DoctorID:        a.DoctorID,
		PatientID:       a.PatientID,
		SlotDate:        a.SlotDate,
		SlotTime:        a.SlotTime,
		Amount:          a.Amount,
		Currency:        a.Currency,
		Status:          string(a.Status),
		PaymentProvider: a.PaymentProvider,
		PaymentOrderRef: a.PaymentOrderRef,
		CreatedAt:       a.CreatedAt,
	}
}

type SlotResponse struct {
	Datetime  time.Time `json:"datetime"`
	Time      string    `json:"time"`
	Available bool      `json:"available"`
}

type DayAvailabilityResponse struct {
	Date  string         `json:"date"`
	Slots []SlotResponse `json:"slots"`
}

type AvailabilityResponse struct {
	DoctorID uuid.UUID                 `json:"doctor_id"`
	Days     []DayAvailabilityResponse `json:"days"`
}

type DoctorResponse struct {
	ID         uuid.UUID `json:"id"`
	Name       string    `json:"name"`
	Speciality string    `json:"speciality"`
	Fee        float64   `json:"fee"`
	Currency   string    `json:"currency"`
	Available  bool      `json:"available"`
}

type PaymentInitResponse struct {
	OrderRef    string  `json:"order_ref"`
	Amount      float64 `json:"amount"`
	Currency    string  `json:"currency"`
	CheckoutURL string  `json:"checkout_url,omitempty"`
}

func toPaymentInitResponse(r *payment.InitResult) PaymentInitResponse {
	return PaymentInitResponse{
		OrderRef:    r.OrderRef,
		Amount:      r.Amount,
		Currency:    r.Currency,
		CheckoutURL: r.CheckoutURL,
	}
}

type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

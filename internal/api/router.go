package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/httprate"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/docpoint/booking-engine/internal/booking"
	"github.com/docpoint/booking-engine/internal/payment"
)

type RouterConfig struct {
	Booking  *booking.Service
	Payments *payment.Coordinator
	PgPool   *pgxpool.Pool
	Redis    *redis.Client
	Logger   *zap.Logger
	Env      string
	Version  string
}

func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	r.Use(RequestIDMiddleware)
	r.Use(LoggingMiddleware(cfg.Logger))
	r.Use(httprate.LimitByIP(300, time.Minute))

	// Health endpoints
	health := NewHealthHandler(cfg.PgPool, cfg.Redis, cfg.Env, cfg.Version)
	r.Get("/health/live", health.Liveness)
	r.Get("/health/ready", health.Readiness)

	// Doctor directory and availability
	r.Get("/doctors", listDoctorsHandler(cfg.Booking))
	r.Get("/availability/{doctorID}", availabilityHandler(cfg.Booking))

	// Appointment lifecycle
	r.Post("/appointments", createAppointmentHandler(cfg.Booking))
	r.Get("/appointments", listAppointmentsHandler(cfg.Booking))
	r.Get("/appointments/{id}", getAppointmentHandler(cfg.Booking))
	r.Post("/appointments/{id}/cancel", cancelAppointmentHandler(cfg.Booking))
	r.Post("/appointments/{id}/complete", completeAppointmentHandler(cfg.Payments))

	// Payments
	r.Post("/appointments/{id}/payment/init", initPaymentHandler(cfg.Payments))
	r.Post("/appointments/{id}/payment/confirm", confirmPaymentHandler(cfg.Payments))

	return r
}

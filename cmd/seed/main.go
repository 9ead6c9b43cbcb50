package main

import (
	"context"
	"log"
	"os"
	"time"

	"github.com/brianvoe/gofakeit/v7"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/docpoint/booking-engine/internal/db"
)

func main() {
	log.SetFlags(log.LstdFlags | log.Lshortfile)
	log.Println("seed starting")

	dsn := os.Getenv("POSTGRES_DSN")
	if dsn == "" {
		log.Fatal("POSTGRES_DSN is required")
	}

	currency := os.Getenv("CURRENCY")
	if currency == "" {
		currency = "INR"
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := db.ConnectPostgres(ctx, dsn)
	if err != nil {
		log.Fatalf("connect postgres: %v", err)
	}
	defer pool.Close()

	if err := ensureSchema(context.Background(), pool); err != nil {
		log.Fatalf("ensure schema: %v", err)
	}

	gofakeit.Seed(time.Now().UnixNano())

	if err := seedDoctors(context.Background(), pool, 100, currency); err != nil {
		log.Fatalf("seed doctors: %v", err)
	}

	log.Println("seed complete")
}

func ensureSchema(ctx context.Context, pool *pgxpool.Pool) error {
	_, err := pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS doctors (
			id         UUID PRIMARY KEY,
			name       TEXT NOT NULL,
			speciality TEXT NOT NULL,
			fee        DOUBLE PRECISION NOT NULL,
			currency   TEXT NOT NULL,
			available  BOOLEAN NOT NULL DEFAULT true,
			created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
		);

		CREATE TABLE IF NOT EXISTS booked_slots (
			doctor_id  UUID NOT NULL REFERENCES doctors (id),
			slot_date  TEXT NOT NULL,
			slot_time  TEXT NOT NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
			PRIMARY KEY (doctor_id, slot_date, slot_time)
		);

		CREATE TABLE IF NOT EXISTS appointments (
			id                UUID PRIMARY KEY,
			doctor_id         UUID NOT NULL REFERENCES doctors (id),
			patient_id        UUID NOT NULL,
			slot_date         TEXT NOT NULL,
			slot_time         TEXT NOT NULL,
			amount            DOUBLE PRECISION NOT NULL,
			currency          TEXT NOT NULL,
			status            TEXT NOT NULL,
			payment_provider  TEXT,
			payment_order_ref TEXT,
			created_at        TIMESTAMPTZ NOT NULL DEFAULT now(),
			updated_at        TIMESTAMPTZ NOT NULL DEFAULT now()
		);

		CREATE INDEX IF NOT EXISTS appointments_patient_idx ON appointments (patient_id, created_at DESC);
		CREATE INDEX IF NOT EXISTS appointments_stale_idx ON appointments (status, created_at);

		CREATE TABLE IF NOT EXISTS event_logs (
			id             BIGSERIAL PRIMARY KEY,
			event_type     TEXT NOT NULL,
			appointment_id UUID,
			payload        JSONB,
			created_at     TIMESTAMPTZ NOT NULL DEFAULT now()
		);
	`)
	return err
}

func seedDoctors(ctx context.Context, pool *pgxpool.Pool, count int, currency string) error {
	log.Printf("seeding %d doctors", count)

	specialities := []string{
		"General physician",
		"Gynecologist",
		"Dermatologist",
		"Pediatrician",
		"Neurologist",
		"Gastroenterologist",
		"Cardiologist",
		"Orthopedist",
		"Psychiatrist",
		"Ophthalmologist",
	}

	tx, err := pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	for i := 0; i < count; i++ {
		id := uuid.New()
		name := "Dr. " + gofakeit.Name()
		speciality := specialities[gofakeit.Number(0, len(specialities)-1)]
		fee := float64(gofakeit.Number(30, 120)) * 10

		_, err := tx.Exec(ctx, `
			INSERT INTO doctors (id, name, speciality, fee, currency, available, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5, true, now(), now())
		`, id, name, speciality, fee, currency)
		if err != nil {
			return err
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return err
	}

	log.Println("doctors seeded")
	return nil
}

package availability

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PgIndex persists reserved slots in the booked_slots table. The primary
// key (doctor_id, slot_date, slot_time) plus ON CONFLICT DO NOTHING gives
// Reserve its atomic test-and-insert without explicit locking.
type PgIndex struct {
	pool *pgxpool.Pool
}

func NewPgIndex(pool *pgxpool.Pool) *PgIndex {
	return &PgIndex{pool: pool}
}

func (i *PgIndex) IsBooked(ctx context.Context, doctorID uuid.UUID, dateKey, timeLabel string) (bool, error) {
	var booked bool
	err := i.pool.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM booked_slots
			WHERE doctor_id = $1 AND slot_date = $2 AND slot_time = $3
		)
	`, doctorID, dateKey, timeLabel).Scan(&booked)
	if err != nil {
		return false, fmt.Errorf("check booked slot: %w", err)
	}
	return booked, nil
}

func (i *PgIndex) Reserve(ctx context.Context, doctorID uuid.UUID, dateKey, timeLabel string) (bool, error) {
	ct, err := i.pool.Exec(ctx, `
		INSERT INTO booked_slots (doctor_id, slot_date, slot_time, created_at)
		VALUES ($1, $2, $3, now())
		ON CONFLICT (doctor_id, slot_date, slot_time) DO NOTHING
	`, doctorID, dateKey, timeLabel)
	if err != nil {
		return false, fmt.Errorf("reserve slot: %w", err)
	}
	return ct.RowsAffected() == 1, nil
}

func (i *PgIndex) Release(ctx context.Context, doctorID uuid.UUID, dateKey, timeLabel string) error {
	_, err := i.pool.Exec(ctx, `
		DELETE FROM booked_slots
		WHERE doctor_id = $1 AND slot_date = $2 AND slot_time = $3
	`, doctorID, dateKey, timeLabel)
	if err != nil {
		return fmt.Errorf("release slot: %w", err)
	}
	return nil
}

func (i *PgIndex) Booked(ctx context.Context, doctorID uuid.UUID, dateKey string) (map[string]struct{}, error) {
	rows, err := i.pool.Query(ctx, `
		SELECT slot_time FROM booked_slots
		WHERE doctor_id = $1 AND slot_date = $2
	`, doctorID, dateKey)
	if err != nil {
		return nil, fmt.Errorf("list booked slots: %w", err)
	}
	defer rows.Close()

	booked := make(map[string]struct{})
	for rows.Next() {
		var label string
		if err := rows.Scan(&label); err != nil {
			return nil, err
		}
		booked[label] = struct{}{}
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return booked, nil
}

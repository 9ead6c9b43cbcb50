// Package availability tracks which slots are already consumed by
// non-cancelled appointments, per doctor per date.
package availability

import (
	"context"

	"github.com/google/uuid"
)

// Index is the ground truth of reserved slots. Reserve is the
// compare-and-set primitive: the test-and-insert must be atomic with
// respect to concurrent Reserve/Release calls for the same doctor.
type Index interface {
	// IsBooked reports whether the time label is already reserved.
	IsBooked(ctx context.Context, doctorID uuid.UUID, dateKey, timeLabel string) (bool, error)

	// Reserve marks the label booked. It returns true if the label was
	// free and is now reserved, false if it was already taken.
	Reserve(ctx context.Context, doctorID uuid.UUID, dateKey, timeLabel string) (bool, error)

	// Release frees the label. Releasing an absent label is a no-op.
	Release(ctx context.Context, doctorID uuid.UUID, dateKey, timeLabel string) error

	// Booked returns every reserved label for the doctor on that date.
	Booked(ctx context.Context, doctorID uuid.UUID, dateKey string) (map[string]struct{}, error)
}

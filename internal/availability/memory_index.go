package availability

import (
	"context"
	"sync"

	"github.com/google/uuid"
)

// MemoryIndex keeps reserved slots in process memory behind a single
// mutex. Suitable for a single-instance deployment and for tests; the
// multi-instance deployment uses PgIndex.
type MemoryIndex struct {
	mu     sync.Mutex
	booked map[uuid.UUID]map[string]map[string]struct{} // doctor -> date key -> labels
}

func NewMemoryIndex() *MemoryIndex {
	return &MemoryIndex{
		booked: make(map[uuid.UUID]map[string]map[string]struct{}),
	}
}

func (i *MemoryIndex) IsBooked(_ context.Context, doctorID uuid.UUID, dateKey, timeLabel string) (bool, error) {
	i.mu.Lock()
	defer i.mu.Unlock()

	labels, ok := i.booked[doctorID][dateKey]
	if !ok {
		return false, nil
	}
	_, booked := labels[timeLabel]
	return booked, nil
}

func (i *MemoryIndex) Reserve(_ context.Context, doctorID uuid.UUID, dateKey, timeLabel string) (bool, error) {
	i.mu.Lock()
	defer i.mu.Unlock()

	dates, ok := i.booked[doctorID]
	if !ok {
		dates = make(map[string]map[string]struct{})
		i.booked[doctorID] = dates
	}
	labels, ok := dates[dateKey]
	if !ok {
		labels = make(map[string]struct{})
		dates[dateKey] = labels
	}

	if _, taken := labels[timeLabel]; taken {
		return false, nil
	}
	labels[timeLabel] = struct{}{}
	return true, nil
}

func (i *MemoryIndex) Release(_ context.Context, doctorID uuid.UUID, dateKey, timeLabel string) error {
	i.mu.Lock()
	defer i.mu.Unlock()

	if labels, ok := i.booked[doctorID][dateKey]; ok {
		delete(labels, timeLabel)
	}
	return nil
}

func (i *MemoryIndex) Booked(_ context.Context, doctorID uuid.UUID, dateKey string) (map[string]struct{}, error) {
	i.mu.Lock()
	defer i.mu.Unlock()

	out := make(map[string]struct{})
	for label := range i.booked[doctorID][dateKey] {
		out[label] = struct{}{}
	}
	return out, nil
}

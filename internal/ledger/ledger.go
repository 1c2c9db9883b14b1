// Package ledger computes remaining slot capacity from committed reservations.
package ledger

import (
	"context"
	"fmt"
)

// GuestCounter sums committed guests for a date+slot.
type GuestCounter interface {
	SumActiveGuests(ctx context.Context, day, slotStart string) (int, error)
}

// Ledger derives remaining capacity; nothing is stored. Capacity is the
// facility-wide aggregate guest maximum per slot.
type Ledger struct {
	counter  GuestCounter
	capacity int
}

func New(counter GuestCounter, capacity int) *Ledger {
	return &Ledger{counter: counter, capacity: capacity}
}

// Capacity returns the configured per-slot guest maximum.
func (l *Ledger) Capacity() int {
	return l.capacity
}

// Remaining returns capacity minus the committed guest sum for the slot,
// never below zero. When committed bookings already exceed capacity (it was
// lowered after they existed) they are honored, not retroactively
// invalidated, and the slot simply reports zero.
func (l *Ledger) Remaining(ctx context.Context, day, slotStart string) (int, error) {
	sum, err := l.counter.SumActiveGuests(ctx, day, slotStart)
	if err != nil {
		return 0, fmt.Errorf("sum guests: %w", err)
	}
	remaining := l.capacity - sum
	if remaining < 0 {
		remaining = 0
	}
	return remaining, nil
}

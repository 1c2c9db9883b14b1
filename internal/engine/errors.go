package engine

import "errors"

// Caller-facing failures. All are non-retryable as-is except ErrBusy: the
// caller must pick a different slot or status, or in the Busy case retry
// with backoff. A failed booking is never silently downgraded to a different
// slot or status.
var (
	// ErrSlotUnavailable means the requested slot is not in the current
	// bookable grid (closed date, outside hours, or outside the booking
	// window).
	ErrSlotUnavailable = errors.New("slot unavailable")

	// ErrCapacityExceeded means the requested guest count does not fit the
	// slot's remaining capacity.
	ErrCapacityExceeded = errors.New("capacity exceeded")

	// ErrInvalidRequest means the request itself is malformed, e.g. a
	// non-positive guest count.
	ErrInvalidRequest = errors.New("invalid request")

	// ErrInvalidTransition means the requested status change is not
	// permitted from the reservation's current state.
	ErrInvalidTransition = errors.New("invalid transition")

	// ErrBusy means the per-slot serialization unit could not be acquired
	// in time. Transient; retryable with backoff.
	ErrBusy = errors.New("slot busy, try again")

	// ErrNotFound means the reservation does not exist.
	ErrNotFound = errors.New("reservation not found")
)

// Package engine is the scheduling facade: it orchestrates the availability
// resolver, the capacity ledger and the reservation state machine, and is the
// sole authority over a reservation's status field.
package engine

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"clubsched/internal/db"
	"clubsched/internal/events"
	"clubsched/internal/locks"
	"clubsched/internal/metrics"
	"clubsched/internal/model"
	"clubsched/internal/schedule"
)

// Store is the persistence collaborator. It is the single source of truth
// for existing reservations; the engine issues reads and writes against it
// but does not define its schema or transport.
type Store interface {
	GetReservation(ctx context.Context, id int64) (*model.Reservation, error)
	InsertReservationIfCapacity(ctx context.Context, r *model.Reservation, capacity int) (bool, error)
	UpdateReservationStatus(ctx context.Context, id, version int64, status string) error
	SumActiveGuests(ctx context.Context, day, slotStart string) (int, error)
	ListReservationsByDay(ctx context.Context, day string) ([]model.Reservation, error)
}

// Availability lists bookable slots for a date.
type Availability interface {
	ListSlots(ctx context.Context, day string) ([]schedule.Slot, error)
	HasSlot(ctx context.Context, day, slotStart string) (bool, error)
}

// Capacity reports remaining slot capacity.
type Capacity interface {
	Capacity() int
	Remaining(ctx context.Context, day, slotStart string) (int, error)
}

// Publisher emits outbound notifications for successful transitions.
type Publisher interface {
	Publish(events.Event)
}

// Options tune facade behavior.
type Options struct {
	// AutoConfirm sets new reservations to confirmed instead of pending.
	AutoConfirm bool
	// LockTimeout bounds acquisition of the per-slot serialization unit.
	LockTimeout time.Duration
	// BusyRetries is how many times a contended operation is re-attempted
	// internally before surfacing ErrBusy.
	BusyRetries int
	// BusyBackoff is the pause between internal retries.
	BusyBackoff time.Duration
}

// Engine is the stateless scheduling facade. Every call re-resolves from
// current rules and current reservations; nothing is cached across calls.
type Engine struct {
	store  Store
	avail  Availability
	ledger Capacity
	locks  *locks.KeyedMutex
	bus    Publisher
	logger *zerolog.Logger
	opts   Options
}

// New creates the facade. bus may be nil when no collaborator listens.
func New(store Store, avail Availability, ledger Capacity, bus Publisher, opts Options, logger *zerolog.Logger) *Engine {
	if opts.LockTimeout <= 0 {
		opts.LockTimeout = 2 * time.Second
	}
	if opts.BusyRetries < 0 {
		opts.BusyRetries = 0
	}
	if opts.BusyBackoff <= 0 {
		opts.BusyBackoff = 50 * time.Millisecond
	}
	return &Engine{
		store:  store,
		avail:  avail,
		ledger: ledger,
		locks:  locks.NewKeyedMutex(),
		bus:    bus,
		logger: logger,
		opts:   opts,
	}
}

// Request is a validated booking attempt supplied by the caller.
type Request struct {
	Day            string `json:"day"`
	SlotStart      string `json:"slot_start"`
	Guests         int    `json:"guests"`
	MemberRef      string `json:"member_ref"`
	SpecialRequest string `json:"special_request,omitempty"`
}

// OpenSlot is one bookable slot with its remaining capacity.
type OpenSlot struct {
	Start     string `json:"start"`
	End       string `json:"end"`
	Remaining int    `json:"remaining"`
}

// OpenSlots lists the currently bookable slots for a date with remaining
// capacity. A closed date yields an empty list.
func (e *Engine) OpenSlots(ctx context.Context, day string) ([]OpenSlot, error) {
	metrics.IncSlotQueries()

	slots, err := e.avail.ListSlots(ctx, day)
	if err != nil {
		return nil, err
	}

	open := make([]OpenSlot, 0, len(slots))
	for _, s := range slots {
		remaining, err := e.ledger.Remaining(ctx, day, s.StartID())
		if err != nil {
			return nil, err
		}
		open = append(open, OpenSlot{
			Start:     s.Start.Format("15:04"),
			End:       s.End.Format("15:04"),
			Remaining: remaining,
		})
	}
	return open, nil
}

// Book validates and commits a new reservation. The capacity check and the
// insert run under the slot's serialization key, so concurrent attempts at
// the last capacity unit cannot both succeed.
func (e *Engine) Book(ctx context.Context, req Request) (*model.Reservation, error) {
	start := time.Now()
	defer func() {
		metrics.ObserveBookDuration(time.Since(start).Seconds())
	}()

	key := model.SlotKey(req.Day, req.SlotStart)
	release, err := e.acquire(ctx, key)
	if err != nil {
		metrics.IncReservationRejected("busy")
		return nil, err
	}
	defer release()

	if err := e.runCreateGuards(ctx, req.Day, req.SlotStart, req.Guests); err != nil {
		return nil, err
	}

	status := model.StatusPending
	if e.opts.AutoConfirm {
		status = model.StatusConfirmed
	}

	r := &model.Reservation{
		Ref:            uuid.New().String(),
		MemberRef:      req.MemberRef,
		Day:            req.Day,
		SlotStart:      req.SlotStart,
		Guests:         req.Guests,
		Status:         status,
		SpecialRequest: req.SpecialRequest,
	}

	ok, err := e.store.InsertReservationIfCapacity(ctx, r, e.ledger.Capacity())
	if err != nil {
		return nil, fmt.Errorf("persist reservation: %w", err)
	}
	if !ok {
		metrics.IncReservationRejected("capacity")
		return nil, fmt.Errorf("%s %s: %w", req.Day, req.SlotStart, ErrCapacityExceeded)
	}

	metrics.IncReservationCreated(status)
	e.publish(fmt.Sprintf("reservation %s created (%s) for %s on %s %s, %d guests",
		shortRef(r.Ref), status, r.MemberRef, r.Day, r.SlotStart, r.Guests))
	if e.logger != nil {
		e.logger.Info().Str("ref", r.Ref).Str("day", r.Day).Str("slot", r.SlotStart).
			Int("guests", r.Guests).Str("status", status).Msg("reservation created")
	}
	return r, nil
}

// ChangeStatus moves a reservation to the target status. Confirm and cancel
// are unconditional; reactivation out of cancelled re-runs the full create
// guard set because availability or capacity may have changed. On any guard
// failure the reservation is left untouched.
func (e *Engine) ChangeStatus(ctx context.Context, id int64, target string) (*model.Reservation, error) {
	r, err := e.store.GetReservation(ctx, id)
	if err != nil {
		if errors.Is(err, db.ErrNotFound) {
			return nil, fmt.Errorf("reservation %d: %w", id, ErrNotFound)
		}
		return nil, err
	}

	if !model.KnownStatus(target) || !canTransition(r.Status, target) {
		return nil, fmt.Errorf("%s -> %s: %w", r.Status, target, ErrInvalidTransition)
	}

	release, err := e.acquire(ctx, r.SlotKey())
	if err != nil {
		return nil, err
	}
	defer release()

	// Reactivation counts as a fresh booking attempt.
	if r.Status == model.StatusCancelled {
		if err := e.runCreateGuards(ctx, r.Day, r.SlotStart, r.Guests); err != nil {
			return nil, err
		}
	}

	if err := e.store.UpdateReservationStatus(ctx, r.ID, r.Version, target); err != nil {
		if errors.Is(err, db.ErrVersionConflict) {
			return nil, fmt.Errorf("reservation %d: %w", id, ErrBusy)
		}
		return nil, err
	}

	updated, err := e.store.GetReservation(ctx, id)
	if err != nil {
		return nil, err
	}

	metrics.IncStatusTransition(target)
	e.publish(fmt.Sprintf("reservation %s %s for %s on %s %s",
		shortRef(updated.Ref), target, updated.MemberRef, updated.Day, updated.SlotStart))
	if e.logger != nil {
		e.logger.Info().Int64("id", id).Str("from", r.Status).Str("to", target).Msg("reservation status changed")
	}
	return updated, nil
}

// ReservationsForDay returns every reservation for a date, cancelled included.
func (e *Engine) ReservationsForDay(ctx context.Context, day string) ([]model.Reservation, error) {
	return e.store.ListReservationsByDay(ctx, day)
}

// runCreateGuards applies the create guard set in order: slot availability,
// capacity, then guest count sanity.
func (e *Engine) runCreateGuards(ctx context.Context, day, slotStart string, guests int) error {
	ok, err := e.avail.HasSlot(ctx, day, slotStart)
	if err != nil {
		return err
	}
	if !ok {
		metrics.IncReservationRejected("slot")
		return fmt.Errorf("%s %s: %w", day, slotStart, ErrSlotUnavailable)
	}

	remaining, err := e.ledger.Remaining(ctx, day, slotStart)
	if err != nil {
		return err
	}
	if guests > remaining {
		metrics.IncReservationRejected("capacity")
		return fmt.Errorf("%s %s: %d guests requested, %d remaining: %w", day, slotStart, guests, remaining, ErrCapacityExceeded)
	}

	if guests < 1 {
		metrics.IncReservationRejected("invalid")
		return fmt.Errorf("guest count %d: %w", guests, ErrInvalidRequest)
	}
	return nil
}

// acquire takes the per-slot serialization unit, retrying a bounded number
// of times before giving up with ErrBusy.
func (e *Engine) acquire(ctx context.Context, key string) (func(), error) {
	attempts := e.opts.BusyRetries + 1
	for i := 0; i < attempts; i++ {
		lockCtx, cancel := context.WithTimeout(ctx, e.opts.LockTimeout)
		release, err := e.locks.Acquire(lockCtx, key)
		cancel()
		if err == nil {
			return release, nil
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		if i < attempts-1 {
			select {
			case <-time.After(e.opts.BusyBackoff):
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}
	}
	return nil, fmt.Errorf("slot %s: %w", key, ErrBusy)
}

func (e *Engine) publish(description string) {
	if e.bus == nil {
		return
	}
	e.bus.Publish(events.Event{
		Type:        events.TypeReservation,
		Description: description,
		CreatedAt:   time.Now(),
	})
}

func shortRef(ref string) string {
	if len(ref) > 8 {
		return ref[:8]
	}
	return ref
}

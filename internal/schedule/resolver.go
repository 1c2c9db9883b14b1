package schedule

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Slot is one bookable interval within a date's effective hours.
type Slot struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// StartID returns the slot identifier used in reservations ("10:00").
func (s Slot) StartID() string {
	return s.Start.Format("15:04")
}

// Params configures slot expansion and the booking window.
type Params struct {
	SlotDuration time.Duration
	MinNotice    time.Duration
	MaxAdvance   time.Duration
	Location     *time.Location
}

// HoursSource resolves effective hours for a date.
type HoursSource interface {
	EffectiveHours(ctx context.Context, day string) (DayHours, error)
}

// Resolver expands effective hours into the ordered slot grid and applies
// the booking-window policy. All times are computed in the facility's
// configured timezone, not the caller's.
type Resolver struct {
	store  HoursSource
	params Params
	now    func() time.Time
}

// NewResolver creates a resolver over a rule store.
func NewResolver(store HoursSource, params Params) *Resolver {
	if params.Location == nil {
		params.Location = time.UTC
	}
	return &Resolver{store: store, params: params, now: time.Now}
}

// SetClock overrides the time source. Used in tests.
func (r *Resolver) SetClock(now func() time.Time) {
	r.now = now
}

// ListSlots returns the bookable slots for a date, ordered by start time.
// Starting at the effective open time, the cursor steps forward by the slot
// duration; a slot is emitted only when it fits entirely before close, so a
// trailing partial slot is dropped rather than truncated. Candidates outside
// the booking window (too soon or too far ahead) are excluded. A closed date
// yields an empty list and no error.
func (r *Resolver) ListSlots(ctx context.Context, day string) ([]Slot, error) {
	hours, err := r.store.EffectiveHours(ctx, day)
	if err != nil {
		return nil, err
	}
	if hours.Closed {
		return nil, nil
	}

	date, err := time.ParseInLocation("2006-01-02", day, r.params.Location)
	if err != nil {
		return nil, fmt.Errorf("parse day %q: %w", day, err)
	}

	open, err := parseTimeOnDate(date, hours.OpenTime)
	if err != nil {
		return nil, fmt.Errorf("parse open time: %w", err)
	}
	close, err := parseTimeOnDate(date, hours.CloseTime)
	if err != nil {
		return nil, fmt.Errorf("parse close time: %w", err)
	}
	if !open.Before(close) {
		return nil, &ConfigError{Reason: fmt.Sprintf("open %s not before close %s", hours.OpenTime, hours.CloseTime)}
	}

	now := r.now().In(r.params.Location)
	earliest := now.Add(r.params.MinNotice)
	latest := now.Add(r.params.MaxAdvance)

	var slots []Slot
	for cursor := open; !cursor.Add(r.params.SlotDuration).After(close); cursor = cursor.Add(r.params.SlotDuration) {
		if cursor.Before(earliest) || cursor.After(latest) {
			continue
		}
		slots = append(slots, Slot{Start: cursor, End: cursor.Add(r.params.SlotDuration)})
	}
	return slots, nil
}

// HasSlot reports whether slotStart ("10:00") is currently bookable on day.
func (r *Resolver) HasSlot(ctx context.Context, day, slotStart string) (bool, error) {
	slots, err := r.ListSlots(ctx, day)
	if err != nil {
		return false, err
	}
	for _, s := range slots {
		if s.StartID() == slotStart {
			return true, nil
		}
	}
	return false, nil
}

func parseTimeOnDate(date time.Time, timeStr string) (time.Time, error) {
	parts := strings.Split(timeStr, ":")
	if len(parts) < 2 {
		return time.Time{}, fmt.Errorf("invalid time format: %s", timeStr)
	}

	hour, err := strconv.Atoi(parts[0])
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid hour: %w", err)
	}

	minute, err := strconv.Atoi(parts[1])
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid minute: %w", err)
	}

	return time.Date(date.Year(), date.Month(), date.Day(), hour, minute, 0, 0, date.Location()), nil
}

package engine

import (
	"context"
	"fmt"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"clubsched/internal/db"
	"clubsched/internal/ledger"
	"clubsched/internal/model"
	"clubsched/internal/schedule"
)

// memStore is an in-memory Store for exercising the facade without sqlite.
type memStore struct {
	mu    sync.Mutex
	seq   int64
	rows  map[int64]*model.Reservation
	onSum func() // optional hook, called during SumActiveGuests
}

func newMemStore() *memStore {
	return &memStore{rows: make(map[int64]*model.Reservation)}
}

func (m *memStore) GetReservation(ctx context.Context, id int64) (*model.Reservation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.rows[id]
	if !ok {
		return nil, db.ErrNotFound
	}
	cp := *r
	return &cp, nil
}

func (m *memStore) sumLocked(day, slotStart string) int {
	sum := 0
	for _, r := range m.rows {
		if r.Day == day && r.SlotStart == slotStart && r.Status != model.StatusCancelled {
			sum += r.Guests
		}
	}
	return sum
}

func (m *memStore) SumActiveGuests(ctx context.Context, day, slotStart string) (int, error) {
	if m.onSum != nil {
		m.onSum()
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.sumLocked(day, slotStart), nil
}

func (m *memStore) InsertReservationIfCapacity(ctx context.Context, r *model.Reservation, capacity int) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.sumLocked(r.Day, r.SlotStart)+r.Guests > capacity {
		return false, nil
	}
	m.seq++
	now := time.Now()
	r.ID = m.seq
	r.CreatedAt = now
	r.UpdatedAt = now
	r.Version = 1
	cp := *r
	m.rows[r.ID] = &cp
	return true, nil
}

func (m *memStore) UpdateReservationStatus(ctx context.Context, id, version int64, status string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.rows[id]
	if !ok {
		return db.ErrNotFound
	}
	if r.Version != version {
		return db.ErrVersionConflict
	}
	r.Status = status
	r.Version++
	r.UpdatedAt = time.Now()
	return nil
}

func (m *memStore) ListReservationsByDay(ctx context.Context, day string) ([]model.Reservation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []model.Reservation
	for _, r := range m.rows {
		if r.Day == day {
			out = append(out, *r)
		}
	}
	return out, nil
}

// fakeAvail lists a fixed hourly slot grid per day.
type fakeAvail struct {
	slots map[string][]string // day -> slot starts
}

func (f *fakeAvail) ListSlots(ctx context.Context, day string) ([]schedule.Slot, error) {
	starts, ok := f.slots[day]
	if !ok {
		return nil, nil
	}
	date, err := time.Parse("2006-01-02", day)
	if err != nil {
		return nil, err
	}
	var slots []schedule.Slot
	for _, s := range starts {
		hhmm, err := time.Parse("15:04", s)
		if err != nil {
			return nil, err
		}
		start := date.Add(time.Duration(hhmm.Hour())*time.Hour + time.Duration(hhmm.Minute())*time.Minute)
		slots = append(slots, schedule.Slot{Start: start, End: start.Add(time.Hour)})
	}
	return slots, nil
}

func (f *fakeAvail) HasSlot(ctx context.Context, day, slotStart string) (bool, error) {
	for _, s := range f.slots[day] {
		if s == slotStart {
			return true, nil
		}
	}
	return false, nil
}

func newTestEngine(t *testing.T, store *memStore, capacity int, opts Options) *Engine {
	t.Helper()
	avail := &fakeAvail{slots: map[string][]string{
		"2026-09-02": {"09:00", "10:00", "11:00"},
	}}
	logger := zerolog.New(io.Discard)
	return New(store, avail, ledger.New(store, capacity), nil, opts, &logger)
}

func TestBook(t *testing.T) {
	ctx := context.Background()

	t.Run("PendingByDefault", func(t *testing.T) {
		store := newMemStore()
		eng := newTestEngine(t, store, 4, Options{})

		r, err := eng.Book(ctx, Request{Day: "2026-09-02", SlotStart: "10:00", Guests: 2, MemberRef: "M-17"})
		require.NoError(t, err)
		assert.Equal(t, model.StatusPending, r.Status)
		assert.NotEmpty(t, r.Ref)
		assert.NotZero(t, r.ID)
	})

	t.Run("AutoConfirm", func(t *testing.T) {
		store := newMemStore()
		eng := newTestEngine(t, store, 4, Options{AutoConfirm: true})

		r, err := eng.Book(ctx, Request{Day: "2026-09-02", SlotStart: "09:00", Guests: 4, MemberRef: "M-17"})
		require.NoError(t, err)
		assert.Equal(t, model.StatusConfirmed, r.Status)
	})

	t.Run("SlotUnavailable", func(t *testing.T) {
		store := newMemStore()
		eng := newTestEngine(t, store, 4, Options{})

		_, err := eng.Book(ctx, Request{Day: "2026-09-02", SlotStart: "23:00", Guests: 1, MemberRef: "M-17"})
		assert.ErrorIs(t, err, ErrSlotUnavailable)

		_, err = eng.Book(ctx, Request{Day: "2026-09-03", SlotStart: "10:00", Guests: 1, MemberRef: "M-17"})
		assert.ErrorIs(t, err, ErrSlotUnavailable)
	})

	t.Run("SlotGuardRunsBeforeGuestGuard", func(t *testing.T) {
		store := newMemStore()
		eng := newTestEngine(t, store, 4, Options{})

		// Bad guest count on an unavailable slot still reports the slot first.
		_, err := eng.Book(ctx, Request{Day: "2026-09-02", SlotStart: "23:00", Guests: 0, MemberRef: "M-17"})
		assert.ErrorIs(t, err, ErrSlotUnavailable)
	})

	t.Run("InvalidGuestCount", func(t *testing.T) {
		store := newMemStore()
		eng := newTestEngine(t, store, 4, Options{})

		_, err := eng.Book(ctx, Request{Day: "2026-09-02", SlotStart: "10:00", Guests: 0, MemberRef: "M-17"})
		assert.ErrorIs(t, err, ErrInvalidRequest)
	})

	t.Run("CapacityExceeded", func(t *testing.T) {
		store := newMemStore()
		eng := newTestEngine(t, store, 4, Options{})

		_, err := eng.Book(ctx, Request{Day: "2026-09-02", SlotStart: "10:00", Guests: 4, MemberRef: "M-17"})
		require.NoError(t, err)

		// Slot is at capacity; a fifth guest does not fit.
		_, err = eng.Book(ctx, Request{Day: "2026-09-02", SlotStart: "10:00", Guests: 1, MemberRef: "M-18"})
		assert.ErrorIs(t, err, ErrCapacityExceeded)

		// Another slot on the same day is unaffected.
		_, err = eng.Book(ctx, Request{Day: "2026-09-02", SlotStart: "11:00", Guests: 1, MemberRef: "M-18"})
		assert.NoError(t, err)
	})

	t.Run("CancelReleasesCapacity", func(t *testing.T) {
		store := newMemStore()
		eng := newTestEngine(t, store, 4, Options{})

		first, err := eng.Book(ctx, Request{Day: "2026-09-02", SlotStart: "10:00", Guests: 4, MemberRef: "M-17"})
		require.NoError(t, err)

		_, err = eng.ChangeStatus(ctx, first.ID, model.StatusCancelled)
		require.NoError(t, err)

		// The freed capacity is bookable by a different member.
		second, err := eng.Book(ctx, Request{Day: "2026-09-02", SlotStart: "10:00", Guests: 4, MemberRef: "M-99"})
		require.NoError(t, err)
		assert.Equal(t, "M-99", second.MemberRef)
	})
}

func TestChangeStatus(t *testing.T) {
	ctx := context.Background()

	t.Run("ConfirmPending", func(t *testing.T) {
		store := newMemStore()
		eng := newTestEngine(t, store, 4, Options{})

		r, err := eng.Book(ctx, Request{Day: "2026-09-02", SlotStart: "10:00", Guests: 2, MemberRef: "M-17"})
		require.NoError(t, err)

		updated, err := eng.ChangeStatus(ctx, r.ID, model.StatusConfirmed)
		require.NoError(t, err)
		assert.Equal(t, model.StatusConfirmed, updated.Status)
	})

	t.Run("InvalidTransitions", func(t *testing.T) {
		store := newMemStore()
		eng := newTestEngine(t, store, 4, Options{})

		r, err := eng.Book(ctx, Request{Day: "2026-09-02", SlotStart: "10:00", Guests: 2, MemberRef: "M-17"})
		require.NoError(t, err)

		// pending -> pending
		_, err = eng.ChangeStatus(ctx, r.ID, model.StatusPending)
		assert.ErrorIs(t, err, ErrInvalidTransition)

		// unrecognized target
		_, err = eng.ChangeStatus(ctx, r.ID, "archived")
		assert.ErrorIs(t, err, ErrInvalidTransition)

		// cancelled -> cancelled
		_, err = eng.ChangeStatus(ctx, r.ID, model.StatusCancelled)
		require.NoError(t, err)
		_, err = eng.ChangeStatus(ctx, r.ID, model.StatusCancelled)
		assert.ErrorIs(t, err, ErrInvalidTransition)

		// state untouched by the failed transition
		got, err := store.GetReservation(ctx, r.ID)
		require.NoError(t, err)
		assert.Equal(t, model.StatusCancelled, got.Status)
	})

	t.Run("NotFound", func(t *testing.T) {
		store := newMemStore()
		eng := newTestEngine(t, store, 4, Options{})

		_, err := eng.ChangeStatus(ctx, 404, model.StatusConfirmed)
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("ReactivateSucceedsWithCapacity", func(t *testing.T) {
		store := newMemStore()
		eng := newTestEngine(t, store, 4, Options{})

		r, err := eng.Book(ctx, Request{Day: "2026-09-02", SlotStart: "10:00", Guests: 2, MemberRef: "M-17"})
		require.NoError(t, err)
		_, err = eng.ChangeStatus(ctx, r.ID, model.StatusCancelled)
		require.NoError(t, err)

		updated, err := eng.ChangeStatus(ctx, r.ID, model.StatusConfirmed)
		require.NoError(t, err)
		assert.Equal(t, model.StatusConfirmed, updated.Status)
	})

	t.Run("ReactivateFailsWhenSlotFilled", func(t *testing.T) {
		store := newMemStore()
		eng := newTestEngine(t, store, 4, Options{})

		r, err := eng.Book(ctx, Request{Day: "2026-09-02", SlotStart: "10:00", Guests: 3, MemberRef: "M-17"})
		require.NoError(t, err)
		_, err = eng.ChangeStatus(ctx, r.ID, model.StatusCancelled)
		require.NoError(t, err)

		// Someone else takes the slot while it is cancelled.
		_, err = eng.Book(ctx, Request{Day: "2026-09-02", SlotStart: "10:00", Guests: 4, MemberRef: "M-99"})
		require.NoError(t, err)

		_, err = eng.ChangeStatus(ctx, r.ID, model.StatusPending)
		assert.ErrorIs(t, err, ErrCapacityExceeded)

		got, err := store.GetReservation(ctx, r.ID)
		require.NoError(t, err)
		assert.Equal(t, model.StatusCancelled, got.Status, "failed reactivation must leave it cancelled")
	})
}

func TestOpenSlots(t *testing.T) {
	ctx := context.Background()
	store := newMemStore()
	eng := newTestEngine(t, store, 4, Options{})

	_, err := eng.Book(ctx, Request{Day: "2026-09-02", SlotStart: "10:00", Guests: 3, MemberRef: "M-17"})
	require.NoError(t, err)

	slots, err := eng.OpenSlots(ctx, "2026-09-02")
	require.NoError(t, err)
	require.Len(t, slots, 3)
	assert.Equal(t, 4, slots[0].Remaining)
	assert.Equal(t, "09:00", slots[0].Start)
	assert.Equal(t, 1, slots[1].Remaining)
	assert.Equal(t, 4, slots[2].Remaining)

	again, err := eng.OpenSlots(ctx, "2026-09-02")
	require.NoError(t, err)
	assert.Equal(t, slots, again, "identical with no intervening state change")
}

func TestBookBusy(t *testing.T) {
	ctx := context.Background()
	store := newMemStore()

	holding := make(chan struct{})
	proceed := make(chan struct{})
	var once sync.Once
	store.onSum = func() {
		once.Do(func() {
			close(holding)
			<-proceed
		})
	}

	eng := newTestEngine(t, store, 4, Options{LockTimeout: 50 * time.Millisecond, BusyRetries: 0})

	done := make(chan error, 1)
	go func() {
		_, err := eng.Book(ctx, Request{Day: "2026-09-02", SlotStart: "10:00", Guests: 1, MemberRef: "M-1"})
		done <- err
	}()

	<-holding // first booking holds the slot key inside its guards

	_, err := eng.Book(ctx, Request{Day: "2026-09-02", SlotStart: "10:00", Guests: 1, MemberRef: "M-2"})
	assert.ErrorIs(t, err, ErrBusy)

	close(proceed)
	require.NoError(t, <-done)
}

func TestConcurrentBookingNoOvercommit(t *testing.T) {
	ctx := context.Background()
	const capacity = 4
	const callers = 10

	store := newMemStore()
	eng := newTestEngine(t, store, capacity, Options{LockTimeout: 2 * time.Second})

	var wg sync.WaitGroup
	errs := make(chan error, callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			_, err := eng.Book(ctx, Request{
				Day: "2026-09-02", SlotStart: "10:00", Guests: 1,
				MemberRef: fmt.Sprintf("M-%d", n),
			})
			errs <- err
		}(i)
	}
	wg.Wait()
	close(errs)

	succeeded, capacityFailed := 0, 0
	for err := range errs {
		switch {
		case err == nil:
			succeeded++
		case assert.ErrorIs(t, err, ErrCapacityExceeded):
			capacityFailed++
		}
	}
	assert.Equal(t, capacity, succeeded)
	assert.Equal(t, callers-capacity, capacityFailed)

	sum, err := store.SumActiveGuests(ctx, "2026-09-02", "10:00")
	require.NoError(t, err)
	assert.Equal(t, capacity, sum, "zero over-commit")
}

package db

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"clubsched/internal/model"
)

func scanReservation(row interface{ Scan(...any) error }) (*model.Reservation, error) {
	var r model.Reservation
	var special sql.NullString
	err := row.Scan(
		&r.ID, &r.Ref, &r.MemberRef, &r.Day, &r.SlotStart, &r.Guests,
		&r.Status, &special, &r.CreatedAt, &r.UpdatedAt, &r.Version,
	)
	if err != nil {
		return nil, err
	}
	r.SpecialRequest = special.String
	return &r, nil
}

const reservationColumns = `id, ref, member_ref, day, slot_start, guests, status, special_request, created_at, updated_at, version`

// GetReservation returns a reservation by id, or ErrNotFound.
func (db *DB) GetReservation(ctx context.Context, id int64) (*model.Reservation, error) {
	row := db.QueryRowContext(ctx,
		`SELECT `+reservationColumns+` FROM reservations WHERE id = ?`, id)
	r, err := scanReservation(row)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get reservation %d: %w", id, err)
	}
	return r, nil
}

// SumActiveGuests returns the committed guest count for a date+slot over all
// non-cancelled reservations.
func (db *DB) SumActiveGuests(ctx context.Context, day, slotStart string) (int, error) {
	var sum int
	err := db.QueryRowContext(ctx, `
		SELECT COALESCE(SUM(guests), 0) FROM reservations
		WHERE day = ? AND slot_start = ? AND status != ?`,
		day, slotStart, model.StatusCancelled,
	).Scan(&sum)
	if err != nil {
		return 0, fmt.Errorf("sum guests %s %s: %w", day, slotStart, err)
	}
	return sum, nil
}

// InsertReservationIfCapacity inserts the reservation only if the committed
// guest sum for its slot plus its own guests stays within capacity. The
// check and the insert run in one transaction, so two concurrent inserts
// against the last capacity unit cannot both succeed. Returns false when the
// slot is full.
func (db *DB) InsertReservationIfCapacity(ctx context.Context, r *model.Reservation, capacity int) (bool, error) {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	var sum int
	err = tx.QueryRowContext(ctx, `
		SELECT COALESCE(SUM(guests), 0) FROM reservations
		WHERE day = ? AND slot_start = ? AND status != ?`,
		r.Day, r.SlotStart, model.StatusCancelled,
	).Scan(&sum)
	if err != nil {
		return false, fmt.Errorf("recheck capacity: %w", err)
	}
	if sum+r.Guests > capacity {
		return false, nil
	}

	now := time.Now()
	res, err := tx.ExecContext(ctx, `
		INSERT INTO reservations (ref, member_ref, day, slot_start, guests, status, special_request, created_at, updated_at, version)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, 1)`,
		r.Ref, r.MemberRef, r.Day, r.SlotStart, r.Guests, r.Status, r.SpecialRequest, now, now,
	)
	if err != nil {
		return false, fmt.Errorf("insert reservation: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return false, err
	}
	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("commit: %w", err)
	}

	r.ID = id
	r.CreatedAt = now
	r.UpdatedAt = now
	r.Version = 1
	return true, nil
}

// UpdateReservationStatus changes a reservation's status with an optimistic
// version check. Returns ErrVersionConflict when the row was modified since
// the version was read.
func (db *DB) UpdateReservationStatus(ctx context.Context, id, version int64, status string) error {
	res, err := db.ExecContext(ctx, `
		UPDATE reservations
		SET status = ?, updated_at = ?, version = version + 1
		WHERE id = ? AND version = ?`,
		status, time.Now(), id, version,
	)
	if err != nil {
		return fmt.Errorf("update status: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrVersionConflict
	}
	return nil
}

// ListReservationsByDay returns all reservations for a date ordered by slot.
func (db *DB) ListReservationsByDay(ctx context.Context, day string) ([]model.Reservation, error) {
	rows, err := db.QueryContext(ctx,
		`SELECT `+reservationColumns+` FROM reservations WHERE day = ? ORDER BY slot_start, id`, day)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var reservations []model.Reservation
	for rows.Next() {
		r, err := scanReservation(rows)
		if err != nil {
			return nil, err
		}
		reservations = append(reservations, *r)
	}
	return reservations, rows.Err()
}

// ListReservationsBetween returns reservations with day in [from, to].
func (db *DB) ListReservationsBetween(ctx context.Context, from, to string) ([]model.Reservation, error) {
	rows, err := db.QueryContext(ctx,
		`SELECT `+reservationColumns+` FROM reservations WHERE day >= ? AND day <= ? ORDER BY day, slot_start, id`,
		from, to)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var reservations []model.Reservation
	for rows.Next() {
		r, err := scanReservation(rows)
		if err != nil {
			return nil, err
		}
		reservations = append(reservations, *r)
	}
	return reservations, rows.Err()
}

package db

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"clubsched/internal/model"
)

// GetWeekdayRules returns all recurring weekday rules ordered by weekday.
func (db *DB) GetWeekdayRules(ctx context.Context) ([]model.WeekdayRule, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT id, weekday, open_time, close_time, closed, created_at, updated_at
		FROM weekday_rules
		ORDER BY weekday`)
	if err != nil {
		return nil, fmt.Errorf("list weekday rules: %w", err)
	}
	defer rows.Close()

	var rules []model.WeekdayRule
	for rows.Next() {
		var r model.WeekdayRule
		if err := rows.Scan(&r.ID, &r.Weekday, &r.OpenTime, &r.CloseTime, &r.Closed, &r.CreatedAt, &r.UpdatedAt); err != nil {
			return nil, err
		}
		rules = append(rules, r)
	}
	return rules, rows.Err()
}

// UpsertWeekdayRule creates or replaces the rule for one weekday.
func (db *DB) UpsertWeekdayRule(ctx context.Context, r *model.WeekdayRule) error {
	if r == nil {
		return fmt.Errorf("rule is nil")
	}
	now := time.Now()
	_, err := db.ExecContext(ctx, `
		INSERT INTO weekday_rules (weekday, open_time, close_time, closed, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(weekday) DO UPDATE SET
			open_time = excluded.open_time,
			close_time = excluded.close_time,
			closed = excluded.closed,
			updated_at = excluded.updated_at`,
		r.Weekday, r.OpenTime, r.CloseTime, r.Closed, now, now,
	)
	return err
}

// EnsureDefaultWeek seeds a full Monday-Sunday rule set with the given hours
// for any weekday that has no rule yet.
func (db *DB) EnsureDefaultWeek(ctx context.Context, open, close string) error {
	for weekday := 1; weekday <= 7; weekday++ {
		var count int
		err := db.QueryRowContext(ctx,
			"SELECT COUNT(*) FROM weekday_rules WHERE weekday = ?", weekday,
		).Scan(&count)
		if err != nil {
			return fmt.Errorf("check weekday %d: %w", weekday, err)
		}
		if count > 0 {
			continue
		}
		rule := &model.WeekdayRule{Weekday: weekday, OpenTime: open, CloseTime: close}
		if err := db.UpsertWeekdayRule(ctx, rule); err != nil {
			return fmt.Errorf("seed weekday %d: %w", weekday, err)
		}
	}
	return nil
}

// GetOverride returns the override for a date, or ErrNotFound.
func (db *DB) GetOverride(ctx context.Context, day string) (*model.DateOverride, error) {
	var o model.DateOverride
	var openTime, closeTime, reason sql.NullString
	err := db.QueryRowContext(ctx, `
		SELECT id, day, closed, open_time, close_time, reason, created_at, updated_at
		FROM date_overrides
		WHERE day = ?
		LIMIT 1`,
		day,
	).Scan(&o.ID, &o.Day, &o.Closed, &openTime, &closeTime, &reason, &o.CreatedAt, &o.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	o.OpenTime = openTime.String
	o.CloseTime = closeTime.String
	o.Reason = reason.String
	return &o, nil
}

// SetOverride creates or updates the override for a date. An existing
// override for the same date is replaced, so at most one row per date exists.
func (db *DB) SetOverride(ctx context.Context, o *model.DateOverride) error {
	if o == nil {
		return fmt.Errorf("override is nil")
	}
	now := time.Now()
	_, err := db.ExecContext(ctx, `
		INSERT INTO date_overrides (day, closed, open_time, close_time, reason, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(day) DO UPDATE SET
			closed = excluded.closed,
			open_time = excluded.open_time,
			close_time = excluded.close_time,
			reason = excluded.reason,
			updated_at = excluded.updated_at`,
		o.Day, o.Closed, o.OpenTime, o.CloseTime, o.Reason, now, now,
	)
	return err
}

// DeleteOverride removes the override for a date, restoring the weekday rule.
func (db *DB) DeleteOverride(ctx context.Context, day string) error {
	_, err := db.ExecContext(ctx, "DELETE FROM date_overrides WHERE day = ?", day)
	return err
}

// ListOverrides returns all overrides within [from, to] ordered by date.
func (db *DB) ListOverrides(ctx context.Context, from, to string) ([]model.DateOverride, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT id, day, closed, open_time, close_time, reason, created_at, updated_at
		FROM date_overrides
		WHERE day >= ? AND day <= ?
		ORDER BY day`,
		from, to,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var overrides []model.DateOverride
	for rows.Next() {
		var o model.DateOverride
		var openTime, closeTime, reason sql.NullString
		if err := rows.Scan(&o.ID, &o.Day, &o.Closed, &openTime, &closeTime, &reason, &o.CreatedAt, &o.UpdatedAt); err != nil {
			return nil, err
		}
		o.OpenTime = openTime.String
		o.CloseTime = closeTime.String
		o.Reason = reason.String
		overrides = append(overrides, o)
	}
	return overrides, rows.Err()
}

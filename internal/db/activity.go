package db

import (
	"context"
	"fmt"
	"time"

	"clubsched/internal/model"
)

// InsertActivity appends one entry to the activity feed.
func (db *DB) InsertActivity(ctx context.Context, ev *model.ActivityEvent) error {
	if ev == nil {
		return fmt.Errorf("event is nil")
	}
	if ev.CreatedAt.IsZero() {
		ev.CreatedAt = time.Now()
	}
	res, err := db.ExecContext(ctx,
		"INSERT INTO activity_log (type, description, created_at) VALUES (?, ?, ?)",
		ev.Type, ev.Description, ev.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert activity: %w", err)
	}
	ev.ID, _ = res.LastInsertId()
	return nil
}

// ListRecentActivity returns the latest feed entries, newest first.
func (db *DB) ListRecentActivity(ctx context.Context, limit int) ([]model.ActivityEvent, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := db.QueryContext(ctx, `
		SELECT id, type, description, created_at
		FROM activity_log
		ORDER BY created_at DESC, id DESC
		LIMIT ?`,
		limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var events []model.ActivityEvent
	for rows.Next() {
		var ev model.ActivityEvent
		if err := rows.Scan(&ev.ID, &ev.Type, &ev.Description, &ev.CreatedAt); err != nil {
			return nil, err
		}
		events = append(events, ev)
	}
	return events, rows.Err()
}

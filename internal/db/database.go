package db

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"

	_ "github.com/mattn/go-sqlite3"
)

var (
	// ErrNotFound is returned when a requested row does not exist.
	ErrNotFound = errors.New("not found")
	// ErrVersionConflict is returned when an optimistic status update lost
	// the race against a concurrent writer.
	ErrVersionConflict = errors.New("version conflict")
)

// DB wraps sql.DB for the scheduling engine.
type DB struct {
	*sql.DB
}

// New opens the sqlite database at path and runs migrations.
func New(path string) (*DB, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		return nil, fmt.Errorf("enable foreign keys: %w", err)
	}
	if err := createTables(db); err != nil {
		return nil, err
	}
	return &DB{db}, nil
}

func createTables(db *sql.DB) error {
	queries := []string{
		// Recurring weekly hours, one row per weekday (1=Mon .. 7=Sun)
		`CREATE TABLE IF NOT EXISTS weekday_rules (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			weekday INTEGER UNIQUE NOT NULL,
			open_time TEXT NOT NULL,
			close_time TEXT NOT NULL,
			closed BOOLEAN NOT NULL DEFAULT 0,
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
			updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)`,

		// Per-date overrides; one row per date, fully replaces the weekday rule
		`CREATE TABLE IF NOT EXISTS date_overrides (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			day TEXT UNIQUE NOT NULL,
			closed BOOLEAN NOT NULL DEFAULT 0,
			open_time TEXT,
			close_time TEXT,
			reason TEXT,
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
			updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)`,

		// Reservations; rows are never deleted, cancellation is a status
		`CREATE TABLE IF NOT EXISTS reservations (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			ref TEXT UNIQUE NOT NULL,
			member_ref TEXT NOT NULL,
			day TEXT NOT NULL,
			slot_start TEXT NOT NULL,
			guests INTEGER NOT NULL,
			status TEXT NOT NULL DEFAULT 'pending',
			special_request TEXT,
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
			updated_at DATETIME DEFAULT CURRENT_TIMESTAMP,
			version INTEGER NOT NULL DEFAULT 1
		)`,

		// Recent-activity feed entries
		`CREATE TABLE IF NOT EXISTS activity_log (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			type TEXT NOT NULL,
			description TEXT NOT NULL,
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)`,

		// Indexes
		`CREATE INDEX IF NOT EXISTS idx_overrides_day ON date_overrides(day)`,
		`CREATE INDEX IF NOT EXISTS idx_reservations_slot ON reservations(day, slot_start)`,
		`CREATE INDEX IF NOT EXISTS idx_reservations_status ON reservations(status)`,
		`CREATE INDEX IF NOT EXISTS idx_activity_created ON activity_log(created_at)`,
	}

	for _, q := range queries {
		if _, err := db.Exec(q); err != nil {
			return fmt.Errorf("exec migration %s: %w", trimSQL(q), err)
		}
	}
	return nil
}

func trimSQL(s string) string {
	s = strings.TrimSpace(s)
	if len(s) > 60 {
		return s[:60] + "..."
	}
	return s
}

package db

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"
)

// BackupOptions configure the periodic database snapshot.
type BackupOptions struct {
	StoragePath   string
	Interval      time.Duration
	RetentionDays int
}

// Backup copies the SQLite file to the storage path on a fixed interval and
// prunes snapshots older than the retention window.
type Backup struct {
	dbPath string
	opts   BackupOptions
	logger *zerolog.Logger
}

func NewBackup(dbPath string, opts BackupOptions, logger *zerolog.Logger) *Backup {
	if opts.Interval <= 0 {
		opts.Interval = 24 * time.Hour
	}
	return &Backup{dbPath: dbPath, opts: opts, logger: logger}
}

// Run takes an immediate snapshot and then loops until ctx is cancelled.
func (b *Backup) Run(ctx context.Context) {
	if b.logger != nil {
		b.logger.Info().Dur("interval", b.opts.Interval).Str("dir", b.opts.StoragePath).Msg("database backup started")
	}

	if _, err := b.Snapshot(); err != nil && b.logger != nil {
		b.logger.Error().Err(err).Msg("initial backup failed")
	}

	ticker := time.NewTicker(b.opts.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := b.Snapshot(); err != nil && b.logger != nil {
				b.logger.Error().Err(err).Msg("scheduled backup failed")
			}
			b.prune()
		}
	}
}

// Snapshot copies the database file into the storage path and returns the
// snapshot's path.
func (b *Backup) Snapshot() (string, error) {
	if err := os.MkdirAll(b.opts.StoragePath, 0o755); err != nil {
		return "", fmt.Errorf("create backup directory: %w", err)
	}

	name := fmt.Sprintf("clubsched_%s.db", time.Now().Format("20060102_150405"))
	path := filepath.Join(b.opts.StoragePath, name)

	source, err := os.Open(b.dbPath)
	if err != nil {
		return "", err
	}
	defer source.Close()

	dest, err := os.Create(path)
	if err != nil {
		return "", err
	}
	defer dest.Close()

	if _, err := io.Copy(dest, source); err != nil {
		return "", err
	}

	if b.logger != nil {
		b.logger.Info().Str("path", path).Msg("database backup written")
	}
	return path, nil
}

func (b *Backup) prune() {
	if b.opts.RetentionDays <= 0 {
		return
	}

	files, err := os.ReadDir(b.opts.StoragePath)
	if err != nil {
		if b.logger != nil {
			b.logger.Error().Err(err).Msg("read backup directory")
		}
		return
	}

	cutoff := time.Now().AddDate(0, 0, -b.opts.RetentionDays)
	for _, f := range files {
		if f.IsDir() {
			continue
		}
		info, err := f.Info()
		if err != nil {
			continue
		}
		if info.ModTime().Before(cutoff) {
			if b.logger != nil {
				b.logger.Info().Str("file", f.Name()).Msg("pruning old backup")
			}
			os.Remove(filepath.Join(b.opts.StoragePath, f.Name()))
		}
	}
}

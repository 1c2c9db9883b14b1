package audit

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/xuri/excelize/v2"

	"clubsched/internal/model"
)

// Source provides the data included in an export.
type Source interface {
	ListReservationsBetween(ctx context.Context, from, to string) ([]model.Reservation, error)
	ListRecentActivity(ctx context.Context, limit int) ([]model.ActivityEvent, error)
}

// Exporter periodically writes reservations and the activity feed to an
// Excel workbook for offline review.
type Exporter struct {
	src      Source
	dir      string
	interval time.Duration
	logger   *zerolog.Logger

	stopCh  chan struct{}
	wg      sync.WaitGroup
	mu      sync.Mutex
	running bool
}

func NewExporter(src Source, dir string, interval time.Duration, logger *zerolog.Logger) *Exporter {
	if interval <= 0 {
		interval = 24 * time.Hour
	}
	return &Exporter{
		src:      src,
		dir:      dir,
		interval: interval,
		logger:   logger,
		stopCh:   make(chan struct{}),
	}
}

// Start begins the export loop.
func (e *Exporter) Start() {
	e.mu.Lock()
	if e.running {
		e.mu.Unlock()
		return
	}
	e.running = true
	e.mu.Unlock()

	e.wg.Add(1)
	go e.loop()

	if e.logger != nil {
		e.logger.Info().Dur("interval", e.interval).Str("dir", e.dir).Msg("audit exporter started")
	}
}

// Stop gracefully stops the export loop.
func (e *Exporter) Stop() {
	e.mu.Lock()
	if !e.running {
		e.mu.Unlock()
		return
	}
	e.running = false
	e.mu.Unlock()

	close(e.stopCh)
	e.wg.Wait()
}

func (e *Exporter) loop() {
	defer e.wg.Done()

	ticker := time.NewTicker(e.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
			if _, err := e.ExportOnce(ctx); err != nil && e.logger != nil {
				e.logger.Error().Err(err).Msg("audit export failed")
			}
			cancel()
		case <-e.stopCh:
			return
		}
	}
}

// ExportOnce writes one workbook covering the past 31 days of reservations
// plus the recent activity feed, and returns its path.
func (e *Exporter) ExportOnce(ctx context.Context) (string, error) {
	now := time.Now()
	from := now.AddDate(0, 0, -31).Format("2006-01-02")
	to := now.Format("2006-01-02")

	reservations, err := e.src.ListReservationsBetween(ctx, from, to)
	if err != nil {
		return "", fmt.Errorf("list reservations: %w", err)
	}
	activity, err := e.src.ListRecentActivity(ctx, 500)
	if err != nil {
		return "", fmt.Errorf("list activity: %w", err)
	}

	f := excelize.NewFile()
	defer f.Close()

	if err := writeReservationsSheet(f, reservations); err != nil {
		return "", err
	}
	if err := writeActivitySheet(f, activity); err != nil {
		return "", err
	}
	f.DeleteSheet("Sheet1")

	if err := os.MkdirAll(e.dir, 0o755); err != nil {
		return "", err
	}
	path := filepath.Join(e.dir, fmt.Sprintf("reservations_%s.xlsx", now.Format("2006-01-02")))
	if err := f.SaveAs(path); err != nil {
		return "", fmt.Errorf("save workbook: %w", err)
	}

	if e.logger != nil {
		e.logger.Info().Str("path", path).Int("reservations", len(reservations)).Msg("audit export written")
	}
	return path, nil
}

func writeReservationsSheet(f *excelize.File, reservations []model.Reservation) error {
	const sheet = "Reservations"
	if _, err := f.NewSheet(sheet); err != nil {
		return err
	}

	header := []string{"ID", "Ref", "Member", "Date", "Slot", "Guests", "Status", "Special Request", "Created At"}
	if err := writeRow(f, sheet, 1, toAny(header)); err != nil {
		return err
	}
	if err := boldRow(f, sheet, 1, len(header)); err != nil {
		return err
	}

	for i, r := range reservations {
		row := []any{r.ID, r.Ref, r.MemberRef, r.Day, r.SlotStart, r.Guests, r.Status, r.SpecialRequest, r.CreatedAt.Format(time.RFC3339)}
		if err := writeRow(f, sheet, i+2, row); err != nil {
			return err
		}
	}
	return nil
}

func writeActivitySheet(f *excelize.File, activity []model.ActivityEvent) error {
	const sheet = "Activity"
	if _, err := f.NewSheet(sheet); err != nil {
		return err
	}

	header := []string{"ID", "Type", "Description", "Timestamp"}
	if err := writeRow(f, sheet, 1, toAny(header)); err != nil {
		return err
	}
	if err := boldRow(f, sheet, 1, len(header)); err != nil {
		return err
	}

	for i, ev := range activity {
		row := []any{ev.ID, ev.Type, ev.Description, ev.CreatedAt.Format(time.RFC3339)}
		if err := writeRow(f, sheet, i+2, row); err != nil {
			return err
		}
	}
	return nil
}

func writeRow(f *excelize.File, sheet string, row int, values []any) error {
	for i, v := range values {
		cell, err := excelize.CoordinatesToCellName(i+1, row)
		if err != nil {
			return err
		}
		if err := f.SetCellValue(sheet, cell, v); err != nil {
			return err
		}
	}
	return nil
}

func boldRow(f *excelize.File, sheet string, row, cols int) error {
	style, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return err
	}
	startCell, _ := excelize.CoordinatesToCellName(1, row)
	endCell, _ := excelize.CoordinatesToCellName(cols, row)
	return f.SetCellStyle(sheet, startCell, endCell, style)
}

func toAny(ss []string) []any {
	out := make([]any, len(ss))
	for i, s := range ss {
		out[i] = s
	}
	return out
}

package audit

import (
	"context"
	"io"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"clubsched/internal/events"
	"clubsched/internal/model"
)

type memSink struct {
	mu      sync.Mutex
	entries []model.ActivityEvent
}

func (s *memSink) InsertActivity(ctx context.Context, ev *model.ActivityEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = append(s.entries, *ev)
	return nil
}

func TestRecorderAppendsActivity(t *testing.T) {
	sink := &memSink{}
	logger := zerolog.New(io.Discard)
	bus := events.NewBus()
	NewRecorder(sink, &logger).Attach(bus)

	bus.Publish(events.Event{Type: events.TypeReservation, Description: "reservation a1b2c3d4 created"})
	bus.Publish(events.Event{Type: events.TypeReservation, Description: "reservation a1b2c3d4 confirmed"})

	require.Len(t, sink.entries, 2)
	assert.Equal(t, "reservation a1b2c3d4 created", sink.entries[0].Description)
	assert.False(t, sink.entries[0].CreatedAt.IsZero())
}

type fakeSource struct {
	reservations []model.Reservation
	activity     []model.ActivityEvent
}

func (s *fakeSource) ListReservationsBetween(ctx context.Context, from, to string) ([]model.Reservation, error) {
	return s.reservations, nil
}

func (s *fakeSource) ListRecentActivity(ctx context.Context, limit int) ([]model.ActivityEvent, error) {
	return s.activity, nil
}

func TestExportOnce(t *testing.T) {
	src := &fakeSource{
		reservations: []model.Reservation{
			{
				ID:        1,
				Ref:       "9f1c2e44-aaaa-bbbb-cccc-000000000001",
				MemberRef: "M-17",
				Day:       "2026-09-02",
				SlotStart: "10:00",
				Guests:    3,
				Status:    model.StatusConfirmed,
				CreatedAt: time.Now(),
			},
		},
		activity: []model.ActivityEvent{
			{ID: 1, Type: events.TypeReservation, Description: "reservation 9f1c2e44 created", CreatedAt: time.Now()},
		},
	}

	logger := zerolog.New(io.Discard)
	exp := NewExporter(src, t.TempDir(), time.Hour, &logger)

	path, err := exp.ExportOnce(context.Background())
	require.NoError(t, err)

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Greater(t, info.Size(), int64(0))

	f, err := excelize.OpenFile(path)
	require.NoError(t, err)
	defer f.Close()

	assert.Contains(t, f.GetSheetList(), "Reservations")
	assert.Contains(t, f.GetSheetList(), "Activity")

	member, err := f.GetCellValue("Reservations", "C2")
	require.NoError(t, err)
	assert.Equal(t, "M-17", member)

	desc, err := f.GetCellValue("Activity", "C2")
	require.NoError(t, err)
	assert.Equal(t, "reservation 9f1c2e44 created", desc)
}

func TestExporterStartStop(t *testing.T) {
	logger := zerolog.New(io.Discard)
	exp := NewExporter(&fakeSource{}, t.TempDir(), time.Hour, &logger)

	exp.Start()
	exp.Start() // second Start is a no-op
	exp.Stop()
	exp.Stop() // second Stop is a no-op
}

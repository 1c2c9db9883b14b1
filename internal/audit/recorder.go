// Package audit records engine activity and exports periodic reports.
package audit

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"clubsched/internal/events"
	"clubsched/internal/model"
)

// Sink stores activity feed entries.
type Sink interface {
	InsertActivity(ctx context.Context, ev *model.ActivityEvent) error
}

// Recorder subscribes to the event bus and appends every reservation event
// to the activity feed shown on the admin dashboard.
type Recorder struct {
	sink   Sink
	logger *zerolog.Logger
}

func NewRecorder(sink Sink, logger *zerolog.Logger) *Recorder {
	return &Recorder{sink: sink, logger: logger}
}

// Attach subscribes the recorder to reservation events.
func (r *Recorder) Attach(bus *events.Bus) {
	bus.Subscribe(events.TypeReservation, r.handle)
}

func (r *Recorder) handle(ev events.Event) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	entry := &model.ActivityEvent{
		Type:        ev.Type,
		Description: ev.Description,
		CreatedAt:   ev.CreatedAt,
	}
	if err := r.sink.InsertActivity(ctx, entry); err != nil && r.logger != nil {
		r.logger.Error().Err(err).Str("description", ev.Description).Msg("record activity")
	}
}

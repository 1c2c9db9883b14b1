package events

import (
	"testing"
	"time"
)

func TestPublishSubscribe(t *testing.T) {
	bus := NewBus()

	var received []Event
	bus.Subscribe(TypeReservation, func(ev Event) {
		received = append(received, ev)
	})

	bus.Publish(Event{Type: TypeReservation, Description: "reservation created"})
	bus.Publish(Event{Type: "other", Description: "ignored"})

	if len(received) != 1 {
		t.Fatalf("expected 1 event, got %d", len(received))
	}
	if received[0].Description != "reservation created" {
		t.Errorf("unexpected description: %s", received[0].Description)
	}
	if received[0].CreatedAt.IsZero() {
		t.Error("CreatedAt should be filled on publish")
	}
}

func TestPublishKeepsTimestamp(t *testing.T) {
	bus := NewBus()

	ts := time.Date(2026, 9, 2, 10, 0, 0, 0, time.UTC)
	var got Event
	bus.Subscribe(TypeReservation, func(ev Event) { got = ev })

	bus.Publish(Event{Type: TypeReservation, Description: "x", CreatedAt: ts})
	if !got.CreatedAt.Equal(ts) {
		t.Errorf("timestamp overwritten: %v", got.CreatedAt)
	}
}

func TestMultipleSubscribers(t *testing.T) {
	bus := NewBus()

	count := 0
	bus.Subscribe(TypeReservation, func(Event) { count++ })
	bus.Subscribe(TypeReservation, func(Event) { count++ })

	bus.Publish(Event{Type: TypeReservation})
	if count != 2 {
		t.Errorf("expected both subscribers notified, got %d", count)
	}
}

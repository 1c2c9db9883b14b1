// Package events provides in-process pub/sub for engine notifications.
package events

import (
	"sync"
	"time"
)

// TypeReservation marks reservation lifecycle events for the activity feed.
const TypeReservation = "reservation"

// Event is an outbound notification about a successful state transition.
type Event struct {
	Type        string    `json:"type"`
	Description string    `json:"description"`
	CreatedAt   time.Time `json:"timestamp"`
}

// Handler reacts to an event.
type Handler func(event Event)

// Bus fans events out to subscribers. The engine emits, collaborators such
// as the activity recorder consume; the bus does not own any storage.
type Bus struct {
	subscribers map[string][]Handler
	mu          sync.RWMutex
}

// NewBus constructs an empty bus.
func NewBus() *Bus {
	return &Bus{subscribers: make(map[string][]Handler)}
}

// Subscribe registers a handler for a given event type.
func (b *Bus) Subscribe(eventType string, handler Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.subscribers[eventType] = append(b.subscribers[eventType], handler)
}

// Publish notifies subscribers of the event type.
func (b *Bus) Publish(event Event) {
	b.mu.RLock()
	handlers := append([]Handler(nil), b.subscribers[event.Type]...)
	b.mu.RUnlock()

	if event.CreatedAt.IsZero() {
		event.CreatedAt = time.Now()
	}

	for _, handler := range handlers {
		// Handlers run synchronously; caller decides concurrency model.
		handler(event)
	}
}

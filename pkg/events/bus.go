// Package events provides the in-process notification channel between the
// media core and its surrounding control surfaces. Components register
// interest per event type; delivery order across independent subscribers is
// not guaranteed.
package events

import (
	"sync"
	"time"
)

// EventType represents the type of event
type EventType string

const (
	EventSourceAdded       EventType = "source.added"
	EventSourceRemoved     EventType = "source.removed"
	EventLayoutChanged     EventType = "layout.changed"
	EventCountdownTick     EventType = "countdown.tick"
	EventIntroStarted      EventType = "intro.started"
	EventIntroEnded        EventType = "intro.ended"
	EventBackgroundChanged EventType = "background.changed"
	EventDestinationState  EventType = "destination.state"
	EventFailover          EventType = "destination.failover"
	EventBroadcastLive     EventType = "broadcast.live"
	EventBroadcastEnded    EventType = "broadcast.ended"
	EventClipCreated       EventType = "clip.created"
)

// Event is a single notification with an optional typed payload.
type Event struct {
	Type      EventType
	Timestamp time.Time
	SourceID  string
	Payload   interface{}
}

// Handler consumes a delivered event. Handlers run on the publisher's
// goroutine and must not block.
type Handler func(Event)

// Bus is a session-scoped typed event bus. The zero value is not usable;
// construct with NewBus.
type Bus struct {
	mu       sync.RWMutex
	handlers map[EventType][]Handler
	nextID   int
	ids      map[EventType][]int
}

// NewBus creates a new event bus
func NewBus() *Bus {
	return &Bus{
		handlers: make(map[EventType][]Handler),
		ids:      make(map[EventType][]int),
	}
}

// Subscribe registers a handler for one event type and returns an
// unsubscribe function.
func (b *Bus) Subscribe(t EventType, h Handler) func() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.nextID++
	id := b.nextID
	b.handlers[t] = append(b.handlers[t], h)
	b.ids[t] = append(b.ids[t], id)

	return func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		for i, got := range b.ids[t] {
			if got == id {
				b.handlers[t] = append(b.handlers[t][:i], b.handlers[t][i+1:]...)
				b.ids[t] = append(b.ids[t][:i], b.ids[t][i+1:]...)
				return
			}
		}
	}
}

// Publish delivers the event to every handler subscribed to its type.
func (b *Bus) Publish(e Event) {
	if e.Timestamp.IsZero() {
		e.Timestamp = time.Now()
	}

	b.mu.RLock()
	handlers := make([]Handler, len(b.handlers[e.Type]))
	copy(handlers, b.handlers[e.Type])
	b.mu.RUnlock()

	for _, h := range handlers {
		h(e)
	}
}

// Emit is shorthand for Publish with just a type, source id and payload.
func (b *Bus) Emit(t EventType, sourceID string, payload interface{}) {
	b.Publish(Event{Type: t, SourceID: sourceID, Payload: payload})
}

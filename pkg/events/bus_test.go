package events

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSubscribePublish(t *testing.T) {
	bus := NewBus()

	var got []Event
	bus.Subscribe(EventCountdownTick, func(e Event) {
		got = append(got, e)
	})

	for i := 3; i >= 1; i-- {
		bus.Emit(EventCountdownTick, "", i)
	}

	assert.Len(t, got, 3)
	assert.Equal(t, 3, got[0].Payload)
	assert.Equal(t, 1, got[2].Payload)
	assert.False(t, got[0].Timestamp.IsZero())
}

func TestTypeIsolation(t *testing.T) {
	bus := NewBus()

	ticks := 0
	bus.Subscribe(EventCountdownTick, func(Event) { ticks++ })
	bus.Emit(EventLayoutChanged, "", nil)
	bus.Emit(EventCountdownTick, "", 1)

	assert.Equal(t, 1, ticks)
}

func TestUnsubscribe(t *testing.T) {
	bus := NewBus()

	calls := 0
	unsub := bus.Subscribe(EventFailover, func(Event) { calls++ })
	bus.Emit(EventFailover, "dest-1", nil)
	unsub()
	bus.Emit(EventFailover, "dest-1", nil)

	assert.Equal(t, 1, calls)
}

func TestMultipleSubscribers(t *testing.T) {
	bus := NewBus()

	a, b := 0, 0
	bus.Subscribe(EventSourceAdded, func(Event) { a++ })
	bus.Subscribe(EventSourceAdded, func(Event) { b++ })
	bus.Emit(EventSourceAdded, "cam-1", nil)

	assert.Equal(t, 1, a)
	assert.Equal(t, 1, b)
}

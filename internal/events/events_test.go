package events

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type captureSink struct {
	mu     sync.Mutex
	events []Event
	err    error
}

func (c *captureSink) Publish(ev Event) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = append(c.events, ev)
	return c.err
}

func (c *captureSink) snapshot() []Event {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]Event, len(c.events))
	copy(out, c.events)
	return out
}

func TestBusDeliversToAllSinks(t *testing.T) {
	t.Parallel()

	bus := NewBus()
	a := &captureSink{}
	b := &captureSink{}
	bus.Subscribe(a)
	bus.Subscribe(b)

	bus.Publish(TrackStatus("t1", "u1", "analyzing", ""))
	bus.Publish(MashupStatus("m1", "u1", "completed", ""))
	bus.Close()

	require.Len(t, a.snapshot(), 2)
	require.Len(t, b.snapshot(), 2)

	first := a.snapshot()[0]
	assert.Equal(t, EntityTrack, first.Entity)
	assert.Equal(t, "t1", first.ID)
	assert.Equal(t, "analyzing", first.Status)
	assert.False(t, first.Timestamp.IsZero())
}

func TestBusSurvivesFailingSink(t *testing.T) {
	t.Parallel()

	bus := NewBus()
	bad := &captureSink{err: errors.New("broker down")}
	good := &captureSink{}
	bus.Subscribe(bad)
	bus.Subscribe(good)

	bus.Publish(TrackStatus("t1", "u1", "completed", ""))
	bus.Close()

	assert.Len(t, good.snapshot(), 1)
}

func TestBusPreservesExplicitTimestamp(t *testing.T) {
	t.Parallel()

	bus := NewBus()
	sink := &captureSink{}
	bus.Subscribe(sink)

	at := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	ev := TrackStatus("t1", "u1", "failed", "decode error")
	ev.Timestamp = at
	bus.Publish(ev)
	bus.Close()

	require.Len(t, sink.snapshot(), 1)
	assert.Equal(t, at, sink.snapshot()[0].Timestamp)
}

func TestBusCloseIsIdempotent(t *testing.T) {
	t.Parallel()

	bus := NewBus()
	bus.Close()
	bus.Close()
}

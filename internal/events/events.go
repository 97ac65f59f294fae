// Package events fans out catalog status transitions to interested
// sinks. The bus is fire-and-forget: publishing never blocks the
// pipeline, and a slow or dead sink drops events rather than stalling
// a render.
package events

import (
	"log/slog"
	"sync"
	"time"

	"github.com/automixer/automix-go/internal/logging"
)

// Entity kinds carried on status events.
const (
	EntityTrack  = "track"
	EntityMashup = "mashup"
	EntityStem   = "stem"
)

// Event is one status transition of a catalog entity.
type Event struct {
	Entity    string    `json:"entity"`
	ID        string    `json:"id"`
	UserID    string    `json:"userId,omitempty"`
	Status    string    `json:"status"`
	Detail    string    `json:"detail,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// Publisher delivers events to one sink.
type Publisher interface {
	Publish(ev Event) error
}

// Bus queues events and delivers them to subscribed publishers on a
// single dispatch goroutine.
type Bus struct {
	mu         sync.Mutex
	publishers []Publisher
	ch         chan Event
	done       chan struct{}
	closeOnce  sync.Once
	logger     *slog.Logger
}

const busBuffer = 256

// NewBus starts the dispatch goroutine.
func NewBus() *Bus {
	b := &Bus{
		ch:     make(chan Event, busBuffer),
		done:   make(chan struct{}),
		logger: logging.ForService("events"),
	}
	go b.dispatch()
	return b
}

// Subscribe registers a sink for all subsequent events.
func (b *Bus) Subscribe(p Publisher) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.publishers = append(b.publishers, p)
}

// Publish enqueues an event without blocking. When the buffer is full
// the event is dropped and counted in the log.
func (b *Bus) Publish(ev Event) {
	if ev.Timestamp.IsZero() {
		ev.Timestamp = time.Now()
	}
	select {
	case b.ch <- ev:
	default:
		b.logger.Warn("event bus full, dropping event",
			"entity", ev.Entity, "id", ev.ID, "status", ev.Status)
	}
}

// Close stops dispatch after draining buffered events.
func (b *Bus) Close() {
	b.closeOnce.Do(func() {
		close(b.ch)
		<-b.done
	})
}

func (b *Bus) dispatch() {
	defer close(b.done)
	for ev := range b.ch {
		b.mu.Lock()
		sinks := make([]Publisher, len(b.publishers))
		copy(sinks, b.publishers)
		b.mu.Unlock()

		for _, p := range sinks {
			if err := p.Publish(ev); err != nil {
				b.logger.Warn("event sink failed",
					"entity", ev.Entity, "id", ev.ID, "error", err)
			}
		}
	}
}

// TrackStatus builds a track transition event.
func TrackStatus(id, userID, status, detail string) Event {
	return Event{Entity: EntityTrack, ID: id, UserID: userID, Status: status, Detail: detail}
}

// MashupStatus builds a mashup transition event.
func MashupStatus(id, userID, status, detail string) Event {
	return Event{Entity: EntityMashup, ID: id, UserID: userID, Status: status, Detail: detail}
}

// Package events fans store changes out to in-process observers.
package events

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

type Event struct {
	ID      string    `json:"id"`
	Session string    `json:"session,omitempty"`
	Action  string    `json:"action"`
	TS      time.Time `json:"ts"`
}

func New(session, action string) Event {
	return Event{
		ID:      uuid.NewString(),
		Session: session,
		Action:  action,
		TS:      time.Now().UTC(),
	}
}

type Publisher interface {
	Publish(e Event)
}

// Bus is a fan-out pub/sub. Publish never blocks; slow subscribers miss events.
type Bus struct {
	mu     sync.RWMutex
	subs   map[chan Event]struct{}
	buffer int
}

func NewBus(buffer int) *Bus {
	if buffer <= 0 {
		buffer = 16
	}
	return &Bus{subs: make(map[chan Event]struct{}), buffer: buffer}
}

func (b *Bus) Publish(e Event) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for ch := range b.subs {
		select {
		case ch <- e:
		default:
		}
	}
}

func (b *Bus) Subscribe() chan Event {
	ch := make(chan Event, b.buffer)
	b.mu.Lock()
	b.subs[ch] = struct{}{}
	b.mu.Unlock()
	return ch
}

// Unsubscribe removes ch and closes it. Unknown channels are ignored.
func (b *Bus) Unsubscribe(ch chan Event) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.subs[ch]; !ok {
		return
	}
	delete(b.subs, ch)
	close(ch)
}

// Discard drops every event.
type Discard struct{}

func (Discard) Publish(Event) {}

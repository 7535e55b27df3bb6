// Package bus provides a typed in-process event stream for cache
// lifecycle notifications.
package bus

import (
	"sync"

	"go.pactly.app/datakit/internal/core/domain"
)

// Bus fans domain events out to subscribers. Publishing never blocks: a
// subscriber whose buffer is full misses the event rather than stalling a
// refresh.
type Bus struct {
	mu   sync.Mutex
	subs map[int]chan domain.Event
	next int
}

// New creates an empty Bus.
func New() *Bus {
	return &Bus{subs: make(map[int]chan domain.Event)}
}

// Subscribe registers a new subscriber with the given channel buffer and
// returns its channel plus a cancel function. Cancel is idempotent and
// closes the channel.
func (b *Bus) Subscribe(buffer int) (<-chan domain.Event, func()) {
	if buffer < 1 {
		buffer = 1
	}
	ch := make(chan domain.Event, buffer)

	b.mu.Lock()
	id := b.next
	b.next++
	b.subs[id] = ch
	b.mu.Unlock()

	cancel := func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		if _, ok := b.subs[id]; ok {
			delete(b.subs, id)
			close(ch)
		}
	}
	return ch, cancel
}

// Publish delivers an event to every subscriber that has buffer room.
func (b *Bus) Publish(ev domain.Event) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, ch := range b.subs {
		select {
		case ch <- ev:
		default:
		}
	}
}

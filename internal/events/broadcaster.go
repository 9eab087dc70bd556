package events

import (
	"context"
	"sync"
)

// Broadcaster fans events out to in-process subscribers (the SSE handler,
// primarily). Delivery is best effort: a subscriber that cannot keep up has
// the event dropped rather than blocking the publisher — consumers treat
// events as re-fetch hints, so a dropped hint is recovered by the next poll.
type Broadcaster struct {
	mu   sync.Mutex
	subs map[int]chan Event
	next int
}

const subscriberBuffer = 16

// NewBroadcaster returns an empty broadcaster.
func NewBroadcaster() *Broadcaster {
	return &Broadcaster{subs: make(map[int]chan Event)}
}

// Subscribe registers a listener. The returned cancel function must be
// called to release the subscription; the channel is closed on cancel.
func (b *Broadcaster) Subscribe() (<-chan Event, func()) {
	b.mu.Lock()
	defer b.mu.Unlock()

	id := b.next
	b.next++
	ch := make(chan Event, subscriberBuffer)
	b.subs[id] = ch

	cancel := func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		if ch, ok := b.subs[id]; ok {
			delete(b.subs, id)
			close(ch)
		}
	}
	return ch, cancel
}

// Publish delivers ev to all current subscribers without blocking.
func (b *Broadcaster) Publish(_ context.Context, ev Event) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	for _, ch := range b.subs {
		select {
		case ch <- ev:
		default:
			// Slow subscriber: drop, never block.
		}
	}
	return nil
}

// Subscribers reports the current subscriber count.
func (b *Broadcaster) Subscribers() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subs)
}

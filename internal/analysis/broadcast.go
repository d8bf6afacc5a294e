package analysis

import (
	"sync"

	"github.com/muurk/cellwatch/internal/heuristic"
)

// DefaultSubscriberBuffer is the channel capacity of a subscription.
const DefaultSubscriberBuffer = 64

// Broadcaster fans warnings out to live subscribers. A subscriber whose
// buffer is full misses the warning; the report keeps every warning.
type Broadcaster struct {
	mu      sync.Mutex
	subs    map[uint64]chan heuristic.Warning
	next    uint64
	closed  bool
	dropped uint64
}

// NewBroadcaster creates an open broadcaster without subscribers.
func NewBroadcaster() *Broadcaster {
	return &Broadcaster{subs: make(map[uint64]chan heuristic.Warning)}
}

// Subscribe registers a subscriber. The returned cancel function removes it
// and closes the channel; the channel is also closed when the broadcaster
// closes.
func (b *Broadcaster) Subscribe(buffer int) (<-chan heuristic.Warning, func()) {
	if buffer <= 0 {
		buffer = DefaultSubscriberBuffer
	}
	ch := make(chan heuristic.Warning, buffer)

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		close(ch)
		return ch, func() {}
	}
	id := b.next
	b.next++
	b.subs[id] = ch

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			b.mu.Lock()
			defer b.mu.Unlock()
			if c, ok := b.subs[id]; ok {
				delete(b.subs, id)
				close(c)
			}
		})
	}
}

// Publish delivers w to every subscriber without blocking.
func (b *Broadcaster) Publish(w heuristic.Warning) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	for _, ch := range b.subs {
		select {
		case ch <- w:
		default:
			b.dropped++
		}
	}
}

// Subscribers returns the number of active subscriptions.
func (b *Broadcaster) Subscribers() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subs)
}

// Dropped counts deliveries skipped because a subscriber was full.
func (b *Broadcaster) Dropped() uint64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.dropped
}

// Close closes every subscription. Further publishes are ignored.
func (b *Broadcaster) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.closed = true
	for id, ch := range b.subs {
		delete(b.subs, id)
		close(ch)
	}
}

package events

import (
	"sync"
	"sync/atomic"
)

// Bus is a lightweight channel-based pub/sub broker. Publish never blocks:
// payloads to slow subscribers are dropped and counted instead.
type Bus struct {
	mu      sync.RWMutex
	subs    map[Topic][]chan any
	dropped uint64
}

// NewBus creates an empty bus.
func NewBus() *Bus {
	return &Bus{subs: make(map[Topic][]chan any)}
}

// Subscribe registers a listener for a topic and returns the receive channel
// together with an unsubscribe function. Unsubscribing closes the channel.
func (b *Bus) Subscribe(t Topic, buffer int) (<-chan any, func()) {
	if buffer <= 0 {
		buffer = 16
	}

	b.mu.Lock()
	ch := make(chan any, buffer)
	b.subs[t] = append(b.subs[t], ch)
	b.mu.Unlock()

	var once sync.Once
	unsub := func() {
		once.Do(func() {
			b.mu.Lock()
			defer b.mu.Unlock()
			subs := b.subs[t]
			for i, c := range subs {
				if c == ch {
					b.subs[t] = append(subs[:i], subs[i+1:]...)
					close(c)
					break
				}
			}
		})
	}
	return ch, unsub
}

// Publish fans the payload out to all subscribers of the topic.
func (b *Bus) Publish(t Topic, payload any) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for _, ch := range b.subs[t] {
		select {
		case ch <- payload:
		default:
			atomic.AddUint64(&b.dropped, 1)
		}
	}
}

// Dropped reports how many payloads were discarded due to slow subscribers.
func (b *Bus) Dropped() uint64 {
	return atomic.LoadUint64(&b.dropped)
}

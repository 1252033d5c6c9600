package events

import (
	"sync"
	"sync/atomic"
)

// DefaultBufferSize is the subscriber buffer used when none is given.
const DefaultBufferSize = 256

// EventBus is a channel-based pub-sub event bus.
// Supports topic-based subscriptions and SubscribeAll for cross-topic consumption.
type EventBus struct {
	mu      sync.RWMutex
	subs    map[string][]chan Event // topic -> subscriber channels
	allSubs []chan Event            // channels subscribed to all topics
	closed  bool

	dropped atomic.Uint64
}

// NewEventBus creates a new event bus.
func NewEventBus() *EventBus {
	return &EventBus{
		subs: make(map[string][]chan Event),
	}
}

// Subscribe returns a channel receiving events published to topic.
// bufSize <= 0 selects DefaultBufferSize.
func (b *EventBus) Subscribe(topic string, bufSize int) <-chan Event {
	return b.subscribe(func(ch chan Event) {
		b.subs[topic] = append(b.subs[topic], ch)
	}, bufSize)
}

// SubscribeAll returns a channel receiving events from every topic.
// bufSize <= 0 selects DefaultBufferSize.
func (b *EventBus) SubscribeAll(bufSize int) <-chan Event {
	return b.subscribe(func(ch chan Event) {
		b.allSubs = append(b.allSubs, ch)
	}, bufSize)
}

func (b *EventBus) subscribe(add func(chan Event), bufSize int) <-chan Event {
	if bufSize <= 0 {
		bufSize = DefaultBufferSize
	}
	ch := make(chan Event, bufSize)

	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		close(ch)
		return ch
	}
	add(ch)
	return ch
}

// Publish sends an event to the subscribers of topic and to every SubscribeAll
// channel. It never blocks: a full subscriber misses the event, which is
// counted in Dropped.
func (b *EventBus) Publish(topic string, event Event) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		return
	}

	for _, ch := range b.subs[topic] {
		b.send(ch, event)
	}
	for _, ch := range b.allSubs {
		b.send(ch, event)
	}
}

func (b *EventBus) send(ch chan Event, event Event) {
	select {
	case ch <- event:
	default:
		b.dropped.Add(1)
	}
}

// Dropped returns how many deliveries were skipped because a subscriber was full.
func (b *EventBus) Dropped() uint64 {
	return b.dropped.Load()
}

// Close closes the event bus and all subscriber channels.
// Safe to call multiple times.
func (b *EventBus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return
	}
	b.closed = true

	for _, channels := range b.subs {
		for _, ch := range channels {
			close(ch)
		}
	}
	for _, ch := range b.allSubs {
		close(ch)
	}
}

// Package events is the engine's in-process event stream. Every
// terminal execution outcome and health alert passes through here; the
// websocket endpoint and storage layer are both subscribers.
package events

import (
	"sync"

	"go.uber.org/zap"

	"github.com/axionmev/flasharb/pkg/types"
)

const (
	subscriberBuffer = 64
	historySize      = 256
)

// Bus fans events out to subscribers. Publishing never blocks: a
// subscriber that falls behind loses events rather than stalling the
// execution path.
type Bus struct {
	logger *zap.Logger

	mu      sync.RWMutex
	subs    map[int]chan types.Event
	nextID  int
	history []types.Event
	closed  bool
}

// NewBus creates an event bus.
func NewBus(logger *zap.Logger) *Bus {
	return &Bus{
		logger: logger,
		subs:   make(map[int]chan types.Event),
	}
}

// Publish delivers an event to every subscriber and appends it to the
// recent-history ring.
func (b *Bus) Publish(event types.Event) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return
	}

	b.history = append(b.history, event)
	if len(b.history) > historySize {
		b.history = b.history[len(b.history)-historySize:]
	}

	PublishedTotal.WithLabelValues(string(event.Kind)).Inc()

	for id, ch := range b.subs {
		select {
		case ch <- event:
		default:
			DroppedTotal.Inc()
			b.logger.Warn("event-subscriber-lagging", zap.Int("subscriber", id))
		}
	}
}

// Subscribe registers a listener. The returned cancel function must be
// called to release the subscription.
func (b *Bus) Subscribe() (<-chan types.Event, func()) {
	b.mu.Lock()
	defer b.mu.Unlock()

	id := b.nextID
	b.nextID++

	ch := make(chan types.Event, subscriberBuffer)
	if b.closed {
		close(ch)

		return ch, func() {}
	}
	b.subs[id] = ch
	SubscribersGauge.Set(float64(len(b.subs)))

	cancel := func() {
		b.mu.Lock()
		defer b.mu.Unlock()

		if sub, ok := b.subs[id]; ok {
			delete(b.subs, id)
			close(sub)
			SubscribersGauge.Set(float64(len(b.subs)))
		}
	}

	return ch, cancel
}

// History returns a copy of the most recent events, oldest first.
func (b *Bus) History() []types.Event {
	b.mu.RLock()
	defer b.mu.RUnlock()

	out := make([]types.Event, len(b.history))
	copy(out, b.history)

	return out
}

// Close shuts the bus down and closes all subscriber channels.
func (b *Bus) Close() {
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
	SubscribersGauge.Set(0)
}

// Package event provides the synchronous publish/subscribe channel the
// engine's components communicate through instead of holding direct
// references to their peers.
//
// Delivery is same-thread fan-out in subscription order. A handler that
// returns an error or panics is logged and isolated; it never prevents the
// remaining handlers from running and never propagates to the emitter.
// There is no queuing, no priority, and no async dispatch.
package event

import (
	"log/slog"
	"runtime/debug"
	"sync"
	"time"

	"github.com/dshills/diagrid/internal/event/topic"
)

// Envelope carries a published event to handlers.
type Envelope struct {
	// Topic is the event's topic.
	Topic topic.Topic

	// Payload is the typed payload record for the topic.
	Payload any

	// Time is when the event was emitted.
	Time time.Time
}

// HandlerFunc processes an event. A returned error is logged by the bus and
// does not affect other handlers.
type HandlerFunc func(evt Envelope) error

// Subscription identifies an active subscription so it can be removed.
type Subscription struct {
	id    uint64
	topic topic.Topic
}

// Topic returns the subscribed topic.
func (s Subscription) Topic() topic.Topic {
	return s.topic
}

type subscriber struct {
	id      uint64
	handler HandlerFunc
}

// Bus is the synchronous event bus.
type Bus struct {
	mu     sync.Mutex
	subs   map[topic.Topic][]subscriber
	nextID uint64
	logger *slog.Logger

	emitted   uint64
	delivered uint64
	failed    uint64
	panicked  uint64
}

// NewBus creates a new event bus. A nil logger falls back to slog.Default.
func NewBus(logger *slog.Logger) *Bus {
	if logger == nil {
		logger = slog.Default()
	}
	return &Bus{
		subs:   make(map[topic.Topic][]subscriber),
		logger: logger,
	}
}

// On registers a handler for a topic. Handlers run in subscription order.
// An invalid topic is logged and not registered; the returned subscription
// is a zero value that Off ignores.
func (b *Bus) On(t topic.Topic, fn HandlerFunc) Subscription {
	if !t.IsValid() {
		b.logger.Warn("subscription to invalid topic refused", "topic", t.String())
		return Subscription{}
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	b.nextID++
	b.subs[t] = append(b.subs[t], subscriber{id: b.nextID, handler: fn})
	return Subscription{id: b.nextID, topic: t}
}

// Off removes a subscription. Removing an unknown subscription is a no-op.
func (b *Bus) Off(sub Subscription) {
	b.mu.Lock()
	defer b.mu.Unlock()

	list := b.subs[sub.topic]
	for i, s := range list {
		if s.id == sub.id {
			b.subs[sub.topic] = append(list[:i:i], list[i+1:]...)
			return
		}
	}
}

// Emit delivers an event synchronously to every handler subscribed to the
// topic, in subscription order. It returns after the last handler finishes.
// An invalid topic is logged and dropped.
func (b *Bus) Emit(t topic.Topic, payload any) {
	if !t.IsValid() {
		b.logger.Warn("emit on invalid topic dropped", "topic", t.String())
		return
	}

	b.mu.Lock()
	list := b.subs[t]
	// Snapshot so handlers can subscribe or unsubscribe mid-delivery
	// without affecting this fan-out.
	snapshot := make([]subscriber, len(list))
	copy(snapshot, list)
	b.emitted++
	b.mu.Unlock()

	evt := Envelope{Topic: t, Payload: payload, Time: time.Now()}
	for _, s := range snapshot {
		b.dispatch(evt, s)
	}
}

// dispatch runs one handler with panic isolation.
func (b *Bus) dispatch(evt Envelope, s subscriber) {
	defer func() {
		if r := recover(); r != nil {
			b.count(&b.panicked)
			b.logger.Error("event handler panicked",
				"topic", evt.Topic.String(),
				"subscription", s.id,
				"panic", r,
				"stack", string(debug.Stack()))
		}
	}()

	if err := s.handler(evt); err != nil {
		b.count(&b.failed)
		b.logger.Error("event handler failed",
			"topic", evt.Topic.String(),
			"subscription", s.id,
			"error", err)
		return
	}
	b.count(&b.delivered)
}

func (b *Bus) count(field *uint64) {
	b.mu.Lock()
	*field++
	b.mu.Unlock()
}

// Stats reports bus counters.
type Stats struct {
	// Emitted is the number of Emit calls.
	Emitted uint64

	// Delivered is the number of successful handler executions.
	Delivered uint64

	// Failed is the number of handlers that returned errors.
	Failed uint64

	// Panicked is the number of handlers that panicked.
	Panicked uint64
}

// Stats returns current bus counters.
func (b *Bus) Stats() Stats {
	b.mu.Lock()
	defer b.mu.Unlock()
	return Stats{
		Emitted:   b.emitted,
		Delivered: b.delivered,
		Failed:    b.failed,
		Panicked:  b.panicked,
	}
}

// SubscriberCount returns the number of handlers subscribed to a topic.
func (b *Bus) SubscriberCount(t topic.Topic) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subs[t])
}

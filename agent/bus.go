package agent

import (
	"context"
	"sync"

	"github.com/agentmesh/platform/internal/ids"
)

// Message is the typed envelope published on the bus (spec.md §3).
type Message struct {
	Topic         string
	Payload       map[string]any
	Timestamp     int64 // unix nanos, stamped by Bus.Publish
	CorrelationID string
}

// Overflow is delivered to a publisher when a specific subscriber's queue is full.
// Other subscribers are unaffected (spec.md §4.4).
type Overflow struct {
	Topic        string
	SubscriberID string
}

// subscription is one bounded delivery queue for a topic.
type subscription struct {
	id     string
	topic  string
	queue  chan Message
	done   chan struct{}
	closed bool
	mu     sync.Mutex
}

// Bus is an in-process, typed publish/subscribe fabric with per-subscriber
// bounded queues and backpressure (spec.md §4.4). Delivery is at-least-once
// within a single process run; ordering is preserved per publisher->subscriber
// pair. The bus holds no persistence: messages do not survive a crash.
type Bus struct {
	mu   sync.RWMutex
	subs map[string][]*subscription // topic -> subscriptions
}

// NewBus constructs an empty Bus.
func NewBus() *Bus {
	return &Bus{subs: make(map[string][]*subscription)}
}

// Subscription is the handle returned to callers of Subscribe; it exposes the
// delivery channel and an Unsubscribe method that drains and closes it.
type Subscription struct {
	ID    string
	bus   *Bus
	topic string
	sub   *subscription
}

// Messages returns the channel new messages for this subscription arrive on.
func (s *Subscription) Messages() <-chan Message { return s.sub.queue }

// Unsubscribe removes the subscription, draining and closing its queue.
// In-flight callbacks reading from Messages() are allowed to finish.
func (s *Subscription) Unsubscribe() {
	s.bus.mu.Lock()
	list := s.bus.subs[s.topic]
	for i, sub := range list {
		if sub == s.sub {
			s.bus.subs[s.topic] = append(list[:i], list[i+1:]...)
			break
		}
	}
	s.bus.mu.Unlock()

	s.sub.mu.Lock()
	if !s.sub.closed {
		s.sub.closed = true
		close(s.sub.done)
		close(s.sub.queue)
	}
	s.sub.mu.Unlock()
}

// Subscribe registers a bounded-queue subscriber for topic. depth is the
// subscriber's queue capacity; Publish signals Overflow for this subscriber
// alone when it is exceeded.
func (b *Bus) Subscribe(topic string, depth int) *Subscription {
	if depth <= 0 {
		depth = 1
	}
	sub := &subscription{
		id:    ids.NewWithPrefix("sub"),
		topic: topic,
		queue: make(chan Message, depth),
		done:  make(chan struct{}),
	}

	b.mu.Lock()
	b.subs[topic] = append(b.subs[topic], sub)
	b.mu.Unlock()

	return &Subscription{ID: sub.id, bus: b, topic: topic, sub: sub}
}

// Publish delivers msg to every subscriber of msg.Topic. For each subscriber
// whose queue is full, Publish does not block; it returns that subscriber's
// Overflow in the returned slice so the caller can decide what to do (the
// framework itself never retries delivery).
func (b *Bus) Publish(ctx context.Context, topic string, payload map[string]any, correlationID string) []Overflow {
	msg := Message{Topic: topic, Payload: payload, Timestamp: nowNano(), CorrelationID: correlationID}

	b.mu.RLock()
	subs := append([]*subscription{}, b.subs[topic]...)
	b.mu.RUnlock()

	var overflow []Overflow
	for _, sub := range subs {
		sub.mu.Lock()
		closed := sub.closed
		sub.mu.Unlock()
		if closed {
			continue
		}

		select {
		case sub.queue <- msg:
		default:
			overflow = append(overflow, Overflow{Topic: topic, SubscriberID: sub.id})
		}
	}
	return overflow
}

// SubscriberCount returns the number of live subscriptions for topic.
func (b *Bus) SubscriberCount(topic string) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs[topic])
}

// Topics returns every topic with at least one live subscriber.
func (b *Bus) Topics() []string {
	b.mu.RLock()
	defer b.mu.RUnlock()
	topics := make([]string, 0, len(b.subs))
	for t, subs := range b.subs {
		if len(subs) > 0 {
			topics = append(topics, t)
		}
	}
	return topics
}

// Package pubsub is an in-process topic bus with explicit subscription
// handles.
//
// Publish delivers synchronously, in subscription order, on the publisher's
// goroutine, so a topic's payloads reach every handler in publish order.
// Handlers must return quickly; slow work belongs on the handler's own
// worker.
package pubsub

import (
	"fmt"
	"sync"
	"sync/atomic"
)

type Handler func(payload any)

type Bus struct {
	mu     sync.RWMutex
	topics map[string][]*Subscription
	nextID atomic.Uint64
}

func NewBus() *Bus {
	return &Bus{topics: map[string][]*Subscription{}}
}

// Subscription is a handle for one registered handler. It must be
// unsubscribed when its owner is torn down.
type Subscription struct {
	id      uint64
	topic   string
	handler Handler
	bus     *Bus
	active  atomic.Bool
}

func (s *Subscription) Topic() string { return s.topic }
func (s *Subscription) Active() bool  { return s != nil && s.active.Load() }

// Unsubscribe removes the handler. It is safe to call more than once.
func (s *Subscription) Unsubscribe() {
	if s == nil || !s.active.CompareAndSwap(true, false) {
		return
	}
	s.bus.remove(s)
}

func (b *Bus) Subscribe(topic string, handler Handler) *Subscription {
	subscription := &Subscription{
		id:      b.nextID.Add(1),
		topic:   topic,
		handler: handler,
		bus:     b,
	}
	subscription.active.Store(true)

	b.mu.Lock()
	b.topics[topic] = append(b.topics[topic], subscription)
	b.mu.Unlock()

	return subscription
}

// Publish delivers payload to every active subscriber of topic and returns
// how many handlers received it. A panicking handler is logged and does not
// prevent delivery to the others.
func (b *Bus) Publish(topic string, payload any) int {
	b.mu.RLock()
	subscribers := append([]*Subscription(nil), b.topics[topic]...)
	b.mu.RUnlock()

	delivered := 0
	for _, subscription := range subscribers {
		if !subscription.Active() {
			continue
		}
		if deliver(subscription, payload) {
			delivered++
		}
	}
	return delivered
}

// Subscribers returns the number of active handlers on topic.
func (b *Bus) Subscribers(topic string) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.topics[topic])
}

func (b *Bus) remove(subscription *Subscription) {
	b.mu.Lock()
	defer b.mu.Unlock()

	subscribers := b.topics[subscription.topic]
	for i, candidate := range subscribers {
		if candidate.id == subscription.id {
			b.topics[subscription.topic] = append(subscribers[:i:i], subscribers[i+1:]...)
			break
		}
	}
	if len(b.topics[subscription.topic]) == 0 {
		delete(b.topics, subscription.topic)
	}
}

func deliver(subscription *Subscription, payload any) (ok bool) {
	defer func() {
		if recovered := recover(); recovered != nil {
			logger.Error("topic handler panicked", "topic", subscription.topic, "panic", fmt.Sprint(recovered))
			ok = false
		}
	}()

	subscription.handler(payload)
	return true
}

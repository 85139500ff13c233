// Package event provides a simple publish-subscribe bus for decoupled
// communication between the job queues and their consumers (pipeline
// chaining, logging, webhooks).
package event

import (
	"context"
	"sync"
)

// Topics published by the job queues.
const (
	TopicJobCompleted = "job.completed"
	TopicJobFailed    = "job.failed"
	TopicJobRetried   = "job.retried"
	TopicJobProgress  = "job.progress"
)

// Handler is a function that handles an event.
type Handler func(ctx context.Context, data any)

// Bus fans events out to subscribed handlers.
type Bus struct {
	mu          sync.RWMutex
	subscribers map[string][]Handler
}

// New creates a new event bus.
func New() *Bus {
	return &Bus{
		subscribers: make(map[string][]Handler),
	}
}

// Subscribe adds a handler for a specific topic.
func (b *Bus) Subscribe(topic string, handler Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.subscribers[topic] = append(b.subscribers[topic], handler)
}

// Publish triggers all handlers subscribed to the topic. Handlers run in
// their own goroutines; publishers never block on slow consumers.
func (b *Bus) Publish(ctx context.Context, topic string, data any) {
	b.mu.RLock()
	handlers := append([]Handler{}, b.subscribers[topic]...) // copy to avoid race
	b.mu.RUnlock()
	for _, handler := range handlers {
		go handler(ctx, data)
	}
}

// Package bus delivers state-change notifications between execution contexts
// that share a durable storage tier. Delivery is best-effort and eventually
// consistent; a subscriber may observe a change after a bounded delay, and a
// lost message only means a stale read until the next write.
package bus

import (
	"context"
	"sync"
)

// Message announces one state mutation. A nil Payload announces a removal.
type Message struct {
	// Origin identifies the publishing context so subscribers can ignore
	// their own writes.
	Origin  string `json:"origin"`
	Key     string `json:"key"`
	Payload []byte `json:"payload,omitempty"`
}

// Handler consumes messages. Handlers must not block; slow consumers stall
// delivery for the whole subscription.
type Handler func(Message)

// Bus is the cross-context change channel.
type Bus interface {
	Publish(ctx context.Context, msg Message) error
	// Subscribe registers handler and returns an unsubscribe func.
	Subscribe(handler Handler) (func(), error)
	Close() error
}

// LocalBus is the single-process implementation: messages are delivered
// synchronously to every subscriber in the same process. It doubles as the
// test fake for cross-context contracts.
type LocalBus struct {
	mu       sync.RWMutex
	handlers map[int]Handler
	nextID   int
	closed   bool
}

// NewLocalBus returns an empty LocalBus.
func NewLocalBus() *LocalBus {
	return &LocalBus{handlers: make(map[int]Handler)}
}

// Publish implements [Bus].
func (b *LocalBus) Publish(ctx context.Context, msg Message) error {
	b.mu.RLock()
	handlers := make([]Handler, 0, len(b.handlers))
	for _, h := range b.handlers {
		handlers = append(handlers, h)
	}
	b.mu.RUnlock()

	for _, h := range handlers {
		h(msg)
	}
	return nil
}

// Subscribe implements [Bus].
func (b *LocalBus) Subscribe(handler Handler) (func(), error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	id := b.nextID
	b.nextID++
	b.handlers[id] = handler

	return func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		delete(b.handlers, id)
	}, nil
}

// Close implements [Bus].
func (b *LocalBus) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.handlers = make(map[int]Handler)
	b.closed = true
	return nil
}

package license

import (
	"context"
	"sync"
	"time"
)

// ChangeHandler consumes grant change events.
type ChangeHandler func(ctx context.Context, ev ChangeEvent)

// Notifier fans grant change events out to subscribers from a single
// worker goroutine, so publishers (licensing workflows) never block on
// subscriber work such as a tenant resync.
type Notifier struct {
	mu       sync.RWMutex
	handlers map[int]ChangeHandler
	nextID   int
	closed   bool

	events chan ChangeEvent
	drained chan struct{}
}

// NewNotifier creates a Notifier with the given event buffer size.
// A non-positive size defaults to 16.
func NewNotifier(buffer int) *Notifier {
	if buffer <= 0 {
		buffer = 16
	}

	n := &Notifier{
		handlers: make(map[int]ChangeHandler),
		events:   make(chan ChangeEvent, buffer),
		drained:  make(chan struct{}),
	}
	go n.run()
	return n
}

// Subscribe registers a handler and returns an unsubscribe function.
func (n *Notifier) Subscribe(handler ChangeHandler) func() {
	n.mu.Lock()
	defer n.mu.Unlock()

	id := n.nextID
	n.nextID++
	n.handlers[id] = handler

	return func() {
		n.mu.Lock()
		defer n.mu.Unlock()
		delete(n.handlers, id)
	}
}

// Publish enqueues an event for delivery. Blocks while the buffer is full
// so events are never dropped; returns ErrNotifierClosed after Close.
func (n *Notifier) Publish(ctx context.Context, ev ChangeEvent) error {
	if ev.OccurredAt.IsZero() {
		ev.OccurredAt = time.Now()
	}

	n.mu.RLock()
	defer n.mu.RUnlock()
	if n.closed {
		return ErrNotifierClosed
	}

	select {
	case n.events <- ev:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close stops accepting events and waits for queued events to be
// delivered.
func (n *Notifier) Close() {
	n.mu.Lock()
	if n.closed {
		n.mu.Unlock()
		return
	}
	n.closed = true
	close(n.events)
	n.mu.Unlock()

	<-n.drained
}

func (n *Notifier) run() {
	defer close(n.drained)

	for ev := range n.events {
		n.mu.RLock()
		handlers := make([]ChangeHandler, 0, len(n.handlers))
		for _, h := range n.handlers {
			handlers = append(handlers, h)
		}
		n.mu.RUnlock()

		for _, h := range handlers {
			h(context.Background(), ev)
		}
	}
}

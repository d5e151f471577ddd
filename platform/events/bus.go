// Package events provides event bus infrastructure for decoupled,
// event-driven communication between modules.
package events

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"tireshop_backend/platform/logger"
)

// InMemoryBus is an in-process implementation of Bus. Asynchronous delivery
// detaches handler execution from the publishing request: a committed state
// transition is never rolled back or failed because a subscriber errored.
type InMemoryBus struct {
	mu       sync.RWMutex
	handlers map[string][]Handler
	log      *logger.Logger
}

// NewInMemoryBus creates a new in-memory event bus.
func NewInMemoryBus(log *logger.Logger) *InMemoryBus {
	return &InMemoryBus{
		handlers: make(map[string][]Handler),
		log:      log,
	}
}

// Subscribe registers a handler for a specific event type.
func (b *InMemoryBus) Subscribe(eventName string, handler Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.handlers[eventName] = append(b.handlers[eventName], handler)
}

// Publish dispatches the event to all subscribers asynchronously. Handler
// errors and panics are logged and swallowed.
func (b *InMemoryBus) Publish(ctx context.Context, event Event) {
	b.mu.RLock()
	subscribers := make([]Handler, len(b.handlers[event.EventName()]))
	copy(subscribers, b.handlers[event.EventName()])
	b.mu.RUnlock()

	for _, handler := range subscribers {
		go func(h Handler) {
			// Detach from the request context so an already-sent HTTP
			// response does not cancel in-flight side effects.
			if err := b.safeHandle(context.WithoutCancel(ctx), h, event); err != nil && b.log != nil {
				b.log.SideEffectFailure(event.EventName(), err)
			}
		}(handler)
	}
}

// PublishSync dispatches the event and waits for every subscriber, joining
// their errors. Used by tests and by callers that need ordering guarantees.
func (b *InMemoryBus) PublishSync(ctx context.Context, event Event) error {
	b.mu.RLock()
	subscribers := make([]Handler, len(b.handlers[event.EventName()]))
	copy(subscribers, b.handlers[event.EventName()])
	b.mu.RUnlock()

	var errs []error
	for _, handler := range subscribers {
		if err := b.safeHandle(ctx, handler, event); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (b *InMemoryBus) safeHandle(ctx context.Context, handler Handler, event Event) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("event handler panicked: %v", r)
		}
	}()
	return handler.Handle(ctx, event)
}

// Compile-time check that InMemoryBus implements Bus.
var _ Bus = (*InMemoryBus)(nil)

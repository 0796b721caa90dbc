package pipeline

import (
	"fmt"
	"log"
	"sync"
)

// EventType identifies one of the pipeline's event streams.
type EventType string

const (
	// EventViolation carries a *storage.ViolationRecord per dispatch.
	EventViolation EventType = "violation"
	// EventVehicleCount carries a VehicleCountEvent per dispatch.
	EventVehicleCount EventType = "vehicle_count"
	// EventFrameProcessed carries a *FrameProcessedEvent per dispatch.
	EventFrameProcessed EventType = "frame_processed"
)

// knownEventTypes is the complete event contract the pipeline exposes.
var knownEventTypes = map[EventType]bool{
	EventViolation:      true,
	EventVehicleCount:   true,
	EventFrameProcessed: true,
}

// Handler receives one event payload. A non-nil error is logged by the bus
// and never propagated to the dispatcher.
type Handler func(payload interface{}) error

// EventBus is a typed callback registry with isolated fan-out dispatch.
// Handlers run synchronously in registration order; a failing handler is
// skipped and dispatch continues with the remaining handlers. The bus is an
// instance owned by the pipeline, constructed at startup, not a singleton.
type EventBus struct {
	handlers map[EventType][]Handler
	mu       sync.RWMutex
}

// NewEventBus creates an empty event bus.
func NewEventBus() *EventBus {
	return &EventBus{
		handlers: make(map[EventType][]Handler),
	}
}

// Register adds a handler for an event type. Unknown event types are
// rejected with ErrUnknownEventType rather than silently ignored, so wiring
// mistakes fail at startup instead of dropping events at runtime.
func (b *EventBus) Register(eventType EventType, handler Handler) error {
	if !knownEventTypes[eventType] {
		return fmt.Errorf("%w: %s", ErrUnknownEventType, eventType)
	}
	if handler == nil {
		return fmt.Errorf("nil handler for event type %s", eventType)
	}

	b.mu.Lock()
	b.handlers[eventType] = append(b.handlers[eventType], handler)
	b.mu.Unlock()
	return nil
}

// Dispatch invokes every handler registered for the event type in
// registration order. Handler failures are logged and isolated; the caller
// never observes them.
func (b *EventBus) Dispatch(eventType EventType, payload interface{}) {
	b.mu.RLock()
	handlers := b.handlers[eventType]
	b.mu.RUnlock()

	for _, handler := range handlers {
		if err := safeInvoke(handler, payload); err != nil {
			log.Printf("[EventBus] Handler error for %s event: %v", eventType, err)
		}
	}
}

// HandlerCount returns the number of handlers for an event type.
func (b *EventBus) HandlerCount(eventType EventType) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.handlers[eventType])
}

// safeInvoke calls the handler, converting a panic into an error so one
// misbehaving subscriber cannot take down the frame loop.
func safeInvoke(handler Handler, payload interface{}) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("handler panic: %v", r)
		}
	}()
	return handler(payload)
}

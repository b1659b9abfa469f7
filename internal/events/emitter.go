package events

import (
	"context"
	"log/slog"
	"sync"
)

// InMemoryEventEmitter is a Notifier that stores registered handlers in
// memory and dispatches notifications to them in registration order.
type InMemoryEventEmitter struct {
	handlers []Handler
	mu       sync.RWMutex
	logger   *slog.Logger
}

// NewInMemoryEventEmitter creates a new instance of InMemoryEventEmitter.
func NewInMemoryEventEmitter(logger *slog.Logger) *InMemoryEventEmitter {
	if logger == nil {
		logger = slog.Default()
	}
	return &InMemoryEventEmitter{
		handlers: make([]Handler, 0),
		logger:   logger.With("component", "in_memory_event_emitter"),
	}
}

// RegisterHandler adds a new handler to receive notifications.
func (e *InMemoryEventEmitter) RegisterHandler(handler Handler) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.handlers = append(e.handlers, handler)
	e.logger.Debug("registered new notification handler", "handler_count", len(e.handlers))
}

// Notify publishes the notification to all registered handlers.
// If any handler returns an error, the notification is still sent to all
// other handlers, and the first error encountered is returned.
func (e *InMemoryEventEmitter) Notify(ctx context.Context, n Notification) error {
	e.mu.RLock()
	handlers := make([]Handler, len(e.handlers))
	copy(handlers, e.handlers)
	e.mu.RUnlock()

	if len(handlers) == 0 {
		e.logger.Debug("no handlers registered for notification",
			"notification_id", n.ID,
			"operation", n.Operation)
		return nil
	}

	var firstErr error
	for i, handler := range handlers {
		if err := handler.HandleNotification(ctx, n); err != nil {
			e.logger.Error("handler failed to process notification",
				"error", err,
				"handler_index", i,
				"notification_id", n.ID,
				"operation", n.Operation)
			if firstErr == nil {
				firstErr = err
			}
		}
	}

	return firstErr
}

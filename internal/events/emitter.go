package events

import (
	"context"
	"log/slog"
	"sync"
)

// InMemoryEventEmitter dispatches events synchronously to handlers
// registered in memory. It is the only emitter the server needs while
// submission and processing live in the same process.
type InMemoryEventEmitter struct {
	handlers []EventHandler
	mu       sync.RWMutex
	logger   *slog.Logger
}

var _ EventEmitter = (*InMemoryEventEmitter)(nil)

// NewInMemoryEventEmitter creates a new InMemoryEventEmitter.
func NewInMemoryEventEmitter(log *slog.Logger) *InMemoryEventEmitter {
	if log == nil {
		log = slog.Default()
	}
	return &InMemoryEventEmitter{
		handlers: make([]EventHandler, 0),
		logger:   log.With(slog.String("component", "event_emitter")),
	}
}

// RegisterHandler adds a handler that will receive all subsequent events.
func (e *InMemoryEventEmitter) RegisterHandler(handler EventHandler) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.handlers = append(e.handlers, handler)
	e.logger.Debug("registered event handler",
		slog.Int("handler_count", len(e.handlers)))
}

// EmitEvent publishes the given event to all registered handlers. Every
// handler sees the event even if an earlier one fails; the first error
// encountered is returned.
func (e *InMemoryEventEmitter) EmitEvent(ctx context.Context, event *TaskRequestEvent) error {
	e.mu.RLock()
	handlers := make([]EventHandler, len(e.handlers))
	copy(handlers, e.handlers)
	e.mu.RUnlock()

	if len(handlers) == 0 {
		e.logger.Warn("no handlers registered for event",
			slog.String("event_id", event.ID.String()),
			slog.String("event_type", event.Type))
		return nil
	}

	e.logger.Debug("emitting event",
		slog.String("event_id", event.ID.String()),
		slog.String("event_type", event.Type),
		slog.Int("handler_count", len(handlers)))

	var firstErr error
	for i, handler := range handlers {
		if err := handler.HandleEvent(ctx, event); err != nil {
			e.logger.Error("handler failed to process event",
				slog.String("error", err.Error()),
				slog.Int("handler_index", i),
				slog.String("event_id", event.ID.String()),
				slog.String("event_type", event.Type))
			if firstErr == nil {
				firstErr = err
			}
		}
	}

	return firstErr
}

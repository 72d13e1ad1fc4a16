package task

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/phrazzld/sage-api/internal/events"
)

// TaskFactory creates tasks from session processing payloads.
type TaskFactory interface {
	CreateTask(payload events.SessionProcessingPayload) (Task, error)
}

// Submitter enqueues tasks for background execution. It is implemented
// by Runner.
type Submitter interface {
	Submit(ctx context.Context, task Task) error
}

// EventHandler turns session processing events into queued pipeline runs.
// It is registered on the event emitter so the submission path never
// imports this package directly.
type EventHandler struct {
	factory TaskFactory
	runner  Submitter
	logger  *slog.Logger
}

var _ events.EventHandler = (*EventHandler)(nil)

// NewEventHandler creates an event handler that builds tasks with the
// given factory and submits them to the runner.
func NewEventHandler(factory TaskFactory, runner Submitter, log *slog.Logger) (*EventHandler, error) {
	if factory == nil {
		return nil, errors.New("task factory cannot be nil")
	}
	if runner == nil {
		return nil, errors.New("runner cannot be nil")
	}
	if log == nil {
		log = slog.Default()
	}

	return &EventHandler{
		factory: factory,
		runner:  runner,
		logger:  log.With(slog.String("component", "task_event_handler")),
	}, nil
}

// HandleEvent processes a task request event by creating and submitting
// the matching task. Events of other types are ignored.
func (h *EventHandler) HandleEvent(ctx context.Context, event *events.TaskRequestEvent) error {
	if event.Type != events.TypeSessionProcessing {
		h.logger.Debug("ignoring event with unsupported type",
			slog.String("event_type", event.Type),
			slog.String("event_id", event.ID.String()))
		return nil
	}

	var payload events.SessionProcessingPayload
	if err := event.UnmarshalPayload(&payload); err != nil {
		h.logger.Error("failed to decode event payload",
			slog.String("error", err.Error()),
			slog.String("event_id", event.ID.String()))
		return fmt.Errorf("failed to decode event payload: %w", err)
	}

	task, err := h.factory.CreateTask(payload)
	if err != nil {
		h.logger.Error("failed to create task",
			slog.String("error", err.Error()),
			slog.String("session_id", payload.SessionID),
			slog.String("event_id", event.ID.String()))
		return fmt.Errorf("failed to create task: %w", err)
	}

	if err := h.runner.Submit(ctx, task); err != nil {
		h.logger.Error("failed to submit task",
			slog.String("error", err.Error()),
			slog.String("task_id", task.ID().String()),
			slog.String("session_id", payload.SessionID),
			slog.String("event_id", event.ID.String()))
		return fmt.Errorf("failed to submit task: %w", err)
	}

	h.logger.Info("session processing task submitted",
		slog.String("task_id", task.ID().String()),
		slog.String("session_id", payload.SessionID),
		slog.String("event_id", event.ID.String()))
	return nil
}

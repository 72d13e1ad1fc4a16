package task

import (
	"context"
	"errors"

	"github.com/google/uuid"
)

// Common errors returned by the queue and the runner.
var (
	ErrQueueClosed   = errors.New("task queue is closed")
	ErrQueueFull     = errors.New("task queue is full")
	ErrDuplicateTask = errors.New("a task for this session is already queued or running")
)

// TaskTypeSessionProcessing identifies tasks that run the document
// processing pipeline for one uploaded session.
const TaskTypeSessionProcessing = "session_processing"

// Task represents a unit of background work to be processed.
type Task interface {
	// ID returns the task's unique identifier.
	ID() uuid.UUID

	// Type returns the task type identifier.
	Type() string

	// SessionID returns the session this task operates on. The runner
	// admits at most one queued-or-running task per session.
	SessionID() string

	// Payload returns the task data serialized for diagnostics.
	Payload() []byte

	// Execute runs the task logic.
	Execute(ctx context.Context) error
}

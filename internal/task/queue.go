package task

import (
	"fmt"
	"log/slog"
	"sync"
)

// Queue is a bounded in-memory task queue. Enqueue fails fast when the
// buffer is full so submission surfaces back-pressure instead of blocking
// an HTTP request.
type Queue struct {
	tasks  chan Task
	mu     sync.Mutex
	closed bool
	logger *slog.Logger
}

// NewQueue creates a task queue with the given buffer size.
func NewQueue(size int, log *slog.Logger) *Queue {
	if log == nil {
		log = slog.Default()
	}
	return &Queue{
		tasks:  make(chan Task, size),
		logger: log.With(slog.String("component", "task_queue")),
	}
}

// Enqueue adds a task to the queue. It returns ErrQueueClosed after Close
// and ErrQueueFull when the buffer has no room.
func (q *Queue) Enqueue(task Task) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return ErrQueueClosed
	}

	select {
	case q.tasks <- task:
		q.logger.Debug("task enqueued",
			slog.String("task_id", task.ID().String()),
			slog.String("task_type", task.Type()),
			slog.Int("queue_len", len(q.tasks)),
			slog.Int("queue_cap", cap(q.tasks)))
		return nil
	default:
		return fmt.Errorf("%w: queue capacity %d reached", ErrQueueFull, cap(q.tasks))
	}
}

// Close closes the queue, preventing further submission. Buffered tasks
// remain readable until drained.
func (q *Queue) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()

	if !q.closed {
		q.closed = true
		close(q.tasks)
		q.logger.Info("task queue closed")
	}
}

// GetChannel returns a read-only channel for consuming tasks.
func (q *Queue) GetChannel() <-chan Task {
	return q.tasks
}

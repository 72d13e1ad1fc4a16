package task

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"
)

// Config holds the runner's worker pool settings.
type Config struct {
	// WorkerCount determines how many concurrent workers process tasks.
	WorkerCount int

	// QueueSize determines the buffer size of the task queue.
	QueueSize int

	// SoftTimeout cancels a task's context so it can abort gracefully.
	SoftTimeout time.Duration

	// HardTimeout is the wall-clock limit after which the runner abandons
	// the task's result and frees the worker. It should exceed SoftTimeout
	// by enough for cancellation to propagate.
	HardTimeout time.Duration

	// MaxTasksPerWorker recycles a worker goroutine after this many
	// completed tasks.
	MaxTasksPerWorker int
}

// DefaultConfig returns a Config with reasonable defaults.
func DefaultConfig() Config {
	return Config{
		WorkerCount:       4,
		QueueSize:         100,
		SoftTimeout:       55 * time.Minute,
		HardTimeout:       time.Hour,
		MaxTasksPerWorker: 50,
	}
}

// normalized fills zero or negative fields with defaults.
func (c Config) normalized() Config {
	d := DefaultConfig()
	if c.WorkerCount <= 0 {
		c.WorkerCount = d.WorkerCount
	}
	if c.QueueSize <= 0 {
		c.QueueSize = d.QueueSize
	}
	if c.SoftTimeout <= 0 {
		c.SoftTimeout = d.SoftTimeout
	}
	if c.HardTimeout <= 0 {
		c.HardTimeout = d.HardTimeout
	}
	if c.MaxTasksPerWorker <= 0 {
		c.MaxTasksPerWorker = d.MaxTasksPerWorker
	}
	return c
}

// Runner manages background task processing. It owns the queue and the
// worker pool and enforces one queued-or-running task per session.
type Runner struct {
	queue     *Queue
	cfg       Config
	active    map[string]struct{}
	mu        sync.Mutex
	ctx       context.Context
	cancel    context.CancelFunc
	wg        sync.WaitGroup
	workerSeq atomic.Int64
	logger    *slog.Logger
}

// NewRunner creates a Runner with the given configuration.
func NewRunner(cfg Config, log *slog.Logger) *Runner {
	if log == nil {
		log = slog.Default()
	}
	cfg = cfg.normalized()

	ctx, cancel := context.WithCancel(context.Background())

	return &Runner{
		queue:  NewQueue(cfg.QueueSize, log),
		cfg:    cfg,
		active: make(map[string]struct{}),
		ctx:    ctx,
		cancel: cancel,
		logger: log.With(slog.String("component", "task_runner")),
	}
}

// Submit adds a task to the queue. It returns ErrDuplicateTask when a task
// for the same session is already queued or running, and ErrQueueFull when
// the queue has no room.
func (r *Runner) Submit(ctx context.Context, task Task) error {
	if task == nil {
		return fmt.Errorf("task cannot be nil")
	}

	sessionID := task.SessionID()
	r.mu.Lock()
	if _, exists := r.active[sessionID]; exists {
		r.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrDuplicateTask, sessionID)
	}
	r.active[sessionID] = struct{}{}
	r.mu.Unlock()

	if err := r.queue.Enqueue(task); err != nil {
		r.release(sessionID)
		return err
	}

	r.logger.Debug("task submitted",
		slog.String("task_id", task.ID().String()),
		slog.String("task_type", task.Type()),
		slog.String("session_id", sessionID))
	return nil
}

// Start launches the worker pool.
func (r *Runner) Start() {
	for i := 0; i < r.cfg.WorkerCount; i++ {
		r.wg.Add(1)
		go r.worker(r.workerSeq.Add(1))
	}
	r.logger.Info("task runner started",
		slog.Int("worker_count", r.cfg.WorkerCount),
		slog.Int("queue_size", r.cfg.QueueSize))
}

// Stop gracefully shuts down the runner. In-flight tasks see their context
// cancelled and are waited for; buffered tasks are discarded.
func (r *Runner) Stop() {
	r.cancel()
	r.wg.Wait()
	r.queue.Close()
	r.logger.Info("task runner stopped")
}

// release frees a session for resubmission.
func (r *Runner) release(sessionID string) {
	r.mu.Lock()
	delete(r.active, sessionID)
	r.mu.Unlock()
}

// worker consumes tasks until the runner stops or its recycle limit is
// reached, at which point it spawns a replacement and exits.
func (r *Runner) worker(id int64) {
	defer r.wg.Done()

	log := r.logger.With(slog.Int64("worker_id", id))
	log.Debug("worker started")

	processed := 0
	for {
		select {
		case <-r.ctx.Done():
			log.Debug("worker stopped")
			return

		case task, ok := <-r.queue.GetChannel():
			if !ok {
				log.Debug("task channel closed, worker stopped")
				return
			}

			r.runTask(task, log)

			processed++
			if processed >= r.cfg.MaxTasksPerWorker {
				log.Debug("recycling worker",
					slog.Int("tasks_processed", processed))
				if r.ctx.Err() == nil {
					r.wg.Add(1)
					go r.worker(r.workerSeq.Add(1))
				}
				return
			}
		}
	}
}

// runTask executes a single task under the configured deadlines. The soft
// deadline cancels the task's context; the hard deadline abandons the
// result so a stuck task cannot hold a worker forever.
func (r *Runner) runTask(task Task, workerLog *slog.Logger) {
	defer r.release(task.SessionID())

	log := workerLog.With(
		slog.String("task_id", task.ID().String()),
		slog.String("task_type", task.Type()),
		slog.String("session_id", task.SessionID()))

	softCtx, cancel := context.WithTimeout(r.ctx, r.cfg.SoftTimeout)
	defer cancel()

	start := time.Now()
	done := make(chan error, 1)
	go func() {
		done <- task.Execute(softCtx)
	}()

	hard := time.NewTimer(r.cfg.HardTimeout)
	defer hard.Stop()

	log.Info("task started")

	select {
	case err := <-done:
		if err != nil {
			log.Error("task failed",
				slog.String("error", err.Error()),
				slog.Duration("elapsed", time.Since(start)))
			return
		}
		log.Info("task completed",
			slog.Duration("elapsed", time.Since(start)))

	case <-hard.C:
		log.Error("task exceeded hard timeout, abandoning result",
			slog.Duration("elapsed", time.Since(start)))
	}
}

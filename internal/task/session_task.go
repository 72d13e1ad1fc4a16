package task

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/bytedance/sonic"
	"github.com/google/uuid"
	"github.com/phrazzld/sage-api/internal/domain"
	"github.com/phrazzld/sage-api/internal/events"
	"github.com/phrazzld/sage-api/internal/pipeline"
)

// Pipeline runs the document processing pipeline for one session. It is
// implemented by pipeline.Orchestrator.
type Pipeline interface {
	Run(ctx context.Context, req pipeline.Request) (*domain.Result, error)
}

// SessionTask executes one session's pipeline run. The pipeline records
// all outcomes on the session itself; the task only reports execution
// success or failure back to the runner.
type SessionTask struct {
	id       uuid.UUID
	req      pipeline.Request
	pipeline Pipeline
	logger   *slog.Logger
}

var _ Task = (*SessionTask)(nil)

// NewSessionTask creates a task that processes the given session request.
func NewSessionTask(req pipeline.Request, p Pipeline, log *slog.Logger) (*SessionTask, error) {
	if p == nil {
		return nil, errors.New("pipeline cannot be nil")
	}
	if req.SessionID == "" {
		return nil, errors.New("session ID cannot be empty")
	}
	if log == nil {
		log = slog.Default()
	}

	return &SessionTask{
		id:       uuid.New(),
		req:      req,
		pipeline: p,
		logger: log.With(
			slog.String("task_type", TaskTypeSessionProcessing),
			slog.String("session_id", req.SessionID)),
	}, nil
}

// ID returns the task's unique identifier.
func (t *SessionTask) ID() uuid.UUID {
	return t.id
}

// Type returns the task type identifier.
func (t *SessionTask) Type() string {
	return TaskTypeSessionProcessing
}

// SessionID returns the session this task processes.
func (t *SessionTask) SessionID() string {
	return t.req.SessionID
}

// Payload returns the request serialized for diagnostics. The provider
// API key is stripped so it cannot leak into logs or dumps.
func (t *SessionTask) Payload() []byte {
	redacted := t.req
	redacted.APIKey = ""

	data, err := sonic.Marshal(redacted)
	if err != nil {
		t.logger.Error("failed to marshal task payload",
			slog.String("error", err.Error()))
		return nil
	}
	return data
}

// Execute runs the pipeline for this session.
func (t *SessionTask) Execute(ctx context.Context) error {
	t.logger.Info("starting session processing")

	result, err := t.pipeline.Run(ctx, t.req)
	if err != nil {
		// The pipeline has already recorded the failure on the session.
		return fmt.Errorf("session processing failed: %w", err)
	}

	t.logger.Info("session processing finished",
		slog.String("document_id", result.DocumentID),
		slog.Int("questions_processed", result.QuestionsProcessed))
	return nil
}

// SessionTaskFactory builds SessionTasks bound to a pipeline.
type SessionTaskFactory struct {
	pipeline Pipeline
	logger   *slog.Logger
}

// NewSessionTaskFactory creates a factory for session processing tasks.
func NewSessionTaskFactory(p Pipeline, log *slog.Logger) (*SessionTaskFactory, error) {
	if p == nil {
		return nil, errors.New("pipeline cannot be nil")
	}
	if log == nil {
		log = slog.Default()
	}
	return &SessionTaskFactory{pipeline: p, logger: log}, nil
}

// CreateTask builds a SessionTask from an event payload.
func (f *SessionTaskFactory) CreateTask(payload events.SessionProcessingPayload) (Task, error) {
	return NewSessionTask(pipeline.Request{
		SessionID: payload.SessionID,
		InputPath: payload.InputPath,
		Format:    payload.Format,
		Language:  payload.Language,
		Provider:  payload.Provider,
		APIKey:    payload.APIKey,
		Model:     payload.Model,
	}, f.pipeline, f.logger)
}

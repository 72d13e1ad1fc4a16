package task

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/phrazzld/sage-api/internal/domain"
	"github.com/phrazzld/sage-api/internal/events"
	"github.com/phrazzld/sage-api/internal/pipeline"
)

// stubPipeline records the request it receives and returns canned results.
type stubPipeline struct {
	result *domain.Result
	err    error
	gotReq pipeline.Request
	calls  int
}

func (s *stubPipeline) Run(ctx context.Context, req pipeline.Request) (*domain.Result, error) {
	s.gotReq = req
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	if s.result != nil {
		return s.result, nil
	}
	return &domain.Result{Success: true, DocumentID: "pdf_20250601_120000_1", QuestionsProcessed: 3}, nil
}

func sampleRequest() pipeline.Request {
	return pipeline.Request{
		SessionID: "abc123def456",
		InputPath: "/spool/abc123def456.txt",
		Format:    "text",
		Language:  "en",
		Provider:  "gemini",
		APIKey:    "super-secret-key",
		Model:     "gemini-test",
	}
}

func TestNewSessionTask(t *testing.T) {
	t.Parallel()

	t.Run("nil pipeline", func(t *testing.T) {
		t.Parallel()
		_, err := NewSessionTask(sampleRequest(), nil, quietLogger())
		assert.EqualError(t, err, "pipeline cannot be nil")
	})

	t.Run("empty session ID", func(t *testing.T) {
		t.Parallel()
		req := sampleRequest()
		req.SessionID = ""
		_, err := NewSessionTask(req, &stubPipeline{}, quietLogger())
		assert.EqualError(t, err, "session ID cannot be empty")
	})

	t.Run("nil logger falls back to default", func(t *testing.T) {
		t.Parallel()
		task, err := NewSessionTask(sampleRequest(), &stubPipeline{}, nil)
		require.NoError(t, err)
		assert.NotNil(t, task)
	})
}

func TestSessionTaskAccessors(t *testing.T) {
	t.Parallel()

	task, err := NewSessionTask(sampleRequest(), &stubPipeline{}, quietLogger())
	require.NoError(t, err)

	assert.NotEqual(t, uuid.Nil, task.ID())
	assert.Equal(t, TaskTypeSessionProcessing, task.Type())
	assert.Equal(t, "abc123def456", task.SessionID())
}

func TestSessionTaskPayloadRedactsAPIKey(t *testing.T) {
	t.Parallel()

	task, err := NewSessionTask(sampleRequest(), &stubPipeline{}, quietLogger())
	require.NoError(t, err)

	payload := string(task.Payload())
	assert.Contains(t, payload, "abc123def456")
	assert.Contains(t, payload, "gemini")
	assert.NotContains(t, payload, "super-secret-key")
}

func TestSessionTaskExecute(t *testing.T) {
	t.Parallel()

	t.Run("success", func(t *testing.T) {
		t.Parallel()

		p := &stubPipeline{}
		task, err := NewSessionTask(sampleRequest(), p, quietLogger())
		require.NoError(t, err)

		require.NoError(t, task.Execute(context.Background()))
		assert.Equal(t, 1, p.calls)
		assert.Equal(t, sampleRequest(), p.gotReq)
	})

	t.Run("pipeline failure", func(t *testing.T) {
		t.Parallel()

		cause := errors.New("assembly exploded")
		p := &stubPipeline{err: cause}
		task, err := NewSessionTask(sampleRequest(), p, quietLogger())
		require.NoError(t, err)

		execErr := task.Execute(context.Background())
		require.Error(t, execErr)
		assert.ErrorIs(t, execErr, cause)
		assert.Contains(t, execErr.Error(), "session processing failed")
	})
}

func TestSessionTaskFactory(t *testing.T) {
	t.Parallel()

	t.Run("validation", func(t *testing.T) {
		t.Parallel()
		_, err := NewSessionTaskFactory(nil, quietLogger())
		assert.EqualError(t, err, "pipeline cannot be nil")
	})

	t.Run("maps payload onto request", func(t *testing.T) {
		t.Parallel()

		factory, err := NewSessionTaskFactory(&stubPipeline{}, quietLogger())
		require.NoError(t, err)

		created, err := factory.CreateTask(events.SessionProcessingPayload{
			SessionID: "abc123def456",
			InputPath: "/spool/abc123def456.pdf",
			Format:    "pdf",
			Language:  "ar",
			Provider:  "openai",
			APIKey:    "sk-test",
			Model:     "gpt-4o-mini",
		})
		require.NoError(t, err)

		sessionTask, ok := created.(*SessionTask)
		require.True(t, ok)
		assert.Equal(t, pipeline.Request{
			SessionID: "abc123def456",
			InputPath: "/spool/abc123def456.pdf",
			Format:    "pdf",
			Language:  "ar",
			Provider:  "openai",
			APIKey:    "sk-test",
			Model:     "gpt-4o-mini",
		}, sessionTask.req)
	})

	t.Run("rejects empty session ID", func(t *testing.T) {
		t.Parallel()

		factory, err := NewSessionTaskFactory(&stubPipeline{}, quietLogger())
		require.NoError(t, err)

		_, err = factory.CreateTask(events.SessionProcessingPayload{})
		assert.Error(t, err)
	})
}

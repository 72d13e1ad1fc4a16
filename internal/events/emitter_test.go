package events

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInMemoryEventEmitter(t *testing.T) {
	t.Parallel()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	newEvent := func(t *testing.T) *TaskRequestEvent {
		t.Helper()
		event, err := NewSessionProcessingEvent(SessionProcessingPayload{
			SessionID: "abc123def456",
			InputPath: "/spool/abc123def456.txt",
			Format:    "text",
			Language:  "en",
			Provider:  "gemini",
		})
		require.NoError(t, err)
		return event
	}

	t.Run("no handlers registered", func(t *testing.T) {
		t.Parallel()

		emitter := NewInMemoryEventEmitter(logger)

		err := emitter.EmitEvent(context.Background(), newEvent(t))
		assert.NoError(t, err)
	})

	t.Run("all handlers receive the event", func(t *testing.T) {
		t.Parallel()

		emitter := NewInMemoryEventEmitter(logger)
		handler1 := &MockEventHandler{}
		handler2 := &MockEventHandler{}
		emitter.RegisterHandler(handler1)
		emitter.RegisterHandler(handler2)

		event := newEvent(t)
		err := emitter.EmitEvent(context.Background(), event)
		assert.NoError(t, err)

		assert.Equal(t, 1, handler1.HandledCount)
		assert.Equal(t, 1, handler2.HandledCount)
		assert.Equal(t, event, handler1.LastEvent)
		assert.Equal(t, event, handler2.LastEvent)
	})

	t.Run("failing handler does not block the others", func(t *testing.T) {
		t.Parallel()

		emitter := NewInMemoryEventEmitter(logger)
		failing := &MockEventHandler{HandlerError: errors.New("handler error")}
		succeeding := &MockEventHandler{}
		emitter.RegisterHandler(failing)
		emitter.RegisterHandler(succeeding)

		err := emitter.EmitEvent(context.Background(), newEvent(t))
		assert.Error(t, err)
		assert.Equal(t, "handler error", err.Error())

		assert.Equal(t, 1, failing.HandledCount)
		assert.Equal(t, 1, succeeding.HandledCount)
	})

	t.Run("nil logger falls back to default", func(t *testing.T) {
		t.Parallel()

		emitter := NewInMemoryEventEmitter(nil)
		assert.NotNil(t, emitter)
	})
}

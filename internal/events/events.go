package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/bytedance/sonic"
	"github.com/google/uuid"
)

// TypeSessionProcessing identifies events that request the document
// processing pipeline to run for an uploaded session.
const TypeSessionProcessing = "session_processing"

// TaskRequestEvent represents a request to run a background task. It carries
// the task payload as raw JSON so the submission path stays free of a direct
// dependency on the task layer.
type TaskRequestEvent struct {
	// ID is a unique identifier for this event.
	ID uuid.UUID `json:"id"`

	// Type indicates which kind of task should be created.
	Type string `json:"type"`

	// Payload contains the task-specific data serialized as JSON.
	Payload json.RawMessage `json:"payload"`

	// CreatedAt is when the event was created.
	CreatedAt time.Time `json:"created_at"`
}

// UnmarshalPayload decodes the event payload into the provided structure.
func (e *TaskRequestEvent) UnmarshalPayload(v any) error {
	return sonic.Unmarshal(e.Payload, v)
}

// NewTaskRequestEvent creates a TaskRequestEvent with the given type and payload.
func NewTaskRequestEvent(eventType string, payload any) (*TaskRequestEvent, error) {
	payloadBytes, err := sonic.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to encode event payload: %w", err)
	}

	return &TaskRequestEvent{
		ID:        uuid.New(),
		Type:      eventType,
		Payload:   payloadBytes,
		CreatedAt: time.Now().UTC(),
	}, nil
}

// SessionProcessingPayload is the payload for TypeSessionProcessing events.
// It names the staged input and the provider configuration the pipeline
// should use for this run.
type SessionProcessingPayload struct {
	SessionID string `json:"session_id"`
	InputPath string `json:"input_path"`
	Format    string `json:"format"`
	Language  string `json:"language"`
	Provider  string `json:"provider"`
	APIKey    string `json:"api_key,omitempty"`
	Model     string `json:"model,omitempty"`
}

// NewSessionProcessingEvent creates a TaskRequestEvent carrying the given
// session processing payload.
func NewSessionProcessingEvent(payload SessionProcessingPayload) (*TaskRequestEvent, error) {
	return NewTaskRequestEvent(TypeSessionProcessing, payload)
}

// EventHandler defines an interface for components that can handle events.
type EventHandler interface {
	// HandleEvent processes the given event within the provided context.
	// Returns an error if the event cannot be handled successfully.
	HandleEvent(ctx context.Context, event *TaskRequestEvent) error
}

// EventEmitter defines an interface for components that can emit events.
// Services publish events through it without direct knowledge of handlers.
type EventEmitter interface {
	// EmitEvent publishes the given event to all registered handlers.
	// Returns an error if the event cannot be emitted.
	EmitEvent(ctx context.Context, event *TaskRequestEvent) error
}

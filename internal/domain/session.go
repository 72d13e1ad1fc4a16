package domain

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

// SessionStatus represents the processing state of a session
type SessionStatus string

// Possible session status values
const (
	SessionStatusPending    SessionStatus = "pending"
	SessionStatusProcessing SessionStatus = "processing"
	SessionStatusComplete   SessionStatus = "complete"
	SessionStatusError      SessionStatus = "error"
)

// Common validation errors for Session
var (
	ErrEmptySessionID          = errors.New("session ID cannot be empty")
	ErrEmptySessionLanguage    = errors.New("session language cannot be empty")
	ErrInvalidSessionStatus    = errors.New("invalid session status")
	ErrInvalidStatusTransition = errors.New("invalid session status transition")
)

// Session represents one end-to-end processing request: a document of
// questions submitted for answer generation. It tracks the target language,
// caller-supplied metadata, and the pipeline's processing state.
type Session struct {
	ID        string            `json:"id"`
	Status    SessionStatus     `json:"status"`
	Language  string            `json:"language"`
	Metadata  map[string]string `json:"metadata,omitempty"`
	CreatedAt time.Time         `json:"created_at"`
	UpdatedAt time.Time         `json:"updated_at"`
}

// NewSession creates a new Session with the given identifier, target language,
// and metadata. An empty identifier is replaced with a generated UUID, so
// callers may supply their own opaque tokens or defer to the system.
// The session starts in the pending state.
// Returns an error if validation fails.
func NewSession(id, language string, metadata map[string]string) (*Session, error) {
	if id == "" {
		id = uuid.New().String()
	}

	session := &Session{
		ID:        id,
		Status:    SessionStatusPending,
		Language:  language,
		Metadata:  metadata,
		CreatedAt: time.Now().UTC(),
		UpdatedAt: time.Now().UTC(),
	}

	if err := session.Validate(); err != nil {
		return nil, err
	}

	return session, nil
}

// Validate checks if the Session has valid data.
// Returns an error if any field fails validation.
func (s *Session) Validate() error {
	if s.ID == "" {
		return ErrEmptySessionID
	}

	if s.Language == "" {
		return ErrEmptySessionLanguage
	}

	if !isValidSessionStatus(s.Status) {
		return ErrInvalidSessionStatus
	}

	return nil
}

// UpdateStatus transitions the session to the given status and refreshes the
// UpdatedAt timestamp. Transitions run forward only: pending to processing,
// and processing to one of the terminal states. A terminal state is never
// exited. Returns an error for any other transition.
func (s *Session) UpdateStatus(status SessionStatus) error {
	if !isValidSessionStatus(status) {
		return ErrInvalidSessionStatus
	}

	if !CanTransitionStatus(s.Status, status) {
		return ErrInvalidStatusTransition
	}

	s.Status = status
	s.UpdatedAt = time.Now().UTC()
	return nil
}

// IsTerminal reports whether the status is one of the terminal states.
func (status SessionStatus) IsTerminal() bool {
	return status == SessionStatusComplete || status == SessionStatusError
}

// CanTransitionStatus reports whether moving a session from one status to
// another preserves the monotonic pending -> processing -> terminal order.
func CanTransitionStatus(from, to SessionStatus) bool {
	switch from {
	case SessionStatusPending:
		return to == SessionStatusProcessing || to == SessionStatusError
	case SessionStatusProcessing:
		return to == SessionStatusComplete || to == SessionStatusError
	default:
		return false
	}
}

// isValidSessionStatus checks if the given status is a valid SessionStatus.
func isValidSessionStatus(status SessionStatus) bool {
	switch status {
	case SessionStatusPending, SessionStatusProcessing, SessionStatusComplete, SessionStatusError:
		return true
	default:
		return false
	}
}

// ProgressEvent is one entry in a session's append-only progress log.
// Percentage is the overall pipeline progress at the time of the event.
type ProgressEvent struct {
	SessionID  string    `json:"session_id"`
	Stage      string    `json:"stage"`
	Percentage int       `json:"percentage"`
	Message    string    `json:"message"`
	Timestamp  time.Time `json:"timestamp"`
}

// Progress is the denormalized latest-progress projection maintained by the
// session store for O(1) status reads.
type Progress struct {
	Percentage int           `json:"percentage"`
	Stage      string        `json:"stage"`
	Status     SessionStatus `json:"status"`
}

// AnswerPreview is one entry in a session's ordered answer list, appended as
// soon as each question's answer is generated so callers polling mid-pipeline
// see partial results. Index is the zero-based question index; regeneration
// replaces the entry in place, keyed on that index.
type AnswerPreview struct {
	Index        int       `json:"index"`
	Question     string    `json:"question"`
	Answer       string    `json:"answer"`
	DiagramCount int       `json:"diagram_count"`
	Timestamp    time.Time `json:"timestamp"`
}

// Result is the terminal payload of a pipeline run, written exactly once at
// completion or abort. On success it identifies the persisted document and
// carries generation counts; on failure it carries the error message, the
// error category, and a diagnostic trace.
type Result struct {
	Success            bool   `json:"success"`
	DocumentID         string `json:"document_id,omitempty"`
	Filename           string `json:"filename,omitempty"`
	PageCount          int    `json:"page_count,omitempty"`
	QuestionsProcessed int    `json:"questions_processed,omitempty"`
	AnswersGenerated   int    `json:"answers_generated,omitempty"`
	DiagramsGenerated  int    `json:"diagrams_generated,omitempty"`
	Error              string `json:"error,omitempty"`
	ErrorType          string `json:"error_type,omitempty"`
	Trace              string `json:"trace,omitempty"`
}

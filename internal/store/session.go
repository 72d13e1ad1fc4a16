package store

import (
	"context"
	"time"

	"github.com/phrazzld/sage-api/internal/domain"
)

// SessionStore defines the interface for session state persistence: session
// metadata, the append-only progress log, the ordered answer-preview list,
// and the terminal result. All four entities share one TTL per session, and
// every write refreshes it, so an actively-progressing session never expires
// mid-pipeline while an abandoned one ages out as a unit.
//
// The store enforces no status-transition legality and no cross-call
// transactional isolation. The pipeline orchestrator is the sole status
// writer; callers must ensure at most one pipeline run is active per
// session identifier at a time.
// Version: 1.0
type SessionStore interface {
	// CreateSession writes the initial pending record for a session.
	// An empty id is replaced with a generated one; the effective
	// identifier is returned either way.
	// Fails only if the backing store is unavailable.
	CreateSession(ctx context.Context, id, language string, metadata map[string]string) (string, error)

	// GetSession retrieves a session's metadata record.
	// Returns ErrSessionNotFound if the session does not exist or expired.
	GetSession(ctx context.Context, id string) (*domain.Session, error)

	// SetStatus overwrites the session's status field and refreshes the TTL.
	// Returns ErrSessionNotFound if the session does not exist.
	SetStatus(ctx context.Context, id string, status domain.SessionStatus) error

	// AppendProgress appends one event to the session's progress log and
	// updates the latest-progress projection atomically with the append.
	// Returns ErrSessionNotFound if the session does not exist.
	AppendProgress(ctx context.Context, event domain.ProgressEvent) error

	// GetLatestProgress returns the denormalized latest-progress projection
	// (percentage, stage, status) without reading the full event log.
	// Returns ErrSessionNotFound if the session does not exist.
	GetLatestProgress(ctx context.Context, id string) (*domain.Progress, error)

	// GetProgressEvents returns the full progress log in append order.
	// Returns ErrSessionNotFound if the session does not exist.
	GetProgressEvents(ctx context.Context, id string) ([]domain.ProgressEvent, error)

	// StoreResult writes the session's terminal result. The slot is written
	// once per session, at pipeline completion or abort.
	// Returns ErrSessionNotFound if the session does not exist.
	StoreResult(ctx context.Context, id string, result *domain.Result) error

	// GetResult retrieves the terminal result.
	// Returns ErrResultNotFound if no result has been stored yet and
	// ErrSessionNotFound if the session does not exist.
	GetResult(ctx context.Context, id string) (*domain.Result, error)

	// AppendAnswerPreview appends one entry to the session's answer list.
	// Returns ErrSessionNotFound if the session does not exist.
	AppendAnswerPreview(ctx context.Context, id string, preview domain.AnswerPreview) error

	// UpdateAnswerPreview locates the preview entry whose Index matches and
	// replaces its answer text and timestamp in place. It is a no-op if no
	// entry carries that index.
	// Returns ErrSessionNotFound if the session does not exist.
	UpdateAnswerPreview(ctx context.Context, id string, index int, answer string) error

	// GetAnswerPreviews returns the answer list in append order.
	// Returns ErrSessionNotFound if the session does not exist.
	GetAnswerPreviews(ctx context.Context, id string) ([]domain.AnswerPreview, error)

	// DeleteSession removes the session and all entities stored under it.
	// Deleting an unknown session is not an error.
	DeleteSession(ctx context.Context, id string) error
}

// DefaultSessionTTL is how long an untouched session survives before the
// store evicts it together with its progress log, answers, and result.
const DefaultSessionTTL = time.Hour

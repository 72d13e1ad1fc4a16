// Package memstore provides an in-memory implementation of the session store,
// used for local development and as the reference implementation in tests.
// Records carry per-session expiry and are evicted lazily on access, so TTL
// behavior matches the Redis-backed store without a background sweeper.
package memstore

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/phrazzld/sage-api/internal/domain"
	"github.com/phrazzld/sage-api/internal/platform/logger"
	"github.com/phrazzld/sage-api/internal/store"
)

// sessionRecord bundles the four entities stored under one session
// identifier. They share a single expiry so an abandoned session ages out
// as a unit.
type sessionRecord struct {
	session   domain.Session
	events    []domain.ProgressEvent
	latestPct int
	latestStg string
	previews  []domain.AnswerPreview
	result    *domain.Result
	expiresAt time.Time
}

// MemorySessionStore implements the store.SessionStore interface with a
// mutex-guarded map. All returned values are deep copies so callers can
// never mutate stored state through aliasing.
type MemorySessionStore struct {
	mu       sync.Mutex
	sessions map[string]*sessionRecord
	ttl      time.Duration
	logger   *slog.Logger

	// now is the clock used for TTL bookkeeping and write timestamps.
	// Tests replace it to drive expiry deterministically.
	now func() time.Time
}

// NewMemorySessionStore creates a new in-memory implementation of the
// SessionStore interface. A non-positive ttl falls back to
// store.DefaultSessionTTL. If logger is nil, a default logger will be used.
func NewMemorySessionStore(ttl time.Duration, log *slog.Logger) *MemorySessionStore {
	if ttl <= 0 {
		ttl = store.DefaultSessionTTL
	}
	if log == nil {
		log = slog.Default()
	}

	return &MemorySessionStore{
		sessions: make(map[string]*sessionRecord),
		ttl:      ttl,
		logger:   log.With(slog.String("component", "session_store")),
		now:      time.Now,
	}
}

// Ensure MemorySessionStore implements store.SessionStore interface
var _ store.SessionStore = (*MemorySessionStore)(nil)

// lookupLocked returns the live record for id, evicting it first if its TTL
// has lapsed. Callers must hold s.mu.
func (s *MemorySessionStore) lookupLocked(id string, now time.Time) *sessionRecord {
	rec, ok := s.sessions[id]
	if !ok {
		return nil
	}
	if now.After(rec.expiresAt) {
		delete(s.sessions, id)
		return nil
	}
	return rec
}

// touchLocked refreshes the record's TTL window. Callers must hold s.mu.
func (s *MemorySessionStore) touchLocked(rec *sessionRecord, now time.Time) {
	rec.expiresAt = now.Add(s.ttl)
}

// CreateSession implements store.SessionStore.CreateSession
// It writes the initial pending record, replacing any existing state under
// the same identifier, and returns the effective session ID.
func (s *MemorySessionStore) CreateSession(
	ctx context.Context,
	id, language string,
	metadata map[string]string,
) (string, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	session, err := domain.NewSession(id, language, copyMetadata(metadata))
	if err != nil {
		log.Warn("session validation failed during create",
			slog.String("error", err.Error()),
			slog.String("session_id", id))
		return "", err
	}

	now := s.now()

	s.mu.Lock()
	rec := &sessionRecord{session: *session}
	s.touchLocked(rec, now)
	s.sessions[session.ID] = rec
	s.mu.Unlock()

	log.Info("session created",
		slog.String("session_id", session.ID),
		slog.String("language", session.Language))
	return session.ID, nil
}

// GetSession implements store.SessionStore.GetSession
// Returns store.ErrSessionNotFound if the session does not exist or expired.
func (s *MemorySessionStore) GetSession(ctx context.Context, id string) (*domain.Session, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	s.mu.Lock()
	defer s.mu.Unlock()

	rec := s.lookupLocked(id, s.now())
	if rec == nil {
		log.Debug("session not found", slog.String("session_id", id))
		return nil, store.ErrSessionNotFound
	}

	session := rec.session
	session.Metadata = copyMetadata(rec.session.Metadata)
	return &session, nil
}

// SetStatus implements store.SessionStore.SetStatus
// It overwrites the status field without transition checks; legality is the
// pipeline's responsibility.
// Returns store.ErrSessionNotFound if the session does not exist.
func (s *MemorySessionStore) SetStatus(ctx context.Context, id string, status domain.SessionStatus) error {
	log := logger.FromContextOrDefault(ctx, s.logger)

	now := s.now()

	s.mu.Lock()
	defer s.mu.Unlock()

	rec := s.lookupLocked(id, now)
	if rec == nil {
		log.Debug("session not found for status update", slog.String("session_id", id))
		return store.ErrSessionNotFound
	}

	rec.session.Status = status
	rec.session.UpdatedAt = now.UTC()
	s.touchLocked(rec, now)

	log.Info("session status updated",
		slog.String("session_id", id),
		slog.String("status", string(status)))
	return nil
}

// AppendProgress implements store.SessionStore.AppendProgress
// The event append and the latest-progress projection update happen under
// one lock acquisition, so readers never observe one without the other.
// Returns store.ErrSessionNotFound if the session does not exist.
func (s *MemorySessionStore) AppendProgress(ctx context.Context, event domain.ProgressEvent) error {
	log := logger.FromContextOrDefault(ctx, s.logger)

	now := s.now()

	s.mu.Lock()
	defer s.mu.Unlock()

	rec := s.lookupLocked(event.SessionID, now)
	if rec == nil {
		log.Debug("session not found for progress append",
			slog.String("session_id", event.SessionID))
		return store.ErrSessionNotFound
	}

	if event.Timestamp.IsZero() {
		event.Timestamp = now.UTC()
	}
	rec.events = append(rec.events, event)
	rec.latestPct = event.Percentage
	rec.latestStg = event.Stage
	s.touchLocked(rec, now)

	log.Debug("progress event appended",
		slog.String("session_id", event.SessionID),
		slog.String("stage", event.Stage),
		slog.Int("percentage", event.Percentage))
	return nil
}

// GetLatestProgress implements store.SessionStore.GetLatestProgress
// It reads the denormalized projection; the full event log is untouched.
// Returns store.ErrSessionNotFound if the session does not exist.
func (s *MemorySessionStore) GetLatestProgress(ctx context.Context, id string) (*domain.Progress, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	s.mu.Lock()
	defer s.mu.Unlock()

	rec := s.lookupLocked(id, s.now())
	if rec == nil {
		log.Debug("session not found for progress read", slog.String("session_id", id))
		return nil, store.ErrSessionNotFound
	}

	return &domain.Progress{
		Percentage: rec.latestPct,
		Stage:      rec.latestStg,
		Status:     rec.session.Status,
	}, nil
}

// GetProgressEvents implements store.SessionStore.GetProgressEvents
// Returns store.ErrSessionNotFound if the session does not exist.
func (s *MemorySessionStore) GetProgressEvents(ctx context.Context, id string) ([]domain.ProgressEvent, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	s.mu.Lock()
	defer s.mu.Unlock()

	rec := s.lookupLocked(id, s.now())
	if rec == nil {
		log.Debug("session not found for event log read", slog.String("session_id", id))
		return nil, store.ErrSessionNotFound
	}

	events := make([]domain.ProgressEvent, len(rec.events))
	copy(events, rec.events)
	return events, nil
}

// StoreResult implements store.SessionStore.StoreResult
// Returns store.ErrSessionNotFound if the session does not exist.
func (s *MemorySessionStore) StoreResult(ctx context.Context, id string, result *domain.Result) error {
	log := logger.FromContextOrDefault(ctx, s.logger)

	now := s.now()

	s.mu.Lock()
	defer s.mu.Unlock()

	rec := s.lookupLocked(id, now)
	if rec == nil {
		log.Debug("session not found for result write", slog.String("session_id", id))
		return store.ErrSessionNotFound
	}

	stored := *result
	rec.result = &stored
	s.touchLocked(rec, now)

	log.Info("session result stored",
		slog.String("session_id", id),
		slog.Bool("success", result.Success))
	return nil
}

// GetResult implements store.SessionStore.GetResult
// Returns store.ErrResultNotFound if no result has been stored yet and
// store.ErrSessionNotFound if the session does not exist.
func (s *MemorySessionStore) GetResult(ctx context.Context, id string) (*domain.Result, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	s.mu.Lock()
	defer s.mu.Unlock()

	rec := s.lookupLocked(id, s.now())
	if rec == nil {
		log.Debug("session not found for result read", slog.String("session_id", id))
		return nil, store.ErrSessionNotFound
	}
	if rec.result == nil {
		return nil, store.ErrResultNotFound
	}

	result := *rec.result
	return &result, nil
}

// AppendAnswerPreview implements store.SessionStore.AppendAnswerPreview
// Returns store.ErrSessionNotFound if the session does not exist.
func (s *MemorySessionStore) AppendAnswerPreview(
	ctx context.Context,
	id string,
	preview domain.AnswerPreview,
) error {
	log := logger.FromContextOrDefault(ctx, s.logger)

	now := s.now()

	s.mu.Lock()
	defer s.mu.Unlock()

	rec := s.lookupLocked(id, now)
	if rec == nil {
		log.Debug("session not found for answer append", slog.String("session_id", id))
		return store.ErrSessionNotFound
	}

	if preview.Timestamp.IsZero() {
		preview.Timestamp = now.UTC()
	}
	rec.previews = append(rec.previews, preview)
	s.touchLocked(rec, now)

	log.Debug("answer preview appended",
		slog.String("session_id", id),
		slog.Int("index", preview.Index))
	return nil
}

// UpdateAnswerPreview implements store.SessionStore.UpdateAnswerPreview
// It scans for the entry whose Index matches and replaces its answer text
// and timestamp in place. No entry with that index is a no-op, not an error;
// the TTL is refreshed either way.
// Returns store.ErrSessionNotFound if the session does not exist.
func (s *MemorySessionStore) UpdateAnswerPreview(ctx context.Context, id string, index int, answer string) error {
	log := logger.FromContextOrDefault(ctx, s.logger)

	now := s.now()

	s.mu.Lock()
	defer s.mu.Unlock()

	rec := s.lookupLocked(id, now)
	if rec == nil {
		log.Debug("session not found for answer update", slog.String("session_id", id))
		return store.ErrSessionNotFound
	}

	updated := false
	for i := range rec.previews {
		if rec.previews[i].Index == index {
			rec.previews[i].Answer = answer
			rec.previews[i].Timestamp = now.UTC()
			updated = true
			break
		}
	}
	s.touchLocked(rec, now)

	if !updated {
		log.Debug("no answer preview with index, update skipped",
			slog.String("session_id", id),
			slog.Int("index", index))
		return nil
	}

	log.Info("answer preview updated",
		slog.String("session_id", id),
		slog.Int("index", index))
	return nil
}

// GetAnswerPreviews implements store.SessionStore.GetAnswerPreviews
// Returns store.ErrSessionNotFound if the session does not exist.
func (s *MemorySessionStore) GetAnswerPreviews(ctx context.Context, id string) ([]domain.AnswerPreview, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	s.mu.Lock()
	defer s.mu.Unlock()

	rec := s.lookupLocked(id, s.now())
	if rec == nil {
		log.Debug("session not found for answer list read", slog.String("session_id", id))
		return nil, store.ErrSessionNotFound
	}

	previews := make([]domain.AnswerPreview, len(rec.previews))
	copy(previews, rec.previews)
	return previews, nil
}

// DeleteSession implements store.SessionStore.DeleteSession
// Deleting an unknown session is not an error.
func (s *MemorySessionStore) DeleteSession(ctx context.Context, id string) error {
	log := logger.FromContextOrDefault(ctx, s.logger)

	s.mu.Lock()
	_, existed := s.sessions[id]
	delete(s.sessions, id)
	s.mu.Unlock()

	log.Debug("session deleted",
		slog.String("session_id", id),
		slog.Bool("existed", existed))
	return nil
}

// copyMetadata returns an independent copy of a metadata map.
func copyMetadata(metadata map[string]string) map[string]string {
	if metadata == nil {
		return nil
	}
	out := make(map[string]string, len(metadata))
	for k, v := range metadata {
		out[k] = v
	}
	return out
}

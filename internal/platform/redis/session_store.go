package redis

import (
	"context"
	"errors"
	"log/slog"
	"strconv"
	"time"

	"github.com/bytedance/sonic"
	goredis "github.com/redis/go-redis/v9"

	"github.com/phrazzld/sage-api/internal/domain"
	"github.com/phrazzld/sage-api/internal/platform/logger"
	"github.com/phrazzld/sage-api/internal/store"
)

// Session hash field names. The progress and current_stage fields hold the
// latest-progress projection so status polls never read the full event log.
const (
	fieldSessionID = "session_id"
	fieldStatus    = "status"
	fieldLanguage  = "language"
	fieldCreatedAt = "created_at"
	fieldUpdatedAt = "updated_at"
	fieldMetadata  = "metadata"
	fieldProgress  = "progress"
	fieldStage     = "current_stage"
)

// RedisSessionStore implements the store.SessionStore interface using Redis
// as the storage backend.
type RedisSessionStore struct {
	client *goredis.Client
	ttl    time.Duration
	logger *slog.Logger
}

// NewRedisSessionStore creates a new Redis implementation of the
// SessionStore interface. It accepts a connected client that should be
// initialized and managed by the caller. A non-positive ttl falls back to
// store.DefaultSessionTTL. If logger is nil, a default logger will be used.
func NewRedisSessionStore(client *goredis.Client, ttl time.Duration, log *slog.Logger) *RedisSessionStore {
	if client == nil {
		panic("redis client cannot be nil")
	}
	if ttl <= 0 {
		ttl = store.DefaultSessionTTL
	}
	if log == nil {
		log = slog.Default()
	}

	return &RedisSessionStore{
		client: client,
		ttl:    ttl,
		logger: log.With(slog.String("component", "session_store")),
	}
}

// Ensure RedisSessionStore implements store.SessionStore interface
var _ store.SessionStore = (*RedisSessionStore)(nil)

func sessionKey(id string) string  { return "session:" + id }
func progressKey(id string) string { return "progress:" + id }
func answersKey(id string) string  { return "answers:" + id }
func resultKey(id string) string   { return "result:" + id }

// refreshTTL queues TTL refreshes for all four entity keys so they always
// expire together. Expiring a key that does not exist yet is a no-op.
func (s *RedisSessionStore) refreshTTL(ctx context.Context, pipe goredis.Pipeliner, id string) {
	pipe.Expire(ctx, sessionKey(id), s.ttl)
	pipe.Expire(ctx, progressKey(id), s.ttl)
	pipe.Expire(ctx, answersKey(id), s.ttl)
	pipe.Expire(ctx, resultKey(id), s.ttl)
}

// exists reports whether the session hash is present.
func (s *RedisSessionStore) exists(ctx context.Context, id string) (bool, error) {
	n, err := s.client.Exists(ctx, sessionKey(id)).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// CreateSession implements store.SessionStore.CreateSession
// It writes the initial pending record, replacing any existing state under
// the same identifier, and returns the effective session ID.
func (s *RedisSessionStore) CreateSession(
	ctx context.Context,
	id, language string,
	metadata map[string]string,
) (string, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	session, err := domain.NewSession(id, language, metadata)
	if err != nil {
		log.Warn("session validation failed during create",
			slog.String("error", err.Error()),
			slog.String("session_id", id))
		return "", err
	}

	metadataJSON, err := sonic.Marshal(session.Metadata)
	if err != nil {
		return "", store.NewStoreError("session", "create", "failed to encode metadata", err)
	}

	_, err = s.client.TxPipelined(ctx, func(pipe goredis.Pipeliner) error {
		pipe.Del(ctx,
			sessionKey(session.ID),
			progressKey(session.ID),
			answersKey(session.ID),
			resultKey(session.ID))
		pipe.HSet(ctx, sessionKey(session.ID),
			fieldSessionID, session.ID,
			fieldStatus, string(session.Status),
			fieldLanguage, session.Language,
			fieldCreatedAt, session.CreatedAt.Format(time.RFC3339Nano),
			fieldUpdatedAt, session.UpdatedAt.Format(time.RFC3339Nano),
			fieldMetadata, string(metadataJSON))
		pipe.Expire(ctx, sessionKey(session.ID), s.ttl)
		return nil
	})
	if err != nil {
		log.Error("failed to create session",
			slog.String("error", err.Error()),
			slog.String("session_id", session.ID))
		return "", err
	}

	log.Info("session created",
		slog.String("session_id", session.ID),
		slog.String("language", session.Language))
	return session.ID, nil
}

// GetSession implements store.SessionStore.GetSession
// Returns store.ErrSessionNotFound if the session does not exist or expired.
func (s *RedisSessionStore) GetSession(ctx context.Context, id string) (*domain.Session, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	data, err := s.client.HGetAll(ctx, sessionKey(id)).Result()
	if err != nil {
		log.Error("failed to get session",
			slog.String("error", err.Error()),
			slog.String("session_id", id))
		return nil, err
	}
	if len(data) == 0 {
		log.Debug("session not found", slog.String("session_id", id))
		return nil, store.ErrSessionNotFound
	}

	session := &domain.Session{
		ID:       data[fieldSessionID],
		Status:   domain.SessionStatus(data[fieldStatus]),
		Language: data[fieldLanguage],
	}
	if raw := data[fieldCreatedAt]; raw != "" {
		session.CreatedAt, err = time.Parse(time.RFC3339Nano, raw)
		if err != nil {
			return nil, store.NewStoreError("session", "get", "failed to decode created_at", err)
		}
	}
	if raw := data[fieldUpdatedAt]; raw != "" {
		session.UpdatedAt, err = time.Parse(time.RFC3339Nano, raw)
		if err != nil {
			return nil, store.NewStoreError("session", "get", "failed to decode updated_at", err)
		}
	}
	if raw := data[fieldMetadata]; raw != "" && raw != "null" {
		if err := sonic.UnmarshalString(raw, &session.Metadata); err != nil {
			return nil, store.NewStoreError("session", "get", "failed to decode metadata", err)
		}
	}

	return session, nil
}

// SetStatus implements store.SessionStore.SetStatus
// It overwrites the status field without transition checks; legality is the
// pipeline's responsibility.
// Returns store.ErrSessionNotFound if the session does not exist.
func (s *RedisSessionStore) SetStatus(ctx context.Context, id string, status domain.SessionStatus) error {
	log := logger.FromContextOrDefault(ctx, s.logger)

	ok, err := s.exists(ctx, id)
	if err != nil {
		return err
	}
	if !ok {
		log.Debug("session not found for status update", slog.String("session_id", id))
		return store.ErrSessionNotFound
	}

	_, err = s.client.TxPipelined(ctx, func(pipe goredis.Pipeliner) error {
		pipe.HSet(ctx, sessionKey(id),
			fieldStatus, string(status),
			fieldUpdatedAt, time.Now().UTC().Format(time.RFC3339Nano))
		s.refreshTTL(ctx, pipe, id)
		return nil
	})
	if err != nil {
		log.Error("failed to update session status",
			slog.String("error", err.Error()),
			slog.String("session_id", id),
			slog.String("status", string(status)))
		return err
	}

	log.Info("session status updated",
		slog.String("session_id", id),
		slog.String("status", string(status)))
	return nil
}

// AppendProgress implements store.SessionStore.AppendProgress
// The event append and the latest-progress projection update run in one
// MULTI/EXEC transaction, so readers never observe one without the other.
// Returns store.ErrSessionNotFound if the session does not exist.
func (s *RedisSessionStore) AppendProgress(ctx context.Context, event domain.ProgressEvent) error {
	log := logger.FromContextOrDefault(ctx, s.logger)

	ok, err := s.exists(ctx, event.SessionID)
	if err != nil {
		return err
	}
	if !ok {
		log.Debug("session not found for progress append",
			slog.String("session_id", event.SessionID))
		return store.ErrSessionNotFound
	}

	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}
	payload, err := sonic.Marshal(event)
	if err != nil {
		return store.NewStoreError("session", "append_progress", "failed to encode event", err)
	}

	_, err = s.client.TxPipelined(ctx, func(pipe goredis.Pipeliner) error {
		pipe.RPush(ctx, progressKey(event.SessionID), payload)
		pipe.HSet(ctx, sessionKey(event.SessionID),
			fieldProgress, event.Percentage,
			fieldStage, event.Stage)
		s.refreshTTL(ctx, pipe, event.SessionID)
		return nil
	})
	if err != nil {
		log.Error("failed to append progress event",
			slog.String("error", err.Error()),
			slog.String("session_id", event.SessionID))
		return err
	}

	log.Debug("progress event appended",
		slog.String("session_id", event.SessionID),
		slog.String("stage", event.Stage),
		slog.Int("percentage", event.Percentage))
	return nil
}

// GetLatestProgress implements store.SessionStore.GetLatestProgress
// It reads only the projection fields from the session hash; the event log
// is untouched.
// Returns store.ErrSessionNotFound if the session does not exist.
func (s *RedisSessionStore) GetLatestProgress(ctx context.Context, id string) (*domain.Progress, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	vals, err := s.client.HMGet(ctx, sessionKey(id), fieldProgress, fieldStage, fieldStatus).Result()
	if err != nil {
		log.Error("failed to get latest progress",
			slog.String("error", err.Error()),
			slog.String("session_id", id))
		return nil, err
	}

	// HMGet returns nils rather than an error for a missing hash; the
	// status field is always written at create time, so its absence means
	// the session is gone.
	statusRaw, ok := vals[2].(string)
	if !ok || statusRaw == "" {
		log.Debug("session not found for progress read", slog.String("session_id", id))
		return nil, store.ErrSessionNotFound
	}

	progress := &domain.Progress{Status: domain.SessionStatus(statusRaw)}
	if raw, ok := vals[0].(string); ok && raw != "" {
		progress.Percentage, err = strconv.Atoi(raw)
		if err != nil {
			return nil, store.NewStoreError("session", "get_latest_progress", "failed to decode percentage", err)
		}
	}
	if raw, ok := vals[1].(string); ok {
		progress.Stage = raw
	}

	return progress, nil
}

// GetProgressEvents implements store.SessionStore.GetProgressEvents
// Returns store.ErrSessionNotFound if the session does not exist.
func (s *RedisSessionStore) GetProgressEvents(ctx context.Context, id string) ([]domain.ProgressEvent, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	ok, err := s.exists(ctx, id)
	if err != nil {
		return nil, err
	}
	if !ok {
		log.Debug("session not found for event log read", slog.String("session_id", id))
		return nil, store.ErrSessionNotFound
	}

	entries, err := s.client.LRange(ctx, progressKey(id), 0, -1).Result()
	if err != nil {
		log.Error("failed to read progress events",
			slog.String("error", err.Error()),
			slog.String("session_id", id))
		return nil, err
	}

	events := make([]domain.ProgressEvent, 0, len(entries))
	for _, entry := range entries {
		var event domain.ProgressEvent
		if err := sonic.UnmarshalString(entry, &event); err != nil {
			return nil, store.NewStoreError("session", "get_progress_events", "failed to decode event", err)
		}
		events = append(events, event)
	}

	return events, nil
}

// StoreResult implements store.SessionStore.StoreResult
// Returns store.ErrSessionNotFound if the session does not exist.
func (s *RedisSessionStore) StoreResult(ctx context.Context, id string, result *domain.Result) error {
	log := logger.FromContextOrDefault(ctx, s.logger)

	ok, err := s.exists(ctx, id)
	if err != nil {
		return err
	}
	if !ok {
		log.Debug("session not found for result write", slog.String("session_id", id))
		return store.ErrSessionNotFound
	}

	payload, err := sonic.Marshal(result)
	if err != nil {
		return store.NewStoreError("session", "store_result", "failed to encode result", err)
	}

	_, err = s.client.TxPipelined(ctx, func(pipe goredis.Pipeliner) error {
		pipe.Set(ctx, resultKey(id), payload, s.ttl)
		s.refreshTTL(ctx, pipe, id)
		return nil
	})
	if err != nil {
		log.Error("failed to store result",
			slog.String("error", err.Error()),
			slog.String("session_id", id))
		return err
	}

	log.Info("session result stored",
		slog.String("session_id", id),
		slog.Bool("success", result.Success))
	return nil
}

// GetResult implements store.SessionStore.GetResult
// Returns store.ErrResultNotFound if no result has been stored yet and
// store.ErrSessionNotFound if the session does not exist.
func (s *RedisSessionStore) GetResult(ctx context.Context, id string) (*domain.Result, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	data, err := s.client.Get(ctx, resultKey(id)).Result()
	if err != nil {
		if errors.Is(err, goredis.Nil) {
			ok, existsErr := s.exists(ctx, id)
			if existsErr != nil {
				return nil, existsErr
			}
			if !ok {
				log.Debug("session not found for result read", slog.String("session_id", id))
				return nil, store.ErrSessionNotFound
			}
			return nil, store.ErrResultNotFound
		}
		log.Error("failed to get result",
			slog.String("error", err.Error()),
			slog.String("session_id", id))
		return nil, err
	}

	var result domain.Result
	if err := sonic.UnmarshalString(data, &result); err != nil {
		return nil, store.NewStoreError("session", "get_result", "failed to decode result", err)
	}

	return &result, nil
}

// AppendAnswerPreview implements store.SessionStore.AppendAnswerPreview
// Returns store.ErrSessionNotFound if the session does not exist.
func (s *RedisSessionStore) AppendAnswerPreview(
	ctx context.Context,
	id string,
	preview domain.AnswerPreview,
) error {
	log := logger.FromContextOrDefault(ctx, s.logger)

	ok, err := s.exists(ctx, id)
	if err != nil {
		return err
	}
	if !ok {
		log.Debug("session not found for answer append", slog.String("session_id", id))
		return store.ErrSessionNotFound
	}

	if preview.Timestamp.IsZero() {
		preview.Timestamp = time.Now().UTC()
	}
	payload, err := sonic.Marshal(preview)
	if err != nil {
		return store.NewStoreError("session", "append_answer", "failed to encode answer preview", err)
	}

	_, err = s.client.TxPipelined(ctx, func(pipe goredis.Pipeliner) error {
		pipe.RPush(ctx, answersKey(id), payload)
		s.refreshTTL(ctx, pipe, id)
		return nil
	})
	if err != nil {
		log.Error("failed to append answer preview",
			slog.String("error", err.Error()),
			slog.String("session_id", id))
		return err
	}

	log.Debug("answer preview appended",
		slog.String("session_id", id),
		slog.Int("index", preview.Index))
	return nil
}

// UpdateAnswerPreview implements store.SessionStore.UpdateAnswerPreview
// It scans the answer list for the entry whose Index matches and replaces
// its answer text and timestamp in place via LSET. No entry with that index
// is a no-op, not an error; the TTL is refreshed either way.
// Returns store.ErrSessionNotFound if the session does not exist.
func (s *RedisSessionStore) UpdateAnswerPreview(ctx context.Context, id string, index int, answer string) error {
	log := logger.FromContextOrDefault(ctx, s.logger)

	ok, err := s.exists(ctx, id)
	if err != nil {
		return err
	}
	if !ok {
		log.Debug("session not found for answer update", slog.String("session_id", id))
		return store.ErrSessionNotFound
	}

	entries, err := s.client.LRange(ctx, answersKey(id), 0, -1).Result()
	if err != nil {
		log.Error("failed to read answer list",
			slog.String("error", err.Error()),
			slog.String("session_id", id))
		return err
	}

	position := int64(-1)
	var payload []byte
	for i, entry := range entries {
		var preview domain.AnswerPreview
		if err := sonic.UnmarshalString(entry, &preview); err != nil {
			return store.NewStoreError("session", "update_answer", "failed to decode answer preview", err)
		}
		if preview.Index == index {
			preview.Answer = answer
			preview.Timestamp = time.Now().UTC()
			payload, err = sonic.Marshal(preview)
			if err != nil {
				return store.NewStoreError("session", "update_answer", "failed to encode answer preview", err)
			}
			position = int64(i)
			break
		}
	}

	_, err = s.client.TxPipelined(ctx, func(pipe goredis.Pipeliner) error {
		if position >= 0 {
			pipe.LSet(ctx, answersKey(id), position, payload)
		}
		s.refreshTTL(ctx, pipe, id)
		return nil
	})
	if err != nil {
		log.Error("failed to update answer preview",
			slog.String("error", err.Error()),
			slog.String("session_id", id),
			slog.Int("index", index))
		return err
	}

	if position < 0 {
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
func (s *RedisSessionStore) GetAnswerPreviews(ctx context.Context, id string) ([]domain.AnswerPreview, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	ok, err := s.exists(ctx, id)
	if err != nil {
		return nil, err
	}
	if !ok {
		log.Debug("session not found for answer list read", slog.String("session_id", id))
		return nil, store.ErrSessionNotFound
	}

	entries, err := s.client.LRange(ctx, answersKey(id), 0, -1).Result()
	if err != nil {
		log.Error("failed to read answer list",
			slog.String("error", err.Error()),
			slog.String("session_id", id))
		return nil, err
	}

	previews := make([]domain.AnswerPreview, 0, len(entries))
	for _, entry := range entries {
		var preview domain.AnswerPreview
		if err := sonic.UnmarshalString(entry, &preview); err != nil {
			return nil, store.NewStoreError("session", "get_answers", "failed to decode answer preview", err)
		}
		previews = append(previews, preview)
	}

	return previews, nil
}

// DeleteSession implements store.SessionStore.DeleteSession
// It removes all four entity keys in one call. Deleting an unknown session
// is not an error.
func (s *RedisSessionStore) DeleteSession(ctx context.Context, id string) error {
	log := logger.FromContextOrDefault(ctx, s.logger)

	deleted, err := s.client.Del(ctx,
		sessionKey(id),
		progressKey(id),
		answersKey(id),
		resultKey(id)).Result()
	if err != nil {
		log.Error("failed to delete session",
			slog.String("error", err.Error()),
			slog.String("session_id", id))
		return err
	}

	log.Debug("session deleted",
		slog.String("session_id", id),
		slog.Int64("keys_removed", deleted))
	return nil
}

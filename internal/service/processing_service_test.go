package service

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/phrazzld/sage-api/internal/config"
	"github.com/phrazzld/sage-api/internal/docstore"
	"github.com/phrazzld/sage-api/internal/domain"
	"github.com/phrazzld/sage-api/internal/events"
	"github.com/phrazzld/sage-api/internal/language"
	"github.com/phrazzld/sage-api/internal/pipeline"
	"github.com/phrazzld/sage-api/internal/platform/memstore"
	"github.com/phrazzld/sage-api/internal/service/auth"
	"github.com/phrazzld/sage-api/internal/store"
	"github.com/phrazzld/sage-api/internal/task"
	"github.com/phrazzld/sage-api/internal/upload"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type stubSpool struct {
	saveErr error
	saved   []string
	removed []string
}

func (s *stubSpool) Save(_ context.Context, sessionID, ext string, _ []byte) (string, error) {
	if s.saveErr != nil {
		return "", s.saveErr
	}
	path := "/spool/" + sessionID + ext
	s.saved = append(s.saved, path)
	return path, nil
}

func (s *stubSpool) Remove(_ context.Context, path string) error {
	s.removed = append(s.removed, path)
	return nil
}

type stubEmitter struct {
	err    error
	events []*events.TaskRequestEvent
}

func (e *stubEmitter) EmitEvent(_ context.Context, event *events.TaskRequestEvent) error {
	if e.err != nil {
		return e.err
	}
	e.events = append(e.events, event)
	return nil
}

type stubRegenerator struct {
	answer string
	err    error
	gotReq pipeline.RegenerateRequest
	calls  int
}

func (r *stubRegenerator) Regenerate(
	_ context.Context,
	req pipeline.RegenerateRequest,
) (string, error) {
	r.calls++
	r.gotReq = req
	if r.err != nil {
		return "", r.err
	}
	return r.answer, nil
}

type stubAPIKeys struct {
	record *domain.APIKey
	err    error
}

func (s *stubAPIKeys) Upsert(context.Context, *domain.APIKey) error { return nil }

func (s *stubAPIKeys) GetByUserAndProvider(
	_ context.Context,
	_ uuid.UUID,
	_ string,
) (*domain.APIKey, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.record, nil
}

func (s *stubAPIKeys) ListByUser(context.Context, uuid.UUID) ([]*domain.APIKey, error) {
	return nil, nil
}

func (s *stubAPIKeys) Delete(context.Context, uuid.UUID, string) error { return nil }

func (s *stubAPIKeys) WithTx(*sql.Tx) store.APIKeyStore { return s }

func testLLMConfig() config.LLMConfig {
	return config.LLMConfig{
		DefaultProvider:       "gemini",
		GeminiAPIKey:          "system-gemini-key",
		GeminiModel:           "gemini-2.0-flash",
		OpenAIAPIKey:          "system-openai-key",
		OpenAIModel:           "gpt-4o-mini",
		PerplexityAPIKey:      "system-perplexity-key",
		PerplexityModel:       "sonar",
		MaxRetries:            3,
		RetryBaseDelaySeconds: 1,
	}
}

type serviceFixture struct {
	sessions    *memstore.MemorySessionStore
	spool       *stubSpool
	emitter     *stubEmitter
	regenerator *stubRegenerator
	documents   docstore.Storage
	apiKeys     *stubAPIKeys
	keyCrypt    *auth.AEADKeyEncryptor
}

func newServiceFixture(t *testing.T) *serviceFixture {
	t.Helper()

	documents, err := docstore.NewFilesystemStorage(t.TempDir(), quietLogger())
	require.NoError(t, err)

	keyCrypt, err := auth.NewAEADKeyEncryptor("0123456789abcdef0123456789abcdef")
	require.NoError(t, err)

	return &serviceFixture{
		sessions:    memstore.NewMemorySessionStore(store.DefaultSessionTTL, quietLogger()),
		spool:       &stubSpool{},
		emitter:     &stubEmitter{},
		regenerator: &stubRegenerator{answer: "regenerated answer"},
		documents:   documents,
		apiKeys:     &stubAPIKeys{err: store.ErrAPIKeyNotFound},
		keyCrypt:    keyCrypt,
	}
}

func (f *serviceFixture) service(t *testing.T) *ProcessingService {
	t.Helper()

	languages, err := language.NewRegistry()
	require.NoError(t, err)

	svc, err := NewProcessingService(ProcessingConfig{
		Sessions:  f.sessions,
		Uploads:   f.spool,
		Documents: f.documents,
		Languages: languages,
		Emitter:   f.emitter,
		Pipeline:  f.regenerator,
		APIKeys:   f.apiKeys,
		KeyCrypt:  f.keyCrypt,
		LLM:       testLLMConfig(),
		Storage:   config.StorageConfig{MaxUploadSizeMB: 10, RetentionDays: 7},
		Logger:    quietLogger(),
	})
	require.NoError(t, err)
	return svc
}

func textSubmission() SubmitRequest {
	return SubmitRequest{
		Filename: "questions.txt",
		Content:  []byte("1. What is gravity?\n2. Explain photosynthesis."),
		Language: "en",
	}
}

func TestNewProcessingService(t *testing.T) {
	t.Parallel()

	f := newServiceFixture(t)
	languages, err := language.NewRegistry()
	require.NoError(t, err)

	cfg := ProcessingConfig{
		Sessions:  f.sessions,
		Uploads:   f.spool,
		Documents: f.documents,
		Languages: languages,
		Emitter:   f.emitter,
		Pipeline:  f.regenerator,
	}

	t.Run("valid config", func(t *testing.T) {
		svc, err := NewProcessingService(cfg)
		require.NoError(t, err)
		assert.NotNil(t, svc)
	})

	t.Run("missing session store", func(t *testing.T) {
		broken := cfg
		broken.Sessions = nil
		_, err := NewProcessingService(broken)
		assert.EqualError(t, err, "session store cannot be nil")
	})

	t.Run("missing emitter", func(t *testing.T) {
		broken := cfg
		broken.Emitter = nil
		_, err := NewProcessingService(broken)
		assert.EqualError(t, err, "event emitter cannot be nil")
	})
}

func TestSubmitCreatesSessionAndEmitsEvent(t *testing.T) {
	t.Parallel()

	f := newServiceFixture(t)
	svc := f.service(t)

	sessionID, err := svc.Submit(context.Background(), textSubmission())
	require.NoError(t, err)
	require.NotEmpty(t, sessionID)

	session, err := f.sessions.GetSession(context.Background(), sessionID)
	require.NoError(t, err)
	assert.Equal(t, domain.SessionStatusPending, session.Status)
	assert.Equal(t, "en", session.Language)
	assert.Equal(t, "questions.txt", session.Metadata[metadataFilename])
	assert.Equal(t, "gemini", session.Metadata[metadataProvider])
	assert.Equal(t, "gemini-2.0-flash", session.Metadata[metadataModel])

	require.Len(t, f.emitter.events, 1)
	event := f.emitter.events[0]
	assert.Equal(t, events.TypeSessionProcessing, event.Type)

	var payload events.SessionProcessingPayload
	require.NoError(t, event.UnmarshalPayload(&payload))
	assert.Equal(t, sessionID, payload.SessionID)
	assert.Equal(t, "/spool/"+sessionID+".txt", payload.InputPath)
	assert.Equal(t, "text", payload.Format)
	assert.Equal(t, "en", payload.Language)
	assert.Equal(t, "gemini", payload.Provider)
	assert.Equal(t, "system-gemini-key", payload.APIKey)
	assert.Equal(t, "gemini-2.0-flash", payload.Model)
}

func TestSubmitValidation(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		mutate func(req *SubmitRequest)
	}{
		{
			name:   "empty content",
			mutate: func(req *SubmitRequest) { req.Content = nil },
		},
		{
			name:   "disallowed extension",
			mutate: func(req *SubmitRequest) { req.Filename = "malware.exe" },
		},
		{
			name:   "oversized content",
			mutate: func(req *SubmitRequest) { req.Content = make([]byte, 11*1024*1024) },
		},
		{
			name:   "malformed language code",
			mutate: func(req *SubmitRequest) { req.Language = "english" },
		},
		{
			name:   "unsupported language",
			mutate: func(req *SubmitRequest) { req.Language = "xx" },
		},
		{
			name:   "unknown provider",
			mutate: func(req *SubmitRequest) { req.Provider = "claude" },
		},
		{
			name:   "malformed session id",
			mutate: func(req *SubmitRequest) { req.SessionID = "ab" },
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			f := newServiceFixture(t)
			svc := f.service(t)

			req := textSubmission()
			tc.mutate(&req)

			_, err := svc.Submit(context.Background(), req)
			require.Error(t, err)

			var validationErr *upload.ValidationError
			assert.ErrorAs(t, err, &validationErr)
			assert.Empty(t, f.emitter.events, "no event should be emitted")
			assert.Empty(t, f.spool.saved, "nothing should be spooled")
		})
	}
}

// The size check runs before the extension check.
func TestSubmitChecksSizeFirst(t *testing.T) {
	t.Parallel()

	f := newServiceFixture(t)
	svc := f.service(t)

	req := textSubmission()
	req.Filename = "malware.exe"
	req.Content = make([]byte, 11*1024*1024)

	_, err := svc.Submit(context.Background(), req)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "exceeds maximum allowed size")
}

func TestSubmitReusedSessionID(t *testing.T) {
	t.Parallel()

	ctx := context.Background()

	t.Run("in-flight session is rejected", func(t *testing.T) {
		t.Parallel()
		f := newServiceFixture(t)
		svc := f.service(t)

		req := textSubmission()
		req.SessionID = "busy-session-1"

		_, err := svc.Submit(ctx, req)
		require.NoError(t, err)
		require.NoError(t, f.sessions.SetStatus(ctx, "busy-session-1", domain.SessionStatusProcessing))

		_, err = svc.Submit(ctx, req)
		require.ErrorIs(t, err, ErrDuplicateSession)
		assert.Len(t, f.emitter.events, 1)
	})

	t.Run("finished session may be resubmitted", func(t *testing.T) {
		t.Parallel()
		f := newServiceFixture(t)
		svc := f.service(t)

		req := textSubmission()
		req.SessionID = "done-session-1"

		_, err := svc.Submit(ctx, req)
		require.NoError(t, err)
		require.NoError(t, f.sessions.SetStatus(ctx, "done-session-1", domain.SessionStatusComplete))

		_, err = svc.Submit(ctx, req)
		require.NoError(t, err)
		assert.Len(t, f.emitter.events, 2)
	})
}

func TestSubmitEnqueueFailureDiscardsSession(t *testing.T) {
	t.Parallel()

	ctx := context.Background()

	t.Run("queue failure removes session and spool", func(t *testing.T) {
		t.Parallel()
		f := newServiceFixture(t)
		f.emitter.err = fmt.Errorf("handler failed: %w", task.ErrQueueFull)
		svc := f.service(t)

		sessionID := "queued-session-1"
		req := textSubmission()
		req.SessionID = sessionID

		_, err := svc.Submit(ctx, req)
		require.ErrorIs(t, err, task.ErrQueueFull)

		_, err = f.sessions.GetSession(ctx, sessionID)
		assert.ErrorIs(t, err, store.ErrSessionNotFound)
		assert.Equal(t, []string{"/spool/" + sessionID + ".txt"}, f.spool.removed)
	})

	t.Run("lost duplicate race leaves state alone", func(t *testing.T) {
		t.Parallel()
		f := newServiceFixture(t)
		f.emitter.err = fmt.Errorf("submit failed: %w", task.ErrDuplicateTask)
		svc := f.service(t)

		sessionID := "raced-session-1"
		req := textSubmission()
		req.SessionID = sessionID

		_, err := svc.Submit(ctx, req)
		require.ErrorIs(t, err, ErrDuplicateSession)

		// The competing submission owns the session record and spool file.
		_, err = f.sessions.GetSession(ctx, sessionID)
		assert.NoError(t, err)
		assert.Empty(t, f.spool.removed)
	})
}

func TestSubmitUsesStoredUserKey(t *testing.T) {
	t.Parallel()

	f := newServiceFixture(t)

	userID := uuid.New()
	sealed, err := f.keyCrypt.Encrypt("user-gemini-key")
	require.NoError(t, err)
	f.apiKeys.err = nil
	f.apiKeys.record = &domain.APIKey{
		ID:           uuid.New(),
		UserID:       userID,
		Provider:     "gemini",
		EncryptedKey: sealed,
	}

	svc := f.service(t)

	req := textSubmission()
	req.UserID = &userID

	_, err = svc.Submit(context.Background(), req)
	require.NoError(t, err)

	require.Len(t, f.emitter.events, 1)
	var payload events.SessionProcessingPayload
	require.NoError(t, f.emitter.events[0].UnmarshalPayload(&payload))
	assert.Equal(t, "user-gemini-key", payload.APIKey)
}

func TestSubmitFallsBackToSystemKey(t *testing.T) {
	t.Parallel()

	f := newServiceFixture(t)
	f.apiKeys.err = store.ErrAPIKeyNotFound
	svc := f.service(t)

	userID := uuid.New()
	req := textSubmission()
	req.UserID = &userID

	_, err := svc.Submit(context.Background(), req)
	require.NoError(t, err)

	require.Len(t, f.emitter.events, 1)
	var payload events.SessionProcessingPayload
	require.NoError(t, f.emitter.events[0].UnmarshalPayload(&payload))
	assert.Equal(t, "system-gemini-key", payload.APIKey)
}

func TestStatus(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	f := newServiceFixture(t)
	svc := f.service(t)

	t.Run("unknown session", func(t *testing.T) {
		t.Parallel()
		_, err := svc.Status(ctx, "nonexistent-session")
		assert.ErrorIs(t, err, store.ErrSessionNotFound)
	})

	t.Run("session with progress and answers", func(t *testing.T) {
		t.Parallel()

		sessionID, err := f.sessions.CreateSession(ctx, "", "en", nil)
		require.NoError(t, err)
		require.NoError(t, f.sessions.SetStatus(ctx, sessionID, domain.SessionStatusProcessing))

		for i, event := range []domain.ProgressEvent{
			{SessionID: sessionID, Stage: "parsing", Percentage: 10, Message: "Parsing document"},
			{SessionID: sessionID, Stage: "generating", Percentage: 40, Message: "Answering question 2 of 4"},
		} {
			event.Timestamp = time.Now().UTC().Add(time.Duration(i) * time.Millisecond)
			require.NoError(t, f.sessions.AppendProgress(ctx, event))
		}
		require.NoError(t, f.sessions.AppendAnswerPreview(ctx, sessionID, domain.AnswerPreview{
			Index:    0,
			Question: "What is gravity?",
			Answer:   "A fundamental force.",
		}))

		info, err := svc.Status(ctx, sessionID)
		require.NoError(t, err)
		assert.Equal(t, sessionID, info.SessionID)
		assert.Equal(t, domain.SessionStatusProcessing, info.Status)
		assert.Equal(t, 40, info.Progress)
		assert.Equal(t, "generating", info.Stage)
		assert.Equal(t, "Answering question 2 of 4", info.Message)
		require.Len(t, info.Answers, 1)
		assert.Equal(t, "What is gravity?", info.Answers[0].Question)
	})
}

func TestLanguages(t *testing.T) {
	t.Parallel()

	f := newServiceFixture(t)
	svc := f.service(t)

	configs := svc.Languages()
	require.NotEmpty(t, configs)

	codes := make(map[string]bool, len(configs))
	for _, cfg := range configs {
		codes[cfg.Code] = true
	}
	assert.True(t, codes["en"])
}

func TestDownload(t *testing.T) {
	t.Parallel()

	ctx := context.Background()

	seedCompleted := func(t *testing.T, f *serviceFixture, withDocument bool) string {
		t.Helper()

		sessionID, err := f.sessions.CreateSession(ctx, "", "en", nil)
		require.NoError(t, err)

		documentID := docstore.NewIdentifier()
		if withDocument {
			_, err = f.documents.Save(ctx, documentID, &domain.Document{
				Content:   []byte("%PDF-1.4 fake"),
				Filename:  "answers.pdf",
				PageCount: 3,
			})
			require.NoError(t, err)
		}

		require.NoError(t, f.sessions.StoreResult(ctx, sessionID, &domain.Result{
			Success:    true,
			DocumentID: documentID,
			Filename:   "answers.pdf",
			PageCount:  3,
		}))
		require.NoError(t, f.sessions.SetStatus(ctx, sessionID, domain.SessionStatusComplete))
		return sessionID
	}

	t.Run("unknown session", func(t *testing.T) {
		t.Parallel()
		f := newServiceFixture(t)
		svc := f.service(t)

		_, err := svc.Download(ctx, "nonexistent-session")
		assert.ErrorIs(t, err, store.ErrSessionNotFound)
	})

	t.Run("incomplete session", func(t *testing.T) {
		t.Parallel()
		f := newServiceFixture(t)
		svc := f.service(t)

		sessionID, err := f.sessions.CreateSession(ctx, "", "en", nil)
		require.NoError(t, err)
		require.NoError(t, f.sessions.SetStatus(ctx, sessionID, domain.SessionStatusProcessing))

		_, err = svc.Download(ctx, sessionID)
		assert.ErrorIs(t, err, ErrSessionNotComplete)
	})

	t.Run("completed session returns document", func(t *testing.T) {
		t.Parallel()
		f := newServiceFixture(t)
		svc := f.service(t)

		sessionID := seedCompleted(t, f, true)

		doc, err := svc.Download(ctx, sessionID)
		require.NoError(t, err)
		assert.Equal(t, "answers.pdf", doc.Filename)
		assert.Equal(t, 3, doc.PageCount)
		assert.Equal(t, []byte("%PDF-1.4 fake"), doc.Content)
	})

	t.Run("cleaned-up document", func(t *testing.T) {
		t.Parallel()
		f := newServiceFixture(t)
		svc := f.service(t)

		sessionID := seedCompleted(t, f, false)

		_, err := svc.Download(ctx, sessionID)
		assert.ErrorIs(t, err, docstore.ErrDocumentNotFound)
	})

	t.Run("missing result", func(t *testing.T) {
		t.Parallel()
		f := newServiceFixture(t)
		svc := f.service(t)

		sessionID, err := f.sessions.CreateSession(ctx, "", "en", nil)
		require.NoError(t, err)
		require.NoError(t, f.sessions.SetStatus(ctx, sessionID, domain.SessionStatusComplete))

		_, err = svc.Download(ctx, sessionID)
		assert.ErrorIs(t, err, docstore.ErrDocumentNotFound)
	})
}

func TestRegenerate(t *testing.T) {
	t.Parallel()

	ctx := context.Background()

	seedCompleted := func(t *testing.T, f *serviceFixture, metadata map[string]string) string {
		t.Helper()
		sessionID, err := f.sessions.CreateSession(ctx, "", "es", metadata)
		require.NoError(t, err)
		require.NoError(t, f.sessions.SetStatus(ctx, sessionID, domain.SessionStatusComplete))
		return sessionID
	}

	t.Run("unknown session", func(t *testing.T) {
		t.Parallel()
		f := newServiceFixture(t)
		svc := f.service(t)

		_, err := svc.Regenerate(ctx, RegenerateParams{SessionID: "nonexistent-session"})
		assert.ErrorIs(t, err, store.ErrSessionNotFound)
	})

	t.Run("incomplete session", func(t *testing.T) {
		t.Parallel()
		f := newServiceFixture(t)
		svc := f.service(t)

		sessionID, err := f.sessions.CreateSession(ctx, "", "en", nil)
		require.NoError(t, err)
		require.NoError(t, f.sessions.SetStatus(ctx, sessionID, domain.SessionStatusProcessing))

		_, err = svc.Regenerate(ctx, RegenerateParams{SessionID: sessionID})
		assert.ErrorIs(t, err, ErrSessionNotComplete)
		assert.Zero(t, f.regenerator.calls)
	})

	t.Run("forwards session settings to the pipeline", func(t *testing.T) {
		t.Parallel()
		f := newServiceFixture(t)
		svc := f.service(t)

		sessionID := seedCompleted(t, f, map[string]string{
			metadataProvider: "openai",
			metadataModel:    "gpt-4o",
		})

		answer, err := svc.Regenerate(ctx, RegenerateParams{
			SessionID:     sessionID,
			QuestionIndex: 2,
			ChangeRequest: "Add a worked example.",
		})
		require.NoError(t, err)
		assert.Equal(t, "regenerated answer", answer)

		req := f.regenerator.gotReq
		assert.Equal(t, sessionID, req.SessionID)
		assert.Equal(t, 2, req.QuestionIndex)
		assert.Equal(t, "Add a worked example.", req.Instruction)
		assert.Equal(t, "es", req.Language)
		assert.Equal(t, "openai", req.Provider)
		assert.Equal(t, "gpt-4o", req.Model)
		assert.Equal(t, "system-openai-key", req.APIKey)
	})

	t.Run("defaults provider when metadata is missing", func(t *testing.T) {
		t.Parallel()
		f := newServiceFixture(t)
		svc := f.service(t)

		sessionID := seedCompleted(t, f, nil)

		_, err := svc.Regenerate(ctx, RegenerateParams{
			SessionID:     sessionID,
			QuestionIndex: 0,
			ChangeRequest: "Shorter.",
		})
		require.NoError(t, err)
		assert.Equal(t, "gemini", f.regenerator.gotReq.Provider)
		assert.Equal(t, "gemini-2.0-flash", f.regenerator.gotReq.Model)
	})

	t.Run("propagates invalid index from the pipeline", func(t *testing.T) {
		t.Parallel()
		f := newServiceFixture(t)
		f.regenerator.err = fmt.Errorf("%w: 99", pipeline.ErrInvalidQuestionIndex)
		svc := f.service(t)

		sessionID := seedCompleted(t, f, nil)

		_, err := svc.Regenerate(ctx, RegenerateParams{
			SessionID:     sessionID,
			QuestionIndex: 99,
			ChangeRequest: "Again.",
		})
		assert.ErrorIs(t, err, pipeline.ErrInvalidQuestionIndex)
	})
}

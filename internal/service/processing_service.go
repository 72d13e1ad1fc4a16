package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"github.com/phrazzld/sage-api/internal/config"
	"github.com/phrazzld/sage-api/internal/docstore"
	"github.com/phrazzld/sage-api/internal/domain"
	"github.com/phrazzld/sage-api/internal/events"
	"github.com/phrazzld/sage-api/internal/generation"
	"github.com/phrazzld/sage-api/internal/parser"
	"github.com/phrazzld/sage-api/internal/pipeline"
	"github.com/phrazzld/sage-api/internal/platform/logger"
	"github.com/phrazzld/sage-api/internal/service/auth"
	"github.com/phrazzld/sage-api/internal/store"
	"github.com/phrazzld/sage-api/internal/task"
	"github.com/phrazzld/sage-api/internal/upload"
)

// Session metadata keys written at submission and read back by the
// regeneration path.
const (
	metadataFilename = "filename"
	metadataProvider = "provider"
	metadataModel    = "model"
)

// UploadSpool is the slice of the upload store the service needs: spooling
// new input and removing it again when enqueueing fails.
type UploadSpool interface {
	Save(ctx context.Context, sessionID, ext string, content []byte) (string, error)
	Remove(ctx context.Context, path string) error
}

// Regenerator re-runs generation for one answered question.
type Regenerator interface {
	Regenerate(ctx context.Context, req pipeline.RegenerateRequest) (string, error)
}

// LanguageRegistry is the slice of the language registry the service needs.
type LanguageRegistry interface {
	IsSupported(code string) bool
	List() []domain.LanguageConfig
}

// SubmitRequest carries one validated-by-the-handler upload submission.
type SubmitRequest struct {
	Filename  string
	Content   []byte
	Language  string
	Provider  string     // empty selects the configured default
	SessionID string     // optional caller-supplied token
	UserID    *uuid.UUID // set when the request carried a valid bearer token
}

// StatusInfo is the poller-facing view of one session.
type StatusInfo struct {
	SessionID string
	Status    domain.SessionStatus
	Progress  int
	Stage     string
	Message   string
	Answers   []domain.AnswerPreview
}

// RegenerateParams carries one synchronous regeneration request.
type RegenerateParams struct {
	SessionID     string
	QuestionIndex int
	ChangeRequest string
	UserID        *uuid.UUID
}

// ProcessingConfig assembles a ProcessingService's collaborators.
type ProcessingConfig struct {
	Sessions  store.SessionStore
	Uploads   UploadSpool
	Documents docstore.Storage
	Languages LanguageRegistry
	Emitter   events.EventEmitter
	Pipeline  Regenerator

	// APIKeys and KeyCrypt resolve per-user provider credentials. Both may
	// be nil, in which case only the configured system keys are used.
	APIKeys  store.APIKeyStore
	KeyCrypt auth.KeyEncryptor

	LLM     config.LLMConfig
	Storage config.StorageConfig

	Logger *slog.Logger
}

// ProcessingService owns the submission surface of the document pipeline:
// it validates uploads, creates pending sessions, spools input, resolves
// provider credentials, and emits the events the task runner consumes. The
// pipeline itself runs in the background; this service only starts it and
// reads its outputs.
type ProcessingService struct {
	sessions  store.SessionStore
	uploads   UploadSpool
	documents docstore.Storage
	languages LanguageRegistry
	emitter   events.EventEmitter
	pipeline  Regenerator
	apiKeys   store.APIKeyStore
	keyCrypt  auth.KeyEncryptor
	llm       config.LLMConfig
	storage   config.StorageConfig
	logger    *slog.Logger
}

// NewProcessingService creates a ProcessingService from the given
// collaborators.
func NewProcessingService(cfg ProcessingConfig) (*ProcessingService, error) {
	if cfg.Sessions == nil {
		return nil, errors.New("session store cannot be nil")
	}
	if cfg.Uploads == nil {
		return nil, errors.New("upload spool cannot be nil")
	}
	if cfg.Documents == nil {
		return nil, errors.New("document storage cannot be nil")
	}
	if cfg.Languages == nil {
		return nil, errors.New("language registry cannot be nil")
	}
	if cfg.Emitter == nil {
		return nil, errors.New("event emitter cannot be nil")
	}
	if cfg.Pipeline == nil {
		return nil, errors.New("pipeline cannot be nil")
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	return &ProcessingService{
		sessions:  cfg.Sessions,
		uploads:   cfg.Uploads,
		documents: cfg.Documents,
		languages: cfg.Languages,
		emitter:   cfg.Emitter,
		pipeline:  cfg.Pipeline,
		apiKeys:   cfg.APIKeys,
		keyCrypt:  cfg.KeyCrypt,
		llm:       cfg.LLM,
		storage:   cfg.Storage,
		logger:    cfg.Logger.With(slog.String("component", "processing_service")),
	}, nil
}

// Submit validates one upload, creates its pending session, spools the
// input, and emits the processing event. Returns the effective session
// identifier. Validation failures are *upload.ValidationError; a reused
// in-flight session identifier fails with ErrDuplicateSession.
func (s *ProcessingService) Submit(ctx context.Context, req SubmitRequest) (string, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	maxBytes := int64(s.storage.MaxUploadSizeMB) * 1024 * 1024
	if err := upload.ValidateFileSize(req.Content, maxBytes); err != nil {
		return "", err
	}
	if err := upload.ValidateFileType(req.Content, req.Filename); err != nil {
		return "", err
	}
	if err := upload.ValidateLanguageCode(req.Language); err != nil {
		return "", err
	}
	if !s.languages.IsSupported(req.Language) {
		return "", &upload.ValidationError{
			Issue: fmt.Sprintf("language %q is not supported", req.Language),
		}
	}

	providerName := req.Provider
	if providerName == "" {
		providerName = s.llm.DefaultProvider
	}
	provider, err := generation.ParseProvider(providerName)
	if err != nil {
		return "", &upload.ValidationError{Issue: err.Error()}
	}

	sessionID := req.SessionID
	if sessionID == "" {
		sessionID = upload.NewSessionID()
	} else {
		if err := upload.ValidateSessionID(sessionID); err != nil {
			return "", err
		}
		// A caller may reuse an identifier whose previous run finished, but
		// not one that is still in flight. The task runner re-checks this
		// under its own lock; this early check just gives a clean error
		// before any state is written.
		existing, err := s.sessions.GetSession(ctx, sessionID)
		if err != nil && !errors.Is(err, store.ErrSessionNotFound) {
			return "", fmt.Errorf("failed to check session: %w", err)
		}
		if existing != nil && !existing.Status.IsTerminal() {
			return "", fmt.Errorf("%w: %s", ErrDuplicateSession, sessionID)
		}
	}

	ext := strings.ToLower(filepath.Ext(req.Filename))
	format, err := formatForExtension(ext)
	if err != nil {
		return "", &upload.ValidationError{Issue: err.Error()}
	}

	model := s.modelFor(provider)
	metadata := map[string]string{
		metadataFilename: upload.SanitizeFilename(req.Filename),
		metadataProvider: string(provider),
		metadataModel:    model,
	}

	if _, err := s.sessions.CreateSession(ctx, sessionID, req.Language, metadata); err != nil {
		return "", fmt.Errorf("failed to create session: %w", err)
	}

	inputPath, err := s.uploads.Save(ctx, sessionID, ext, req.Content)
	if err != nil {
		s.discardSession(ctx, sessionID, "")
		return "", fmt.Errorf("failed to spool upload: %w", err)
	}

	apiKey := s.resolveProviderKey(ctx, provider, req.UserID)

	event, err := events.NewSessionProcessingEvent(events.SessionProcessingPayload{
		SessionID: sessionID,
		InputPath: inputPath,
		Format:    format,
		Language:  req.Language,
		Provider:  string(provider),
		APIKey:    apiKey,
		Model:     model,
	})
	if err != nil {
		s.discardSession(ctx, sessionID, inputPath)
		return "", fmt.Errorf("failed to build processing event: %w", err)
	}

	if err := s.emitter.EmitEvent(ctx, event); err != nil {
		// A lost duplicate race means another submission owns the session
		// and its spooled input; leave both alone.
		if errors.Is(err, task.ErrDuplicateTask) {
			return "", fmt.Errorf("%w: %s", ErrDuplicateSession, sessionID)
		}
		s.discardSession(ctx, sessionID, inputPath)
		return "", fmt.Errorf("failed to enqueue session: %w", err)
	}

	log.Info("session submitted",
		slog.String("session_id", sessionID),
		slog.String("provider", string(provider)),
		slog.String("language", req.Language),
		slog.String("format", format),
		slog.Int("bytes", len(req.Content)),
		slog.Bool("user_key", req.UserID != nil))

	return sessionID, nil
}

// Status returns the poller-facing view of one session: latest progress,
// the most recent progress message, and the answers produced so far.
// Returns store.ErrSessionNotFound for unknown sessions.
func (s *ProcessingService) Status(ctx context.Context, sessionID string) (*StatusInfo, error) {
	progress, err := s.sessions.GetLatestProgress(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	info := &StatusInfo{
		SessionID: sessionID,
		Status:    progress.Status,
		Progress:  progress.Percentage,
		Stage:     progress.Stage,
	}

	progressEvents, err := s.sessions.GetProgressEvents(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if n := len(progressEvents); n > 0 {
		info.Message = progressEvents[n-1].Message
	}

	answers, err := s.sessions.GetAnswerPreviews(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	info.Answers = answers

	return info, nil
}

// Languages lists the supported output language configurations.
func (s *ProcessingService) Languages() []domain.LanguageConfig {
	return s.languages.List()
}

// Download returns the assembled document for a completed session.
// Returns store.ErrSessionNotFound for unknown sessions,
// ErrSessionNotComplete while the session has not completed successfully,
// and docstore.ErrDocumentNotFound when the document has been cleaned up.
func (s *ProcessingService) Download(ctx context.Context, sessionID string) (*domain.Document, error) {
	session, err := s.sessions.GetSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if session.Status != domain.SessionStatusComplete {
		return nil, fmt.Errorf("%w: session is %s", ErrSessionNotComplete, session.Status)
	}

	result, err := s.sessions.GetResult(ctx, sessionID)
	if err != nil {
		if errors.Is(err, store.ErrResultNotFound) {
			return nil, docstore.ErrDocumentNotFound
		}
		return nil, err
	}

	return s.documents.Retrieve(ctx, result.DocumentID)
}

// Regenerate synchronously re-runs generation for one answered question of
// a completed session and returns the updated answer text.
// Returns store.ErrSessionNotFound for unknown sessions,
// ErrSessionNotComplete unless the session completed successfully, and
// pipeline.ErrInvalidQuestionIndex for an index with no answer.
func (s *ProcessingService) Regenerate(ctx context.Context, params RegenerateParams) (string, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	session, err := s.sessions.GetSession(ctx, params.SessionID)
	if err != nil {
		return "", err
	}
	if session.Status != domain.SessionStatusComplete {
		return "", fmt.Errorf("%w: session is %s", ErrSessionNotComplete, session.Status)
	}

	providerName := session.Metadata[metadataProvider]
	if providerName == "" {
		providerName = s.llm.DefaultProvider
	}
	provider, err := generation.ParseProvider(providerName)
	if err != nil {
		return "", err
	}

	model := session.Metadata[metadataModel]
	if model == "" {
		model = s.modelFor(provider)
	}

	log.Info("regeneration requested",
		slog.String("session_id", params.SessionID),
		slog.Int("question_index", params.QuestionIndex))

	return s.pipeline.Regenerate(ctx, pipeline.RegenerateRequest{
		SessionID:     params.SessionID,
		QuestionIndex: params.QuestionIndex,
		Instruction:   params.ChangeRequest,
		Language:      session.Language,
		Provider:      string(provider),
		APIKey:        s.resolveProviderKey(ctx, provider, params.UserID),
		Model:         model,
	})
}

// resolveProviderKey picks the credential a run will use: the caller's
// stored key for the provider when one exists and decrypts cleanly, the
// configured system key otherwise. A missing key is returned as empty; the
// generation layer degrades to fallback answers rather than failing the
// whole run.
func (s *ProcessingService) resolveProviderKey(
	ctx context.Context,
	provider generation.Provider,
	userID *uuid.UUID,
) string {
	log := logger.FromContextOrDefault(ctx, s.logger)

	systemKey := ""
	switch provider {
	case generation.ProviderGemini:
		systemKey = s.llm.GeminiAPIKey
	case generation.ProviderOpenAI:
		systemKey = s.llm.OpenAIAPIKey
	case generation.ProviderPerplexity:
		systemKey = s.llm.PerplexityAPIKey
	}

	if userID == nil || s.apiKeys == nil || s.keyCrypt == nil {
		return systemKey
	}

	record, err := s.apiKeys.GetByUserAndProvider(ctx, *userID, string(provider))
	if err != nil {
		if !errors.Is(err, store.ErrAPIKeyNotFound) {
			log.Warn("failed to look up stored provider key",
				slog.Any("error", err),
				slog.String("user_id", userID.String()),
				slog.String("provider", string(provider)))
		}
		return systemKey
	}

	plaintext, err := s.keyCrypt.Decrypt(record.EncryptedKey)
	if err != nil {
		log.Warn("failed to decrypt stored provider key, using system key",
			slog.Any("error", err),
			slog.String("user_id", userID.String()),
			slog.String("provider", string(provider)))
		return systemKey
	}

	log.Debug("using stored provider key",
		slog.String("user_id", userID.String()),
		slog.String("provider", string(provider)))
	return plaintext
}

// modelFor returns the configured model for a provider.
func (s *ProcessingService) modelFor(provider generation.Provider) string {
	switch provider {
	case generation.ProviderGemini:
		return s.llm.GeminiModel
	case generation.ProviderOpenAI:
		return s.llm.OpenAIModel
	case generation.ProviderPerplexity:
		return s.llm.PerplexityModel
	default:
		return ""
	}
}

// discardSession best-effort removes the session record and spooled input
// after a failed submission. inputPath may be empty when nothing was
// spooled yet.
func (s *ProcessingService) discardSession(ctx context.Context, sessionID, inputPath string) {
	if err := s.sessions.DeleteSession(ctx, sessionID); err != nil {
		s.logger.Warn("failed to discard session after submission failure",
			slog.Any("error", err),
			slog.String("session_id", sessionID))
	}
	if inputPath == "" {
		return
	}
	if err := s.uploads.Remove(ctx, inputPath); err != nil {
		s.logger.Warn("failed to discard spooled upload after submission failure",
			slog.Any("error", err),
			slog.String("session_id", sessionID),
			slog.String("path", inputPath))
	}
}

// formatForExtension maps an upload extension to its parser format tag.
func formatForExtension(ext string) (string, error) {
	switch ext {
	case ".txt":
		return string(parser.FormatText), nil
	case ".pdf":
		return string(parser.FormatPDF), nil
	default:
		return "", fmt.Errorf("no parser for file extension %q", ext)
	}
}

package main

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"golang.org/x/crypto/bcrypt"

	"github.com/phrazzld/sage-api/internal/config"
	"github.com/phrazzld/sage-api/internal/diagram"
	"github.com/phrazzld/sage-api/internal/docstore"
	"github.com/phrazzld/sage-api/internal/document"
	"github.com/phrazzld/sage-api/internal/events"
	"github.com/phrazzld/sage-api/internal/knowledge"
	"github.com/phrazzld/sage-api/internal/language"
	"github.com/phrazzld/sage-api/internal/pipeline"
	"github.com/phrazzld/sage-api/internal/platform/llm"
	"github.com/phrazzld/sage-api/internal/platform/memstore"
	"github.com/phrazzld/sage-api/internal/platform/postgres"
	"github.com/phrazzld/sage-api/internal/platform/redis"
	"github.com/phrazzld/sage-api/internal/retry"
	"github.com/phrazzld/sage-api/internal/service"
	"github.com/phrazzld/sage-api/internal/service/auth"
	"github.com/phrazzld/sage-api/internal/store"
	"github.com/phrazzld/sage-api/internal/task"
	"github.com/phrazzld/sage-api/internal/upload"
)

// retentionInterval is how often expired documents are swept from storage.
const retentionInterval = 12 * time.Hour

// application holds all the shared application dependencies to simplify
// management and ensure proper cleanup on shutdown.
type application struct {
	// Configuration
	config *config.Config

	// Core services
	logger *slog.Logger
	db     *sql.DB

	// Session storage backend (redisClient is nil in memory mode)
	redisClient *goredis.Client
	sessions    store.SessionStore

	// Account stores
	userStore   store.UserStore
	apiKeyStore store.APIKeyStore

	// Service interfaces
	jwtService       auth.JWTService
	passwordVerifier auth.PasswordVerifier
	keyEncryptor     auth.KeyEncryptor
	processing       *service.ProcessingService

	// Document pipeline
	documents docstore.Storage
	uploads   *upload.Store

	// Event system
	eventEmitter events.EventEmitter

	// Task handling
	taskRunner *task.Runner

	// Document retention sweep lifecycle
	retentionStop chan struct{}
	retentionDone chan struct{}
}

// newApplication creates a new application instance with all dependencies
// initialized. It accepts core dependencies like configuration, logger, and
// database connection that must be established before application
// initialization. The task runner and retention sweep are running when it
// returns; cleanup stops them.
func newApplication(
	ctx context.Context,
	cfg *config.Config,
	logger *slog.Logger,
	db *sql.DB,
) (*application, error) {
	app := &application{
		config: cfg,
		logger: logger,
		db:     db,
	}

	// Initialize JWT service
	var err error
	app.jwtService, err = auth.NewJWTService(cfg.Auth)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize JWT service: %w", err)
	}
	logger.Info("JWT authentication service initialized",
		"token_lifetime_minutes", cfg.Auth.TokenLifetimeMinutes)

	// Initialize password verifier and API key encryptor
	app.passwordVerifier = auth.NewBcryptVerifier()
	app.keyEncryptor, err = auth.NewAEADKeyEncryptor(cfg.Auth.APIKeyEncryptionKey)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize key encryptor: %w", err)
	}

	// Initialize account stores
	app.userStore = postgres.NewPostgresUserStore(db, bcrypt.DefaultCost)
	app.apiKeyStore = postgres.NewPostgresAPIKeyStore(db)

	// Initialize the session store. Redis is used when configured so session
	// state survives restarts; otherwise sessions live in process memory.
	sessionTTL := time.Duration(cfg.Redis.SessionTTLMinutes) * time.Minute
	if cfg.Redis.URL != "" {
		app.redisClient, err = redis.NewClient(ctx, cfg.Redis.URL)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to redis: %w", err)
		}
		app.sessions = redis.NewRedisSessionStore(app.redisClient, sessionTTL, logger)
		logger.Info("Session store initialized", "backend", "redis", "ttl", sessionTTL)
	} else {
		app.sessions = memstore.NewMemorySessionStore(sessionTTL, logger)
		logger.Info("Session store initialized", "backend", "memory", "ttl", sessionTTL)
	}

	// Initialize file storage
	app.uploads, err = upload.NewStore(cfg.Storage.UploadDir, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create upload store: %w", err)
	}
	app.documents, err = docstore.NewFilesystemStorage(cfg.Storage.DocumentDir, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create document storage: %w", err)
	}

	// Initialize the pipeline collaborators
	languages, err := language.NewRegistry()
	if err != nil {
		return nil, fmt.Errorf("failed to create language registry: %w", err)
	}
	knowledgeBase, err := knowledge.NewBaseWithSamples()
	if err != nil {
		return nil, fmt.Errorf("failed to create knowledge base: %w", err)
	}
	renderer, err := diagram.NewRenderer(languages, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create diagram renderer: %w", err)
	}
	assembler, err := document.NewAssembler(languages, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create document assembler: %w", err)
	}

	orchestrator, err := pipeline.New(pipeline.Config{
		Sessions:     app.sessions,
		Uploads:      app.uploads,
		NewGenerator: llm.NewFactory(logger),
		Knowledge:    knowledgeBase,
		Languages:    languages,
		Renderer:     renderer,
		Assembler:    assembler,
		Documents:    app.documents,
		Retry: retry.Policy{
			MaxAttempts: cfg.LLM.MaxRetries,
			BaseDelay:   time.Duration(cfg.LLM.RetryBaseDelaySeconds) * time.Second,
			Multiplier:  retry.DefaultMultiplier,
		},
		Logger: logger,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create pipeline orchestrator: %w", err)
	}
	logger.Info("Processing pipeline initialized",
		"default_provider", cfg.LLM.DefaultProvider)

	// Initialize task runner
	app.taskRunner = task.NewRunner(task.Config{
		WorkerCount:       cfg.Task.WorkerCount,
		QueueSize:         cfg.Task.QueueSize,
		SoftTimeout:       time.Duration(cfg.Task.SoftTimeoutMinutes) * time.Minute,
		HardTimeout:       time.Duration(cfg.Task.HardTimeoutMinutes) * time.Minute,
		MaxTasksPerWorker: cfg.Task.MaxTasksPerWorker,
	}, logger)

	// Create task factory and wire it to the event emitter so submissions
	// reach the worker pool.
	taskFactory, err := task.NewSessionTaskFactory(orchestrator, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create task factory: %w", err)
	}
	eventHandler, err := task.NewEventHandler(taskFactory, app.taskRunner, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create event handler: %w", err)
	}
	emitter := events.NewInMemoryEventEmitter(logger)
	emitter.RegisterHandler(eventHandler)
	app.eventEmitter = emitter

	// Initialize processing service
	app.processing, err = service.NewProcessingService(service.ProcessingConfig{
		Sessions:  app.sessions,
		Uploads:   app.uploads,
		Documents: app.documents,
		Languages: languages,
		Emitter:   app.eventEmitter,
		Pipeline:  orchestrator,
		APIKeys:   app.apiKeyStore,
		KeyCrypt:  app.keyEncryptor,
		LLM:       cfg.LLM,
		Storage:   cfg.Storage,
		Logger:    logger,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create processing service: %w", err)
	}

	app.taskRunner.Start()

	app.retentionStop = make(chan struct{})
	app.retentionDone = make(chan struct{})
	go app.retentionLoop(ctx)

	logger.Info("Application initialized successfully")
	return app, nil
}

// Run starts the application server, handling lifecycle and cleanup.
// It returns an error if the server fails to start or encounters problems.
func (app *application) Run(ctx context.Context) error {
	router := app.setupRouter()

	err := app.startHTTPServer(ctx, router)
	if err != nil {
		return fmt.Errorf("server error: %w", err)
	}

	return nil
}

// retentionLoop sweeps expired documents once at startup and then on a
// fixed interval until cleanup closes retentionStop.
func (app *application) retentionLoop(ctx context.Context) {
	defer close(app.retentionDone)

	app.sweepExpiredDocuments(ctx)

	ticker := time.NewTicker(retentionInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			app.sweepExpiredDocuments(ctx)
		case <-app.retentionStop:
			return
		}
	}
}

func (app *application) sweepExpiredDocuments(ctx context.Context) {
	removed, err := app.documents.CleanupExpired(ctx, app.config.Storage.RetentionDays)
	if err != nil {
		app.logger.Error("Document retention sweep failed", "error", err)
		return
	}
	if removed > 0 {
		app.logger.Info("Removed expired documents", "count", removed)
	}
}

// cleanup handles graceful shutdown of application resources.
func (app *application) cleanup() {
	// Stop the retention sweep
	if app.retentionStop != nil {
		close(app.retentionStop)
		<-app.retentionDone
	}

	// Stop task runner
	if app.taskRunner != nil {
		app.taskRunner.Stop()
	}

	// Close the redis connection when one was opened
	if app.redisClient != nil {
		if err := app.redisClient.Close(); err != nil {
			app.logger.Error("Error closing redis client", "error", err)
		}
	}

	// Close database connection
	closeDatabase(app.db, app.logger)

	app.logger.Info("Application shutdown completed")
}

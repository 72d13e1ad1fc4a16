package config

// Config holds all application configuration.
// It organizes settings into logical groups for better maintainability.
type Config struct {
	Server   ServerConfig   `mapstructure:"server"   validate:"required"`
	Database DatabaseConfig `mapstructure:"database" validate:"required"`
	Redis    RedisConfig    `mapstructure:"redis"    validate:"required"`
	Auth     AuthConfig     `mapstructure:"auth"     validate:"required"`
	LLM      LLMConfig      `mapstructure:"llm"      validate:"required"`
	Task     TaskConfig     `mapstructure:"task"     validate:"required"`
	Storage  StorageConfig  `mapstructure:"storage"  validate:"required"`
}

// ServerConfig contains all HTTP server related settings.
type ServerConfig struct {
	Port     int    `mapstructure:"port"      validate:"required,gt=0,lt=65536"`
	LogLevel string `mapstructure:"log_level" validate:"required,oneof=debug info warn error"`
}

// DatabaseConfig contains all relational database settings.
type DatabaseConfig struct {
	URL string `mapstructure:"url" validate:"required,url"`
}

// RedisConfig contains the session store settings. An empty URL selects the
// in-memory session store, intended for local development and tests.
type RedisConfig struct {
	URL string `mapstructure:"url" validate:"omitempty"`
	// SessionTTLMinutes is how long an untouched session survives.
	// Every session write refreshes it.
	SessionTTLMinutes int `mapstructure:"session_ttl_minutes" validate:"required,gt=0"`
}

// AuthConfig contains all authentication and authorization settings.
type AuthConfig struct {
	JWTSecret string `mapstructure:"jwt_secret" validate:"required,min=32"`
	// TokenLifetimeMinutes controls how long issued access tokens stay valid.
	TokenLifetimeMinutes int `mapstructure:"token_lifetime_minutes" validate:"required,gt=0"`
	// RefreshTokenLifetimeMinutes controls how long refresh tokens stay valid.
	RefreshTokenLifetimeMinutes int `mapstructure:"refresh_token_lifetime_minutes" validate:"required,gt=0"`
	// APIKeyEncryptionKey is the AEAD key protecting stored provider
	// credentials. Exactly 32 bytes.
	APIKeyEncryptionKey string `mapstructure:"api_key_encryption_key" validate:"required,len=32"`
}

// LLMConfig contains generation provider settings. Provider API keys are
// optional here because callers may supply per-user keys at submission time.
type LLMConfig struct {
	DefaultProvider  string `mapstructure:"default_provider" validate:"required,oneof=gemini openai perplexity"`
	GeminiAPIKey     string `mapstructure:"gemini_api_key"`
	GeminiModel      string `mapstructure:"gemini_model"     validate:"required"`
	OpenAIAPIKey     string `mapstructure:"openai_api_key"`
	OpenAIModel      string `mapstructure:"openai_model"     validate:"required"`
	PerplexityAPIKey string `mapstructure:"perplexity_api_key"`
	PerplexityModel  string `mapstructure:"perplexity_model" validate:"required"`
	// MaxRetries bounds generation attempts per question.
	MaxRetries int `mapstructure:"max_retries" validate:"required,gt=0"`
	// RetryBaseDelaySeconds is the first backoff delay; each further delay
	// doubles it.
	RetryBaseDelaySeconds int `mapstructure:"retry_base_delay_seconds" validate:"required,gt=0"`
}

// TaskConfig contains worker pool settings for pipeline execution.
type TaskConfig struct {
	WorkerCount int `mapstructure:"worker_count" validate:"required,gt=0"`
	QueueSize   int `mapstructure:"queue_size"   validate:"required,gt=0"`
	// SoftTimeoutMinutes cancels a run's context for graceful abort.
	SoftTimeoutMinutes int `mapstructure:"soft_timeout_minutes" validate:"required,gt=0"`
	// HardTimeoutMinutes is the wall-clock limit after which the runner
	// abandons the unit of work.
	HardTimeoutMinutes int `mapstructure:"hard_timeout_minutes" validate:"required,gt=0"`
	// MaxTasksPerWorker recycles a worker after this many completed units.
	MaxTasksPerWorker int `mapstructure:"max_tasks_per_worker" validate:"required,gt=0"`
}

// StorageConfig contains document and upload storage settings.
type StorageConfig struct {
	DocumentDir     string `mapstructure:"document_dir"       validate:"required"`
	UploadDir       string `mapstructure:"upload_dir"         validate:"required"`
	RetentionDays   int    `mapstructure:"retention_days"     validate:"required,gt=0"`
	MaxUploadSizeMB int    `mapstructure:"max_upload_size_mb" validate:"required,gt=0"`
}

package config

import (
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

// Load reads configuration from environment variables with the SAGE_ prefix
// (e.g. SAGE_SERVER_PORT maps to server.port), applies defaults, and
// validates the result. Environment variables take precedence over defaults.
// Returns a populated Config struct or an error if loading/validation fails.
func Load() (*Config, error) {
	v := viper.New()

	setDefaults(v)

	v.SetEnvPrefix("SAGE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// AutomaticEnv alone does not surface env-only keys through Unmarshal,
	// so bind each known key explicitly.
	for _, key := range []string{
		"server.port",
		"server.log_level",
		"database.url",
		"redis.url",
		"redis.session_ttl_minutes",
		"auth.jwt_secret",
		"auth.token_lifetime_minutes",
		"auth.refresh_token_lifetime_minutes",
		"auth.api_key_encryption_key",
		"llm.default_provider",
		"llm.gemini_api_key",
		"llm.gemini_model",
		"llm.openai_api_key",
		"llm.openai_model",
		"llm.perplexity_api_key",
		"llm.perplexity_model",
		"llm.max_retries",
		"llm.retry_base_delay_seconds",
		"task.worker_count",
		"task.queue_size",
		"task.soft_timeout_minutes",
		"task.hard_timeout_minutes",
		"task.max_tasks_per_worker",
		"storage.document_dir",
		"storage.upload_dir",
		"storage.retention_days",
		"storage.max_upload_size_mb",
	} {
		if err := v.BindEnv(key); err != nil {
			return nil, fmt.Errorf("failed to bind environment variable for %s: %w", key, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	validate := validator.New()
	if err := validate.Struct(&cfg); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &cfg, nil
}

// setDefaults registers a default for every tunable that has a sensible one.
// Secrets and connection URLs have no defaults and must come from the
// environment.
func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.log_level", "info")

	v.SetDefault("redis.session_ttl_minutes", 60)

	v.SetDefault("auth.token_lifetime_minutes", 60)
	v.SetDefault("auth.refresh_token_lifetime_minutes", 10080)

	v.SetDefault("llm.default_provider", "gemini")
	v.SetDefault("llm.gemini_model", "gemini-2.5-flash")
	v.SetDefault("llm.openai_model", "gpt-4o-mini")
	v.SetDefault("llm.perplexity_model", "llama-3.1-sonar-small-128k-online")
	v.SetDefault("llm.max_retries", 3)
	v.SetDefault("llm.retry_base_delay_seconds", 1)

	v.SetDefault("task.worker_count", 4)
	v.SetDefault("task.queue_size", 100)
	v.SetDefault("task.soft_timeout_minutes", 55)
	v.SetDefault("task.hard_timeout_minutes", 60)
	v.SetDefault("task.max_tasks_per_worker", 50)

	v.SetDefault("storage.document_dir", "storage/documents")
	v.SetDefault("storage.upload_dir", "storage/uploads")
	v.SetDefault("storage.retention_days", 7)
	v.SetDefault("storage.max_upload_size_mb", 50)
}

package generation

import (
	"context"
	"fmt"
)

// Generator defines the interface for one-shot text generation against an
// external LLM service. This interface is the boundary between the pipeline
// and provider SDKs: implementations live under internal/platform and the
// rest of the application never touches a provider client directly.
type Generator interface {
	// Generate produces the completion text for a single prompt.
	//
	// Parameters:
	//   - ctx: Context for the operation, which can be used for cancellation
	//   - prompt: The fully-built prompt to send to the provider
	//
	// Returns:
	//   - The generated text with surrounding whitespace trimmed
	//   - An error if the call fails (see errors.go for specific types)
	Generate(ctx context.Context, prompt string) (string, error)
}

// Provider identifies a generation backend.
type Provider string

// Supported generation providers
const (
	ProviderGemini     Provider = "gemini"
	ProviderOpenAI     Provider = "openai"
	ProviderPerplexity Provider = "perplexity"
)

// ParseProvider converts a configuration string into a Provider.
// Returns ErrUnsupportedProvider for anything outside the closed set.
func ParseProvider(s string) (Provider, error) {
	switch Provider(s) {
	case ProviderGemini, ProviderOpenAI, ProviderPerplexity:
		return Provider(s), nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnsupportedProvider, s)
	}
}

// Generation defaults shared by all providers. The low temperature keeps
// answers focused; the token cap keeps per-question latency bounded.
const (
	DefaultTemperature float32 = 0.3
	DefaultMaxTokens           = 800
)

// Config carries everything needed to construct a Generator for one
// pipeline run. Clients are built per run from this configuration rather
// than shared as process-wide singletons, so concurrent sessions never
// share mutable client state.
type Config struct {
	Provider    Provider
	APIKey      string
	Model       string
	Temperature float32
	MaxTokens   int
}

// Normalize fills unset tuning fields with the package defaults.
func (c Config) Normalize() Config {
	if c.Temperature == 0 {
		c.Temperature = DefaultTemperature
	}
	if c.MaxTokens == 0 {
		c.MaxTokens = DefaultMaxTokens
	}
	return c
}

// Validate checks that the Config can construct a working Generator.
func (c Config) Validate() error {
	if _, err := ParseProvider(string(c.Provider)); err != nil {
		return err
	}
	if c.APIKey == "" {
		return fmt.Errorf("%w: missing API key for provider %s", ErrInvalidConfig, c.Provider)
	}
	if c.Model == "" {
		return fmt.Errorf("%w: missing model for provider %s", ErrInvalidConfig, c.Provider)
	}
	return nil
}

// Factory constructs a Generator from explicit configuration. The concrete
// factory lives in internal/platform/llm; the pipeline receives it as a
// dependency so each run builds its own provider client.
type Factory func(ctx context.Context, cfg Config) (Generator, error)

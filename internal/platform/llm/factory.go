// Package llm selects the concrete generation provider at construction
// time. It is the only place in the application that knows which provider
// adapters exist; everything above it works against generation.Generator
// and generation.Factory.
package llm

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/phrazzld/sage-api/internal/generation"
	"github.com/phrazzld/sage-api/internal/platform/gemini"
	"github.com/phrazzld/sage-api/internal/platform/openai"
)

// NewGenerator builds the provider client named by cfg.Provider. Each call
// builds a fresh client, so every pipeline run gets its own.
func NewGenerator(ctx context.Context, logger *slog.Logger, cfg generation.Config) (generation.Generator, error) {
	if logger == nil {
		return nil, errors.New("logger cannot be nil")
	}

	switch cfg.Provider {
	case generation.ProviderGemini:
		return gemini.NewGeminiGenerator(ctx, logger, cfg)
	case generation.ProviderOpenAI:
		return openai.NewOpenAIGenerator(logger, cfg)
	case generation.ProviderPerplexity:
		return openai.NewPerplexityGenerator(logger, cfg)
	default:
		return nil, fmt.Errorf("%w: %q", generation.ErrUnsupportedProvider, cfg.Provider)
	}
}

// NewFactory returns a generation.Factory bound to the given logger, for
// callers that construct generators per run.
func NewFactory(logger *slog.Logger) generation.Factory {
	return func(ctx context.Context, cfg generation.Config) (generation.Generator, error) {
		return NewGenerator(ctx, logger, cfg)
	}
}

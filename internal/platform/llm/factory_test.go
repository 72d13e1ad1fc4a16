package llm

import (
	"context"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/phrazzld/sage-api/internal/generation"
	"github.com/phrazzld/sage-api/internal/platform/gemini"
	"github.com/phrazzld/sage-api/internal/platform/openai"
)

func TestNewGeneratorSelectsProvider(t *testing.T) {
	ctx := context.Background()
	logger := slog.Default()

	geminiGen, err := NewGenerator(ctx, logger, generation.Config{
		Provider: generation.ProviderGemini,
		APIKey:   "test-api-key",
		Model:    "gemini-2.5-flash",
	})
	require.NoError(t, err)
	assert.IsType(t, &gemini.GeminiGenerator{}, geminiGen)

	openaiGen, err := NewGenerator(ctx, logger, generation.Config{
		Provider: generation.ProviderOpenAI,
		APIKey:   "test-api-key",
		Model:    "gpt-4o-mini",
	})
	require.NoError(t, err)
	assert.IsType(t, &openai.OpenAIGenerator{}, openaiGen)

	perplexityGen, err := NewGenerator(ctx, logger, generation.Config{
		Provider: generation.ProviderPerplexity,
		APIKey:   "test-api-key",
		Model:    "llama-3.1-sonar-small-128k-online",
	})
	require.NoError(t, err)
	assert.IsType(t, &openai.OpenAIGenerator{}, perplexityGen)
}

func TestNewGeneratorRejectsUnknownProvider(t *testing.T) {
	_, err := NewGenerator(context.Background(), slog.Default(), generation.Config{
		Provider: "claude",
		APIKey:   "test-api-key",
		Model:    "m",
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, generation.ErrUnsupportedProvider)
}

func TestNewGeneratorRequiresLogger(t *testing.T) {
	_, err := NewGenerator(context.Background(), nil, generation.Config{
		Provider: generation.ProviderGemini,
		APIKey:   "test-api-key",
		Model:    "gemini-2.5-flash",
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "logger cannot be nil")
}

func TestNewFactoryBindsLogger(t *testing.T) {
	factory := NewFactory(slog.Default())
	require.NotNil(t, factory)

	gen, err := factory(context.Background(), generation.Config{
		Provider: generation.ProviderGemini,
		APIKey:   "test-api-key",
		Model:    "gemini-2.5-flash",
	})
	require.NoError(t, err)
	assert.Implements(t, (*generation.Generator)(nil), gen)
}

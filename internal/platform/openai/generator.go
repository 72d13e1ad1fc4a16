package openai

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	openaigo "github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"github.com/phrazzld/sage-api/internal/generation"
)

// PerplexityBaseURL is the OpenAI-compatible endpoint Perplexity serves.
const PerplexityBaseURL = "https://api.perplexity.ai"

// ErrEmptyPrompt is returned when Generate is called with an empty prompt.
var ErrEmptyPrompt = errors.New("prompt cannot be empty")

// OpenAIGenerator implements the generation.Generator interface against an
// OpenAI-compatible chat completion API.
type OpenAIGenerator struct {
	logger      *slog.Logger
	client      openaigo.Client
	provider    generation.Provider
	model       string
	temperature float32
	maxTokens   int
}

// Compile-time check that OpenAIGenerator implements generation.Generator.
var _ generation.Generator = (*OpenAIGenerator)(nil)

// NewOpenAIGenerator creates a generator that talks to OpenAI. The client
// it builds belongs to one pipeline run; nothing is shared between runs.
func NewOpenAIGenerator(logger *slog.Logger, cfg generation.Config) (*OpenAIGenerator, error) {
	return newGenerator(logger, cfg, generation.ProviderOpenAI)
}

// NewPerplexityGenerator creates a generator that talks to Perplexity
// through its OpenAI-compatible endpoint.
func NewPerplexityGenerator(logger *slog.Logger, cfg generation.Config) (*OpenAIGenerator, error) {
	return newGenerator(logger, cfg, generation.ProviderPerplexity, option.WithBaseURL(PerplexityBaseURL))
}

func newGenerator(
	logger *slog.Logger,
	cfg generation.Config,
	provider generation.Provider,
	opts ...option.RequestOption,
) (*OpenAIGenerator, error) {
	if logger == nil {
		return nil, errors.New("logger cannot be nil")
	}

	cfg = cfg.Normalize()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if cfg.Provider != provider {
		return nil, fmt.Errorf("%w: provider %q is not %s", generation.ErrInvalidConfig, cfg.Provider, provider)
	}

	clientOpts := append([]option.RequestOption{option.WithAPIKey(cfg.APIKey)}, opts...)

	return &OpenAIGenerator{
		logger: logger.With(
			slog.String("component", "openai_generator"),
			slog.String("provider", string(provider))),
		client:      openaigo.NewClient(clientOpts...),
		provider:    provider,
		model:       cfg.Model,
		temperature: cfg.Temperature,
		maxTokens:   cfg.MaxTokens,
	}, nil
}

// Generate implements generation.Generator.Generate. It sends the system
// prompt and the user prompt as a two-message chat completion and returns
// the response text. API failures come back wrapped in
// generation.ErrTransientFailure; refusals and empty completions come back
// as their permanent sentinels.
func (g *OpenAIGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	if strings.TrimSpace(prompt) == "" {
		return "", ErrEmptyPrompt
	}

	g.logger.DebugContext(ctx, "Calling chat completion API",
		slog.String("model", g.model),
		slog.Int("prompt_length", len(prompt)))

	completion, err := g.client.Chat.Completions.New(ctx, openaigo.ChatCompletionNewParams{
		Model: openaigo.ChatModel(g.model),
		Messages: []openaigo.ChatCompletionMessageParamUnion{
			openaigo.SystemMessage(generation.SystemPrompt),
			openaigo.UserMessage(prompt),
		},
		Temperature: openaigo.Float(float64(g.temperature)),
		MaxTokens:   openaigo.Int(int64(g.maxTokens)),
	})
	if err != nil {
		g.logger.ErrorContext(ctx, "Chat completion API call failed",
			slog.String("model", g.model),
			slog.String("error", err.Error()))
		return "", fmt.Errorf("%w: %v", generation.ErrTransientFailure, err)
	}

	if len(completion.Choices) == 0 {
		return "", fmt.Errorf("%w: no choices in completion", generation.ErrInvalidResponse)
	}

	message := completion.Choices[0].Message
	if message.Refusal != "" {
		g.logger.WarnContext(ctx, "Chat completion refused",
			slog.String("model", g.model),
			slog.String("refusal", message.Refusal))
		return "", fmt.Errorf("%w: %s", generation.ErrContentBlocked, message.Refusal)
	}

	text := strings.TrimSpace(message.Content)
	if text == "" {
		return "", fmt.Errorf("%w: completion contained no text", generation.ErrInvalidResponse)
	}

	g.logger.DebugContext(ctx, "Chat completion API call successful",
		slog.String("model", g.model),
		slog.Int("response_length", len(text)))
	return text, nil
}

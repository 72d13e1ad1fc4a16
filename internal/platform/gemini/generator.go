package gemini

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"google.golang.org/genai"

	"github.com/phrazzld/sage-api/internal/generation"
)

// ErrEmptyPrompt is returned when Generate is called with an empty prompt.
var ErrEmptyPrompt = errors.New("prompt cannot be empty")

// GeminiGenerator implements the generation.Generator interface using
// Google's Gemini API to generate answer text for a prompt.
type GeminiGenerator struct {
	logger      *slog.Logger
	client      *genai.Client
	model       string
	temperature float32
	maxTokens   int
}

// Compile-time check that GeminiGenerator implements generation.Generator.
var _ generation.Generator = (*GeminiGenerator)(nil)

// NewGeminiGenerator creates a new GeminiGenerator from explicit
// configuration. The client it builds belongs to one pipeline run; nothing
// is shared between runs.
//
// Parameters:
//   - ctx: Context for client construction, which can be used for cancellation
//   - logger: A structured logger for operation logging
//   - cfg: Generation configuration carrying the API key, model, and tuning
//
// Returns:
//   - A properly initialized GeminiGenerator or an error if initialization fails
func NewGeminiGenerator(ctx context.Context, logger *slog.Logger, cfg generation.Config) (*GeminiGenerator, error) {
	if logger == nil {
		return nil, errors.New("logger cannot be nil")
	}

	cfg = cfg.Normalize()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if cfg.Provider != generation.ProviderGemini {
		return nil, fmt.Errorf("%w: provider %q is not gemini", generation.ErrInvalidConfig, cfg.Provider)
	}

	clientConfig := &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	}

	client, err := genai.NewClient(ctx, clientConfig)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to create Gemini client: %v",
			generation.ErrInvalidConfig, err)
	}

	return &GeminiGenerator{
		logger:      logger.With(slog.String("component", "gemini_generator")),
		client:      client,
		model:       cfg.Model,
		temperature: cfg.Temperature,
		maxTokens:   cfg.MaxTokens,
	}, nil
}

// Generate implements generation.Generator.Generate. It sends the prompt to
// the configured Gemini model and returns the response text. API failures
// come back wrapped in generation.ErrTransientFailure so the retry policy
// treats them as retryable; blocked or malformed responses come back as
// their permanent sentinels.
func (g *GeminiGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	if strings.TrimSpace(prompt) == "" {
		return "", ErrEmptyPrompt
	}

	g.logger.DebugContext(ctx, "Calling Gemini API",
		slog.String("model", g.model),
		slog.Int("prompt_length", len(prompt)))

	fullPrompt := generation.SystemPrompt + "\n\n" + prompt
	config := &genai.GenerateContentConfig{
		Temperature:     genai.Ptr(g.temperature),
		MaxOutputTokens: int32(g.maxTokens),
	}

	resp, err := g.client.Models.GenerateContent(ctx, g.model, genai.Text(fullPrompt), config)
	if err != nil {
		g.logger.ErrorContext(ctx, "Gemini API call failed",
			slog.String("model", g.model),
			slog.String("error", err.Error()))
		return "", fmt.Errorf("%w: %v", generation.ErrTransientFailure, err)
	}

	text, err := extractText(resp)
	if err != nil {
		g.logger.WarnContext(ctx, "Gemini API returned unusable response",
			slog.String("model", g.model),
			slog.String("error", err.Error()))
		return "", err
	}

	g.logger.DebugContext(ctx, "Gemini API call successful",
		slog.String("model", g.model),
		slog.Int("response_length", len(text)))
	return text, nil
}

// extractText pulls the answer text out of a Gemini response, mapping each
// failure mode to the matching generation sentinel.
func extractText(resp *genai.GenerateContentResponse) (string, error) {
	if resp == nil {
		return "", fmt.Errorf("%w: nil response", generation.ErrInvalidResponse)
	}

	if len(resp.Candidates) == 0 {
		if resp.PromptFeedback != nil && resp.PromptFeedback.BlockReason != "" {
			return "", fmt.Errorf("%w: prompt blocked (%s)",
				generation.ErrContentBlocked, resp.PromptFeedback.BlockReason)
		}
		return "", fmt.Errorf("%w: no content generated", generation.ErrInvalidResponse)
	}

	candidate := resp.Candidates[0]
	if candidate.FinishReason == genai.FinishReasonSafety {
		return "", fmt.Errorf("%w: response blocked by safety filters", generation.ErrContentBlocked)
	}
	if candidate.Content == nil || len(candidate.Content.Parts) == 0 {
		return "", fmt.Errorf("%w: empty content in response", generation.ErrInvalidResponse)
	}

	var sb strings.Builder
	for _, part := range candidate.Content.Parts {
		sb.WriteString(part.Text)
	}

	text := strings.TrimSpace(sb.String())
	if text == "" {
		return "", fmt.Errorf("%w: response contained no text", generation.ErrInvalidResponse)
	}
	return text, nil
}

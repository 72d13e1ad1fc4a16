package generation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/phrazzld/sage-api/internal/domain"
	"github.com/phrazzld/sage-api/internal/knowledge"
	"github.com/phrazzld/sage-api/internal/platform/logger"
	"github.com/phrazzld/sage-api/internal/retry"
)

// KnowledgeSearcher is the slice of the knowledge base answer generation
// needs: keyword search over reference material.
type KnowledgeSearcher interface {
	Search(query, subject string, limit int) []domain.KnowledgeEntry
}

// LanguageResolver resolves ISO 639-1 codes to language configurations.
type LanguageResolver interface {
	Get(code string) (domain.LanguageConfig, error)
}

// Outcome is the explicit per-question result of the generation stage.
// A failed generation does not surface as an error; it surfaces as a
// fallback Outcome carrying an error-marker answer, so one bad question can
// never abort the batch.
type Outcome struct {
	// Question is the question this outcome answers.
	Question domain.Question

	// Answer is the generated answer, or the fallback answer when
	// Fallback is true. Never nil.
	Answer *domain.Answer

	// Fallback reports that generation failed and Answer carries the
	// error marker instead of real content.
	Fallback bool

	// Reason is the failure description behind a fallback, empty otherwise.
	Reason string
}

// AnswerGenerator produces answers for extracted questions: it consults the
// knowledge base, builds the provider prompt, calls the Generator under the
// retry policy, and attaches detected visual specs and references.
type AnswerGenerator struct {
	generator Generator
	knowledge KnowledgeSearcher
	languages LanguageResolver
	policy    retry.Policy
	logger    *slog.Logger
}

// NewAnswerGenerator creates a new AnswerGenerator.
// The generator is the per-run provider client; knowledge and languages are
// the shared read-only collaborators. If logger is nil, a default logger
// will be used.
func NewAnswerGenerator(
	generator Generator,
	knowledge KnowledgeSearcher,
	languages LanguageResolver,
	policy retry.Policy,
	log *slog.Logger,
) (*AnswerGenerator, error) {
	if generator == nil {
		return nil, errors.New("generator cannot be nil")
	}
	if knowledge == nil {
		return nil, errors.New("knowledge searcher cannot be nil")
	}
	if languages == nil {
		return nil, errors.New("language resolver cannot be nil")
	}
	if log == nil {
		log = slog.Default()
	}

	return &AnswerGenerator{
		generator: generator,
		knowledge: knowledge,
		languages: languages,
		policy:    policy,
		logger:    log.With(slog.String("component", "answer_generator")),
	}, nil
}

// GenerateAnswer produces the answer for one question in the target
// language. The provider call runs under the retry policy; exhausting it
// returns an error wrapping ErrGenerationFailed.
func (g *AnswerGenerator) GenerateAnswer(
	ctx context.Context,
	question domain.Question,
	langCode string,
) (*domain.Answer, error) {
	log := logger.FromContextOrDefault(ctx, g.logger)

	langCfg, err := g.languages.Get(langCode)
	if err != nil {
		return nil, err
	}

	entries := g.knowledge.Search(question.Text, "", knowledge.DefaultSearchLimit)
	prompt := BuildPrompt(question, langCfg, entries)

	log.Debug("generating answer",
		slog.String("question_id", question.ID),
		slog.Int("question_index", question.Index),
		slog.Int("knowledge_entries", len(entries)),
		slog.Int("prompt_length", len(prompt)))

	var content string
	err = g.policy.Do(ctx, func(ctx context.Context) error {
		text, genErr := g.generator.Generate(ctx, prompt)
		if genErr != nil {
			return genErr
		}
		content = text
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: question %s: %v", ErrGenerationFailed, question.ID, err)
	}

	sourceIDs := make([]string, 0, len(entries))
	for _, entry := range entries {
		sourceIDs = append(sourceIDs, entry.ID)
	}

	answer := &domain.Answer{
		QuestionID:       question.ID,
		Content:          content,
		Language:         langCode,
		VisualSpecs:      DetectVisualSpecs(question, content, langCode),
		References:       BuildReferences(entries),
		KnowledgeSources: sourceIDs,
	}
	if err := answer.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidResponse, err)
	}

	log.Debug("answer generated",
		slog.String("question_id", question.ID),
		slog.Int("content_length", len(content)),
		slog.Int("visual_specs", len(answer.VisualSpecs)))
	return answer, nil
}

// GenerateWithFallback wraps GenerateAnswer with the per-item isolation
// contract: it always returns a usable Outcome. On failure the Outcome
// carries a fallback answer whose content is the error marker, and the
// failure is logged rather than propagated.
func (g *AnswerGenerator) GenerateWithFallback(
	ctx context.Context,
	question domain.Question,
	langCode string,
) Outcome {
	log := logger.FromContextOrDefault(ctx, g.logger)

	answer, err := g.GenerateAnswer(ctx, question, langCode)
	if err == nil {
		return Outcome{Question: question, Answer: answer}
	}

	log.Error("answer generation failed, recording fallback",
		slog.String("question_id", question.ID),
		slog.Int("question_index", question.Index),
		slog.String("error", err.Error()))

	return Outcome{
		Question: question,
		Answer: &domain.Answer{
			QuestionID: question.ID,
			Content:    fmt.Sprintf("Error generating answer: %v", err),
			Language:   langCode,
		},
		Fallback: true,
		Reason:   err.Error(),
	}
}

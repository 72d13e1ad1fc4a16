package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/phrazzld/sage-api/internal/docstore"
	"github.com/phrazzld/sage-api/internal/document"
	"github.com/phrazzld/sage-api/internal/domain"
	"github.com/phrazzld/sage-api/internal/generation"
	"github.com/phrazzld/sage-api/internal/parser"
	"github.com/phrazzld/sage-api/internal/platform/logger"
	"github.com/phrazzld/sage-api/internal/retry"
	"github.com/phrazzld/sage-api/internal/store"
	"github.com/phrazzld/sage-api/internal/upload"
)

// InputStore reads and releases transient uploaded inputs.
type InputStore interface {
	Read(ctx context.Context, path string) ([]byte, error)
	Remove(ctx context.Context, path string) error
}

// Renderer renders one visual spec into a diagram.
type Renderer interface {
	Render(ctx context.Context, spec domain.VisualSpec) (*domain.Diagram, error)
}

// Assembler builds the output document from a completed run.
type Assembler interface {
	Assemble(
		ctx context.Context,
		questions []domain.Question,
		answers []domain.Answer,
		diagrams map[string][]domain.Diagram,
		language string,
	) (*domain.Document, error)
}

// ParseFunc extracts questions from raw input bytes.
type ParseFunc func(ctx context.Context, data []byte, format string) ([]domain.Question, error)

// Request carries everything one pipeline run needs.
type Request struct {
	SessionID string
	InputPath string // spool path of the uploaded input
	Format    string // parser format tag
	Language  string // ISO 639-1 target language
	Provider  string // generation provider name
	APIKey    string // provider API key; a per-user key is resolved at submission
	Model     string // provider model
}

// RegenerateRequest re-runs generation for one answered question.
type RegenerateRequest struct {
	SessionID     string
	QuestionIndex int
	Instruction   string
	Language      string
	Provider      string
	APIKey        string
	Model         string
}

// Config assembles an Orchestrator's collaborators.
type Config struct {
	Sessions     store.SessionStore
	Uploads      InputStore
	NewGenerator generation.Factory
	Knowledge    generation.KnowledgeSearcher
	Languages    generation.LanguageResolver
	Renderer     Renderer
	Assembler    Assembler
	Documents    docstore.Storage

	// Parse defaults to the parser package's format dispatch.
	Parse ParseFunc

	// Retry defaults to the standard schedule.
	Retry retry.Policy

	Logger *slog.Logger
}

// Orchestrator runs the processing pipeline for one session at a time.
type Orchestrator struct {
	sessions  store.SessionStore
	uploads   InputStore
	factory   generation.Factory
	knowledge generation.KnowledgeSearcher
	languages generation.LanguageResolver
	renderer  Renderer
	assembler Assembler
	documents docstore.Storage
	parse     ParseFunc
	retry     retry.Policy
	logger    *slog.Logger
}

// New creates an Orchestrator from the given collaborators.
func New(cfg Config) (*Orchestrator, error) {
	if cfg.Sessions == nil {
		return nil, errors.New("session store cannot be nil")
	}
	if cfg.Uploads == nil {
		return nil, errors.New("upload store cannot be nil")
	}
	if cfg.NewGenerator == nil {
		return nil, errors.New("generator factory cannot be nil")
	}
	if cfg.Knowledge == nil {
		return nil, errors.New("knowledge searcher cannot be nil")
	}
	if cfg.Languages == nil {
		return nil, errors.New("language resolver cannot be nil")
	}
	if cfg.Renderer == nil {
		return nil, errors.New("diagram renderer cannot be nil")
	}
	if cfg.Assembler == nil {
		return nil, errors.New("document assembler cannot be nil")
	}
	if cfg.Documents == nil {
		return nil, errors.New("document storage cannot be nil")
	}
	if cfg.Parse == nil {
		cfg.Parse = parser.Parse
	}
	if cfg.Retry.MaxAttempts == 0 {
		cfg.Retry = retry.DefaultPolicy()
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	return &Orchestrator{
		sessions:  cfg.Sessions,
		uploads:   cfg.Uploads,
		factory:   cfg.NewGenerator,
		knowledge: cfg.Knowledge,
		languages: cfg.Languages,
		renderer:  cfg.Renderer,
		assembler: cfg.Assembler,
		documents: cfg.Documents,
		parse:     cfg.Parse,
		retry:     cfg.Retry,
		logger:    cfg.Logger.With(slog.String("component", "pipeline")),
	}, nil
}

// Run executes the six pipeline stages for one session. On success the
// returned Result has already been stored and the session marked COMPLETE.
// On a fatal error the session is marked ERROR with an error Result before
// the error is returned. The transient input is removed on every exit path.
func (o *Orchestrator) Run(ctx context.Context, req Request) (*domain.Result, error) {
	log := logger.FromContextOrDefault(ctx, o.logger).With(slog.String("session_id", req.SessionID))
	ctx = logger.WithLogger(ctx, log)

	reporter := NewReporter(o.sessions, req.SessionID, log)

	defer func() {
		if err := o.uploads.Remove(ctx, req.InputPath); err != nil {
			log.Warn("failed to remove transient input",
				slog.String("path", req.InputPath),
				slog.String("error", err.Error()))
		}
	}()

	abort := func(cause error) (*domain.Result, error) {
		o.fail(ctx, reporter, req.SessionID, cause)
		return nil, cause
	}

	log.Info("starting session processing",
		slog.String("format", req.Format),
		slog.String("language", req.Language),
		slog.String("provider", req.Provider))

	// Stage 1: initialize.
	if err := o.sessions.SetStatus(ctx, req.SessionID, domain.SessionStatusProcessing); err != nil {
		return abort(fmt.Errorf("failed to mark session processing: %w", err))
	}
	reporter.Report(ctx, "initializing", BandInitialize, 0, "Initializing processing")

	// Stage 2: parse.
	reporter.Report(ctx, "parsing", BandParse, 0, "Parsing input file")

	data, err := o.uploads.Read(ctx, req.InputPath)
	if err != nil {
		return abort(&parser.ParseError{Format: parser.Format(req.Format), Issue: "failed to read input", Err: err})
	}

	questions, err := o.parse(ctx, data, req.Format)
	if err != nil {
		return abort(err)
	}
	if len(questions) == 0 {
		return abort(&parser.ParseError{Format: parser.Format(req.Format), Issue: "no questions found in the input"})
	}

	log.Info("parsed input", slog.Int("questions", len(questions)))
	reporter.Report(ctx, "parsing_complete", BandParse, 100,
		fmt.Sprintf("Successfully parsed %d questions", len(questions)))

	// Stage 3: generate answers, isolated per question.
	reporter.Report(ctx, "generating_answers", BandGenerate, 0,
		fmt.Sprintf("Generating answers for %d questions", len(questions)))

	answerGen, err := o.buildAnswerGenerator(ctx, log, req.Provider, req.APIKey, req.Model)
	if err != nil {
		return abort(err)
	}

	answers := make([]domain.Answer, 0, len(questions))
	fallbacks := 0
	for i, question := range questions {
		if err := ctx.Err(); err != nil {
			return abort(err)
		}

		reporter.Report(ctx, "generating_answer", BandGenerate, (i+1)*100/len(questions),
			fmt.Sprintf("Generating answer %d/%d", i+1, len(questions)))

		outcome := answerGen.GenerateWithFallback(ctx, question, req.Language)
		answers = append(answers, *outcome.Answer)
		if outcome.Fallback {
			fallbacks++
		}

		preview := domain.AnswerPreview{
			Index:        i,
			Question:     question.Text,
			Answer:       outcome.Answer.Content,
			DiagramCount: len(outcome.Answer.VisualSpecs),
			Timestamp:    time.Now().UTC(),
		}
		if err := o.sessions.AppendAnswerPreview(ctx, req.SessionID, preview); err != nil {
			return abort(fmt.Errorf("failed to store answer preview: %w", err))
		}
	}

	log.Info("generated answers", slog.Int("answers", len(answers)), slog.Int("fallbacks", fallbacks))
	reporter.Report(ctx, "answers_complete", BandGenerate, 100,
		fmt.Sprintf("Successfully generated %d answers", len(answers)))

	// Stage 4: render diagrams, isolated per artifact.
	reporter.Report(ctx, "generating_diagrams", BandDiagrams, 0, "Generating diagrams")

	diagrams := make(map[string][]domain.Diagram)
	total := 0
	for _, answer := range answers {
		total += len(answer.VisualSpecs)
	}

	rendered := 0
	for _, answer := range answers {
		for _, spec := range answer.VisualSpecs {
			if err := ctx.Err(); err != nil {
				return abort(err)
			}

			diagram, err := o.renderer.Render(ctx, spec)
			if err != nil {
				log.Warn("skipping failed diagram",
					slog.String("question_id", answer.QuestionID),
					slog.String("kind", string(spec.Kind)),
					slog.String("error", err.Error()))
				continue
			}

			diagrams[answer.QuestionID] = append(diagrams[answer.QuestionID], *diagram)
			rendered++
			reporter.Report(ctx, "generating_diagram", BandDiagrams, rendered*100/total,
				fmt.Sprintf("Generated diagram %d/%d", rendered, total))
		}
	}

	if total > 0 {
		log.Info("rendered diagrams", slog.Int("rendered", rendered), slog.Int("specs", total))
	}
	reporter.Report(ctx, "diagrams_complete", BandDiagrams, 100, "Diagram generation complete")

	// Stage 5: assemble.
	reporter.Report(ctx, "assembling_document", BandAssemble, 0, "Assembling output document")

	doc, err := o.assembler.Assemble(ctx, questions, answers, diagrams, req.Language)
	if err != nil {
		return abort(err)
	}

	reporter.Report(ctx, "assembly_complete", BandAssemble, 100,
		fmt.Sprintf("Assembled %d-page document", doc.PageCount))

	// Stage 6: persist and finalize.
	reporter.Report(ctx, "storing_document", BandPersist, 0, "Storing document")

	docID := docstore.NewIdentifier()
	if _, err := o.documents.Save(ctx, docID, doc); err != nil {
		return abort(&StorageError{Err: err})
	}

	result := &domain.Result{
		Success:            true,
		DocumentID:         docID,
		Filename:           doc.Filename,
		PageCount:          doc.PageCount,
		QuestionsProcessed: len(questions),
		AnswersGenerated:   len(answers),
		DiagramsGenerated:  rendered,
	}
	if err := o.sessions.StoreResult(ctx, req.SessionID, result); err != nil {
		return abort(fmt.Errorf("failed to store result: %w", err))
	}
	if err := o.sessions.SetStatus(ctx, req.SessionID, domain.SessionStatusComplete); err != nil {
		return abort(fmt.Errorf("failed to mark session complete: %w", err))
	}
	reporter.Report(ctx, "complete", BandPersist, 100, "Processing complete")

	log.Info("session processing complete",
		slog.String("document_id", docID),
		slog.Int("questions", len(questions)),
		slog.Int("fallbacks", fallbacks),
		slog.Int("diagrams", rendered),
		slog.Int("pages", doc.PageCount))
	return result, nil
}

// Regenerate re-runs answer generation for one question with the caller's
// instruction appended, then replaces that question's stored answer text in
// place. Session status, other answers, and the persisted document are left
// untouched. Returns the new answer text.
func (o *Orchestrator) Regenerate(ctx context.Context, req RegenerateRequest) (string, error) {
	log := logger.FromContextOrDefault(ctx, o.logger).With(slog.String("session_id", req.SessionID))

	previews, err := o.sessions.GetAnswerPreviews(ctx, req.SessionID)
	if err != nil {
		return "", err
	}

	var target *domain.AnswerPreview
	for i := range previews {
		if previews[i].Index == req.QuestionIndex {
			target = &previews[i]
			break
		}
	}
	if target == nil {
		return "", fmt.Errorf("%w: %d", ErrInvalidQuestionIndex, req.QuestionIndex)
	}

	question := domain.Question{
		ID:     fmt.Sprintf("q_%d", req.QuestionIndex),
		Text:   fmt.Sprintf("%s\n\n[Modification request: %s]", target.Question, req.Instruction),
		Source: "regeneration",
		Index:  req.QuestionIndex + 1,
	}

	answerGen, err := o.buildAnswerGenerator(ctx, log, req.Provider, req.APIKey, req.Model)
	if err != nil {
		return "", err
	}

	log.Info("regenerating answer",
		slog.Int("question_index", req.QuestionIndex),
		slog.String("provider", req.Provider))

	answer, err := answerGen.GenerateAnswer(ctx, question, req.Language)
	if err != nil {
		return "", err
	}

	if err := o.sessions.UpdateAnswerPreview(ctx, req.SessionID, req.QuestionIndex, answer.Content); err != nil {
		return "", fmt.Errorf("failed to update answer: %w", err)
	}
	return answer.Content, nil
}

// buildAnswerGenerator constructs the per-run provider client and wraps it
// with the shared knowledge base, language registry, and retry policy.
func (o *Orchestrator) buildAnswerGenerator(
	ctx context.Context,
	log *slog.Logger,
	providerName, apiKey, model string,
) (*generation.AnswerGenerator, error) {
	provider, err := generation.ParseProvider(providerName)
	if err != nil {
		return nil, err
	}

	gen, err := o.factory(ctx, generation.Config{
		Provider: provider,
		APIKey:   apiKey,
		Model:    model,
	})
	if err != nil {
		return nil, err
	}

	return generation.NewAnswerGenerator(gen, o.knowledge, o.languages, o.retry, log)
}

// fail records the terminal failure state: error Result, ERROR status, and
// a final error event. Store failures here are logged, not propagated; the
// original cause is what the caller returns.
func (o *Orchestrator) fail(ctx context.Context, reporter *Reporter, sessionID string, cause error) {
	log := logger.FromContextOrDefault(ctx, o.logger)

	log.Error("session processing failed",
		slog.String("session_id", sessionID),
		slog.String("category", errorCategory(cause)),
		slog.String("error", cause.Error()))

	result := &domain.Result{
		Success:   false,
		Error:     cause.Error(),
		ErrorType: errorCategory(cause),
		Trace:     errorTrace(cause),
	}
	if err := o.sessions.StoreResult(ctx, sessionID, result); err != nil {
		log.Error("failed to store error result",
			slog.String("session_id", sessionID),
			slog.String("error", err.Error()))
	}
	if err := o.sessions.SetStatus(ctx, sessionID, domain.SessionStatusError); err != nil {
		log.Error("failed to mark session errored",
			slog.String("session_id", sessionID),
			slog.String("error", err.Error()))
	}
	reporter.ReportError(ctx, fmt.Sprintf("Processing failed: %s", cause.Error()))
}

// errorCategory names the failure class recorded on an error Result.
func errorCategory(err error) string {
	var parseErr *parser.ParseError
	var asmErr *document.AssemblyError
	var storageErr *StorageError
	var valErr *upload.ValidationError

	switch {
	case errors.As(err, &parseErr):
		return "ParseError"
	case errors.As(err, &asmErr):
		return "AssemblyError"
	case errors.As(err, &storageErr):
		return "StorageError"
	case errors.As(err, &valErr),
		errors.Is(err, generation.ErrUnsupportedProvider),
		errors.Is(err, generation.ErrInvalidConfig):
		return "ValidationError"
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return "Canceled"
	default:
		return "ProcessingError"
	}
}

// errorTrace renders the wrapped error chain, outermost first.
func errorTrace(err error) string {
	var chain []string
	for e := err; e != nil; e = errors.Unwrap(e) {
		chain = append(chain, e.Error())
	}
	return strings.Join(chain, "\n")
}

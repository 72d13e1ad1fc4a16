package document

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/go-pdf/fpdf"

	"github.com/phrazzld/sage-api/internal/domain"
	"github.com/phrazzld/sage-api/internal/platform/logger"
)

// Page geometry in points, US Letter.
const (
	pageMargin   = 72
	contentWidth = 468
	figureWidth  = 360
	tocIndent    = 20
)

// tocEntryMaxRunes caps table-of-contents entries before truncation.
const tocEntryMaxRunes = 80

// LanguageResolver resolves ISO 639-1 codes to language configurations.
type LanguageResolver interface {
	Get(code string) (domain.LanguageConfig, error)
}

// Assembler builds the output PDF from a pipeline run's questions, answers,
// and rendered diagrams.
type Assembler struct {
	languages LanguageResolver
	logger    *slog.Logger
}

// NewAssembler creates a new Assembler. If logger is nil, a default logger
// will be used.
func NewAssembler(languages LanguageResolver, log *slog.Logger) (*Assembler, error) {
	if languages == nil {
		return nil, errors.New("language resolver cannot be nil")
	}
	if log == nil {
		log = slog.Default()
	}

	return &Assembler{
		languages: languages,
		logger:    log.With(slog.String("component", "document_assembler")),
	}, nil
}

// Assemble renders the document: title page, table of contents, then one
// section per question in order. diagrams maps question IDs to the figures
// embedded in that question's section. Answers must line up one-to-one with
// questions; anything else is an AssemblyError.
func (a *Assembler) Assemble(
	ctx context.Context,
	questions []domain.Question,
	answers []domain.Answer,
	diagrams map[string][]domain.Diagram,
	language string,
) (*domain.Document, error) {
	log := logger.FromContextOrDefault(ctx, a.logger)

	if len(questions) == 0 {
		return nil, &AssemblyError{Issue: "no questions provided"}
	}
	if len(answers) == 0 {
		return nil, &AssemblyError{Issue: "no answers provided"}
	}
	if len(questions) != len(answers) {
		return nil, &AssemblyError{Issue: fmt.Sprintf(
			"question count (%d) does not match answer count (%d)", len(questions), len(answers))}
	}

	langCfg, err := a.languages.Get(language)
	if err != nil {
		return nil, &AssemblyError{Issue: "unsupported language", Err: err}
	}

	pdf := fpdf.New("P", "pt", "Letter", "")
	pdf.SetTitle("Question Answers", true)
	pdf.SetMargins(pageMargin, pageMargin, pageMargin)
	pdf.SetAutoPageBreak(true, pageMargin)
	pdf.AliasNbPages("")
	tr := pdf.UnicodeTranslatorFromDescriptor("")

	// Content pages are numbered from 1; the title page carries no number.
	pdf.SetFooterFunc(func() {
		if pdf.PageNo() == 1 {
			return
		}
		pdf.SetY(-36)
		pdf.SetFont("Helvetica", "", 9)
		pdf.SetTextColor(127, 140, 141)
		pdf.CellFormat(0, 12, fmt.Sprintf("Page %d of {nb}", pdf.PageNo()-1), "", 0, "R", false, 0, "")
	})

	writeTitlePage(pdf, tr, len(questions), langCfg)
	writeTableOfContents(pdf, tr, questions)

	figureCounter := 0
	for i := range questions {
		writeAnswerSection(pdf, tr, i+1, questions[i], answers[i],
			diagrams[answers[i].QuestionID], langCfg, &figureCounter)
	}

	pageCount := pdf.PageCount()
	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, &AssemblyError{Issue: "PDF rendering failed", Err: err}
	}

	doc := &domain.Document{
		Content:   buf.Bytes(),
		Filename:  fmt.Sprintf("answers_%s.pdf", time.Now().Format("2006-01-02_150405")),
		PageCount: pageCount,
	}

	log.Info("assembled document",
		slog.String("filename", doc.Filename),
		slog.Int("questions", len(questions)),
		slog.Int("figures", figureCounter),
		slog.Int("pages", doc.PageCount),
		slog.Int("bytes", len(doc.Content)))
	return doc, nil
}

func writeTitlePage(pdf *fpdf.Fpdf, tr func(string) string, questionCount int, langCfg domain.LanguageConfig) {
	pdf.AddPage()
	pdf.Ln(90)

	pdf.SetFont("Helvetica", "B", 24)
	pdf.SetTextColor(44, 62, 80)
	pdf.CellFormat(0, 30, "Question Answers", "", 1, "C", false, 0, "")
	pdf.Ln(36)

	pdf.SetFont("Helvetica", "", 12)
	pdf.SetTextColor(52, 73, 94)
	pdf.CellFormat(0, 16, fmt.Sprintf("Number of Questions: %d", questionCount), "", 1, "C", false, 0, "")
	pdf.CellFormat(0, 16, tr(fmt.Sprintf("Language: %s", langCfg.NativeName)), "", 1, "C", false, 0, "")
	pdf.CellFormat(0, 16,
		fmt.Sprintf("Generated: %s", time.Now().Format("2006-01-02 15:04:05")),
		"", 1, "C", false, 0, "")
}

func writeTableOfContents(pdf *fpdf.Fpdf, tr func(string) string, questions []domain.Question) {
	pdf.AddPage()

	pdf.SetFont("Helvetica", "B", 18)
	pdf.SetTextColor(44, 62, 80)
	pdf.CellFormat(0, 24, "Table of Contents", "", 1, "L", false, 0, "")
	pdf.Ln(14)

	pdf.SetFont("Helvetica", "", 11)
	pdf.SetTextColor(52, 73, 94)
	for i, question := range questions {
		pdf.SetX(pageMargin + tocIndent)
		pdf.MultiCell(contentWidth-tocIndent, 14,
			tr(fmt.Sprintf("%d. %s", i+1, truncateEntry(question.Text))), "", "L", false)
		pdf.Ln(4)
	}
}

// truncateEntry caps a table-of-contents entry at tocEntryMaxRunes.
func truncateEntry(text string) string {
	runes := []rune(text)
	if len(runes) <= tocEntryMaxRunes {
		return text
	}
	return string(runes[:tocEntryMaxRunes-3]) + "..."
}

func writeAnswerSection(
	pdf *fpdf.Fpdf,
	tr func(string) string,
	number int,
	question domain.Question,
	answer domain.Answer,
	figures []domain.Diagram,
	langCfg domain.LanguageConfig,
	figureCounter *int,
) {
	pdf.AddPage()

	headingAlign, questionAlign, bodyAlign := "L", "L", "J"
	if langCfg.RTL {
		headingAlign, questionAlign, bodyAlign = "R", "R", "R"
	}

	pdf.SetFont("Helvetica", "B", 14)
	pdf.SetTextColor(44, 62, 80)
	pdf.CellFormat(0, 18, fmt.Sprintf("Question %d", number), "", 1, headingAlign, false, 0, "")
	pdf.Ln(4)

	pdf.SetFont("Helvetica", "", 11)
	pdf.SetTextColor(52, 73, 94)
	pdf.MultiCell(0, 14, tr(question.Text), "", questionAlign, false)
	pdf.Ln(12)

	pdf.SetFont("Helvetica", "B", 12)
	pdf.SetTextColor(22, 160, 133)
	pdf.CellFormat(0, 15, "Answer", "", 1, headingAlign, false, 0, "")
	pdf.Ln(2)

	pdf.SetFont("Helvetica", "", 11)
	pdf.SetTextColor(0, 0, 0)
	pdf.MultiCell(0, 14, tr(answer.Content), "", bodyAlign, false)

	if len(figures) > 0 {
		pdf.Ln(14)
		for _, figure := range figures {
			writeFigure(pdf, tr, figure, figureCounter)
		}
	}

	if len(answer.References) > 0 {
		pdf.Ln(14)
		writeReferences(pdf, tr, answer.References)
	}
}

func writeFigure(pdf *fpdf.Fpdf, tr func(string) string, figure domain.Diagram, counter *int) {
	*counter++

	name := fmt.Sprintf("figure_%d", *counter)
	opts := fpdf.ImageOptions{ImageType: strings.ToUpper(figure.Format)}
	pdf.RegisterImageOptionsReader(name, opts, bytes.NewReader(figure.ImageData))
	pdf.ImageOptions(name, pageMargin+(contentWidth-figureWidth)/2, 0, figureWidth, 0, true, opts, 0, "")

	pdf.Ln(6)
	pdf.SetFont("Helvetica", "", 10)
	pdf.SetTextColor(127, 140, 141)
	pdf.MultiCell(0, 13, tr(fmt.Sprintf("Figure %d: %s", *counter, figure.Caption)), "", "C", false)
	pdf.Ln(8)
}

func writeReferences(pdf *fpdf.Fpdf, tr func(string) string, references []string) {
	pdf.SetFont("Helvetica", "B", 11)
	pdf.SetTextColor(127, 140, 141)
	pdf.CellFormat(0, 14, "References", "", 1, "L", false, 0, "")
	pdf.Ln(2)

	pdf.SetFont("Helvetica", "", 9)
	pdf.SetTextColor(52, 73, 94)
	for i, ref := range references {
		pdf.SetX(pageMargin + tocIndent)
		pdf.MultiCell(contentWidth-tocIndent, 12, tr(fmt.Sprintf("%d. %s", i+1, ref)), "", "L", false)
		pdf.Ln(2)
	}
}

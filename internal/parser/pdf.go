package parser

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/ledongthuc/pdf"

	"github.com/phrazzld/sage-api/internal/domain"
	"github.com/phrazzld/sage-api/internal/platform/logger"
)

// PDFParser extracts questions from PDF documents. Pages that fail text
// extraction are skipped so one bad page does not lose the rest of the
// document; a document with no extractable text at all is an error.
type PDFParser struct{}

// Compile-time check that PDFParser implements Parser.
var _ Parser = (*PDFParser)(nil)

// Parse implements Parser.Parse for PDF input.
func (p *PDFParser) Parse(ctx context.Context, data []byte) (questions []domain.Question, err error) {
	log := logger.FromContext(ctx)

	// The pdf reader panics on some malformed documents.
	defer func() {
		if r := recover(); r != nil {
			questions = nil
			err = &ParseError{Format: FormatPDF, Issue: fmt.Sprintf("malformed document: %v", r)}
		}
	}()

	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, &ParseError{Format: FormatPDF, Issue: "invalid PDF structure", Err: err}
	}

	var pages []string
	for pageNum := 1; pageNum <= reader.NumPage(); pageNum++ {
		page := reader.Page(pageNum)
		if page.V.IsNull() {
			continue
		}

		text, pageErr := extractPageText(page)
		if pageErr != nil {
			log.Warn("skipping unreadable PDF page",
				slog.Int("page", pageNum),
				slog.String("error", pageErr.Error()))
			continue
		}
		if strings.TrimSpace(text) != "" {
			pages = append(pages, text)
		}
	}

	if len(pages) == 0 {
		return nil, &ParseError{Format: FormatPDF, Issue: "document has no readable text", Err: ErrNoContent}
	}

	questions, err = buildQuestions(detectQuestions(strings.Join(pages, "\n\n")), FormatPDF)
	if err != nil {
		return nil, err
	}

	log.Debug("parsed PDF input",
		slog.Int("input_bytes", len(data)),
		slog.Int("pages_read", len(pages)),
		slog.Int("questions", len(questions)))
	return questions, nil
}

// extractPageText pulls the plain text of one page, converting extraction
// panics into errors so the caller can skip the page.
func extractPageText(page pdf.Page) (text string, err error) {
	defer func() {
		if r := recover(); r != nil {
			text = ""
			err = fmt.Errorf("text extraction failed: %v", r)
		}
	}()
	return page.GetPlainText(nil)
}

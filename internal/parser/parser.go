package parser

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"unicode/utf8"

	"github.com/phrazzld/sage-api/internal/domain"
	"github.com/phrazzld/sage-api/internal/platform/logger"
)

// Format identifies a supported input format.
type Format string

// Supported input formats
const (
	FormatText Format = "text"
	FormatPDF  Format = "pdf"
)

// ParseFormat converts a format name into a Format, case-insensitively.
// Returns ErrUnsupportedFormat for anything outside the supported set.
func ParseFormat(s string) (Format, error) {
	switch Format(strings.ToLower(s)) {
	case FormatText:
		return FormatText, nil
	case FormatPDF:
		return FormatPDF, nil
	default:
		return "", fmt.Errorf("%w: %q (supported: %s, %s)",
			ErrUnsupportedFormat, s, FormatText, FormatPDF)
	}
}

// Parser extracts questions from raw input bytes.
type Parser interface {
	// Parse extracts questions from the input, preserving document order.
	// Question indexes are one-based.
	Parse(ctx context.Context, data []byte) ([]domain.Question, error)
}

// NewParser creates the parser for the given format name.
// Returns ErrUnsupportedFormat when no parser exists for it.
func NewParser(format string) (Parser, error) {
	parsed, err := ParseFormat(format)
	if err != nil {
		return nil, err
	}

	switch parsed {
	case FormatText:
		return &TextParser{}, nil
	case FormatPDF:
		return &PDFParser{}, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedFormat, format)
	}
}

// Parse extracts questions from input using the parser for the given
// format. It is a convenience wrapper around NewParser.
func Parse(ctx context.Context, data []byte, format string) ([]domain.Question, error) {
	p, err := NewParser(format)
	if err != nil {
		return nil, err
	}
	return p.Parse(ctx, data)
}

// TextParser extracts questions from plain UTF-8 text.
type TextParser struct{}

// Compile-time check that TextParser implements Parser.
var _ Parser = (*TextParser)(nil)

// Parse implements Parser.Parse for plain text input.
func (p *TextParser) Parse(ctx context.Context, data []byte) ([]domain.Question, error) {
	log := logger.FromContext(ctx)

	if !utf8.Valid(data) {
		return nil, &ParseError{Format: FormatText, Issue: "invalid UTF-8 encoding"}
	}

	questions, err := buildQuestions(detectQuestions(string(data)), FormatText)
	if err != nil {
		return nil, err
	}

	log.Debug("parsed text input",
		slog.Int("input_bytes", len(data)),
		slog.Int("questions", len(questions)))
	return questions, nil
}

// buildQuestions converts detected question texts into domain questions
// with generated IDs and one-based indexes.
func buildQuestions(texts []string, format Format) ([]domain.Question, error) {
	questions := make([]domain.Question, 0, len(texts))
	for i, text := range texts {
		question, err := domain.NewQuestion(text, string(format), i+1)
		if err != nil {
			return nil, &ParseError{Format: format, Issue: "invalid question", Err: err}
		}
		questions = append(questions, *question)
	}
	return questions, nil
}

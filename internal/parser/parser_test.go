package parser

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseFormat(t *testing.T) {
	t.Parallel()

	format, err := ParseFormat("text")
	require.NoError(t, err)
	assert.Equal(t, FormatText, format)

	format, err = ParseFormat("PDF")
	require.NoError(t, err)
	assert.Equal(t, FormatPDF, format, "format names are case-insensitive")

	for _, name := range []string{"", "image", "docx", "markdown"} {
		_, err := ParseFormat(name)
		assert.ErrorIs(t, err, ErrUnsupportedFormat, "input %q", name)
	}
}

func TestNewParser(t *testing.T) {
	t.Parallel()

	textParser, err := NewParser("text")
	require.NoError(t, err)
	assert.IsType(t, &TextParser{}, textParser)

	pdfParser, err := NewParser("pdf")
	require.NoError(t, err)
	assert.IsType(t, &PDFParser{}, pdfParser)

	_, err = NewParser("image")
	assert.ErrorIs(t, err, ErrUnsupportedFormat)
}

func TestTextParserParse(t *testing.T) {
	t.Parallel()

	input := []byte("1. What is photosynthesis?\n2. How do plants absorb water?")
	questions, err := (&TextParser{}).Parse(context.Background(), input)
	require.NoError(t, err)
	require.Len(t, questions, 2)

	assert.Equal(t, "What is photosynthesis?", questions[0].Text)
	assert.Equal(t, "How do plants absorb water?", questions[1].Text)

	for i, question := range questions {
		assert.NotEmpty(t, question.ID)
		assert.Equal(t, "text", question.Source)
		assert.Equal(t, i+1, question.Index, "indexes are one-based document order")
	}
	assert.NotEqual(t, questions[0].ID, questions[1].ID)
}

func TestTextParserParseInvalidUTF8(t *testing.T) {
	t.Parallel()

	_, err := (&TextParser{}).Parse(context.Background(), []byte{0xff, 0xfe, 0xfd})
	require.Error(t, err)

	var parseErr *ParseError
	require.ErrorAs(t, err, &parseErr)
	assert.Equal(t, FormatText, parseErr.Format)
	assert.Contains(t, parseErr.Error(), "invalid UTF-8")
}

func TestTextParserParseEmptyInput(t *testing.T) {
	t.Parallel()

	questions, err := (&TextParser{}).Parse(context.Background(), nil)
	require.NoError(t, err, "empty input is not a parse failure")
	assert.Empty(t, questions, "zero questions is the caller's problem to reject")
}

func TestParseConvenience(t *testing.T) {
	t.Parallel()

	questions, err := Parse(context.Background(), []byte("Why is the sky blue?"), "text")
	require.NoError(t, err)
	require.Len(t, questions, 1)
	assert.Equal(t, "Why is the sky blue?", questions[0].Text)

	_, err = Parse(context.Background(), []byte("data"), "docx")
	assert.ErrorIs(t, err, ErrUnsupportedFormat)
}

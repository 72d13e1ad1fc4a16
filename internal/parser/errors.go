package parser

import (
	"errors"
	"fmt"
)

// Common errors returned by the parser package
var (
	// ErrUnsupportedFormat is returned when no parser exists for the
	// requested input format
	ErrUnsupportedFormat = errors.New("unsupported input format")

	// ErrNoContent is returned when a document yields no extractable text
	ErrNoContent = errors.New("no text content could be extracted")
)

// ParseError represents a failure to parse a specific input, carrying the
// input format and a description of what went wrong.
type ParseError struct {
	// Format is the input format being parsed
	Format Format

	// Issue describes the parse failure
	Issue string

	// Err is the underlying error, if any
	Err error
}

// Error implements the error interface.
func (e *ParseError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("failed to parse %s input: %s: %v", e.Format, e.Issue, e.Err)
	}
	return fmt.Sprintf("failed to parse %s input: %s", e.Format, e.Issue)
}

// Unwrap returns the underlying error for errors.Is/errors.As.
func (e *ParseError) Unwrap() error {
	return e.Err
}

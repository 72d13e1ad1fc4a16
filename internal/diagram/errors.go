package diagram

import (
	"fmt"

	"github.com/phrazzld/sage-api/internal/domain"
)

// RenderingError represents a failure to render one visual spec. It is
// always recoverable: the pipeline records it and moves on.
type RenderingError struct {
	// Kind is the diagram kind that failed to render
	Kind domain.SpecKind

	// Issue describes the rendering failure
	Issue string

	// Err is the underlying error, if any
	Err error
}

// Error implements the error interface.
func (e *RenderingError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("failed to render %s: %s: %v", e.Kind, e.Issue, e.Err)
	}
	return fmt.Sprintf("failed to render %s: %s", e.Kind, e.Issue)
}

// Unwrap returns the underlying error for errors.Is/errors.As.
func (e *RenderingError) Unwrap() error {
	return e.Err
}

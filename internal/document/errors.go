package document

import "fmt"

// AssemblyError represents a failure to assemble the output document.
// Assembly failures are fatal to a pipeline run.
type AssemblyError struct {
	// Issue describes the assembly failure
	Issue string

	// Err is the underlying error, if any
	Err error
}

// Error implements the error interface.
func (e *AssemblyError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("failed to assemble document: %s: %v", e.Issue, e.Err)
	}
	return fmt.Sprintf("failed to assemble document: %s", e.Issue)
}

// Unwrap returns the underlying error for errors.Is/errors.As.
func (e *AssemblyError) Unwrap() error {
	return e.Err
}

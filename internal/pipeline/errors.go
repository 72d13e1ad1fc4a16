package pipeline

import (
	"errors"
	"fmt"
)

// ErrInvalidQuestionIndex indicates a regeneration request for an index
// with no stored answer.
var ErrInvalidQuestionIndex = errors.New("question index out of range")

// StorageError marks a document persistence failure in the final stage.
type StorageError struct {
	Err error
}

// Error implements the error interface.
func (e *StorageError) Error() string {
	return fmt.Sprintf("failed to persist document: %v", e.Err)
}

// Unwrap returns the underlying error.
func (e *StorageError) Unwrap() error {
	return e.Err
}

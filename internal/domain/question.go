package domain

import (
	"errors"

	"github.com/google/uuid"
)

// Common validation errors for Question
var (
	ErrEmptyQuestionID   = errors.New("question ID cannot be empty")
	ErrEmptyQuestionText = errors.New("question text cannot be empty")
)

// Question is a single question extracted from an uploaded document.
// Source records the input format it came from and Index its one-based
// position within that input.
type Question struct {
	ID      string `json:"id"`
	Text    string `json:"text"`
	Context string `json:"context,omitempty"`
	Source  string `json:"source,omitempty"`
	Index   int    `json:"index,omitempty"`
}

// NewQuestion creates a Question with a generated UUID.
// Returns an error if validation fails.
func NewQuestion(text, source string, index int) (*Question, error) {
	question := &Question{
		ID:     uuid.New().String(),
		Text:   text,
		Source: source,
		Index:  index,
	}

	if err := question.Validate(); err != nil {
		return nil, err
	}

	return question, nil
}

// Validate checks if the Question has valid data.
func (q *Question) Validate() error {
	if q.ID == "" {
		return ErrEmptyQuestionID
	}

	if q.Text == "" {
		return ErrEmptyQuestionText
	}

	return nil
}

package domain

import "errors"

// SpecKind identifies the type of diagram a VisualSpec describes.
type SpecKind string

// Supported diagram kinds
const (
	SpecKindBlockDiagram SpecKind = "block_diagram"
	SpecKindFlowchart    SpecKind = "flowchart"
	SpecKindHierarchy    SpecKind = "hierarchy"
	SpecKindSequence     SpecKind = "sequence"
)

// Common validation errors for Answer and VisualSpec
var (
	ErrEmptyAnswerQuestionID = errors.New("answer question ID cannot be empty")
	ErrEmptyAnswerContent    = errors.New("answer content cannot be empty")
	ErrInvalidSpecKind       = errors.New("invalid visual spec kind")
)

// SpecElement is one node, edge, actor, or interaction within a VisualSpec.
// Which fields are meaningful depends on Type; unused fields stay zero.
type SpecElement struct {
	Type     string `json:"type"`
	ID       string `json:"id,omitempty"`
	Label    string `json:"label,omitempty"`
	From     string `json:"from,omitempty"`
	To       string `json:"to,omitempty"`
	NodeType string `json:"node_type,omitempty"`
	Level    int    `json:"level,omitempty"`
	Message  string `json:"message,omitempty"`
}

// VisualSpec describes one diagram to render for an answer: its kind, a
// human-readable description used as the caption, the elements to draw, and
// the language its labels should use.
type VisualSpec struct {
	Kind        SpecKind      `json:"kind"`
	Description string        `json:"description"`
	Elements    []SpecElement `json:"elements,omitempty"`
	Language    string        `json:"language"`
}

// Validate checks if the VisualSpec has a supported kind.
func (v *VisualSpec) Validate() error {
	switch v.Kind {
	case SpecKindBlockDiagram, SpecKindFlowchart, SpecKindHierarchy, SpecKindSequence:
		return nil
	default:
		return ErrInvalidSpecKind
	}
}

// Answer is the generated answer for one question, together with the visual
// specs detected for it and the references drawn from the knowledge base.
type Answer struct {
	QuestionID       string       `json:"question_id"`
	Content          string       `json:"content"`
	Language         string       `json:"language"`
	VisualSpecs      []VisualSpec `json:"visual_specs,omitempty"`
	References       []string     `json:"references,omitempty"`
	KnowledgeSources []string     `json:"knowledge_sources,omitempty"`
}

// Validate checks if the Answer has valid data.
func (a *Answer) Validate() error {
	if a.QuestionID == "" {
		return ErrEmptyAnswerQuestionID
	}

	if a.Content == "" {
		return ErrEmptyAnswerContent
	}

	return nil
}

package parser

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDetectQuestions(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		text string
		want []string
	}{
		{
			name: "numbered questions",
			text: "1. What is photosynthesis?\n2. How do plants absorb water?\n3. Why are leaves green?",
			want: []string{
				"What is photosynthesis?",
				"How do plants absorb water?",
				"Why are leaves green?",
			},
		},
		{
			name: "Q-prefixed questions",
			text: "Q1. What is a triangle?\nQ2 What is a square?",
			want: []string{"What is a triangle?", "What is a square?"},
		},
		{
			name: "Question-word numbering is case-insensitive",
			text: "Question 1: Define energy.\nquestion 2: Define mass.",
			want: []string{"Define energy.", "Define mass."},
		},
		{
			name: "blank lines separate unnumbered questions",
			text: "What is photosynthesis?\n\nHow do plants grow?\n \nWhy is water essential?",
			want: []string{
				"What is photosynthesis?",
				"How do plants grow?",
				"Why is water essential?",
			},
		},
		{
			name: "unnumbered single paragraph is one question",
			text: "Explain how gravity affects orbital motion.",
			want: []string{"Explain how gravity affects orbital motion."},
		},
		{
			name: "fragments at or below the minimum length are dropped",
			text: "1. abc\n2. What is long enough to keep?",
			want: []string{"What is long enough to keep?"},
		},
		{
			name: "text that filters to nothing falls back to the whole input",
			text: "1. ab",
			want: []string{"1. ab"},
		},
		{
			name: "empty input",
			text: "",
			want: nil,
		},
		{
			name: "whitespace-only input",
			text: "  \n\t\n  ",
			want: nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, detectQuestions(tt.text))
		})
	}
}

package parser

import (
	"regexp"
	"strings"
	"unicode/utf8"
)

// minQuestionRunes is the shortest fragment still treated as a question.
const minQuestionRunes = 3

// questionNumbering matches question numbering at line starts: "1.", "Q1",
// "Q1.", "Question 1:" and the like.
var questionNumbering = regexp.MustCompile(`(?im)^(?:\d+\.|Q\d+\.?|Question\s+\d+:?)\s*`)

// blankLines matches one or more blank lines separating paragraphs.
var blankLines = regexp.MustCompile(`\n\s*\n`)

// detectQuestions splits text into individual questions. It splits on
// numbering patterns first, falls back to blank-line separation when no
// numbering is present, and finally treats the whole text as one question
// rather than returning nothing for non-empty input.
func detectQuestions(text string) []string {
	if strings.TrimSpace(text) == "" {
		return nil
	}

	parts := questionNumbering.Split(text, -1)
	if len(parts) <= 1 {
		parts = blankLines.Split(text, -1)
	}

	var questions []string
	for _, part := range parts {
		cleaned := strings.TrimSpace(part)
		if cleaned != "" && utf8.RuneCountInString(cleaned) > minQuestionRunes {
			questions = append(questions, cleaned)
		}
	}

	if len(questions) == 0 {
		questions = []string{strings.TrimSpace(text)}
	}

	return questions
}

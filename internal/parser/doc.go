// Package parser extracts questions from uploaded documents.
//
// A Parser turns raw input bytes into an ordered list of domain.Question
// values. Concrete parsers exist for plain text and PDF input; NewParser
// selects one by format name. Question boundaries are detected with shared
// heuristics: explicit numbering ("1.", "Q1", "Question 1:"), blank-line
// separation, and finally the whole input as a single question.
package parser

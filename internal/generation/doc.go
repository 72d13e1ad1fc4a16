// Package generation provides interfaces and implementations for producing
// answers to extracted questions through external LLM providers. It abstracts
// the details of provider API integration (Gemini, OpenAI, Perplexity) behind
// a small Generator interface, so the pipeline depends only on the interface
// and a construction-time provider selection.
package generation

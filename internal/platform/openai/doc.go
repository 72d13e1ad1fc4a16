// Package openai provides implementations of the generation.Generator
// interface backed by OpenAI-compatible chat completion APIs.
//
// Two providers share this adapter: OpenAI itself, and Perplexity, whose
// API speaks the same chat completion protocol on a different base URL with
// different model names. Both send the shared system prompt as a system
// message ahead of the user prompt.
//
// Retry is not handled here. The caller wraps Generate in the retry policy,
// so this adapter maps each failure to a generation sentinel and returns.
package openai

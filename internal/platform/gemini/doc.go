// Package gemini provides an implementation of the generation.Generator
// interface backed by Google's Gemini API.
//
// This package is an infrastructure adapter: it translates a fully-built
// prompt into a Gemini request and the API response back into plain answer
// text, without exposing any client details to the core application. Gemini
// has no separate system-message channel in this code path, so the shared
// system prompt is prepended to the user prompt before the call.
//
// Retry is not handled here. The caller wraps Generate in the retry policy,
// so this adapter maps each failure to a generation sentinel and returns.
package gemini

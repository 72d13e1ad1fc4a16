package service

import "errors"

// Common service errors. Callers check these with errors.Is(); the API layer
// maps them to HTTP status codes.
var (
	// ErrSessionNotComplete indicates an operation that requires a finished
	// session (download, regeneration) was attempted while the session is
	// still pending, processing, or ended in error.
	// API layer should map this to HTTP 409 Conflict.
	ErrSessionNotComplete = errors.New("session processing is not complete")

	// ErrDuplicateSession indicates a submission reused a session identifier
	// that is currently queued or being processed.
	// API layer should map this to HTTP 409 Conflict.
	ErrDuplicateSession = errors.New("a submission for this session is already in progress")
)

// Package docstore persists assembled output documents between pipeline
// completion and download. The Storage interface abstracts the backend;
// FilesystemStorage is the production implementation, writing each document
// as an identifier-named file with a plain-text metadata sidecar.
//
// Documents are retained for a configurable number of days and reaped by
// CleanupExpired, which the server runs periodically.
package docstore

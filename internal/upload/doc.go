// Package upload validates and stages incoming files between HTTP
// submission and pipeline pickup. Validation runs before any session state
// exists: extension allow-list, size cap, content magic numbers, filename
// sanitization, and shape checks on language codes and session identifiers.
//
// Accepted files are spooled to disk keyed by session ID; the pipeline reads
// the spooled input once and removes it when the run finishes, so the store
// holds nothing durable.
package upload

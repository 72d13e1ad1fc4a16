// Package service contains the application-level use cases behind the HTTP
// surface. It coordinates domain objects, the session and account stores, the
// upload spool, and the background task layer without depending on any of
// their concrete infrastructure.
//
// The central type is ProcessingService: it validates a submission, creates
// the pending session, spools the input, resolves the provider credential,
// and emits the event the task runner picks up. It also serves the read
// paths (status, download, languages) and the synchronous answer
// regeneration path. The asynchronous pipeline itself lives in
// internal/pipeline; this package only starts it and reads its outputs.
package service

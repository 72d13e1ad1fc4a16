// Package pipeline orchestrates the processing of one session: parse the
// stored input, generate an answer per question, render diagrams, assemble
// the output document, persist it, and finalize the session record.
//
// The orchestrator is the sole writer of session status. Failures in answer
// generation are isolated per question (the session completes with fallback
// answers); failures in diagram rendering are isolated per artifact (the
// figure is skipped). Everything else is fatal: the run records an error
// result, marks the session ERROR, and returns the error to the task
// runner. The transient uploaded input is removed on every exit path.
//
// Generation provider clients are constructed per run from the request's
// explicit provider configuration, never shared across runs.
package pipeline

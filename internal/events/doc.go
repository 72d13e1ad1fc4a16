// Package events decouples the HTTP submission path from the background
// task layer. The processing service emits a TaskRequestEvent when a
// document is accepted; the task runner registers a handler that turns
// the event into a queued pipeline run. Neither side imports the other.
package events

// Package task runs session processing in the background so uploads
// return immediately. A bounded queue feeds a pool of recycled workers;
// the runner admits at most one queued-or-running task per session and
// bounds each run with a soft and a hard deadline.
package task

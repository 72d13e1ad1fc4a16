// Package retry provides a bounded exponential-backoff policy for wrapping
// a single fallible operation, typically an external provider call. The
// policy is provider-agnostic: it knows nothing about the wrapped operation
// beyond whether it returned an error.
package retry

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/phrazzld/sage-api/internal/platform/logger"
)

// Defaults applied when a Policy field is unset or invalid.
const (
	DefaultMaxAttempts = 3
	DefaultBaseDelay   = 1 * time.Second
	DefaultMultiplier  = 2.0
)

// Policy describes a bounded retry schedule. With the defaults the delays
// between attempts are 1s, 2s, 4s, and so on. Delays are deterministic (no
// jitter) so that tests and progress accounting stay reproducible.
type Policy struct {
	// MaxAttempts is the total number of invocations, including the first.
	MaxAttempts int

	// BaseDelay is the wait after the first failed attempt.
	BaseDelay time.Duration

	// Multiplier scales the delay after each subsequent failure.
	Multiplier float64
}

// DefaultPolicy returns the standard schedule of 3 attempts with delays
// of 1s and 2s between them.
func DefaultPolicy() Policy {
	return Policy{
		MaxAttempts: DefaultMaxAttempts,
		BaseDelay:   DefaultBaseDelay,
		Multiplier:  DefaultMultiplier,
	}
}

// Operation is a fallible unit of work executed under a Policy.
type Operation func(ctx context.Context) error

// Error is the aggregated failure returned once a Policy exhausts its
// attempts. It embeds the last underlying error and unwraps to it.
type Error struct {
	// Attempts is the number of invocations that were made.
	Attempts int

	// Err is the error returned by the final attempt.
	Err error
}

// Error implements the error interface.
func (e *Error) Error() string {
	return fmt.Sprintf("operation failed after %d attempts: %v", e.Attempts, e.Err)
}

// Unwrap returns the last underlying error, supporting errors.Is/errors.As.
func (e *Error) Unwrap() error {
	return e.Err
}

// Do invokes op until it succeeds, the attempt budget is exhausted, or ctx
// is cancelled during a backoff wait.
//
// On success it returns nil. After the final failed attempt it returns an
// *Error embedding the last underlying error. If ctx is cancelled while
// waiting between attempts, it returns an error wrapping ctx.Err() so that
// callers can detect cancellation with errors.Is.
//
// Parameters:
//   - ctx: Context for cancellation and logging
//   - op: The operation to invoke
//
// Returns:
//   - nil on success, *Error on exhaustion, or a wrapped context error on
//     cancellation
func (p Policy) Do(ctx context.Context, op Operation) error {
	log := logger.FromContext(ctx)

	maxAttempts := p.MaxAttempts
	if maxAttempts < 1 {
		maxAttempts = DefaultMaxAttempts
	}
	baseDelay := p.BaseDelay
	if baseDelay <= 0 {
		baseDelay = DefaultBaseDelay
	}
	multiplier := p.Multiplier
	if multiplier < 1 {
		multiplier = DefaultMultiplier
	}

	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		lastErr = op(ctx)
		if lastErr == nil {
			return nil
		}

		log.WarnContext(ctx, "Operation attempt failed",
			"attempt", attempt,
			"max_attempts", maxAttempts,
			"error", lastErr)

		if attempt == maxAttempts {
			break
		}

		// delay = baseDelay * multiplier^(attempt-1)
		delay := time.Duration(float64(baseDelay) * math.Pow(multiplier, float64(attempt-1)))

		log.DebugContext(ctx, "Retrying after delay",
			"attempt", attempt,
			"delay", delay)

		select {
		case <-time.After(delay):
		case <-ctx.Done():
			log.WarnContext(ctx, "Operation cancelled during retry delay",
				"attempt", attempt,
				"ctx_err", ctx.Err())
			return fmt.Errorf("retry aborted after %d attempts (last error: %v): %w",
				attempt, lastErr, ctx.Err())
		}
	}

	return &Error{Attempts: maxAttempts, Err: lastErr}
}

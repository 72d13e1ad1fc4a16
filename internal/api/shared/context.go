package shared

import (
	"context"
	"crypto/rand"
	"encoding/binary"
	"encoding/hex"
	"log/slog"
	"time"
)

// ContextKey is the private key type for request context values.
type ContextKey string

const (
	// UserIDContextKey holds the authenticated user's UUID, set by the auth
	// middleware.
	UserIDContextKey ContextKey = "userID"

	// TraceIDKey holds the per-request trace ID used to correlate logs and
	// error responses.
	TraceIDKey ContextKey = "traceID"

	// TraceIDLength is the number of random bytes in a trace ID.
	TraceIDLength = 16 // 32 hex characters
)

// SetTraceID attaches a fresh trace ID to the context.
func SetTraceID(ctx context.Context) context.Context {
	return context.WithValue(ctx, TraceIDKey, generateTraceID())
}

// GetTraceID retrieves the trace ID from the context, or "" when absent.
func GetTraceID(ctx context.Context) string {
	traceID, ok := ctx.Value(TraceIDKey).(string)
	if !ok {
		return ""
	}
	return traceID
}

// generateTraceID returns a 32-character hex trace ID. If the system random
// source fails it falls back to a timestamp-derived ID rather than a static
// value, so requests stay distinguishable.
func generateTraceID() string {
	b := make([]byte, TraceIDLength)
	if n, err := rand.Read(b); err != nil || n != TraceIDLength {
		slog.Error("failed to generate random trace ID",
			slog.Any("error", err),
			slog.Int("bytes_read", n))

		now := time.Now()
		binary.BigEndian.PutUint64(b[:8], uint64(now.UnixNano()))
		binary.BigEndian.PutUint32(b[8:12], uint32(now.Nanosecond()))
		binary.BigEndian.PutUint32(b[12:16], uint32(now.Unix()))
	}
	return hex.EncodeToString(b)
}

package logger

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFromContext(t *testing.T) {
	t.Parallel()

	t.Run("returns logger stored in context", func(t *testing.T) {
		t.Parallel()

		stored := slog.New(slog.NewTextHandler(io.Discard, nil))
		ctx := WithLogger(context.Background(), stored)

		assert.Same(t, stored, FromContext(ctx))
	})

	t.Run("falls back to default for bare context", func(t *testing.T) {
		t.Parallel()

		assert.NotNil(t, FromContext(context.Background()))
	})

	t.Run("falls back to default for nil context", func(t *testing.T) {
		t.Parallel()

		assert.NotNil(t, FromContext(nil)) //nolint:staticcheck // exercising the nil guard
	})
}

func TestFromContextOrDefault(t *testing.T) {
	t.Parallel()

	fallback := slog.New(slog.NewTextHandler(io.Discard, nil))

	t.Run("prefers context logger", func(t *testing.T) {
		t.Parallel()

		stored := slog.New(slog.NewTextHandler(io.Discard, nil))
		ctx := WithLogger(context.Background(), stored)

		assert.Same(t, stored, FromContextOrDefault(ctx, fallback))
	})

	t.Run("uses fallback when context is bare", func(t *testing.T) {
		t.Parallel()

		assert.Same(t, fallback, FromContextOrDefault(context.Background(), fallback))
	})

	t.Run("uses default when fallback is nil", func(t *testing.T) {
		t.Parallel()

		assert.NotNil(t, FromContextOrDefault(context.Background(), nil))
	})
}

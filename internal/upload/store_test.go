package upload

import (
	"context"
	"log/slog"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()

	store, err := NewStore(t.TempDir(), slog.Default())
	require.NoError(t, err)
	return store
}

func TestNewStore(t *testing.T) {
	t.Parallel()

	t.Run("empty base path", func(t *testing.T) {
		t.Parallel()

		store, err := NewStore("", slog.Default())
		assert.Error(t, err)
		assert.Nil(t, store)
	})

	t.Run("creates directory", func(t *testing.T) {
		t.Parallel()

		base := filepath.Join(t.TempDir(), "uploads")
		_, err := NewStore(base, nil)
		require.NoError(t, err)
		assert.DirExists(t, base)
	})
}

func TestStoreRoundTrip(t *testing.T) {
	t.Parallel()

	store := newTestStore(t)
	ctx := context.Background()
	sessionID := NewSessionID()
	content := []byte("What is entropy?\n\nWhat is enthalpy?")

	path, err := store.Save(ctx, sessionID, ".txt", content)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(store.basePath, sessionID+".txt"), path)
	assert.FileExists(t, path)

	got, err := store.Read(ctx, path)
	require.NoError(t, err)
	assert.Equal(t, content, got)

	require.NoError(t, store.Remove(ctx, path))
	assert.NoFileExists(t, path)

	// Removing again is not an error.
	assert.NoError(t, store.Remove(ctx, path))
}

func TestStoreSaveValidation(t *testing.T) {
	t.Parallel()

	store := newTestStore(t)
	ctx := context.Background()

	t.Run("rejects malformed session ID", func(t *testing.T) {
		t.Parallel()

		var valErr *ValidationError
		_, err := store.Save(ctx, "../../escape", ".txt", []byte("content"))
		assert.ErrorAs(t, err, &valErr)
	})

	t.Run("rejects disallowed extension", func(t *testing.T) {
		t.Parallel()

		var valErr *ValidationError
		_, err := store.Save(ctx, NewSessionID(), ".sh", []byte("#!/bin/sh"))
		require.ErrorAs(t, err, &valErr)
		assert.Contains(t, valErr.Issue, "not allowed")
	})
}

func TestStoreReadOutsideBase(t *testing.T) {
	t.Parallel()

	store := newTestStore(t)

	_, err := store.Read(context.Background(), "/etc/passwd")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "outside the upload directory")
}

func TestStoreReadMissing(t *testing.T) {
	t.Parallel()

	store := newTestStore(t)
	path := filepath.Join(store.basePath, NewSessionID()+".txt")

	_, err := store.Read(context.Background(), path)
	assert.ErrorIs(t, err, ErrUploadNotFound)
}

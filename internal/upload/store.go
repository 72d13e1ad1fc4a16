package upload

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/phrazzld/sage-api/internal/platform/logger"
)

// ErrUploadNotFound indicates that no spooled input exists at the given
// path.
var ErrUploadNotFound = errors.New("upload not found")

// Store spools accepted uploads to disk until the pipeline consumes them.
type Store struct {
	basePath string
	logger   *slog.Logger
}

// NewStore creates a Store rooted at basePath, creating the directory if it
// does not exist. If log is nil, a default logger will be used.
func NewStore(basePath string, log *slog.Logger) (*Store, error) {
	if basePath == "" {
		return nil, errors.New("base path cannot be empty")
	}
	if log == nil {
		log = slog.Default()
	}

	if err := os.MkdirAll(basePath, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create upload directory %s: %w", basePath, err)
	}

	return &Store{
		basePath: basePath,
		logger:   log.With(slog.String("component", "upload_store")),
	}, nil
}

// Save spools validated content under {sessionID}{ext} and returns the
// spool path handed to the pipeline.
func (s *Store) Save(ctx context.Context, sessionID, ext string, content []byte) (string, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	if err := ValidateSessionID(sessionID); err != nil {
		return "", err
	}
	if !allowedExtensions[ext] {
		return "", &ValidationError{Issue: fmt.Sprintf(
			"file extension %q is not allowed; allowed extensions: %s", ext, AllowedExtensions())}
	}

	path := filepath.Join(s.basePath, sessionID+ext)
	if err := os.WriteFile(path, content, 0o600); err != nil {
		return "", fmt.Errorf("failed to spool upload for session %s: %w", sessionID, err)
	}

	log.Debug("spooled upload",
		slog.String("session_id", sessionID),
		slog.String("path", path),
		slog.Int("bytes", len(content)))
	return path, nil
}

// Read loads spooled content. The path must point inside the spool
// directory; anything else is rejected regardless of what it names.
func (s *Store) Read(ctx context.Context, path string) ([]byte, error) {
	if err := s.checkPath(path); err != nil {
		return nil, err
	}

	content, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrUploadNotFound, path)
		}
		return nil, fmt.Errorf("failed to read upload %s: %w", path, err)
	}
	return content, nil
}

// Remove deletes spooled content. Removing an already-removed upload is not
// an error, so cleanup paths can call it unconditionally.
func (s *Store) Remove(ctx context.Context, path string) error {
	log := logger.FromContextOrDefault(ctx, s.logger)

	if err := s.checkPath(path); err != nil {
		return err
	}

	if err := os.Remove(path); err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("failed to remove upload %s: %w", path, err)
	}

	log.Debug("removed upload", slog.String("path", path))
	return nil
}

// checkPath confirms the path resolves inside the spool directory.
func (s *Store) checkPath(path string) error {
	rel, err := filepath.Rel(s.basePath, filepath.Clean(path))
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return fmt.Errorf("path %s is outside the upload directory", path)
	}
	return nil
}

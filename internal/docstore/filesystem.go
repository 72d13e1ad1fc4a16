package docstore

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/phrazzld/sage-api/internal/domain"
	"github.com/phrazzld/sage-api/internal/platform/logger"
)

// identifierPattern rejects identifiers that could escape the base directory.
var identifierPattern = regexp.MustCompile(`^[a-zA-Z0-9_-]+$`)

// FilesystemStorage stores documents as files under a base directory.
// Each document occupies two files: {id}.pdf with the raw content and
// {id}.meta with filename, page count, and creation time.
type FilesystemStorage struct {
	basePath string
	logger   *slog.Logger
}

// Ensure FilesystemStorage implements the Storage interface.
var _ Storage = (*FilesystemStorage)(nil)

// NewFilesystemStorage creates a FilesystemStorage rooted at basePath,
// creating the directory if it does not exist. If log is nil, a default
// logger will be used.
func NewFilesystemStorage(basePath string, log *slog.Logger) (*FilesystemStorage, error) {
	if basePath == "" {
		return nil, errors.New("base path cannot be empty")
	}
	if log == nil {
		log = slog.Default()
	}

	if err := os.MkdirAll(basePath, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create document directory %s: %w", basePath, err)
	}

	return &FilesystemStorage{
		basePath: basePath,
		logger:   log.With(slog.String("component", "document_storage")),
	}, nil
}

// Save writes the document content and its metadata sidecar.
func (s *FilesystemStorage) Save(ctx context.Context, id string, doc *domain.Document) (string, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	if err := validateIdentifier(id); err != nil {
		return "", err
	}
	if doc == nil {
		return "", errors.New("document cannot be nil")
	}

	contentPath := filepath.Join(s.basePath, id+".pdf")
	if err := os.WriteFile(contentPath, doc.Content, 0o644); err != nil {
		return "", fmt.Errorf("failed to write document %s: %w", id, err)
	}

	meta := fmt.Sprintf("filename=%s\npage_count=%d\ncreated_at=%s\n",
		doc.Filename, doc.PageCount, time.Now().Format(time.RFC3339))
	if err := os.WriteFile(filepath.Join(s.basePath, id+".meta"), []byte(meta), 0o644); err != nil {
		return "", fmt.Errorf("failed to write document metadata %s: %w", id, err)
	}

	log.Debug("saved document",
		slog.String("document_id", id),
		slog.String("filename", doc.Filename),
		slog.Int("bytes", len(doc.Content)))
	return contentPath, nil
}

// Retrieve loads a stored document. Metadata is best-effort: a missing or
// partial sidecar falls back to defaults rather than failing the read.
func (s *FilesystemStorage) Retrieve(ctx context.Context, id string) (*domain.Document, error) {
	if err := validateIdentifier(id); err != nil {
		return nil, err
	}

	content, err := os.ReadFile(filepath.Join(s.basePath, id+".pdf"))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrDocumentNotFound, id)
		}
		return nil, fmt.Errorf("failed to read document %s: %w", id, err)
	}

	doc := &domain.Document{
		Content:   content,
		Filename:  id + ".pdf",
		PageCount: 1,
	}

	if meta, err := os.ReadFile(filepath.Join(s.basePath, id+".meta")); err == nil {
		for _, line := range strings.Split(string(meta), "\n") {
			switch {
			case strings.HasPrefix(line, "filename="):
				doc.Filename = strings.TrimSpace(strings.TrimPrefix(line, "filename="))
			case strings.HasPrefix(line, "page_count="):
				if n, err := strconv.Atoi(strings.TrimSpace(strings.TrimPrefix(line, "page_count="))); err == nil {
					doc.PageCount = n
				}
			}
		}
	}

	return doc, nil
}

// Delete removes a stored document and its metadata sidecar.
func (s *FilesystemStorage) Delete(ctx context.Context, id string) error {
	log := logger.FromContextOrDefault(ctx, s.logger)

	if err := validateIdentifier(id); err != nil {
		return err
	}

	if err := os.Remove(filepath.Join(s.basePath, id+".pdf")); err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("%w: %s", ErrDocumentNotFound, id)
		}
		return fmt.Errorf("failed to delete document %s: %w", id, err)
	}

	// The sidecar may legitimately be absent.
	if err := os.Remove(filepath.Join(s.basePath, id+".meta")); err != nil && !os.IsNotExist(err) {
		log.Warn("failed to delete document metadata",
			slog.String("document_id", id),
			slog.String("error", err.Error()))
	}

	log.Debug("deleted document", slog.String("document_id", id))
	return nil
}

// CleanupExpired deletes documents whose content file is older than the
// retention window.
func (s *FilesystemStorage) CleanupExpired(ctx context.Context, retentionDays int) (int, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	cutoff := time.Now().Add(-time.Duration(retentionDays) * 24 * time.Hour)

	entries, err := os.ReadDir(s.basePath)
	if err != nil {
		return 0, fmt.Errorf("failed to scan document directory: %w", err)
	}

	deleted := 0
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".pdf") {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		if !info.ModTime().Before(cutoff) {
			continue
		}

		id := strings.TrimSuffix(entry.Name(), ".pdf")
		if err := s.Delete(ctx, id); err != nil {
			log.Warn("failed to delete expired document",
				slog.String("document_id", id),
				slog.String("error", err.Error()))
			continue
		}
		deleted++
	}

	if deleted > 0 {
		log.Info("cleaned up expired documents",
			slog.Int("deleted", deleted),
			slog.Int("retention_days", retentionDays))
	}
	return deleted, nil
}

func validateIdentifier(id string) error {
	if !identifierPattern.MatchString(id) {
		return fmt.Errorf("%w: %q", ErrInvalidIdentifier, id)
	}
	return nil
}

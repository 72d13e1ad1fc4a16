package docstore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/phrazzld/sage-api/internal/domain"
)

var (
	// ErrDocumentNotFound indicates that no document exists for the given
	// identifier.
	ErrDocumentNotFound = errors.New("document not found")

	// ErrInvalidIdentifier indicates an identifier that is not safe to use
	// as a storage key.
	ErrInvalidIdentifier = errors.New("invalid document identifier")
)

// Storage defines operations for persisting assembled documents.
type Storage interface {
	// Save stores the document under the given identifier and returns the
	// backend-specific location of the stored content.
	Save(ctx context.Context, id string, doc *domain.Document) (string, error)

	// Retrieve loads the document stored under the given identifier.
	// Returns ErrDocumentNotFound if no document exists.
	Retrieve(ctx context.Context, id string) (*domain.Document, error)

	// Delete removes the document stored under the given identifier.
	// Returns ErrDocumentNotFound if no document exists.
	Delete(ctx context.Context, id string) error

	// CleanupExpired deletes documents older than the retention window and
	// returns the number of documents removed.
	CleanupExpired(ctx context.Context, retentionDays int) (int, error)
}

// NewIdentifier generates a unique storage identifier for a document.
func NewIdentifier() string {
	now := time.Now()
	return fmt.Sprintf("pdf_%s_%d", now.Format("20060102_150405"), now.Nanosecond()/1000)
}

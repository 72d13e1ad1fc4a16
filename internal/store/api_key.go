package store

import (
	"context"
	"database/sql"

	"github.com/google/uuid"
	"github.com/phrazzld/sage-api/internal/domain"
)

// APIKeyStore defines the interface for per-user provider credential
// persistence. Keys are stored encrypted; the store never sees plaintext.
// Version: 1.0
type APIKeyStore interface {
	// Upsert saves a new API key or replaces the existing one for the same
	// (user, provider) pair, refreshing its UpdatedAt timestamp.
	// Returns validation errors from the domain APIKey if data is invalid.
	Upsert(ctx context.Context, key *domain.APIKey) error

	// GetByUserAndProvider retrieves one user's key for one provider.
	// Returns ErrAPIKeyNotFound if no key is stored.
	GetByUserAndProvider(ctx context.Context, userID uuid.UUID, provider string) (*domain.APIKey, error)

	// ListByUser returns all keys stored for a user, ordered by provider.
	ListByUser(ctx context.Context, userID uuid.UUID) ([]*domain.APIKey, error)

	// Delete removes one user's key for one provider.
	// Returns ErrAPIKeyNotFound if no key is stored.
	Delete(ctx context.Context, userID uuid.UUID, provider string) error

	// WithTx returns a new APIKeyStore instance that uses the provided transaction.
	WithTx(tx *sql.Tx) APIKeyStore
}

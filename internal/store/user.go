package store

import (
	"context"
	"database/sql"

	"github.com/google/uuid"
	"github.com/phrazzld/sage-api/internal/domain"
)

// UserCounts aggregates user statistics for the admin surface.
type UserCounts struct {
	Total   int `json:"total_users"`
	Active  int `json:"active_users"`
	Admins  int `json:"admin_users"`
	APIKeys int `json:"total_api_keys"`
}

// UserStore defines the interface for user data persistence.
// Version: 1.0
type UserStore interface {
	// Create saves a new user to the store.
	// It handles domain validation and password hashing internally.
	// Returns ErrEmailExists or ErrUsernameExists on unique violations.
	// Returns validation errors from the domain User if data is invalid.
	Create(ctx context.Context, user *domain.User) error

	// GetByID retrieves a user by their unique ID.
	// Returns ErrUserNotFound if the user does not exist.
	// The returned user contains all fields except the plaintext password.
	GetByID(ctx context.Context, id uuid.UUID) (*domain.User, error)

	// GetByEmail retrieves a user by their email address.
	// Returns ErrUserNotFound if the user does not exist.
	GetByEmail(ctx context.Context, email string) (*domain.User, error)

	// Update modifies an existing user's details.
	// The caller MUST provide a complete user object including HashedPassword.
	// If a new plaintext Password is provided, it is hashed and replaces the stored hash.
	// Returns ErrUserNotFound if the user does not exist.
	// Returns ErrEmailExists if updating to an email that already exists.
	Update(ctx context.Context, user *domain.User) error

	// Delete removes a user from the store by their ID. Stored API keys go
	// with them. Returns ErrUserNotFound if the user does not exist.
	Delete(ctx context.Context, id uuid.UUID) error

	// List returns all users ordered by creation time.
	List(ctx context.Context) ([]*domain.User, error)

	// Counts returns aggregate user statistics.
	Counts(ctx context.Context) (*UserCounts, error)

	// WithTx returns a new UserStore instance that uses the provided transaction.
	// This allows for multiple operations to be executed within a single transaction.
	// The transaction should be created and managed by the caller (typically a service).
	WithTx(tx *sql.Tx) UserStore
}

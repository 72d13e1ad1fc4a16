package domain

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

// Common validation errors for APIKey
var (
	ErrEmptyAPIKeyID       = errors.New("API key ID cannot be empty")
	ErrEmptyAPIKeyUserID   = errors.New("API key user ID cannot be empty")
	ErrEmptyAPIKeyProvider = errors.New("API key provider cannot be empty")
	ErrEmptyAPIKeyCipher   = errors.New("API key ciphertext cannot be empty")
)

// APIKey is a user's stored credential for one generation provider. The key
// material is encrypted at rest; only the ciphertext ever reaches storage.
// Each user holds at most one key per provider.
type APIKey struct {
	ID           uuid.UUID `json:"id"`
	UserID       uuid.UUID `json:"user_id"`
	Provider     string    `json:"provider"`
	EncryptedKey []byte    `json:"-"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// NewAPIKey creates a new APIKey holding the given ciphertext.
// Returns an error if validation fails.
func NewAPIKey(userID uuid.UUID, provider string, encryptedKey []byte) (*APIKey, error) {
	key := &APIKey{
		ID:           uuid.New(),
		UserID:       userID,
		Provider:     provider,
		EncryptedKey: encryptedKey,
		CreatedAt:    time.Now().UTC(),
		UpdatedAt:    time.Now().UTC(),
	}

	if err := key.Validate(); err != nil {
		return nil, err
	}

	return key, nil
}

// Validate checks if the APIKey has valid data.
func (k *APIKey) Validate() error {
	if k.ID == uuid.Nil {
		return ErrEmptyAPIKeyID
	}

	if k.UserID == uuid.Nil {
		return ErrEmptyAPIKeyUserID
	}

	if k.Provider == "" {
		return ErrEmptyAPIKeyProvider
	}

	if len(k.EncryptedKey) == 0 {
		return ErrEmptyAPIKeyCipher
	}

	return nil
}

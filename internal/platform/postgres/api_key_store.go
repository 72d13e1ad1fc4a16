package postgres

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"

	"github.com/google/uuid"

	"github.com/phrazzld/sage-api/internal/domain"
	"github.com/phrazzld/sage-api/internal/platform/logger"
	"github.com/phrazzld/sage-api/internal/store"
)

// PostgresAPIKeyStore implements the store.APIKeyStore interface using a
// PostgreSQL database as the storage backend. It only ever handles
// ciphertext; encryption happens in the service layer.
type PostgresAPIKeyStore struct {
	db     store.DBTX
	logger *slog.Logger
}

// Ensure PostgresAPIKeyStore implements store.APIKeyStore interface
var _ store.APIKeyStore = (*PostgresAPIKeyStore)(nil)

// NewPostgresAPIKeyStore creates a new PostgreSQL implementation of the
// APIKeyStore interface. It accepts a database connection or transaction
// that should be initialized and managed by the caller.
func NewPostgresAPIKeyStore(db store.DBTX) *PostgresAPIKeyStore {
	return &PostgresAPIKeyStore{
		db:     db,
		logger: slog.Default().With(slog.String("component", "api_key_store")),
	}
}

// WithTx implements store.APIKeyStore.WithTx
func (s *PostgresAPIKeyStore) WithTx(tx *sql.Tx) store.APIKeyStore {
	return &PostgresAPIKeyStore{
		db:     tx,
		logger: s.logger,
	}
}

// Upsert implements store.APIKeyStore.Upsert
// It inserts the key or replaces the existing one for the same
// (user, provider) pair, refreshing its UpdatedAt timestamp.
func (s *PostgresAPIKeyStore) Upsert(ctx context.Context, key *domain.APIKey) error {
	log := logger.FromContextOrDefault(ctx, s.logger)

	if err := key.Validate(); err != nil {
		log.Warn("API key validation failed during upsert",
			slog.String("error", err.Error()),
			slog.String("user_id", key.UserID.String()),
			slog.String("provider", key.Provider))
		return err
	}

	query := `
		INSERT INTO api_keys (id, user_id, provider, encrypted_key, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (user_id, provider) DO UPDATE
		SET encrypted_key = EXCLUDED.encrypted_key, updated_at = EXCLUDED.updated_at
	`
	_, err := s.db.ExecContext(
		ctx,
		query,
		key.ID,
		key.UserID,
		key.Provider,
		key.EncryptedKey,
		key.CreatedAt,
		key.UpdatedAt,
	)

	if err != nil {
		if IsForeignKeyViolation(err) {
			log.Warn("unknown user during API key upsert",
				slog.String("user_id", key.UserID.String()),
				slog.String("provider", key.Provider))
			return MapError(err)
		}

		log.Error("failed to upsert API key",
			slog.String("error", err.Error()),
			slog.String("user_id", key.UserID.String()),
			slog.String("provider", key.Provider))
		return MapError(err)
	}

	log.Info("API key stored",
		slog.String("user_id", key.UserID.String()),
		slog.String("provider", key.Provider))
	return nil
}

// GetByUserAndProvider implements store.APIKeyStore.GetByUserAndProvider
// Returns store.ErrAPIKeyNotFound if no key is stored for the pair.
func (s *PostgresAPIKeyStore) GetByUserAndProvider(
	ctx context.Context,
	userID uuid.UUID,
	provider string,
) (*domain.APIKey, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	query := `
		SELECT id, user_id, provider, encrypted_key, created_at, updated_at
		FROM api_keys
		WHERE user_id = $1 AND provider = $2
	`

	var key domain.APIKey
	err := s.db.QueryRowContext(ctx, query, userID, provider).Scan(
		&key.ID,
		&key.UserID,
		&key.Provider,
		&key.EncryptedKey,
		&key.CreatedAt,
		&key.UpdatedAt,
	)

	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			log.Debug("API key not found",
				slog.String("user_id", userID.String()),
				slog.String("provider", provider))
			return nil, store.ErrAPIKeyNotFound
		}
		log.Error("failed to get API key",
			slog.String("error", err.Error()),
			slog.String("user_id", userID.String()),
			slog.String("provider", provider))
		return nil, MapError(err)
	}

	return &key, nil
}

// ListByUser implements store.APIKeyStore.ListByUser
// It returns all keys stored for a user, ordered by provider.
func (s *PostgresAPIKeyStore) ListByUser(ctx context.Context, userID uuid.UUID) ([]*domain.APIKey, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	query := `
		SELECT id, user_id, provider, encrypted_key, created_at, updated_at
		FROM api_keys
		WHERE user_id = $1
		ORDER BY provider ASC
	`

	rows, err := s.db.QueryContext(ctx, query, userID)
	if err != nil {
		log.Error("failed to list API keys",
			slog.String("error", err.Error()),
			slog.String("user_id", userID.String()))
		return nil, MapError(err)
	}
	defer func() {
		if err := rows.Close(); err != nil {
			log.Error("failed to close rows", slog.String("error", err.Error()))
		}
	}()

	keys := []*domain.APIKey{}
	for rows.Next() {
		var key domain.APIKey
		err := rows.Scan(
			&key.ID,
			&key.UserID,
			&key.Provider,
			&key.EncryptedKey,
			&key.CreatedAt,
			&key.UpdatedAt,
		)
		if err != nil {
			log.Error("failed to scan API key row",
				slog.String("error", err.Error()))
			return nil, err
		}
		keys = append(keys, &key)
	}

	if err := rows.Err(); err != nil {
		log.Error("error after scanning rows",
			slog.String("error", err.Error()))
		return nil, err
	}

	return keys, nil
}

// Delete implements store.APIKeyStore.Delete
// Returns store.ErrAPIKeyNotFound if no key is stored for the pair.
func (s *PostgresAPIKeyStore) Delete(ctx context.Context, userID uuid.UUID, provider string) error {
	log := logger.FromContextOrDefault(ctx, s.logger)

	query := `DELETE FROM api_keys WHERE user_id = $1 AND provider = $2`

	result, err := s.db.ExecContext(ctx, query, userID, provider)
	if err != nil {
		log.Error("failed to delete API key",
			slog.String("error", err.Error()),
			slog.String("user_id", userID.String()),
			slog.String("provider", provider))
		return MapError(err)
	}

	if err := CheckRowsAffected(result, "api key"); err != nil {
		log.Debug("API key not found for delete",
			slog.String("user_id", userID.String()),
			slog.String("provider", provider))
		return store.ErrAPIKeyNotFound
	}

	log.Info("API key deleted",
		slog.String("user_id", userID.String()),
		slog.String("provider", provider))
	return nil
}

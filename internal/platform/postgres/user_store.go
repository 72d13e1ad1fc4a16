package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"golang.org/x/crypto/bcrypt"

	"github.com/phrazzld/sage-api/internal/domain"
	"github.com/phrazzld/sage-api/internal/platform/logger"
	"github.com/phrazzld/sage-api/internal/store"
)

// Unique constraint names from the users migration. They decide which
// duplicate error a violation maps to.
const (
	userEmailConstraint    = "users_email_key"
	userUsernameConstraint = "users_username_key"
)

// PostgresUserStore implements the store.UserStore interface using a
// PostgreSQL database as the storage backend. Passwords are hashed with
// bcrypt before they reach the database.
type PostgresUserStore struct {
	db         store.DBTX
	bcryptCost int
	logger     *slog.Logger
}

// Ensure PostgresUserStore implements store.UserStore interface
var _ store.UserStore = (*PostgresUserStore)(nil)

// NewPostgresUserStore creates a new PostgreSQL implementation of the
// UserStore interface. It accepts a database connection or transaction that
// should be initialized and managed by the caller. Costs outside bcrypt's
// valid range fall back to bcrypt.DefaultCost.
func NewPostgresUserStore(db store.DBTX, bcryptCost int) *PostgresUserStore {
	if bcryptCost < bcrypt.MinCost || bcryptCost > bcrypt.MaxCost {
		bcryptCost = bcrypt.DefaultCost
	}

	return &PostgresUserStore{
		db:         db,
		bcryptCost: bcryptCost,
		logger:     slog.Default().With(slog.String("component", "user_store")),
	}
}

// WithTx implements store.UserStore.WithTx
func (s *PostgresUserStore) WithTx(tx *sql.Tx) store.UserStore {
	return &PostgresUserStore{
		db:         tx,
		bcryptCost: s.bcryptCost,
		logger:     s.logger,
	}
}

// hashPassword replaces the user's plaintext password with its bcrypt hash.
func (s *PostgresUserStore) hashPassword(user *domain.User) error {
	hashed, err := bcrypt.GenerateFromPassword([]byte(user.Password), s.bcryptCost)
	if err != nil {
		return fmt.Errorf("failed to hash password: %w", err)
	}
	user.HashedPassword = string(hashed)
	user.Password = ""
	return nil
}

// mapUniqueViolation translates a unique violation into the matching
// duplicate error by constraint name.
func mapUniqueViolation(err error) error {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) || pgErr.Code != uniqueViolationCode {
		return err
	}
	switch pgErr.ConstraintName {
	case userEmailConstraint:
		return fmt.Errorf("%w: %v", store.ErrEmailExists, err)
	case userUsernameConstraint:
		return fmt.Errorf("%w: %v", store.ErrUsernameExists, err)
	}
	return fmt.Errorf("%w: %v", store.ErrDuplicate, err)
}

// Create implements store.UserStore.Create
// It validates the user, hashes the plaintext password, and inserts the
// record. Returns ErrEmailExists or ErrUsernameExists on unique violations.
func (s *PostgresUserStore) Create(ctx context.Context, user *domain.User) error {
	log := logger.FromContextOrDefault(ctx, s.logger)

	if err := user.Validate(); err != nil {
		log.Warn("user validation failed during create",
			slog.String("error", err.Error()),
			slog.String("user_id", user.ID.String()))
		return err
	}

	if user.Password != "" {
		if err := s.hashPassword(user); err != nil {
			log.Error("failed to hash password during create",
				slog.String("error", err.Error()),
				slog.String("user_id", user.ID.String()))
			return err
		}
	}

	query := `
		INSERT INTO users (id, email, username, hashed_password, is_active, is_admin, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`
	_, err := s.db.ExecContext(
		ctx,
		query,
		user.ID,
		user.Email,
		user.Username,
		user.HashedPassword,
		user.IsActive,
		user.IsAdmin,
		user.CreatedAt,
		user.UpdatedAt,
	)

	if err != nil {
		if IsUniqueViolation(err) {
			log.Warn("duplicate user during create",
				slog.String("user_id", user.ID.String()),
				slog.String("email", user.Email))
			return mapUniqueViolation(err)
		}

		log.Error("failed to create user",
			slog.String("error", err.Error()),
			slog.String("user_id", user.ID.String()))
		return MapError(err)
	}

	log.Info("user created successfully",
		slog.String("user_id", user.ID.String()),
		slog.String("username", user.Username))
	return nil
}

// GetByID implements store.UserStore.GetByID
// Returns store.ErrUserNotFound if the user does not exist.
func (s *PostgresUserStore) GetByID(ctx context.Context, id uuid.UUID) (*domain.User, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	query := `
		SELECT id, email, username, hashed_password, is_active, is_admin, created_at, updated_at
		FROM users
		WHERE id = $1
	`

	user, err := s.scanUser(s.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			log.Debug("user not found", slog.String("user_id", id.String()))
			return nil, store.ErrUserNotFound
		}
		log.Error("failed to get user by ID",
			slog.String("error", err.Error()),
			slog.String("user_id", id.String()))
		return nil, MapError(err)
	}

	return user, nil
}

// GetByEmail implements store.UserStore.GetByEmail
// Returns store.ErrUserNotFound if the user does not exist.
func (s *PostgresUserStore) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	query := `
		SELECT id, email, username, hashed_password, is_active, is_admin, created_at, updated_at
		FROM users
		WHERE email = $1
	`

	user, err := s.scanUser(s.db.QueryRowContext(ctx, query, email))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			log.Debug("user not found by email")
			return nil, store.ErrUserNotFound
		}
		log.Error("failed to get user by email",
			slog.String("error", err.Error()))
		return nil, MapError(err)
	}

	return user, nil
}

// Update implements store.UserStore.Update
// The caller provides a complete user. A non-empty plaintext Password is
// hashed and replaces the stored hash. Returns store.ErrUserNotFound if the
// user does not exist and ErrEmailExists when the new email is taken.
func (s *PostgresUserStore) Update(ctx context.Context, user *domain.User) error {
	log := logger.FromContextOrDefault(ctx, s.logger)

	if err := user.Validate(); err != nil {
		log.Warn("user validation failed during update",
			slog.String("error", err.Error()),
			slog.String("user_id", user.ID.String()))
		return err
	}

	if user.Password != "" {
		if err := s.hashPassword(user); err != nil {
			log.Error("failed to hash password during update",
				slog.String("error", err.Error()),
				slog.String("user_id", user.ID.String()))
			return err
		}
	}

	user.UpdatedAt = time.Now().UTC()

	query := `
		UPDATE users
		SET email = $1, username = $2, hashed_password = $3, is_active = $4, is_admin = $5, updated_at = $6
		WHERE id = $7
	`

	result, err := s.db.ExecContext(
		ctx,
		query,
		user.Email,
		user.Username,
		user.HashedPassword,
		user.IsActive,
		user.IsAdmin,
		user.UpdatedAt,
		user.ID,
	)

	if err != nil {
		if IsUniqueViolation(err) {
			log.Warn("duplicate user during update",
				slog.String("user_id", user.ID.String()))
			return mapUniqueViolation(err)
		}

		log.Error("failed to update user",
			slog.String("error", err.Error()),
			slog.String("user_id", user.ID.String()))
		return MapError(err)
	}

	if err := CheckRowsAffected(result, "user"); err != nil {
		log.Debug("user not found for update",
			slog.String("user_id", user.ID.String()))
		return store.ErrUserNotFound
	}

	log.Info("user updated successfully",
		slog.String("user_id", user.ID.String()))
	return nil
}

// Delete implements store.UserStore.Delete
// Stored API keys are removed by the schema's ON DELETE CASCADE.
// Returns store.ErrUserNotFound if the user does not exist.
func (s *PostgresUserStore) Delete(ctx context.Context, id uuid.UUID) error {
	log := logger.FromContextOrDefault(ctx, s.logger)

	query := `DELETE FROM users WHERE id = $1`

	result, err := s.db.ExecContext(ctx, query, id)
	if err != nil {
		log.Error("failed to delete user",
			slog.String("error", err.Error()),
			slog.String("user_id", id.String()))
		return MapError(err)
	}

	if err := CheckRowsAffected(result, "user"); err != nil {
		log.Debug("user not found for delete",
			slog.String("user_id", id.String()))
		return store.ErrUserNotFound
	}

	log.Info("user deleted successfully",
		slog.String("user_id", id.String()))
	return nil
}

// List implements store.UserStore.List
// It returns all users ordered by creation time.
func (s *PostgresUserStore) List(ctx context.Context) ([]*domain.User, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	query := `
		SELECT id, email, username, hashed_password, is_active, is_admin, created_at, updated_at
		FROM users
		ORDER BY created_at ASC
	`

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		log.Error("failed to list users",
			slog.String("error", err.Error()))
		return nil, MapError(err)
	}
	defer func() {
		if err := rows.Close(); err != nil {
			log.Error("failed to close rows", slog.String("error", err.Error()))
		}
	}()

	users := []*domain.User{}
	for rows.Next() {
		var user domain.User
		err := rows.Scan(
			&user.ID,
			&user.Email,
			&user.Username,
			&user.HashedPassword,
			&user.IsActive,
			&user.IsAdmin,
			&user.CreatedAt,
			&user.UpdatedAt,
		)
		if err != nil {
			log.Error("failed to scan user row",
				slog.String("error", err.Error()))
			return nil, err
		}
		users = append(users, &user)
	}

	if err := rows.Err(); err != nil {
		log.Error("error after scanning rows",
			slog.String("error", err.Error()))
		return nil, err
	}

	return users, nil
}

// Counts implements store.UserStore.Counts
func (s *PostgresUserStore) Counts(ctx context.Context) (*store.UserCounts, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	query := `
		SELECT
			COUNT(*),
			COUNT(*) FILTER (WHERE is_active),
			COUNT(*) FILTER (WHERE is_admin),
			(SELECT COUNT(*) FROM api_keys)
		FROM users
	`

	var counts store.UserCounts
	err := s.db.QueryRowContext(ctx, query).Scan(
		&counts.Total,
		&counts.Active,
		&counts.Admins,
		&counts.APIKeys,
	)
	if err != nil {
		log.Error("failed to count users",
			slog.String("error", err.Error()))
		return nil, MapError(err)
	}

	return &counts, nil
}

// rowScanner abstracts sql.Row for single-row scans.
type rowScanner interface {
	Scan(dest ...any) error
}

// scanUser maps one users row onto a domain.User.
func (s *PostgresUserStore) scanUser(row rowScanner) (*domain.User, error) {
	var user domain.User
	err := row.Scan(
		&user.ID,
		&user.Email,
		&user.Username,
		&user.HashedPassword,
		&user.IsActive,
		&user.IsAdmin,
		&user.CreatedAt,
		&user.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &user, nil
}

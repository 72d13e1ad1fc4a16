package postgres

import (
	"context"
	"database/sql"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/phrazzld/sage-api/internal/domain"
	"github.com/phrazzld/sage-api/internal/store"
)

// mockDBTX implements store.DBTX and records whether it was touched.
type mockDBTX struct {
	execCalls int
	execErr   error
}

func (m *mockDBTX) ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error) {
	m.execCalls++
	if m.execErr != nil {
		return nil, m.execErr
	}
	return fakeResult{rows: 1}, nil
}

func (m *mockDBTX) PrepareContext(ctx context.Context, query string) (*sql.Stmt, error) {
	return nil, nil
}

func (m *mockDBTX) QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	return nil, nil
}

func (m *mockDBTX) QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row {
	return nil
}

func validUser(t *testing.T) *domain.User {
	t.Helper()
	user, err := domain.NewUser("ada@example.com", "ada", "correct horse battery")
	require.NoError(t, err)
	return user
}

func TestNewPostgresUserStore(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name         string
		bcryptCost   int
		expectedCost int
	}{
		{name: "valid cost", bcryptCost: 12, expectedCost: 12},
		{name: "zero cost uses default", bcryptCost: 0, expectedCost: bcrypt.DefaultCost},
		{name: "cost too low uses default", bcryptCost: 3, expectedCost: bcrypt.DefaultCost},
		{name: "cost too high uses default", bcryptCost: 32, expectedCost: bcrypt.DefaultCost},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			s := NewPostgresUserStore(&mockDBTX{}, tc.bcryptCost)
			require.NotNil(t, s)
			assert.Equal(t, tc.expectedCost, s.bcryptCost)
		})
	}
}

func TestUserStoreCreateValidation(t *testing.T) {
	t.Parallel()

	db := &mockDBTX{}
	s := NewPostgresUserStore(db, bcrypt.MinCost)

	user := validUser(t)
	user.Email = "not-an-email"

	err := s.Create(context.Background(), user)
	assert.ErrorIs(t, err, domain.ErrInvalidEmail)
	assert.Zero(t, db.execCalls, "invalid users must not reach the database")
}

func TestUserStoreCreateHashesPassword(t *testing.T) {
	t.Parallel()

	db := &mockDBTX{}
	s := NewPostgresUserStore(db, bcrypt.MinCost)

	user := validUser(t)
	plaintext := user.Password

	require.NoError(t, s.Create(context.Background(), user))
	assert.Equal(t, 1, db.execCalls)

	assert.Empty(t, user.Password, "plaintext must be cleared after hashing")
	require.NotEmpty(t, user.HashedPassword)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(user.HashedPassword), []byte(plaintext)))
}

func TestUserStoreCreateMapsUniqueViolations(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		constraint string
		expected   error
	}{
		{name: "email taken", constraint: userEmailConstraint, expected: store.ErrEmailExists},
		{name: "username taken", constraint: userUsernameConstraint, expected: store.ErrUsernameExists},
		{name: "unknown constraint", constraint: "users_other_key", expected: store.ErrDuplicate},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			db := &mockDBTX{execErr: &pgconn.PgError{
				Code:           uniqueViolationCode,
				ConstraintName: tc.constraint,
			}}
			s := NewPostgresUserStore(db, bcrypt.MinCost)

			err := s.Create(context.Background(), validUser(t))
			assert.ErrorIs(t, err, tc.expected)
		})
	}
}

func TestUserStoreUpdateValidation(t *testing.T) {
	t.Parallel()

	db := &mockDBTX{}
	s := NewPostgresUserStore(db, bcrypt.MinCost)

	user := validUser(t)
	user.Username = ""

	err := s.Update(context.Background(), user)
	assert.ErrorIs(t, err, domain.ErrEmptyUsername)
	assert.Zero(t, db.execCalls)
}

func TestUserStoreWithTx(t *testing.T) {
	t.Parallel()

	s := NewPostgresUserStore(&mockDBTX{}, 10)
	txStore := s.WithTx(nil)

	require.NotNil(t, txStore)
	assert.NotSame(t, s, txStore)

	// The transactional copy keeps the configured cost.
	assert.Equal(t, 10, txStore.(*PostgresUserStore).bcryptCost)
}

package domain

import (
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Common validation errors for User
var (
	ErrEmptyUserID         = errors.New("user ID cannot be empty")
	ErrEmptyEmail          = errors.New("email cannot be empty")
	ErrInvalidEmail        = errors.New("invalid email format")
	ErrEmptyUsername       = errors.New("username cannot be empty")
	ErrEmptyPassword       = errors.New("password cannot be empty")
	ErrPasswordTooShort    = errors.New("password must be at least 12 characters long")
	ErrPasswordTooLong     = errors.New("password must be at most 72 characters long")
	ErrEmptyHashedPassword = errors.New("hashed password cannot be empty")
)

// User represents a registered user of the service. Inactive users cannot
// authenticate; admin users may manage other accounts.
type User struct {
	ID             uuid.UUID `json:"id"`
	Email          string    `json:"email"`
	Username       string    `json:"username"`
	Password       string    `json:"-"` // Plaintext, held only between registration and hashing
	HashedPassword string    `json:"-"` // Never expose password hash in JSON
	IsActive       bool      `json:"is_active"`
	IsAdmin        bool      `json:"is_admin"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// NewUser creates a new active, non-admin User with the given email,
// username, and plaintext password. It generates a new UUID for the user ID
// and sets the creation/update timestamps.
// The caller is responsible for hashing the password before storing the user.
// Returns an error if validation fails.
func NewUser(email, username, password string) (*User, error) {
	user := &User{
		ID:        uuid.New(),
		Email:     email,
		Username:  username,
		Password:  password,
		IsActive:  true,
		CreatedAt: time.Now().UTC(),
		UpdatedAt: time.Now().UTC(),
	}

	if err := user.Validate(); err != nil {
		return nil, err
	}

	return user, nil
}

// Validate checks if the User has valid data.
// Returns an error if any field fails validation.
func (u *User) Validate() error {
	if u.ID == uuid.Nil {
		return ErrEmptyUserID
	}

	if u.Email == "" {
		return ErrEmptyEmail
	}

	if !validateEmailFormat(u.Email) {
		return ErrInvalidEmail
	}

	if u.Username == "" {
		return ErrEmptyUsername
	}

	if u.Password != "" {
		if len(u.Password) < 12 {
			return ErrPasswordTooShort
		}
		// bcrypt truncates beyond 72 bytes
		if len(u.Password) > 72 {
			return ErrPasswordTooLong
		}
	} else if u.HashedPassword == "" {
		// Existing users loaded from the database carry only the hash
		return ErrEmptyPassword
	}

	return nil
}

// validateEmailFormat performs basic structural validation of an email
// address: one @ with a dotted domain after it. Full RFC 5322 parsing is
// left to the mail provider.
func validateEmailFormat(email string) bool {
	at := strings.Index(email, "@")
	if at <= 0 || at == len(email)-1 {
		return false
	}

	domain := email[at+1:]
	if strings.Contains(domain, "@") {
		return false
	}

	dot := strings.Index(domain, ".")
	return dot > 0 && dot < len(domain)-1
}

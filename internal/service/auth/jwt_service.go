package auth

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// JWTService issues and validates the signed tokens that authenticate API
// requests. Access tokens are short-lived; refresh tokens live longer and are
// only good for obtaining a new token pair.
type JWTService interface {
	// GenerateToken creates a signed access token for the given user.
	GenerateToken(ctx context.Context, userID uuid.UUID) (string, error)

	// ValidateToken checks an access token and returns its claims.
	// Returns ErrExpiredToken, ErrTokenNotYetValid, ErrWrongTokenType or
	// ErrInvalidToken when validation fails.
	ValidateToken(ctx context.Context, tokenString string) (*Claims, error)

	// GenerateRefreshToken creates a signed refresh token for the given user.
	GenerateRefreshToken(ctx context.Context, userID uuid.UUID) (string, error)

	// ValidateRefreshToken checks a refresh token and returns its claims.
	// Returns ErrExpiredRefreshToken, ErrWrongTokenType or
	// ErrInvalidRefreshToken when validation fails.
	ValidateRefreshToken(ctx context.Context, tokenString string) (*Claims, error)
}

// Claims carries the verified content of a token after validation.
type Claims struct {
	// UserID is the user the token was issued for.
	UserID uuid.UUID `json:"uid,omitempty"`

	// TokenType is "access" or "refresh". Prevents a refresh token from
	// being replayed as an access token.
	TokenType string `json:"type,omitempty"`

	// Standard registered JWT claims
	Subject   string    `json:"sub,omitempty"`
	IssuedAt  time.Time `json:"iat,omitempty"`
	ExpiresAt time.Time `json:"exp,omitempty"`
	ID        string    `json:"jti,omitempty"`
}

package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/phrazzld/sage-api/internal/config"
)

const (
	tokenTypeAccess  = "access"
	tokenTypeRefresh = "refresh"
)

// hmacJWTService implements JWTService using HMAC-SHA256 signing.
type hmacJWTService struct {
	signingKey           []byte
	tokenLifetime        time.Duration
	refreshTokenLifetime time.Duration
	timeFunc             func() time.Time // injectable for testing
	clockSkew            time.Duration    // tolerated clock drift during validation
}

// jwtCustomClaims is the wire shape of our token claims.
type jwtCustomClaims struct {
	UserID    uuid.UUID `json:"uid"`
	TokenType string    `json:"type"`
	jwt.RegisteredClaims
}

var _ JWTService = (*hmacJWTService)(nil)

// NewJWTService creates a JWT service using HMAC-SHA256 signing.
func NewJWTService(cfg config.AuthConfig) (JWTService, error) {
	if len(cfg.JWTSecret) < 32 {
		return nil, fmt.Errorf("jwt secret must be at least 32 characters")
	}

	return &hmacJWTService{
		signingKey:           []byte(cfg.JWTSecret),
		tokenLifetime:        time.Duration(cfg.TokenLifetimeMinutes) * time.Minute,
		refreshTokenLifetime: time.Duration(cfg.RefreshTokenLifetimeMinutes) * time.Minute,
		timeFunc:             time.Now,
		clockSkew:            2 * time.Minute,
	}, nil
}

// GenerateToken creates a signed access token for the given user.
func (s *hmacJWTService) GenerateToken(ctx context.Context, userID uuid.UUID) (string, error) {
	now := s.timeFunc()
	return s.sign(userID, tokenTypeAccess, now, now.Add(s.tokenLifetime))
}

// GenerateRefreshToken creates a signed refresh token for the given user.
func (s *hmacJWTService) GenerateRefreshToken(
	ctx context.Context,
	userID uuid.UUID,
) (string, error) {
	now := s.timeFunc()
	return s.sign(userID, tokenTypeRefresh, now, now.Add(s.refreshTokenLifetime))
}

// GenerateRefreshTokenWithExpiry creates a refresh token with an explicit
// expiry time. Intended for tests that need already-expired tokens.
func (s *hmacJWTService) GenerateRefreshTokenWithExpiry(
	ctx context.Context,
	userID uuid.UUID,
	expiresAt time.Time,
) (string, error) {
	return s.sign(userID, tokenTypeRefresh, s.timeFunc(), expiresAt)
}

func (s *hmacJWTService) sign(
	userID uuid.UUID,
	tokenType string,
	issuedAt, expiresAt time.Time,
) (string, error) {
	claims := jwtCustomClaims{
		UserID:    userID,
		TokenType: tokenType,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID.String(),
			IssuedAt:  jwt.NewNumericDate(issuedAt),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			ID:        uuid.New().String(),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signedToken, err := token.SignedString(s.signingKey)
	if err != nil {
		return "", fmt.Errorf("failed to sign %s token: %w", tokenType, err)
	}
	return signedToken, nil
}

// ValidateToken checks an access token and returns its claims.
func (s *hmacJWTService) ValidateToken(ctx context.Context, tokenString string) (*Claims, error) {
	return s.validate(tokenString, tokenTypeAccess)
}

// ValidateRefreshToken checks a refresh token and returns its claims.
func (s *hmacJWTService) ValidateRefreshToken(
	ctx context.Context,
	tokenString string,
) (*Claims, error) {
	return s.validate(tokenString, tokenTypeRefresh)
}

func (s *hmacJWTService) validate(tokenString, wantType string) (*Claims, error) {
	now := s.timeFunc()

	parserOpts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Name}),
		jwt.WithLeeway(s.clockSkew),
		jwt.WithTimeFunc(func() time.Time { return now }),
	}

	token, err := jwt.ParseWithClaims(
		tokenString,
		&jwtCustomClaims{},
		func(token *jwt.Token) (interface{}, error) {
			if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
			}
			return s.signingKey, nil
		},
		parserOpts...)
	if err != nil {
		return nil, mapValidationError(err, wantType)
	}

	claims, ok := token.Claims.(*jwtCustomClaims)
	if !ok || !token.Valid {
		return nil, invalidSentinel(wantType)
	}
	if claims.TokenType != wantType {
		return nil, ErrWrongTokenType
	}

	return &Claims{
		UserID:    claims.UserID,
		TokenType: claims.TokenType,
		Subject:   claims.Subject,
		IssuedAt:  claims.IssuedAt.Time,
		ExpiresAt: claims.ExpiresAt.Time,
		ID:        claims.ID,
	}, nil
}

// mapValidationError converts jwt library errors to our sentinels. Refresh
// tokens report their own sentinel family so handlers can distinguish a stale
// session from a bad access token.
func mapValidationError(err error, wantType string) error {
	switch {
	case errors.Is(err, jwt.ErrTokenExpired):
		if wantType == tokenTypeRefresh {
			return ErrExpiredRefreshToken
		}
		return ErrExpiredToken
	case errors.Is(err, jwt.ErrTokenNotValidYet):
		if wantType == tokenTypeRefresh {
			return ErrInvalidRefreshToken
		}
		return ErrTokenNotYetValid
	default:
		return invalidSentinel(wantType)
	}
}

func invalidSentinel(wantType string) error {
	if wantType == tokenTypeRefresh {
		return ErrInvalidRefreshToken
	}
	return ErrInvalidToken
}

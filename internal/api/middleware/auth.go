package middleware

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/phrazzld/sage-api/internal/api/shared"
	"github.com/phrazzld/sage-api/internal/redact"
	"github.com/phrazzld/sage-api/internal/service/auth"
	"github.com/phrazzld/sage-api/internal/store"
)

// AuthMiddleware provides JWT authentication for routes.
type AuthMiddleware struct {
	jwtService auth.JWTService
	userStore  store.UserStore
}

// NewAuthMiddleware creates a new AuthMiddleware. The user store is only
// consulted by RequireAdmin; Authenticate itself never touches it.
func NewAuthMiddleware(jwtService auth.JWTService, userStore store.UserStore) *AuthMiddleware {
	return &AuthMiddleware{
		jwtService: jwtService,
		userStore:  userStore,
	}
}

// Authenticate validates the bearer token from the Authorization header and
// adds the user ID to the request context. Requests without a valid token
// are rejected with 401.
func (m *AuthMiddleware) Authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		authHeader := r.Header.Get("Authorization")
		if authHeader == "" {
			shared.RespondWithError(w, r, http.StatusUnauthorized, "Authorization header required")
			return
		}
		m.authenticate(w, r, next, authHeader)
	})
}

// AuthenticateOptional attaches the user ID when a valid bearer token is
// present and lets anonymous requests through untouched. A token that is
// present but invalid is still rejected.
func (m *AuthMiddleware) AuthenticateOptional(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		authHeader := r.Header.Get("Authorization")
		if authHeader == "" {
			next.ServeHTTP(w, r)
			return
		}
		m.authenticate(w, r, next, authHeader)
	})
}

func (m *AuthMiddleware) authenticate(
	w http.ResponseWriter,
	r *http.Request,
	next http.Handler,
	authHeader string,
) {
	parts := strings.Split(authHeader, " ")
	if len(parts) != 2 || parts[0] != "Bearer" {
		shared.RespondWithError(w, r, http.StatusUnauthorized, "Invalid authorization format")
		return
	}

	claims, err := m.jwtService.ValidateToken(r.Context(), parts[1])
	if err != nil {
		switch {
		case errors.Is(err, auth.ErrExpiredToken):
			shared.RespondWithError(w, r, http.StatusUnauthorized, "Token expired")
		case errors.Is(err, auth.ErrInvalidToken),
			errors.Is(err, auth.ErrTokenNotYetValid),
			errors.Is(err, auth.ErrWrongTokenType):
			shared.RespondWithError(w, r, http.StatusUnauthorized, "Invalid token")
		default:
			slog.Error("failed to validate token", "error", redact.Error(err))
			shared.RespondWithError(w, r, http.StatusInternalServerError, "Authentication error")
		}
		return
	}

	ctx := context.WithValue(r.Context(), shared.UserIDContextKey, claims.UserID)
	next.ServeHTTP(w, r.WithContext(ctx))
}

// RequireAdmin loads the authenticated user and rejects the request unless
// the account is active and has the admin flag. Must run after Authenticate.
func (m *AuthMiddleware) RequireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		userID, ok := GetUserID(r)
		if !ok {
			shared.RespondWithError(w, r, http.StatusUnauthorized, "Authentication required")
			return
		}

		user, err := m.userStore.GetByID(r.Context(), userID)
		if err != nil {
			if errors.Is(err, store.ErrUserNotFound) {
				shared.RespondWithError(w, r, http.StatusUnauthorized, "Unknown user")
				return
			}
			slog.Error("failed to load user for admin check",
				"error", redact.Error(err),
				"user_id", userID)
			shared.RespondWithError(w, r, http.StatusInternalServerError, "Authorization error")
			return
		}

		if !user.IsActive || !user.IsAdmin {
			shared.RespondWithError(w, r, http.StatusForbidden, "Admin access required")
			return
		}

		next.ServeHTTP(w, r)
	})
}

// GetUserID extracts the user ID from the request context.
// Returns the user ID and a boolean indicating if it was found.
func GetUserID(r *http.Request) (uuid.UUID, bool) {
	userID, ok := r.Context().Value(shared.UserIDContextKey).(uuid.UUID)
	return userID, ok
}

package api

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/phrazzld/sage-api/internal/api/shared"
	"github.com/phrazzld/sage-api/internal/domain"
	"github.com/phrazzld/sage-api/internal/redact"
	"github.com/phrazzld/sage-api/internal/service/auth"
	"github.com/phrazzld/sage-api/internal/store"
)

// AuthHandler serves registration, login, token refresh, the current-user
// endpoint, and per-user provider key management.
type AuthHandler struct {
	userStore        store.UserStore
	apiKeyStore      store.APIKeyStore
	jwtService       auth.JWTService
	passwordVerifier auth.PasswordVerifier
	keyEncryptor     auth.KeyEncryptor
	tokenLifetime    time.Duration
}

// NewAuthHandler creates a new AuthHandler with the given dependencies.
// tokenLifetime is the access token lifetime reported in responses.
func NewAuthHandler(
	userStore store.UserStore,
	apiKeyStore store.APIKeyStore,
	jwtService auth.JWTService,
	passwordVerifier auth.PasswordVerifier,
	keyEncryptor auth.KeyEncryptor,
	tokenLifetime time.Duration,
) *AuthHandler {
	return &AuthHandler{
		userStore:        userStore,
		apiKeyStore:      apiKeyStore,
		jwtService:       jwtService,
		passwordVerifier: passwordVerifier,
		keyEncryptor:     keyEncryptor,
		tokenLifetime:    tokenLifetime,
	}
}

// Register handles POST /api/auth/register.
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req RegisterRequest

	if err := shared.DecodeJSON(r, &req); err != nil {
		shared.RespondWithError(w, r, http.StatusBadRequest, "Invalid request format")
		return
	}

	if err := shared.ValidateRequest(req); err != nil {
		shared.RespondWithError(w, r, http.StatusBadRequest, "Validation error: "+err.Error())
		return
	}

	user, err := domain.NewUser(req.Email, req.Username, req.Password)
	if err != nil {
		shared.RespondWithError(w, r, http.StatusBadRequest, "Invalid user data: "+err.Error())
		return
	}

	if err := h.userStore.Create(r.Context(), user); err != nil {
		switch {
		case errors.Is(err, store.ErrEmailExists):
			shared.RespondWithError(w, r, http.StatusConflict, "Email already exists")
		case errors.Is(err, store.ErrUsernameExists):
			shared.RespondWithError(w, r, http.StatusConflict, "Username already exists")
		default:
			slog.Error("failed to create user", "error", redact.Error(err))
			shared.RespondWithError(w, r, http.StatusInternalServerError, "Failed to create user")
		}
		return
	}

	h.respondWithTokens(w, r, http.StatusCreated, user)
}

// Login handles POST /api/auth/login.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest

	if err := shared.DecodeJSON(r, &req); err != nil {
		shared.RespondWithError(w, r, http.StatusBadRequest, "Invalid request format")
		return
	}

	if err := shared.ValidateRequest(req); err != nil {
		shared.RespondWithError(w, r, http.StatusBadRequest, "Validation error: "+err.Error())
		return
	}

	user, err := h.userStore.GetByEmail(r.Context(), req.Email)
	if err != nil {
		if errors.Is(err, store.ErrUserNotFound) {
			shared.RespondWithError(w, r, http.StatusUnauthorized, "Invalid credentials")
			return
		}
		slog.Error("failed to get user by email", "error", redact.Error(err))
		shared.RespondWithError(w, r, http.StatusInternalServerError, "Failed to authenticate user")
		return
	}

	if !user.IsActive {
		shared.RespondWithError(w, r, http.StatusUnauthorized, "Account is deactivated")
		return
	}

	if err := h.passwordVerifier.Compare(user.HashedPassword, req.Password); err != nil {
		shared.RespondWithError(w, r, http.StatusUnauthorized, "Invalid credentials")
		return
	}

	h.respondWithTokens(w, r, http.StatusOK, user)
}

// Refresh handles POST /api/auth/refresh, exchanging a valid refresh token
// for a fresh token pair.
func (h *AuthHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	var req RefreshTokenRequest

	if err := shared.DecodeJSON(r, &req); err != nil {
		shared.RespondWithError(w, r, http.StatusBadRequest, "Invalid request format")
		return
	}

	if err := shared.ValidateRequest(req); err != nil {
		shared.RespondWithError(w, r, http.StatusBadRequest, "Validation error: "+err.Error())
		return
	}

	claims, err := h.jwtService.ValidateRefreshToken(r.Context(), req.RefreshToken)
	if err != nil {
		switch {
		case errors.Is(err, auth.ErrExpiredRefreshToken):
			shared.RespondWithError(w, r, http.StatusUnauthorized, "Refresh token expired")
		case errors.Is(err, auth.ErrInvalidRefreshToken), errors.Is(err, auth.ErrWrongTokenType):
			shared.RespondWithError(w, r, http.StatusUnauthorized, "Invalid refresh token")
		default:
			slog.Error("failed to validate refresh token", "error", redact.Error(err))
			shared.RespondWithError(w, r, http.StatusInternalServerError, "Failed to refresh token")
		}
		return
	}

	// The account may have been removed or deactivated since the token
	// was issued.
	user, err := h.userStore.GetByID(r.Context(), claims.UserID)
	if err != nil {
		if errors.Is(err, store.ErrUserNotFound) {
			shared.RespondWithError(w, r, http.StatusUnauthorized, "Invalid refresh token")
			return
		}
		slog.Error("failed to load user for refresh", "error", redact.Error(err))
		shared.RespondWithError(w, r, http.StatusInternalServerError, "Failed to refresh token")
		return
	}
	if !user.IsActive {
		shared.RespondWithError(w, r, http.StatusUnauthorized, "Account is deactivated")
		return
	}

	accessToken, err := h.jwtService.GenerateToken(r.Context(), user.ID)
	if err != nil {
		slog.Error("failed to generate token", "error", redact.Error(err), "user_id", user.ID)
		shared.RespondWithError(w, r, http.StatusInternalServerError, "Failed to generate authentication token")
		return
	}
	refreshToken, err := h.jwtService.GenerateRefreshToken(r.Context(), user.ID)
	if err != nil {
		slog.Error("failed to generate refresh token", "error", redact.Error(err), "user_id", user.ID)
		shared.RespondWithError(w, r, http.StatusInternalServerError, "Failed to generate authentication token")
		return
	}

	shared.RespondWithJSON(w, r, http.StatusOK, RefreshTokenResponse{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		ExpiresAt:    time.Now().UTC().Add(h.tokenLifetime).Format(time.RFC3339),
	})
}

// Me handles GET /api/auth/me.
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}

	user, err := h.userStore.GetByID(r.Context(), userID)
	if err != nil {
		HandleAPIError(w, r, err, "")
		return
	}

	shared.RespondWithJSON(w, r, http.StatusOK, newUserResponse(user))
}

// StoreAPIKey handles POST /api/auth/api-keys, saving an encrypted provider
// key for the authenticated user. An existing key for the same provider is
// replaced.
func (h *AuthHandler) StoreAPIKey(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}

	var req StoreAPIKeyRequest
	if err := shared.DecodeJSON(r, &req); err != nil {
		shared.RespondWithError(w, r, http.StatusBadRequest, "Invalid request format")
		return
	}
	if err := shared.ValidateRequest(req); err != nil {
		shared.RespondWithError(w, r, http.StatusBadRequest, "Validation error: "+err.Error())
		return
	}

	encrypted, err := h.keyEncryptor.Encrypt(req.APIKey)
	if err != nil {
		slog.Error("failed to encrypt provider key", "error", redact.Error(err), "provider", req.Provider)
		shared.RespondWithError(w, r, http.StatusInternalServerError, "Failed to store API key")
		return
	}

	apiKey, err := domain.NewAPIKey(userID, req.Provider, encrypted)
	if err != nil {
		shared.RespondWithError(w, r, http.StatusBadRequest, "Invalid API key data: "+err.Error())
		return
	}

	if err := h.apiKeyStore.Upsert(r.Context(), apiKey); err != nil {
		slog.Error("failed to store provider key", "error", redact.Error(err), "provider", req.Provider)
		shared.RespondWithError(w, r, http.StatusInternalServerError, "Failed to store API key")
		return
	}

	shared.RespondWithJSON(w, r, http.StatusCreated, APIKeyResponse{
		Provider:  apiKey.Provider,
		CreatedAt: apiKey.CreatedAt,
		UpdatedAt: apiKey.UpdatedAt,
	})
}

// ListAPIKeys handles GET /api/auth/api-keys.
func (h *AuthHandler) ListAPIKeys(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}

	keys, err := h.apiKeyStore.ListByUser(r.Context(), userID)
	if err != nil {
		slog.Error("failed to list provider keys", "error", redact.Error(err))
		shared.RespondWithError(w, r, http.StatusInternalServerError, "Failed to list API keys")
		return
	}

	resp := make([]APIKeyResponse, 0, len(keys))
	for _, key := range keys {
		resp = append(resp, APIKeyResponse{
			Provider:  key.Provider,
			CreatedAt: key.CreatedAt,
			UpdatedAt: key.UpdatedAt,
		})
	}

	shared.RespondWithJSON(w, r, http.StatusOK, resp)
}

// DeleteAPIKey handles DELETE /api/auth/api-keys/{provider}.
func (h *AuthHandler) DeleteAPIKey(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}

	provider := chi.URLParam(r, "provider")
	if err := h.apiKeyStore.Delete(r.Context(), userID, provider); err != nil {
		HandleAPIError(w, r, err, "")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// respondWithTokens mints a token pair for the user and writes the auth
// response.
func (h *AuthHandler) respondWithTokens(w http.ResponseWriter, r *http.Request, status int, user *domain.User) {
	accessToken, err := h.jwtService.GenerateToken(r.Context(), user.ID)
	if err != nil {
		slog.Error("failed to generate token", "error", redact.Error(err), "user_id", user.ID)
		shared.RespondWithError(w, r, http.StatusInternalServerError, "Failed to generate authentication token")
		return
	}

	refreshToken, err := h.jwtService.GenerateRefreshToken(r.Context(), user.ID)
	if err != nil {
		slog.Error("failed to generate refresh token", "error", redact.Error(err), "user_id", user.ID)
		shared.RespondWithError(w, r, http.StatusInternalServerError, "Failed to generate authentication token")
		return
	}

	shared.RespondWithJSON(w, r, status, AuthResponse{
		UserID:       user.ID,
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		ExpiresAt:    time.Now().UTC().Add(h.tokenLifetime).Format(time.RFC3339),
	})
}

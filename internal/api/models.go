package api

import (
	"time"

	"github.com/google/uuid"

	"github.com/phrazzld/sage-api/internal/domain"
	"github.com/phrazzld/sage-api/internal/store"
)

// Common request/response structures

// RegisterRequest defines the payload for the user registration endpoint.
type RegisterRequest struct {
	Email    string `json:"email"    validate:"required,email"`
	Username string `json:"username" validate:"required,min=3,max=50"`
	Password string `json:"password" validate:"required,min=12,max=72"`
}

// LoginRequest defines the payload for the user login endpoint.
type LoginRequest struct {
	Email    string `json:"email"    validate:"required,email"`
	Password string `json:"password" validate:"required,min=1"`
}

// AuthResponse defines the successful response for authentication endpoints.
type AuthResponse struct {
	UserID uuid.UUID `json:"user_id"`

	// AccessToken is the JWT used for API authorization.
	AccessToken string `json:"token"`

	// RefreshToken obtains new token pairs after the access token expires.
	RefreshToken string `json:"refresh_token,omitempty"`

	// ExpiresAt is the RFC 3339 timestamp when the access token expires.
	ExpiresAt string `json:"expires_at,omitempty"`
}

// RefreshTokenRequest defines the payload for the token refresh endpoint.
type RefreshTokenRequest struct {
	RefreshToken string `json:"refresh_token" validate:"required"`
}

// RefreshTokenResponse defines the successful response for the token
// refresh endpoint.
type RefreshTokenResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	ExpiresAt    string `json:"expires_at"`
}

// UserResponse is the client-facing view of a user account.
type UserResponse struct {
	ID        uuid.UUID `json:"id"`
	Email     string    `json:"email"`
	Username  string    `json:"username"`
	IsActive  bool      `json:"is_active"`
	IsAdmin   bool      `json:"is_admin"`
	CreatedAt time.Time `json:"created_at"`
}

// newUserResponse converts a domain user for responses. Password material
// never appears in any response shape.
func newUserResponse(user *domain.User) UserResponse {
	return UserResponse{
		ID:        user.ID,
		Email:     user.Email,
		Username:  user.Username,
		IsActive:  user.IsActive,
		IsAdmin:   user.IsAdmin,
		CreatedAt: user.CreatedAt,
	}
}

// UpdateUserRequest is the admin patch payload. Nil fields are left
// unchanged.
type UpdateUserRequest struct {
	IsActive *bool `json:"is_active"`
	IsAdmin  *bool `json:"is_admin"`
}

// StatsResponse reports aggregate account statistics for the admin surface.
type StatsResponse struct {
	store.UserCounts
}

// StoreAPIKeyRequest defines the payload for saving a provider API key.
type StoreAPIKeyRequest struct {
	Provider string `json:"provider" validate:"required,oneof=gemini openai perplexity"`
	APIKey   string `json:"api_key"  validate:"required,min=8"`
}

// APIKeyResponse describes one stored provider key. The key material itself
// is never returned.
type APIKeyResponse struct {
	Provider  string    `json:"provider"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// UploadResponse acknowledges an accepted submission.
type UploadResponse struct {
	SessionID string `json:"session_id"`
	Status    string `json:"status"`
}

// StatusResponse is the poller-facing state of one session.
type StatusResponse struct {
	SessionID string                 `json:"session_id"`
	Status    string                 `json:"status"`
	Progress  int                    `json:"progress"`
	Stage     string                 `json:"stage,omitempty"`
	Message   string                 `json:"message,omitempty"`
	Answers   []domain.AnswerPreview `json:"answers"`
}

// RegenerateAnswerRequest carries the modification instruction for one
// answered question.
type RegenerateAnswerRequest struct {
	ChangeRequest string `json:"change_request" validate:"required,min=1,max=2000"`
}

// RegenerateAnswerResponse returns the updated answer text.
type RegenerateAnswerResponse struct {
	SessionID     string `json:"session_id"`
	QuestionIndex int    `json:"question_index"`
	Answer        string `json:"answer"`
}

// LanguagesResponse lists the supported output languages.
type LanguagesResponse struct {
	Languages []domain.LanguageConfig `json:"languages"`
}

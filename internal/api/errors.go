package api

import (
	"errors"
	"net/http"

	"github.com/phrazzld/sage-api/internal/api/shared"
	"github.com/phrazzld/sage-api/internal/docstore"
	"github.com/phrazzld/sage-api/internal/pipeline"
	"github.com/phrazzld/sage-api/internal/service"
	"github.com/phrazzld/sage-api/internal/service/auth"
	"github.com/phrazzld/sage-api/internal/store"
	"github.com/phrazzld/sage-api/internal/task"
	"github.com/phrazzld/sage-api/internal/upload"
)

// MapErrorToStatusCode maps internal errors to HTTP status codes so no
// handler invents its own mapping.
func MapErrorToStatusCode(err error) int {
	var validationErr *upload.ValidationError

	switch {
	// Authentication errors
	case errors.Is(err, auth.ErrInvalidToken),
		errors.Is(err, auth.ErrExpiredToken),
		errors.Is(err, auth.ErrTokenNotYetValid),
		errors.Is(err, auth.ErrInvalidRefreshToken),
		errors.Is(err, auth.ErrExpiredRefreshToken),
		errors.Is(err, auth.ErrWrongTokenType):
		return http.StatusUnauthorized

	// Not found errors
	case errors.Is(err, store.ErrSessionNotFound),
		errors.Is(err, store.ErrUserNotFound),
		errors.Is(err, store.ErrAPIKeyNotFound),
		errors.Is(err, docstore.ErrDocumentNotFound):
		return http.StatusNotFound

	// Conflict errors
	case errors.Is(err, service.ErrSessionNotComplete),
		errors.Is(err, service.ErrDuplicateSession),
		errors.Is(err, task.ErrDuplicateTask),
		errors.Is(err, store.ErrEmailExists),
		errors.Is(err, store.ErrUsernameExists):
		return http.StatusConflict

	// Bad request errors
	case errors.As(err, &validationErr),
		errors.Is(err, pipeline.ErrInvalidQuestionIndex),
		errors.Is(err, store.ErrInvalidEntity):
		return http.StatusBadRequest

	// Backpressure
	case errors.Is(err, task.ErrQueueFull),
		errors.Is(err, task.ErrQueueClosed):
		return http.StatusServiceUnavailable

	default:
		return http.StatusInternalServerError
	}
}

// GetSafeErrorMessage returns a client-facing message for the error.
// Internal details never pass through; validation errors are the one case
// whose text is written for end users and is returned as-is.
func GetSafeErrorMessage(err error) string {
	if err == nil {
		return "An unexpected error occurred"
	}

	var validationErr *upload.ValidationError

	switch {
	case errors.As(err, &validationErr):
		return validationErr.Issue

	case errors.Is(err, auth.ErrInvalidToken),
		errors.Is(err, auth.ErrExpiredToken),
		errors.Is(err, auth.ErrTokenNotYetValid):
		return "Invalid token"

	case errors.Is(err, auth.ErrInvalidRefreshToken),
		errors.Is(err, auth.ErrExpiredRefreshToken),
		errors.Is(err, auth.ErrWrongTokenType):
		return "Invalid refresh token"

	case errors.Is(err, store.ErrSessionNotFound):
		return "Session not found"

	case errors.Is(err, store.ErrUserNotFound):
		return "User not found"

	case errors.Is(err, store.ErrAPIKeyNotFound):
		return "API key not found"

	case errors.Is(err, docstore.ErrDocumentNotFound):
		return "Document not found"

	case errors.Is(err, service.ErrSessionNotComplete):
		return "Session processing is not complete"

	case errors.Is(err, service.ErrDuplicateSession),
		errors.Is(err, task.ErrDuplicateTask):
		return "A submission for this session is already in progress"

	case errors.Is(err, store.ErrEmailExists):
		return "Email already exists"

	case errors.Is(err, store.ErrUsernameExists):
		return "Username already exists"

	case errors.Is(err, pipeline.ErrInvalidQuestionIndex):
		return "Invalid question index"

	case errors.Is(err, store.ErrInvalidEntity):
		return "Invalid entity data"

	case errors.Is(err, task.ErrQueueFull),
		errors.Is(err, task.ErrQueueClosed):
		return "Service is at capacity, try again shortly"

	default:
		return "An unexpected error occurred"
	}
}

// HandleAPIError writes the standard error response for err: mapped status,
// safe message, and a redacted log entry. A non-empty userMessage overrides
// the derived safe message.
func HandleAPIError(w http.ResponseWriter, r *http.Request, err error, userMessage string) {
	status := MapErrorToStatusCode(err)
	if userMessage == "" {
		userMessage = GetSafeErrorMessage(err)
	}
	shared.RespondWithErrorAndLog(w, r, status, userMessage, err)
}

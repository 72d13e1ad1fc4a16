package api

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/phrazzld/sage-api/internal/api/shared"
	"github.com/phrazzld/sage-api/internal/upload"
)

// getUserIDFromContext extracts the authenticated user's UUID from the
// request context, where the auth middleware placed it.
func getUserIDFromContext(r *http.Request) (uuid.UUID, bool) {
	userID, ok := r.Context().Value(shared.UserIDContextKey).(uuid.UUID)
	if !ok || userID == uuid.Nil {
		return uuid.Nil, false
	}
	return userID, true
}

// optionalUserID returns a pointer to the authenticated user's UUID, or nil
// for anonymous requests. Used by endpoints behind optional authentication.
func optionalUserID(r *http.Request) *uuid.UUID {
	userID, ok := getUserIDFromContext(r)
	if !ok {
		return nil
	}
	return &userID
}

// requireUserID extracts the authenticated user ID or writes a 401 response.
// Returns false when the response has been written.
func requireUserID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	userID, ok := getUserIDFromContext(r)
	if !ok {
		shared.RespondWithError(w, r, http.StatusUnauthorized, "Authentication required")
		return uuid.Nil, false
	}
	return userID, true
}

// pathUUID extracts and parses a UUID path parameter or writes a 400
// response. Returns false when the response has been written.
func pathUUID(w http.ResponseWriter, r *http.Request, param string) (uuid.UUID, bool) {
	raw := chi.URLParam(r, param)
	id, err := uuid.Parse(raw)
	if err != nil {
		shared.RespondWithError(w, r, http.StatusBadRequest, "Invalid "+param)
		return uuid.Nil, false
	}
	return id, true
}

// pathSessionID extracts and shape-checks the session ID path parameter or
// writes a 400 response. Returns false when the response has been written.
func pathSessionID(w http.ResponseWriter, r *http.Request) (string, bool) {
	sessionID := chi.URLParam(r, "sessionID")
	if err := upload.ValidateSessionID(sessionID); err != nil {
		HandleAPIError(w, r, err, "")
		return "", false
	}
	return sessionID, true
}

// pathInt extracts a non-negative integer path parameter or writes a 400
// response. Returns false when the response has been written.
func pathInt(w http.ResponseWriter, r *http.Request, param string) (int, bool) {
	raw := chi.URLParam(r, param)
	value, err := strconv.Atoi(raw)
	if err != nil || value < 0 {
		shared.RespondWithError(w, r, http.StatusBadRequest, "Invalid "+param)
		return 0, false
	}
	return value, true
}

package api

import (
	"log/slog"
	"net/http"

	"github.com/phrazzld/sage-api/internal/api/shared"
	"github.com/phrazzld/sage-api/internal/redact"
	"github.com/phrazzld/sage-api/internal/store"
)

// AdminHandler serves the account management endpoints. All routes behind it
// require an active admin, enforced by the auth middleware.
type AdminHandler struct {
	userStore store.UserStore
}

// NewAdminHandler creates a new AdminHandler.
func NewAdminHandler(userStore store.UserStore) *AdminHandler {
	return &AdminHandler{userStore: userStore}
}

// ListUsers handles GET /api/admin/users.
func (h *AdminHandler) ListUsers(w http.ResponseWriter, r *http.Request) {
	users, err := h.userStore.List(r.Context())
	if err != nil {
		slog.Error("failed to list users", "error", redact.Error(err))
		shared.RespondWithError(w, r, http.StatusInternalServerError, "Failed to list users")
		return
	}

	resp := make([]UserResponse, 0, len(users))
	for _, user := range users {
		resp = append(resp, newUserResponse(user))
	}

	shared.RespondWithJSON(w, r, http.StatusOK, resp)
}

// Stats handles GET /api/admin/stats.
func (h *AdminHandler) Stats(w http.ResponseWriter, r *http.Request) {
	counts, err := h.userStore.Counts(r.Context())
	if err != nil {
		slog.Error("failed to load user stats", "error", redact.Error(err))
		shared.RespondWithError(w, r, http.StatusInternalServerError, "Failed to load statistics")
		return
	}

	shared.RespondWithJSON(w, r, http.StatusOK, StatsResponse{UserCounts: *counts})
}

// UpdateUser handles PATCH /api/admin/users/{userID}. Only the activation
// and admin flags can be changed; omitted fields stay as they are.
func (h *AdminHandler) UpdateUser(w http.ResponseWriter, r *http.Request) {
	adminID, ok := requireUserID(w, r)
	if !ok {
		return
	}
	targetID, ok := pathUUID(w, r, "userID")
	if !ok {
		return
	}

	var req UpdateUserRequest
	if err := shared.DecodeJSON(r, &req); err != nil {
		shared.RespondWithError(w, r, http.StatusBadRequest, "Invalid request format")
		return
	}

	// Admins cannot lock themselves out.
	if adminID == targetID && req.IsActive != nil && !*req.IsActive {
		shared.RespondWithError(w, r, http.StatusBadRequest, "Cannot deactivate your own account")
		return
	}

	user, err := h.userStore.GetByID(r.Context(), targetID)
	if err != nil {
		HandleAPIError(w, r, err, "")
		return
	}

	if req.IsActive != nil {
		user.IsActive = *req.IsActive
	}
	if req.IsAdmin != nil {
		user.IsAdmin = *req.IsAdmin
	}

	if err := h.userStore.Update(r.Context(), user); err != nil {
		HandleAPIError(w, r, err, "")
		return
	}

	shared.RespondWithJSON(w, r, http.StatusOK, newUserResponse(user))
}

// DeleteUser handles DELETE /api/admin/users/{userID}.
func (h *AdminHandler) DeleteUser(w http.ResponseWriter, r *http.Request) {
	adminID, ok := requireUserID(w, r)
	if !ok {
		return
	}
	targetID, ok := pathUUID(w, r, "userID")
	if !ok {
		return
	}

	if adminID == targetID {
		shared.RespondWithError(w, r, http.StatusBadRequest, "Cannot delete your own account")
		return
	}

	if err := h.userStore.Delete(r.Context(), targetID); err != nil {
		HandleAPIError(w, r, err, "")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

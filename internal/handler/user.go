package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/huddleapp/huddle/internal/auth"
	"github.com/huddleapp/huddle/internal/model"
	"github.com/huddleapp/huddle/internal/store"
)

type UserHandler struct {
	userStore    *store.UserStore
	sessionStore *store.SessionStore
	logger       *slog.Logger
}

func NewUserHandler(us *store.UserStore, ss *store.SessionStore, logger *slog.Logger) *UserHandler {
	return &UserHandler{userStore: us, sessionStore: ss, logger: logger}
}

// List handles GET /api/users.
func (h *UserHandler) List(w http.ResponseWriter, r *http.Request) {
	users, err := h.userStore.List()
	if err != nil {
		h.logger.Error("list users", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to list users")
		return
	}
	if users == nil {
		users = []model.User{}
	}
	writeJSON(w, http.StatusOK, users)
}

type setRoleRequest struct {
	Role string `json:"role"`
}

// SetRole handles PUT /api/users/{id}/role. Super admin only; changing
// your own role is refused so the instance always keeps one super admin.
func (h *UserHandler) SetRole(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid id")
		return
	}

	var req setRoleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	if !model.ValidRole(req.Role) {
		writeError(w, http.StatusBadRequest, "role must be member, admin or super_admin")
		return
	}

	if id == auth.UserID(r.Context()) {
		writeError(w, http.StatusBadRequest, "cannot change your own role")
		return
	}

	user, err := h.userStore.GetByID(id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to get user")
		return
	}
	if user == nil {
		writeError(w, http.StatusNotFound, "user not found")
		return
	}

	if err := h.userStore.SetRole(id, req.Role); err != nil {
		h.logger.Error("set role", "user_id", id, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to set role")
		return
	}

	user.Role = req.Role
	writeJSON(w, http.StatusOK, user)
}

// Delete handles DELETE /api/users/{id}. Super admin only. Sessions,
// subscriptions and reminders cascade with the row.
func (h *UserHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid id")
		return
	}
	if id == auth.UserID(r.Context()) {
		writeError(w, http.StatusBadRequest, "cannot delete your own account")
		return
	}

	user, err := h.userStore.GetByID(id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to get user")
		return
	}
	if user == nil {
		writeError(w, http.StatusNotFound, "user not found")
		return
	}

	if err := h.userStore.Delete(id); err != nil {
		h.logger.Error("delete user", "user_id", id, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to delete user")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

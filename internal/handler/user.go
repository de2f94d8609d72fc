package handler

import (
	"log/slog"
	"net/http"

	"github.com/sakif/drink-journal/internal/service"
)

// UserHandler serves the caller's own account and other users' profiles.
type UserHandler struct {
	users  *service.UserService
	logger *slog.Logger
}

// NewUserHandler creates a new UserHandler.
func NewUserHandler(users *service.UserService, logger *slog.Logger) *UserHandler {
	return &UserHandler{users: users, logger: logger}
}

// HandleGetMe returns the authenticated user.
//
// HTTP: GET /api/me
func (h *UserHandler) HandleGetMe(w http.ResponseWriter, r *http.Request) {
	me, ok := userID(w, r, h.logger)
	if !ok {
		return
	}
	u, err := h.users.GetMe(r.Context(), me)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, u)
}

// HandleUpdateMe applies a partial profile update. Omitted fields are left
// alone; an empty string clears username and avatar.
//
// HTTP: PUT /api/me
// REQUEST BODY: {"displayName": "Ada", "username": "ada_l", "theme": "dark"}
func (h *UserHandler) HandleUpdateMe(w http.ResponseWriter, r *http.Request) {
	me, ok := userID(w, r, h.logger)
	if !ok {
		return
	}
	var upd service.ProfileUpdate
	if err := decodeJSON(w, r, &upd); err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	u, err := h.users.UpdateProfile(r.Context(), me, upd)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, u)
}

// HandleSearch finds users by display name, username or email.
//
// HTTP: GET /api/community/search?q=ada
func (h *UserHandler) HandleSearch(w http.ResponseWriter, r *http.Request) {
	me, ok := userID(w, r, h.logger)
	if !ok {
		return
	}
	users, err := h.users.SearchUsers(r.Context(), me, r.URL.Query().Get("q"))
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, users)
}

// HandleGetProfile returns a user's public profile with follow state
// relative to the caller.
//
// HTTP: GET /api/community/users/{id}
func (h *UserHandler) HandleGetProfile(w http.ResponseWriter, r *http.Request) {
	me, ok := userID(w, r, h.logger)
	if !ok {
		return
	}
	p, err := h.users.GetProfile(r.Context(), me, r.PathValue("id"))
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

package handler

import (
	"log/slog"
	"net/http"

	"github.com/sakif/drink-journal/internal/service"
)

// CircleHandler serves circles: small groups with members, invites and
// posts.
type CircleHandler struct {
	circles *service.CircleService
	logger  *slog.Logger
}

// NewCircleHandler creates a new CircleHandler.
func NewCircleHandler(circles *service.CircleService, logger *slog.Logger) *CircleHandler {
	return &CircleHandler{circles: circles, logger: logger}
}

type inviteRequest struct {
	UserID string `json:"userId"`
}

// HTTP: GET /api/circles
func (h *CircleHandler) HandleListMine(w http.ResponseWriter, r *http.Request) {
	me, ok := userID(w, r, h.logger)
	if !ok {
		return
	}
	list, err := h.circles.ListMyCircles(r.Context(), me)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

// HTTP: GET /api/circles/public
func (h *CircleHandler) HandleListPublic(w http.ResponseWriter, r *http.Request) {
	list, err := h.circles.ListPublicCircles(r.Context())
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

// HandleCreate creates a circle with the caller as its admin.
//
// HTTP: POST /api/circles
// REQUEST BODY: {"name": "Friday Pub", "description": "", "isPrivate": false}
func (h *CircleHandler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	me, ok := userID(w, r, h.logger)
	if !ok {
		return
	}
	var in service.CircleInput
	if err := decodeJSON(w, r, &in); err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	c, err := h.circles.CreateCircle(r.Context(), me, in)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, c)
}

// HTTP: GET /api/circles/{id}
func (h *CircleHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	me, ok := userID(w, r, h.logger)
	if !ok {
		return
	}
	c, err := h.circles.GetCircle(r.Context(), me, r.PathValue("id"))
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, c)
}

// HTTP: DELETE /api/circles/{id}
func (h *CircleHandler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	me, ok := userID(w, r, h.logger)
	if !ok {
		return
	}
	if err := h.circles.DeleteCircle(r.Context(), me, r.PathValue("id")); err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// HTTP: GET /api/circles/{id}/members
func (h *CircleHandler) HandleListMembers(w http.ResponseWriter, r *http.Request) {
	me, ok := userID(w, r, h.logger)
	if !ok {
		return
	}
	members, err := h.circles.ListMembers(r.Context(), me, r.PathValue("id"))
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, members)
}

// HandleJoin adds the caller to a public circle.
//
// HTTP: POST /api/circles/{id}/join
func (h *CircleHandler) HandleJoin(w http.ResponseWriter, r *http.Request) {
	me, ok := userID(w, r, h.logger)
	if !ok {
		return
	}
	if err := h.circles.JoinCircle(r.Context(), me, r.PathValue("id")); err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// HandleLeave removes the caller from a circle. The owner cannot leave.
//
// HTTP: POST /api/circles/{id}/leave
func (h *CircleHandler) HandleLeave(w http.ResponseWriter, r *http.Request) {
	me, ok := userID(w, r, h.logger)
	if !ok {
		return
	}
	if err := h.circles.LeaveCircle(r.Context(), me, r.PathValue("id")); err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// HTTP: DELETE /api/circles/{id}/members/{userId}
func (h *CircleHandler) HandleRemoveMember(w http.ResponseWriter, r *http.Request) {
	me, ok := userID(w, r, h.logger)
	if !ok {
		return
	}
	if err := h.circles.RemoveMember(r.Context(), me, r.PathValue("id"), r.PathValue("userId")); err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// HTTP: POST /api/circles/{id}/invites
// REQUEST BODY: {"userId": "cq3..."}
func (h *CircleHandler) HandleInvite(w http.ResponseWriter, r *http.Request) {
	me, ok := userID(w, r, h.logger)
	if !ok {
		return
	}
	var req inviteRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	inv, err := h.circles.InviteToCircle(r.Context(), me, r.PathValue("id"), req.UserID)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, inv)
}

// HandleListInvites returns the caller's pending invites.
//
// HTTP: GET /api/circles/invites
func (h *CircleHandler) HandleListInvites(w http.ResponseWriter, r *http.Request) {
	me, ok := userID(w, r, h.logger)
	if !ok {
		return
	}
	list, err := h.circles.ListMyInvites(r.Context(), me)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

// HTTP: POST /api/circles/invites/{id}/accept
func (h *CircleHandler) HandleAcceptInvite(w http.ResponseWriter, r *http.Request) {
	h.respond(w, r, true)
}

// HTTP: POST /api/circles/invites/{id}/decline
func (h *CircleHandler) HandleDeclineInvite(w http.ResponseWriter, r *http.Request) {
	h.respond(w, r, false)
}

func (h *CircleHandler) respond(w http.ResponseWriter, r *http.Request, accept bool) {
	me, ok := userID(w, r, h.logger)
	if !ok {
		return
	}
	inv, err := h.circles.RespondToInvite(r.Context(), me, r.PathValue("id"), accept)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, inv)
}

// HTTP: GET /api/circles/{id}/posts
func (h *CircleHandler) HandleListPosts(w http.ResponseWriter, r *http.Request) {
	me, ok := userID(w, r, h.logger)
	if !ok {
		return
	}
	posts, err := h.circles.ListPosts(r.Context(), me, r.PathValue("id"))
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, posts)
}

// HandleCreatePost posts to a circle the caller belongs to, optionally
// sharing a drink.
//
// HTTP: POST /api/circles/{id}/posts
// REQUEST BODY: {"content": "Try this one", "drinkId": "cq3..."}
func (h *CircleHandler) HandleCreatePost(w http.ResponseWriter, r *http.Request) {
	me, ok := userID(w, r, h.logger)
	if !ok {
		return
	}
	var in service.PostInput
	if err := decodeJSON(w, r, &in); err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	p, err := h.circles.CreatePost(r.Context(), me, r.PathValue("id"), in)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, p)
}

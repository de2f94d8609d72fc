package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/sakif/drink-journal/internal/apperror"
	"github.com/sakif/drink-journal/internal/model"
	"github.com/sakif/drink-journal/internal/service"
)

// CommunityHandler serves the public side of the app: the feed, the follow
// graph, cheers and comments.
type CommunityHandler struct {
	community *service.CommunityService
	follows   *service.FollowService
	logger    *slog.Logger
}

// NewCommunityHandler creates a new CommunityHandler.
func NewCommunityHandler(community *service.CommunityService, follows *service.FollowService, logger *slog.Logger) *CommunityHandler {
	return &CommunityHandler{community: community, follows: follows, logger: logger}
}

// FollowResponse is returned by the follow and follow-status routes.
type FollowResponse struct {
	Status  model.FollowStatus         `json:"status"`
	Outcome model.FollowRequestOutcome `json:"outcome,omitempty"`
}

// RemovedResponse reports whether a delete-style call changed anything.
type RemovedResponse struct {
	Removed bool `json:"removed"`
}

// HandleFeed returns recent public drinks, decorated with cheers and
// comments.
//
// HTTP: GET /api/community/feed?scope=all|following
func (h *CommunityHandler) HandleFeed(w http.ResponseWriter, r *http.Request) {
	me, ok := userID(w, r, h.logger)
	if !ok {
		return
	}
	items, err := h.community.GetCommunityFeed(r.Context(), me, r.URL.Query().Get("scope"))
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, items)
}

// HandlePublicDrinks lists public drinks from everyone, with the same
// filters as the journal list.
//
// HTTP: GET /api/community/drinks
func (h *CommunityHandler) HandlePublicDrinks(w http.ResponseWriter, r *http.Request) {
	f, err := parseDrinkFilter(r.URL.Query())
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	drinks, err := h.community.GetPublicDrinks(r.Context(), f)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, drinks)
}

// HandleUserDrinks lists one user's public drinks.
//
// HTTP: GET /api/community/users/{id}/drinks
func (h *CommunityHandler) HandleUserDrinks(w http.ResponseWriter, r *http.Request) {
	f, err := parseDrinkFilter(r.URL.Query())
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	drinks, err := h.community.GetUserPublicDrinks(r.Context(), r.PathValue("id"), f)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, drinks)
}

// HTTP: GET /api/community/users/{id}/followers
func (h *CommunityHandler) HandleFollowers(w http.ResponseWriter, r *http.Request) {
	entries, err := h.follows.ListFollowers(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, entries)
}

// HTTP: GET /api/community/users/{id}/following
func (h *CommunityHandler) HandleFollowing(w http.ResponseWriter, r *http.Request) {
	entries, err := h.follows.ListFollowing(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, entries)
}

// HandleFollowStatus reports the caller's edge towards a user.
//
// HTTP: GET /api/community/follow/{id}
func (h *CommunityHandler) HandleFollowStatus(w http.ResponseWriter, r *http.Request) {
	me, ok := userID(w, r, h.logger)
	if !ok {
		return
	}
	st, err := h.follows.GetFollowStatus(r.Context(), me, r.PathValue("id"))
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, FollowResponse{Status: st})
}

// HandleFollow sends a follow request. Repeating it is harmless: the
// outcome says whether the request is new, still pending or already
// accepted.
//
// HTTP: POST /api/community/follow/{id}
//
// RESPONSE FORMAT:
//
//	{"status": "pending", "outcome": "requested"}
func (h *CommunityHandler) HandleFollow(w http.ResponseWriter, r *http.Request) {
	me, ok := userID(w, r, h.logger)
	if !ok {
		return
	}
	outcome, err := h.follows.SendFollowRequest(r.Context(), me, r.PathValue("id"))
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	status := model.FollowPending
	if outcome == model.FollowAlreadyFollowing {
		status = model.FollowAccepted
	}
	code := http.StatusOK
	if outcome == model.FollowRequested {
		code = http.StatusCreated
	}
	writeJSON(w, code, FollowResponse{Status: status, Outcome: outcome})
}

// HandleUnfollow drops the caller's edge, pending or accepted.
//
// HTTP: DELETE /api/community/follow/{id}
func (h *CommunityHandler) HandleUnfollow(w http.ResponseWriter, r *http.Request) {
	me, ok := userID(w, r, h.logger)
	if !ok {
		return
	}
	removed, err := h.follows.Unfollow(r.Context(), me, r.PathValue("id"))
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, RemovedResponse{Removed: removed})
}

// HandleRemoveFollower drops another user's edge towards the caller.
//
// HTTP: DELETE /api/community/followers/{id}
func (h *CommunityHandler) HandleRemoveFollower(w http.ResponseWriter, r *http.Request) {
	me, ok := userID(w, r, h.logger)
	if !ok {
		return
	}
	removed, err := h.follows.RemoveFollower(r.Context(), me, r.PathValue("id"))
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, RemovedResponse{Removed: removed})
}

// HandleFollowRequests lists pending requests addressed to the caller.
//
// HTTP: GET /api/community/follow-requests
func (h *CommunityHandler) HandleFollowRequests(w http.ResponseWriter, r *http.Request) {
	me, ok := userID(w, r, h.logger)
	if !ok {
		return
	}
	entries, err := h.follows.ListIncomingRequests(r.Context(), me)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, entries)
}

// HTTP: POST /api/community/follow-requests/{id}/accept
func (h *CommunityHandler) HandleAcceptRequest(w http.ResponseWriter, r *http.Request) {
	h.answerRequest(w, r, h.follows.AcceptFollowRequest)
}

// HTTP: POST /api/community/follow-requests/{id}/decline
func (h *CommunityHandler) HandleDeclineRequest(w http.ResponseWriter, r *http.Request) {
	h.answerRequest(w, r, h.follows.DeclineFollowRequest)
}

// answerRequest runs accept or decline. {id} is the requester; no pending
// request from them is a 404.
func (h *CommunityHandler) answerRequest(w http.ResponseWriter, r *http.Request, answer func(ctx context.Context, me, requesterID string) (bool, error)) {
	me, ok := userID(w, r, h.logger)
	if !ok {
		return
	}
	requester := r.PathValue("id")
	done, err := answer(r.Context(), me, requester)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	if !done {
		writeError(w, r, h.logger, apperror.NotFound("follow request", requester))
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// HandleCheer toggles the caller's cheer on a drink.
//
// HTTP: POST /api/community/drinks/{id}/cheer
//
// RESPONSE FORMAT:
//
//	{"cheered": true, "count": 3}
func (h *CommunityHandler) HandleCheer(w http.ResponseWriter, r *http.Request) {
	me, ok := userID(w, r, h.logger)
	if !ok {
		return
	}
	res, err := h.community.ToggleCheer(r.Context(), me, r.PathValue("id"))
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// HTTP: GET /api/community/drinks/{id}/comments
func (h *CommunityHandler) HandleListComments(w http.ResponseWriter, r *http.Request) {
	me, ok := userID(w, r, h.logger)
	if !ok {
		return
	}
	comments, err := h.community.ListComments(r.Context(), me, r.PathValue("id"))
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, comments)
}

// HandleAddComment comments on a drink the caller can see.
//
// HTTP: POST /api/community/drinks/{id}/comments
// REQUEST BODY: {"content": "Great pick!"}
func (h *CommunityHandler) HandleAddComment(w http.ResponseWriter, r *http.Request) {
	me, ok := userID(w, r, h.logger)
	if !ok {
		return
	}
	var in service.CommentInput
	if err := decodeJSON(w, r, &in); err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	c, err := h.community.AddComment(r.Context(), me, r.PathValue("id"), in)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, c)
}

// HandleDeleteComment lets the comment author or the drink owner remove a
// comment.
//
// HTTP: DELETE /api/community/comments/{id}
func (h *CommunityHandler) HandleDeleteComment(w http.ResponseWriter, r *http.Request) {
	me, ok := userID(w, r, h.logger)
	if !ok {
		return
	}
	if err := h.community.DeleteComment(r.Context(), me, r.PathValue("id")); err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

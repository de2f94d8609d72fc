package handler

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/sakif/drink-journal/internal/apperror"
	"github.com/sakif/drink-journal/internal/service"
)

// NotificationHandler serves the caller's notification inbox.
type NotificationHandler struct {
	notifications *service.NotificationService
	logger        *slog.Logger
}

// NewNotificationHandler creates a new NotificationHandler.
func NewNotificationHandler(notifications *service.NotificationService, logger *slog.Logger) *NotificationHandler {
	return &NotificationHandler{notifications: notifications, logger: logger}
}

// CountResponse carries a single counter.
type CountResponse struct {
	Count int `json:"count"`
}

// HandleList returns the newest notifications, optionally unread only.
//
// HTTP: GET /api/notifications?unread=true&limit=20
func (h *NotificationHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	me, ok := userID(w, r, h.logger)
	if !ok {
		return
	}
	q := r.URL.Query()
	unread := false
	if v := q.Get("unread"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			writeError(w, r, h.logger, apperror.ValidationFailed("unread", "must be true or false"))
			return
		}
		unread = b
	}
	limit, err := intParam(q, "limit")
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	list, err := h.notifications.List(r.Context(), me, unread, limit)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

// HTTP: GET /api/notifications/unread-count
func (h *NotificationHandler) HandleUnreadCount(w http.ResponseWriter, r *http.Request) {
	me, ok := userID(w, r, h.logger)
	if !ok {
		return
	}
	n, err := h.notifications.UnreadCount(r.Context(), me)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, CountResponse{Count: n})
}

// HTTP: POST /api/notifications/{id}/read
func (h *NotificationHandler) HandleMarkRead(w http.ResponseWriter, r *http.Request) {
	me, ok := userID(w, r, h.logger)
	if !ok {
		return
	}
	if err := h.notifications.MarkRead(r.Context(), me, r.PathValue("id")); err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// HandleMarkAllRead returns how many notifications changed.
//
// HTTP: POST /api/notifications/read-all
func (h *NotificationHandler) HandleMarkAllRead(w http.ResponseWriter, r *http.Request) {
	me, ok := userID(w, r, h.logger)
	if !ok {
		return
	}
	n, err := h.notifications.MarkAllRead(r.Context(), me)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, CountResponse{Count: n})
}

// HTTP: DELETE /api/notifications/{id}
func (h *NotificationHandler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	me, ok := userID(w, r, h.logger)
	if !ok {
		return
	}
	if err := h.notifications.Delete(r.Context(), me, r.PathValue("id")); err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

package handler

import (
	"log/slog"
	"net/http"

	"github.com/sakif/drink-journal/internal/service"
)

// ChatHandler serves direct messages between mutual followers.
type ChatHandler struct {
	chat   *service.ChatService
	logger *slog.Logger
}

// NewChatHandler creates a new ChatHandler.
func NewChatHandler(chat *service.ChatService, logger *slog.Logger) *ChatHandler {
	return &ChatHandler{chat: chat, logger: logger}
}

type startConversationRequest struct {
	UserID string `json:"userId"`
}

// HTTP: GET /api/chat/conversations
func (h *ChatHandler) HandleListConversations(w http.ResponseWriter, r *http.Request) {
	me, ok := userID(w, r, h.logger)
	if !ok {
		return
	}
	list, err := h.chat.ListConversations(r.Context(), me)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

// HandleStartConversation returns the conversation with another user,
// creating it on first contact (201). Both users must follow each other.
//
// HTTP: POST /api/chat/conversations
// REQUEST BODY: {"userId": "cq3..."}
func (h *ChatHandler) HandleStartConversation(w http.ResponseWriter, r *http.Request) {
	me, ok := userID(w, r, h.logger)
	if !ok {
		return
	}
	var req startConversationRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	conv, created, err := h.chat.GetOrCreateConversation(r.Context(), me, req.UserID)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	writeJSON(w, status, conv)
}

// HandleListMessages returns messages oldest first. With after set, only
// messages strictly newer than that instant are returned, which is what a
// polling client wants.
//
// HTTP: GET /api/chat/conversations/{id}/messages?after=2026-01-02T15:04:05.999Z
func (h *ChatHandler) HandleListMessages(w http.ResponseWriter, r *http.Request) {
	me, ok := userID(w, r, h.logger)
	if !ok {
		return
	}
	after, err := timeParam(r.URL.Query(), "after", false)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	msgs, err := h.chat.ListMessages(r.Context(), me, r.PathValue("id"), after)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, msgs)
}

// HTTP: POST /api/chat/conversations/{id}/messages
// REQUEST BODY: {"content": "Fancy a pint?"}
func (h *ChatHandler) HandleSendMessage(w http.ResponseWriter, r *http.Request) {
	me, ok := userID(w, r, h.logger)
	if !ok {
		return
	}
	var in service.MessageInput
	if err := decodeJSON(w, r, &in); err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	msg, err := h.chat.SendMessage(r.Context(), me, r.PathValue("id"), in)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, msg)
}

// HTTP: POST /api/chat/conversations/{id}/read
func (h *ChatHandler) HandleMarkRead(w http.ResponseWriter, r *http.Request) {
	me, ok := userID(w, r, h.logger)
	if !ok {
		return
	}
	if err := h.chat.MarkRead(r.Context(), me, r.PathValue("id")); err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// HTTP: GET /api/chat/unread-count
func (h *ChatHandler) HandleUnreadCount(w http.ResponseWriter, r *http.Request) {
	me, ok := userID(w, r, h.logger)
	if !ok {
		return
	}
	n, err := h.chat.TotalUnread(r.Context(), me)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, CountResponse{Count: n})
}

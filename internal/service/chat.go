package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/sakif/drink-journal/internal/apperror"
	"github.com/sakif/drink-journal/internal/model"
	"github.com/sakif/drink-journal/internal/repository"
	"github.com/sakif/drink-journal/internal/validation"
)

// MessageInput is the body of a chat message.
type MessageInput struct {
	Content string `json:"content" validate:"required,max=2000"`
}

// ChatService runs direct messages between mutual followers.
//
// A conversation is opened only when both users follow each other with
// accepted edges. Once it exists, either participant may keep writing to it.
// Unread counts come from each participant's last-read watermark.
type ChatService struct {
	store    repository.Store
	validate *validation.Validator
	logger   *slog.Logger
	now      func() time.Time
}

func NewChatService(store repository.Store, v *validation.Validator, logger *slog.Logger) *ChatService {
	return &ChatService{store: store, validate: v, logger: logger, now: time.Now}
}

// GetOrCreateConversation returns the conversation between me and otherID,
// opening it on first use. The bool reports whether it was created now.
func (s *ChatService) GetOrCreateConversation(ctx context.Context, me, otherID string) (*model.ConversationSummary, bool, error) {
	if me == otherID {
		return nil, false, apperror.ValidationFailed("userId", "you cannot message yourself")
	}
	if _, err := s.store.GetUserByID(ctx, otherID); err != nil {
		return nil, false, err
	}

	mutual, err := isMutual(ctx, s.store, me, otherID)
	if err != nil {
		logStoreError(s.logger, "failed to check mutual follow", err)
		return nil, false, fmt.Errorf("opening conversation: %w", err)
	}
	if !mutual {
		return nil, false, apperror.Forbidden("you can only message users who follow you back")
	}

	conv, created, err := s.store.GetOrCreateConversation(ctx, me, otherID)
	if err != nil {
		logStoreError(s.logger, "failed to open conversation", err, slog.String("user_id", me))
		return nil, false, fmt.Errorf("opening conversation: %w", err)
	}
	if created {
		s.logger.Info("conversation created", slog.String("id", conv.ID))
	}

	summary, err := s.summarize(ctx, me, *conv)
	if err != nil {
		return nil, false, err
	}
	return summary, created, nil
}

// ListConversations is the inbox, most recently active first.
func (s *ChatService) ListConversations(ctx context.Context, me string) ([]model.ConversationSummary, error) {
	convs, err := s.store.ListConversationsForUser(ctx, me)
	if err != nil {
		logStoreError(s.logger, "failed to list conversations", err, slog.String("user_id", me))
		return nil, fmt.Errorf("listing conversations: %w", err)
	}

	out := make([]model.ConversationSummary, 0, len(convs))
	for _, c := range convs {
		summary, err := s.summarize(ctx, me, c)
		if err != nil {
			return nil, err
		}
		out = append(out, *summary)
	}
	return out, nil
}

func (s *ChatService) summarize(ctx context.Context, me string, c model.Conversation) (*model.ConversationSummary, error) {
	other, err := s.store.OtherParticipant(ctx, c.ID, me)
	if err != nil {
		logStoreError(s.logger, "failed to load participant", err, slog.String("conversation_id", c.ID))
		return nil, fmt.Errorf("summarizing conversation: %w", err)
	}
	last, err := s.store.LastMessage(ctx, c.ID)
	if err != nil {
		logStoreError(s.logger, "failed to load last message", err, slog.String("conversation_id", c.ID))
		return nil, fmt.Errorf("summarizing conversation: %w", err)
	}
	unread, err := s.unread(ctx, c.ID, me)
	if err != nil {
		return nil, err
	}
	return &model.ConversationSummary{
		ID:          c.ID,
		Other:       *other,
		LastMessage: last,
		UnreadCount: unread,
		UpdatedAt:   c.UpdatedAt,
	}, nil
}

func (s *ChatService) unread(ctx context.Context, conversationID, me string) (int, error) {
	p, err := s.store.GetParticipant(ctx, conversationID, me)
	if err != nil {
		logStoreError(s.logger, "failed to load participant", err, slog.String("conversation_id", conversationID))
		return 0, fmt.Errorf("counting unread: %w", err)
	}
	n, err := s.store.CountUnread(ctx, conversationID, me, p.LastReadAt)
	if err != nil {
		logStoreError(s.logger, "failed to count unread", err, slog.String("conversation_id", conversationID))
		return 0, fmt.Errorf("counting unread: %w", err)
	}
	return n, nil
}

// SendMessage appends a message from me.
func (s *ChatService) SendMessage(ctx context.Context, me, conversationID string, in MessageInput) (*model.Message, error) {
	in.Content = strings.TrimSpace(in.Content)
	if err := s.validate.Validate(in); err != nil {
		return nil, err
	}
	if err := s.requireParticipant(ctx, conversationID, me); err != nil {
		return nil, err
	}

	msg := &model.Message{ConversationID: conversationID, SenderID: me, Content: in.Content}
	if err := s.store.CreateMessage(ctx, msg); err != nil {
		logStoreError(s.logger, "failed to send message", err, slog.String("conversation_id", conversationID))
		return nil, fmt.Errorf("sending message: %w", err)
	}
	return msg, nil
}

// ListMessages returns messages oldest first. With after set, only messages
// strictly newer than it are returned, which is what a polling client asks for.
func (s *ChatService) ListMessages(ctx context.Context, me, conversationID string, after *time.Time) ([]model.Message, error) {
	if err := s.requireParticipant(ctx, conversationID, me); err != nil {
		return nil, err
	}
	msgs, err := s.store.ListMessages(ctx, conversationID, after, MessagePageLimit)
	if err != nil {
		logStoreError(s.logger, "failed to list messages", err, slog.String("conversation_id", conversationID))
		return nil, fmt.Errorf("listing messages: %w", err)
	}
	return msgs, nil
}

// MarkRead moves my watermark in the conversation to now.
func (s *ChatService) MarkRead(ctx context.Context, me, conversationID string) error {
	if err := s.requireParticipant(ctx, conversationID, me); err != nil {
		return err
	}
	if err := s.store.MarkRead(ctx, conversationID, me, s.now()); err != nil {
		logStoreError(s.logger, "failed to mark conversation read", err, slog.String("conversation_id", conversationID))
		return fmt.Errorf("marking conversation read: %w", err)
	}
	return nil
}

// TotalUnread sums unread messages over all of my conversations.
func (s *ChatService) TotalUnread(ctx context.Context, me string) (int, error) {
	convs, err := s.store.ListConversationsForUser(ctx, me)
	if err != nil {
		logStoreError(s.logger, "failed to list conversations", err, slog.String("user_id", me))
		return 0, fmt.Errorf("counting unread: %w", err)
	}
	total := 0
	for _, c := range convs {
		n, err := s.unread(ctx, c.ID, me)
		if err != nil {
			return 0, err
		}
		total += n
	}
	return total, nil
}

// requireParticipant tells an unknown conversation (404) from one that
// exists but does not include me (403).
func (s *ChatService) requireParticipant(ctx context.Context, conversationID, me string) error {
	_, err := s.store.GetParticipant(ctx, conversationID, me)
	if err == nil {
		return nil
	}
	if !errors.Is(err, apperror.ErrNotFound) {
		logStoreError(s.logger, "failed to load participant", err, slog.String("conversation_id", conversationID))
		return fmt.Errorf("checking participant: %w", err)
	}

	exists, err := s.store.ConversationExists(ctx, conversationID)
	if err != nil {
		logStoreError(s.logger, "failed to check conversation", err, slog.String("conversation_id", conversationID))
		return fmt.Errorf("checking conversation: %w", err)
	}
	if !exists {
		return apperror.NotFound("conversation", conversationID)
	}
	return apperror.Forbidden("you are not part of this conversation")
}

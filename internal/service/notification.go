package service

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/sakif/drink-journal/internal/model"
	"github.com/sakif/drink-journal/internal/repository"
)

// Notifier records social events for their recipient.
//
// Delivery is best-effort: a failed insert is logged and swallowed, so a
// follow or a comment never fails because its notification could not be
// written. Clients poll for new rows.
type Notifier struct {
	repo   repository.NotificationRepository
	logger *slog.Logger
}

func NewNotifier(repo repository.NotificationRepository, logger *slog.Logger) *Notifier {
	return &Notifier{repo: repo, logger: logger}
}

// Event describes one notification. DrinkID and CircleID are optional.
type Event struct {
	UserID   string
	Type     model.NotificationType
	ActorID  string
	DrinkID  string
	CircleID string
}

// Notify writes ev unless the actor is notifying themselves.
func (n *Notifier) Notify(ctx context.Context, ev Event) {
	if ev.UserID == "" || ev.UserID == ev.ActorID {
		return
	}

	row := &model.Notification{
		UserID:  ev.UserID,
		Type:    ev.Type,
		ActorID: ev.ActorID,
	}
	if ev.DrinkID != "" {
		row.DrinkID = &ev.DrinkID
	}
	if ev.CircleID != "" {
		row.CircleID = &ev.CircleID
	}

	if err := n.repo.CreateNotification(ctx, row); err != nil {
		n.logger.Error("failed to create notification",
			slog.String("type", string(ev.Type)),
			slog.String("user_id", ev.UserID),
			slog.String("actor_id", ev.ActorID),
			slog.String("error", err.Error()),
		)
	}
}

// NotificationService is the recipient's side: the polled inbox.
type NotificationService struct {
	repo   repository.NotificationRepository
	logger *slog.Logger
}

func NewNotificationService(repo repository.NotificationRepository, logger *slog.Logger) *NotificationService {
	return &NotificationService{repo: repo, logger: logger}
}

// List returns the newest notifications first, at most MaxNotifications.
func (s *NotificationService) List(ctx context.Context, userID string, unreadOnly bool, limit int) ([]model.Notification, error) {
	limit = clampLimit(limit, MaxNotifications, MaxNotifications)
	list, err := s.repo.ListNotifications(ctx, userID, unreadOnly, limit)
	if err != nil {
		logStoreError(s.logger, "failed to list notifications", err, slog.String("user_id", userID))
		return nil, fmt.Errorf("listing notifications: %w", err)
	}
	return list, nil
}

func (s *NotificationService) UnreadCount(ctx context.Context, userID string) (int, error) {
	n, err := s.repo.CountUnreadNotifications(ctx, userID)
	if err != nil {
		logStoreError(s.logger, "failed to count notifications", err, slog.String("user_id", userID))
		return 0, fmt.Errorf("counting notifications: %w", err)
	}
	return n, nil
}

// MarkRead marks one of userID's notifications read. Someone else's
// notification is not found.
func (s *NotificationService) MarkRead(ctx context.Context, userID, id string) error {
	if err := s.repo.MarkNotificationRead(ctx, userID, id); err != nil {
		logStoreError(s.logger, "failed to mark notification read", err, slog.String("id", id))
		return err
	}
	return nil
}

// MarkAllRead returns the number of notifications that changed.
func (s *NotificationService) MarkAllRead(ctx context.Context, userID string) (int, error) {
	n, err := s.repo.MarkAllNotificationsRead(ctx, userID)
	if err != nil {
		logStoreError(s.logger, "failed to mark notifications read", err, slog.String("user_id", userID))
		return 0, fmt.Errorf("marking notifications read: %w", err)
	}
	return n, nil
}

func (s *NotificationService) Delete(ctx context.Context, userID, id string) error {
	if err := s.repo.DeleteNotification(ctx, userID, id); err != nil {
		logStoreError(s.logger, "failed to delete notification", err, slog.String("id", id))
		return err
	}
	return nil
}

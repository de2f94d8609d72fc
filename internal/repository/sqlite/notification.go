package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/rs/xid"
	"github.com/sakif/drink-journal/internal/apperror"
	"github.com/sakif/drink-journal/internal/model"
	"github.com/sakif/drink-journal/internal/repository"
)

var _ repository.NotificationRepository = (*DB)(nil)

// CreateNotification inserts one event row for n.UserID.
func (db *DB) CreateNotification(ctx context.Context, n *model.Notification) error {
	n.ID = xid.New().String()
	n.CreatedAt = now()
	n.Read = false

	_, err := db.conn.ExecContext(ctx,
		`INSERT INTO notifications (id, user_id, type, actor_id, drink_id, circle_id, read, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, 0, ?)`,
		n.ID, n.UserID, n.Type, n.ActorID, nullableString(n.DrinkID), nullableString(n.CircleID), n.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("sqlite: creating notification: %w", err)
	}
	return nil
}

// ListNotifications returns a user's notifications newest first, joined
// with the actor's summary.
func (db *DB) ListNotifications(ctx context.Context, userID string, unreadOnly bool, limit int) ([]model.Notification, error) {
	if limit <= 0 {
		limit = 50
	}
	query := `
		SELECT a.id, a.display_name, a.username, a.avatar_url,
		       n.id, n.user_id, n.type, n.actor_id, n.drink_id, n.circle_id, n.read, n.created_at
		FROM notifications n JOIN users a ON a.id = n.actor_id
		WHERE n.user_id = ?`
	if unreadOnly {
		query += ` AND n.read = 0`
	}
	query += ` ORDER BY n.created_at DESC, n.id DESC LIMIT ?`

	rows, err := db.conn.QueryContext(ctx, query, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("sqlite: listing notifications: %w", err)
	}
	defer rows.Close()

	list := make([]model.Notification, 0)
	for rows.Next() {
		var (
			n        model.Notification
			drinkID  sql.NullString
			circleID sql.NullString
		)
		n.Actor, err = scanUserSummary(rows,
			&n.ID, &n.UserID, &n.Type, &n.ActorID, &drinkID, &circleID, &n.Read, &n.CreatedAt)
		if err != nil {
			return nil, fmt.Errorf("sqlite: scanning notification row: %w", err)
		}
		if drinkID.Valid {
			n.DrinkID = &drinkID.String
		}
		if circleID.Valid {
			n.CircleID = &circleID.String
		}
		list = append(list, n)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: iterating notifications: %w", err)
	}
	return list, nil
}

func (db *DB) CountUnreadNotifications(ctx context.Context, userID string) (int, error) {
	var n int
	if err := db.conn.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM notifications WHERE user_id = ? AND read = 0`, userID,
	).Scan(&n); err != nil {
		return 0, fmt.Errorf("sqlite: counting unread notifications: %w", err)
	}
	return n, nil
}

// MarkNotificationRead is scoped to the owner. Another user's notification
// looks exactly like a missing one.
func (db *DB) MarkNotificationRead(ctx context.Context, userID, id string) error {
	result, err := db.conn.ExecContext(ctx,
		`UPDATE notifications SET read = 1 WHERE id = ? AND user_id = ?`, id, userID)
	if err != nil {
		return fmt.Errorf("sqlite: marking notification read: %w", err)
	}
	ok, err := rowsAffected(result)
	if err != nil {
		return err
	}
	if !ok {
		return apperror.NotFound("notification", id)
	}
	return nil
}

// MarkAllNotificationsRead returns how many rows changed.
func (db *DB) MarkAllNotificationsRead(ctx context.Context, userID string) (int, error) {
	result, err := db.conn.ExecContext(ctx,
		`UPDATE notifications SET read = 1 WHERE user_id = ? AND read = 0`, userID)
	if err != nil {
		return 0, fmt.Errorf("sqlite: marking all notifications read: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("sqlite: checking rows affected: %w", err)
	}
	return int(n), nil
}

func (db *DB) DeleteNotification(ctx context.Context, userID, id string) error {
	result, err := db.conn.ExecContext(ctx,
		`DELETE FROM notifications WHERE id = ? AND user_id = ?`, id, userID)
	if err != nil {
		return fmt.Errorf("sqlite: deleting notification: %w", err)
	}
	ok, err := rowsAffected(result)
	if err != nil {
		return err
	}
	if !ok {
		return apperror.NotFound("notification", id)
	}
	return nil
}

package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"slices"
	"time"

	"github.com/rs/xid"
	"github.com/sakif/drink-journal/internal/apperror"
	"github.com/sakif/drink-journal/internal/model"
	"github.com/sakif/drink-journal/internal/repository"
)

var _ repository.ChatRepository = (*DB)(nil)

// PairKey is the order-independent key for a two-user conversation.
func PairKey(a, b string) string {
	if a > b {
		a, b = b, a
	}
	return a + ":" + b
}

// GetOrCreateConversation returns the conversation between userA and userB,
// creating it and both participant rows on first use. The bool reports
// whether this call created it.
//
// The INSERT uses ON CONFLICT DO NOTHING against the UNIQUE pair_key, so
// two concurrent callers converge on a single row.
func (db *DB) GetOrCreateConversation(ctx context.Context, userA, userB string) (*model.Conversation, bool, error) {
	key := PairKey(userA, userB)

	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return nil, false, fmt.Errorf("sqlite: beginning conversation tx: %w", err)
	}
	defer tx.Rollback()

	ts := now()
	result, err := tx.ExecContext(ctx,
		`INSERT INTO conversations (id, pair_key, created_at, updated_at)
		 VALUES (?, ?, ?, ?)
		 ON CONFLICT(pair_key) DO NOTHING`,
		xid.New().String(), key, ts, ts,
	)
	if err != nil {
		return nil, false, fmt.Errorf("sqlite: inserting conversation: %w", err)
	}
	created, err := rowsAffected(result)
	if err != nil {
		return nil, false, err
	}

	var c model.Conversation
	if err := tx.QueryRowContext(ctx,
		`SELECT id, pair_key, created_at, updated_at FROM conversations WHERE pair_key = ?`, key,
	).Scan(&c.ID, &c.PairKey, &c.CreatedAt, &c.UpdatedAt); err != nil {
		return nil, false, fmt.Errorf("sqlite: reading conversation: %w", err)
	}

	if created {
		for _, uid := range []string{userA, userB} {
			if _, err := tx.ExecContext(ctx,
				`INSERT INTO conversation_participants (conversation_id, user_id, last_read_at)
				 VALUES (?, ?, ?)`,
				c.ID, uid, ts,
			); err != nil {
				return nil, false, fmt.Errorf("sqlite: adding participant: %w", err)
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, false, fmt.Errorf("sqlite: committing conversation: %w", err)
	}
	return &c, created, nil
}

// GetParticipant returns apperror.ErrNotFound when userID is not part of
// the conversation or the conversation does not exist.
func (db *DB) GetParticipant(ctx context.Context, conversationID, userID string) (*model.Participant, error) {
	var p model.Participant
	err := db.conn.QueryRowContext(ctx,
		`SELECT conversation_id, user_id, last_read_at
		 FROM conversation_participants WHERE conversation_id = ? AND user_id = ?`,
		conversationID, userID,
	).Scan(&p.ConversationID, &p.UserID, &p.LastReadAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, apperror.NotFound("participant", userID)
		}
		return nil, fmt.Errorf("sqlite: getting participant: %w", err)
	}
	return &p, nil
}

// ConversationExists is used to tell "not yours" (403) from "no such
// conversation" (404).
func (db *DB) ConversationExists(ctx context.Context, id string) (bool, error) {
	var n int
	if err := db.conn.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM conversations WHERE id = ?`, id,
	).Scan(&n); err != nil {
		return false, fmt.Errorf("sqlite: checking conversation: %w", err)
	}
	return n > 0, nil
}

// ListConversationsForUser returns conversations userID takes part in,
// most recently active first.
func (db *DB) ListConversationsForUser(ctx context.Context, userID string) ([]model.Conversation, error) {
	rows, err := db.conn.QueryContext(ctx,
		`SELECT c.id, c.pair_key, c.created_at, c.updated_at
		 FROM conversations c
		 JOIN conversation_participants p ON p.conversation_id = c.id
		 WHERE p.user_id = ?
		 ORDER BY c.updated_at DESC, c.id DESC`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("sqlite: listing conversations: %w", err)
	}
	defer rows.Close()

	list := make([]model.Conversation, 0)
	for rows.Next() {
		var c model.Conversation
		if err := rows.Scan(&c.ID, &c.PairKey, &c.CreatedAt, &c.UpdatedAt); err != nil {
			return nil, fmt.Errorf("sqlite: scanning conversation row: %w", err)
		}
		list = append(list, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: iterating conversations: %w", err)
	}
	return list, nil
}

// OtherParticipant returns the summary of the participant who is not userID.
func (db *DB) OtherParticipant(ctx context.Context, conversationID, userID string) (*model.UserSummary, error) {
	s, err := scanUserSummary(db.conn.QueryRowContext(ctx,
		`SELECT u.id, u.display_name, u.username, u.avatar_url
		 FROM conversation_participants p JOIN users u ON u.id = p.user_id
		 WHERE p.conversation_id = ? AND p.user_id != ?
		 LIMIT 1`,
		conversationID, userID,
	))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, apperror.NotFound("conversation", conversationID)
		}
		return nil, fmt.Errorf("sqlite: getting other participant: %w", err)
	}
	return &s, nil
}

// CreateMessage appends a message and bumps the conversation's updated_at
// so the inbox orders by last activity.
func (db *DB) CreateMessage(ctx context.Context, msg *model.Message) error {
	msg.ID = xid.New().String()
	msg.CreatedAt = now()

	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("sqlite: beginning message tx: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO messages (id, conversation_id, sender_id, content, created_at) VALUES (?, ?, ?, ?, ?)`,
		msg.ID, msg.ConversationID, msg.SenderID, msg.Content, msg.CreatedAt,
	); err != nil {
		return fmt.Errorf("sqlite: creating message: %w", err)
	}
	if _, err := tx.ExecContext(ctx,
		`UPDATE conversations SET updated_at = ? WHERE id = ?`, msg.CreatedAt, msg.ConversationID,
	); err != nil {
		return fmt.Errorf("sqlite: touching conversation: %w", err)
	}
	return tx.Commit()
}

// ListMessages returns messages oldest first. Without after it returns the
// newest limit messages of the conversation. With after set, it returns the
// first limit messages strictly newer than it, so a polling client can keep
// paging forward.
func (db *DB) ListMessages(ctx context.Context, conversationID string, after *time.Time, limit int) ([]model.Message, error) {
	if limit <= 0 {
		limit = 100
	}
	query := `SELECT id, conversation_id, sender_id, content, created_at
		FROM messages WHERE conversation_id = ?`
	args := []any{conversationID}
	if after != nil {
		query += ` AND created_at > ? ORDER BY created_at ASC, id ASC LIMIT ?`
		args = append(args, after.UTC(), limit)
	} else {
		query += ` ORDER BY created_at DESC, id DESC LIMIT ?`
		args = append(args, limit)
	}

	rows, err := db.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("sqlite: listing messages: %w", err)
	}
	defer rows.Close()

	list := make([]model.Message, 0)
	for rows.Next() {
		var m model.Message
		if err := rows.Scan(&m.ID, &m.ConversationID, &m.SenderID, &m.Content, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("sqlite: scanning message row: %w", err)
		}
		list = append(list, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: iterating messages: %w", err)
	}
	if after == nil {
		slices.Reverse(list)
	}
	return list, nil
}

// LastMessage returns nil, nil for an empty conversation.
func (db *DB) LastMessage(ctx context.Context, conversationID string) (*model.Message, error) {
	var m model.Message
	err := db.conn.QueryRowContext(ctx,
		`SELECT id, conversation_id, sender_id, content, created_at
		 FROM messages WHERE conversation_id = ?
		 ORDER BY created_at DESC, id DESC LIMIT 1`,
		conversationID,
	).Scan(&m.ID, &m.ConversationID, &m.SenderID, &m.Content, &m.CreatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("sqlite: getting last message: %w", err)
	}
	return &m, nil
}

// CountUnread counts messages from the other side created at or after since.
func (db *DB) CountUnread(ctx context.Context, conversationID, userID string, since time.Time) (int, error) {
	var n int
	if err := db.conn.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM messages
		 WHERE conversation_id = ? AND sender_id != ? AND created_at >= ?`,
		conversationID, userID, since.UTC(),
	).Scan(&n); err != nil {
		return 0, fmt.Errorf("sqlite: counting unread messages: %w", err)
	}
	return n, nil
}

func (db *DB) MarkRead(ctx context.Context, conversationID, userID string, at time.Time) error {
	result, err := db.conn.ExecContext(ctx,
		`UPDATE conversation_participants SET last_read_at = ?
		 WHERE conversation_id = ? AND user_id = ?`,
		at.UTC(), conversationID, userID,
	)
	if err != nil {
		return fmt.Errorf("sqlite: marking conversation read: %w", err)
	}
	ok, err := rowsAffected(result)
	if err != nil {
		return err
	}
	if !ok {
		return apperror.NotFound("participant", userID)
	}
	return nil
}

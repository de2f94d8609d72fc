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

var _ repository.CommentRepository = (*DB)(nil)

const commentSelect = `
	SELECT u.id, u.display_name, u.username, u.avatar_url,
	       c.id, c.drink_id, c.user_id, c.content, c.created_at
	FROM comments c JOIN users u ON u.id = c.user_id`

func scanComment(row rowScanner) (*model.Comment, error) {
	var c model.Comment
	user, err := scanUserSummary(row, &c.ID, &c.DrinkID, &c.UserID, &c.Content, &c.CreatedAt)
	if err != nil {
		return nil, err
	}
	c.User = user
	return &c, nil
}

// CreateComment inserts a comment. The author summary is not filled in;
// the service attaches it.
func (db *DB) CreateComment(ctx context.Context, c *model.Comment) error {
	c.ID = xid.New().String()
	c.CreatedAt = now()

	_, err := db.conn.ExecContext(ctx,
		`INSERT INTO comments (id, drink_id, user_id, content, created_at) VALUES (?, ?, ?, ?, ?)`,
		c.ID, c.DrinkID, c.UserID, c.Content, c.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("sqlite: creating comment: %w", err)
	}
	return nil
}

func (db *DB) GetComment(ctx context.Context, id string) (*model.Comment, error) {
	c, err := scanComment(db.conn.QueryRowContext(ctx, commentSelect+` WHERE c.id = ?`, id))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, apperror.NotFound("comment", id)
		}
		return nil, fmt.Errorf("sqlite: getting comment %s: %w", id, err)
	}
	return c, nil
}

// ListComments returns a drink's comments oldest first.
func (db *DB) ListComments(ctx context.Context, drinkID string) ([]model.Comment, error) {
	rows, err := db.conn.QueryContext(ctx,
		commentSelect+` WHERE c.drink_id = ? ORDER BY c.created_at ASC, c.id ASC`, drinkID)
	if err != nil {
		return nil, fmt.Errorf("sqlite: listing comments: %w", err)
	}
	defer rows.Close()

	comments := make([]model.Comment, 0)
	for rows.Next() {
		c, err := scanComment(rows)
		if err != nil {
			return nil, fmt.Errorf("sqlite: scanning comment row: %w", err)
		}
		comments = append(comments, *c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: iterating comments: %w", err)
	}
	return comments, nil
}

func (db *DB) DeleteComment(ctx context.Context, id string) error {
	result, err := db.conn.ExecContext(ctx, `DELETE FROM comments WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("sqlite: deleting comment %s: %w", id, err)
	}
	ok, err := rowsAffected(result)
	if err != nil {
		return err
	}
	if !ok {
		return apperror.NotFound("comment", id)
	}
	return nil
}

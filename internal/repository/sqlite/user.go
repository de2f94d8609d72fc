package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/xid"
	"github.com/sakif/drink-journal/internal/apperror"
	"github.com/sakif/drink-journal/internal/model"
	"github.com/sakif/drink-journal/internal/repository"
)

var _ repository.UserRepository = (*DB)(nil)

const userColumns = `id, auth_id, email, display_name, username, bio, location, avatar_url, theme, created_at, updated_at`

// rowScanner is satisfied by both *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanUser(row rowScanner) (*model.User, error) {
	var (
		u        model.User
		username sql.NullString
	)
	if err := row.Scan(
		&u.ID, &u.AuthID, &u.Email, &u.DisplayName, &username,
		&u.Bio, &u.Location, &u.AvatarURL, &u.Theme, &u.CreatedAt, &u.UpdatedAt,
	); err != nil {
		return nil, err
	}
	if username.Valid {
		u.Username = &username.String
	}
	return &u, nil
}

// nullableString maps a nil or empty *string to SQL NULL.
func nullableString(s *string) any {
	if s == nil || *s == "" {
		return nil
	}
	return *s
}

// GetOrCreateByAuthID looks a user up by identity provider subject and
// inserts one from template when none exists.
//
// Two first requests from the same new user can race. The loser's INSERT
// hits the UNIQUE auth_id index, and we answer it with the winner's row.
func (db *DB) GetOrCreateByAuthID(ctx context.Context, template *model.User) (*model.User, error) {
	existing, err := db.getUserByAuthID(ctx, template.AuthID)
	if err == nil {
		return existing, nil
	}
	if !errors.Is(err, apperror.ErrNotFound) {
		return nil, err
	}

	u := *template
	u.ID = xid.New().String()
	if u.Theme == "" {
		u.Theme = model.ThemeSystem
	}
	ts := now()
	u.CreatedAt = ts
	u.UpdatedAt = ts

	_, err = db.conn.ExecContext(ctx,
		`INSERT INTO users (`+userColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		u.ID, u.AuthID, u.Email, u.DisplayName, nullableString(u.Username),
		u.Bio, u.Location, u.AvatarURL, u.Theme, u.CreatedAt, u.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return db.getUserByAuthID(ctx, template.AuthID)
		}
		return nil, fmt.Errorf("sqlite: inserting user (authID=%s): %w", u.AuthID, err)
	}

	return &u, nil
}

func (db *DB) getUserByAuthID(ctx context.Context, authID string) (*model.User, error) {
	u, err := scanUser(db.conn.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE auth_id = ?`, authID))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, apperror.NotFound("user", authID)
		}
		return nil, fmt.Errorf("sqlite: getting user by auth id: %w", err)
	}
	return u, nil
}

// GetUserByID retrieves a user by their internal ID.
// Returns apperror.ErrNotFound if no user exists with that ID.
func (db *DB) GetUserByID(ctx context.Context, id string) (*model.User, error) {
	u, err := scanUser(db.conn.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE id = ?`, id))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, apperror.NotFound("user", id)
		}
		return nil, fmt.Errorf("sqlite: getting user %s: %w", id, err)
	}
	return u, nil
}

// UpdateUser writes the editable profile fields.
// A taken username surfaces as apperror.ErrConflict.
func (db *DB) UpdateUser(ctx context.Context, user *model.User) error {
	user.UpdatedAt = now()

	result, err := db.conn.ExecContext(ctx,
		`UPDATE users
		 SET email = ?, display_name = ?, username = ?, bio = ?, location = ?,
		     avatar_url = ?, theme = ?, updated_at = ?
		 WHERE id = ?`,
		user.Email, user.DisplayName, nullableString(user.Username), user.Bio, user.Location,
		user.AvatarURL, user.Theme, user.UpdatedAt, user.ID,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return apperror.Conflict("username", "already taken")
		}
		return fmt.Errorf("sqlite: updating user %s: %w", user.ID, err)
	}

	ok, err := rowsAffected(result)
	if err != nil {
		return err
	}
	if !ok {
		return apperror.NotFound("user", user.ID)
	}
	return nil
}

// SearchUsers matches query as a substring of username or display name.
func (db *DB) SearchUsers(ctx context.Context, query, excludeID string, limit int) ([]model.UserSummary, error) {
	if limit <= 0 {
		limit = 20
	}
	pattern := likePattern(query)

	rows, err := db.conn.QueryContext(ctx,
		`SELECT id, display_name, username, avatar_url
		 FROM users
		 WHERE id != ?
		   AND (username LIKE ? ESCAPE '\' OR display_name LIKE ? ESCAPE '\')
		 ORDER BY display_name COLLATE NOCASE, id
		 LIMIT ?`,
		excludeID, pattern, pattern, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("sqlite: searching users: %w", err)
	}
	defer rows.Close()

	users := make([]model.UserSummary, 0)
	for rows.Next() {
		s, err := scanUserSummary(rows)
		if err != nil {
			return nil, fmt.Errorf("sqlite: scanning user row: %w", err)
		}
		users = append(users, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: iterating users: %w", err)
	}
	return users, nil
}

// scanUserSummary reads (id, display_name, username, avatar_url).
func scanUserSummary(row rowScanner, extra ...any) (model.UserSummary, error) {
	var (
		s        model.UserSummary
		username sql.NullString
	)
	dest := append([]any{&s.ID, &s.DisplayName, &username, &s.AvatarURL}, extra...)
	if err := row.Scan(dest...); err != nil {
		return s, err
	}
	if username.Valid {
		s.Username = &username.String
	}
	return s, nil
}

// likePattern wraps s in % wildcards, escaping LIKE metacharacters so user
// input is matched literally.
func likePattern(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return "%" + r.Replace(s) + "%"
}

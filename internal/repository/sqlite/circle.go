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

var _ repository.CircleRepository = (*DB)(nil)

const circleSelect = `
	SELECT c.id, c.name, c.description, c.is_private, c.owner_id, c.created_at,
	       (SELECT COUNT(*) FROM circle_members m WHERE m.circle_id = c.id)
	FROM circles c`

func scanCircle(row rowScanner) (*model.Circle, error) {
	var c model.Circle
	if err := row.Scan(&c.ID, &c.Name, &c.Description, &c.IsPrivate, &c.OwnerID, &c.CreatedAt, &c.MemberCount); err != nil {
		return nil, err
	}
	return &c, nil
}

func (db *DB) queryCircles(ctx context.Context, query string, args ...any) ([]model.Circle, error) {
	rows, err := db.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("sqlite: listing circles: %w", err)
	}
	defer rows.Close()

	list := make([]model.Circle, 0)
	for rows.Next() {
		c, err := scanCircle(rows)
		if err != nil {
			return nil, fmt.Errorf("sqlite: scanning circle row: %w", err)
		}
		list = append(list, *c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: iterating circles: %w", err)
	}
	return list, nil
}

// CreateCircle inserts the circle and its owner's admin membership in one
// transaction.
func (db *DB) CreateCircle(ctx context.Context, c *model.Circle) error {
	c.ID = xid.New().String()
	c.CreatedAt = now()

	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("sqlite: beginning circle tx: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO circles (id, name, description, is_private, owner_id, created_at) VALUES (?, ?, ?, ?, ?, ?)`,
		c.ID, c.Name, c.Description, c.IsPrivate, c.OwnerID, c.CreatedAt,
	); err != nil {
		return fmt.Errorf("sqlite: creating circle: %w", err)
	}
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO circle_members (circle_id, user_id, role, joined_at) VALUES (?, ?, ?, ?)`,
		c.ID, c.OwnerID, model.RoleAdmin, c.CreatedAt,
	); err != nil {
		return fmt.Errorf("sqlite: adding circle owner: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("sqlite: committing circle: %w", err)
	}

	c.MemberCount = 1
	return nil
}

func (db *DB) GetCircle(ctx context.Context, id string) (*model.Circle, error) {
	c, err := scanCircle(db.conn.QueryRowContext(ctx, circleSelect+` WHERE c.id = ?`, id))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, apperror.NotFound("circle", id)
		}
		return nil, fmt.Errorf("sqlite: getting circle %s: %w", id, err)
	}
	return c, nil
}

// DeleteCircle removes the circle; members, invites and posts cascade.
func (db *DB) DeleteCircle(ctx context.Context, id string) error {
	result, err := db.conn.ExecContext(ctx, `DELETE FROM circles WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("sqlite: deleting circle %s: %w", id, err)
	}
	ok, err := rowsAffected(result)
	if err != nil {
		return err
	}
	if !ok {
		return apperror.NotFound("circle", id)
	}
	return nil
}

func (db *DB) ListCirclesForUser(ctx context.Context, userID string) ([]model.Circle, error) {
	return db.queryCircles(ctx,
		circleSelect+`
		JOIN circle_members me ON me.circle_id = c.id AND me.user_id = ?
		ORDER BY c.created_at DESC, c.id DESC`,
		userID,
	)
}

func (db *DB) ListPublicCircles(ctx context.Context, limit int) ([]model.Circle, error) {
	if limit <= 0 {
		limit = 50
	}
	return db.queryCircles(ctx,
		circleSelect+` WHERE c.is_private = 0 ORDER BY c.created_at DESC, c.id DESC LIMIT ?`,
		limit,
	)
}

// AddMember returns apperror.ErrConflict when userID is already a member.
func (db *DB) AddMember(ctx context.Context, circleID, userID string, role model.CircleRole) error {
	_, err := db.conn.ExecContext(ctx,
		`INSERT INTO circle_members (circle_id, user_id, role, joined_at) VALUES (?, ?, ?, ?)`,
		circleID, userID, role, now(),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return apperror.Conflict("circle member", "already a member")
		}
		return fmt.Errorf("sqlite: adding circle member: %w", err)
	}
	return nil
}

// GetMemberRole returns apperror.ErrNotFound for non-members.
func (db *DB) GetMemberRole(ctx context.Context, circleID, userID string) (model.CircleRole, error) {
	var role model.CircleRole
	err := db.conn.QueryRowContext(ctx,
		`SELECT role FROM circle_members WHERE circle_id = ? AND user_id = ?`, circleID, userID,
	).Scan(&role)
	if err != nil {
		if err == sql.ErrNoRows {
			return "", apperror.NotFound("circle member", userID)
		}
		return "", fmt.Errorf("sqlite: getting member role: %w", err)
	}
	return role, nil
}

func (db *DB) RemoveMember(ctx context.Context, circleID, userID string) (bool, error) {
	result, err := db.conn.ExecContext(ctx,
		`DELETE FROM circle_members WHERE circle_id = ? AND user_id = ?`, circleID, userID)
	if err != nil {
		return false, fmt.Errorf("sqlite: removing circle member: %w", err)
	}
	return rowsAffected(result)
}

// ListMembers orders admins first, then by join time.
func (db *DB) ListMembers(ctx context.Context, circleID string) ([]model.CircleMember, error) {
	rows, err := db.conn.QueryContext(ctx,
		`SELECT u.id, u.display_name, u.username, u.avatar_url, m.circle_id, m.role, m.joined_at
		 FROM circle_members m JOIN users u ON u.id = m.user_id
		 WHERE m.circle_id = ?
		 ORDER BY CASE m.role WHEN 'admin' THEN 0 ELSE 1 END, m.joined_at ASC, u.id ASC`,
		circleID,
	)
	if err != nil {
		return nil, fmt.Errorf("sqlite: listing circle members: %w", err)
	}
	defer rows.Close()

	members := make([]model.CircleMember, 0)
	for rows.Next() {
		var m model.CircleMember
		m.User, err = scanUserSummary(rows, &m.CircleID, &m.Role, &m.JoinedAt)
		if err != nil {
			return nil, fmt.Errorf("sqlite: scanning circle member row: %w", err)
		}
		members = append(members, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: iterating circle members: %w", err)
	}
	return members, nil
}

const inviteColumns = `i.id, i.circle_id, i.inviter_id, i.invitee_id, i.status, i.created_at`

func scanInvite(row rowScanner, extra ...any) (*model.CircleInvite, error) {
	var inv model.CircleInvite
	dest := append([]any{&inv.ID, &inv.CircleID, &inv.InviterID, &inv.InviteeID, &inv.Status, &inv.CreatedAt}, extra...)
	if err := row.Scan(dest...); err != nil {
		return nil, err
	}
	return &inv, nil
}

func (db *DB) CreateInvite(ctx context.Context, inv *model.CircleInvite) error {
	inv.ID = xid.New().String()
	inv.Status = model.InvitePending
	inv.CreatedAt = now()

	_, err := db.conn.ExecContext(ctx,
		`INSERT INTO circle_invites (id, circle_id, inviter_id, invitee_id, status, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		inv.ID, inv.CircleID, inv.InviterID, inv.InviteeID, inv.Status, inv.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("sqlite: creating circle invite: %w", err)
	}
	return nil
}

func (db *DB) GetInvite(ctx context.Context, id string) (*model.CircleInvite, error) {
	inv, err := scanInvite(db.conn.QueryRowContext(ctx,
		`SELECT `+inviteColumns+` FROM circle_invites i WHERE i.id = ?`, id))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, apperror.NotFound("circle invite", id)
		}
		return nil, fmt.Errorf("sqlite: getting circle invite %s: %w", id, err)
	}
	return inv, nil
}

// FindPendingInvite returns apperror.ErrNotFound when there is no pending
// invite for inviteeID in the circle.
func (db *DB) FindPendingInvite(ctx context.Context, circleID, inviteeID string) (*model.CircleInvite, error) {
	inv, err := scanInvite(db.conn.QueryRowContext(ctx,
		`SELECT `+inviteColumns+` FROM circle_invites i
		 WHERE i.circle_id = ? AND i.invitee_id = ? AND i.status = 'pending'
		 LIMIT 1`,
		circleID, inviteeID,
	))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, apperror.NotFound("circle invite", inviteeID)
		}
		return nil, fmt.Errorf("sqlite: finding pending invite: %w", err)
	}
	return inv, nil
}

func (db *DB) SetInviteStatus(ctx context.Context, id string, status model.InviteStatus) (bool, error) {
	result, err := db.conn.ExecContext(ctx,
		`UPDATE circle_invites SET status = ? WHERE id = ? AND status = 'pending'`, status, id)
	if err != nil {
		return false, fmt.Errorf("sqlite: updating circle invite: %w", err)
	}
	return rowsAffected(result)
}

// AcceptInvite is a no-op for the membership when the invitee already
// belongs to the circle.
func (db *DB) AcceptInvite(ctx context.Context, inv *model.CircleInvite) (bool, error) {
	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("sqlite: beginning invite tx: %w", err)
	}
	defer tx.Rollback()

	result, err := tx.ExecContext(ctx,
		`UPDATE circle_invites SET status = ? WHERE id = ? AND status = 'pending'`,
		model.InviteAccepted, inv.ID)
	if err != nil {
		return false, fmt.Errorf("sqlite: accepting circle invite: %w", err)
	}
	ok, err := rowsAffected(result)
	if err != nil || !ok {
		return false, err
	}

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO circle_members (circle_id, user_id, role, joined_at) VALUES (?, ?, ?, ?)
		 ON CONFLICT (circle_id, user_id) DO NOTHING`,
		inv.CircleID, inv.InviteeID, model.RoleMember, now(),
	); err != nil {
		return false, fmt.Errorf("sqlite: adding invited member: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("sqlite: committing invite: %w", err)
	}
	return true, nil
}

// ListPendingInvites returns the invitee's open invites with the circle
// attached, newest first.
func (db *DB) ListPendingInvites(ctx context.Context, inviteeID string) ([]model.CircleInvite, error) {
	rows, err := db.conn.QueryContext(ctx,
		`SELECT `+inviteColumns+`, c.id, c.name, c.description, c.is_private, c.owner_id, c.created_at
		 FROM circle_invites i JOIN circles c ON c.id = i.circle_id
		 WHERE i.invitee_id = ? AND i.status = 'pending'
		 ORDER BY i.created_at DESC, i.id DESC`,
		inviteeID,
	)
	if err != nil {
		return nil, fmt.Errorf("sqlite: listing circle invites: %w", err)
	}
	defer rows.Close()

	list := make([]model.CircleInvite, 0)
	for rows.Next() {
		var c model.Circle
		inv, err := scanInvite(rows, &c.ID, &c.Name, &c.Description, &c.IsPrivate, &c.OwnerID, &c.CreatedAt)
		if err != nil {
			return nil, fmt.Errorf("sqlite: scanning circle invite row: %w", err)
		}
		inv.Circle = &c
		list = append(list, *inv)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: iterating circle invites: %w", err)
	}
	return list, nil
}

func (db *DB) CreatePost(ctx context.Context, p *model.CirclePost) error {
	p.ID = xid.New().String()
	p.CreatedAt = now()

	_, err := db.conn.ExecContext(ctx,
		`INSERT INTO circle_posts (id, circle_id, user_id, content, drink_id, created_at) VALUES (?, ?, ?, ?, ?, ?)`,
		p.ID, p.CircleID, p.UserID, p.Content, nullableString(p.DrinkID), p.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("sqlite: creating circle post: %w", err)
	}
	return nil
}

// ListPosts returns posts newest first with the author attached. The
// referenced drink, if any, is left for the caller to load.
func (db *DB) ListPosts(ctx context.Context, circleID string, limit int) ([]model.CirclePost, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := db.conn.QueryContext(ctx,
		`SELECT u.id, u.display_name, u.username, u.avatar_url,
		        p.id, p.circle_id, p.user_id, p.content, p.drink_id, p.created_at
		 FROM circle_posts p JOIN users u ON u.id = p.user_id
		 WHERE p.circle_id = ?
		 ORDER BY p.created_at DESC, p.id DESC
		 LIMIT ?`,
		circleID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("sqlite: listing circle posts: %w", err)
	}
	defer rows.Close()

	posts := make([]model.CirclePost, 0)
	for rows.Next() {
		var (
			p       model.CirclePost
			drinkID sql.NullString
		)
		p.User, err = scanUserSummary(rows, &p.ID, &p.CircleID, &p.UserID, &p.Content, &drinkID, &p.CreatedAt)
		if err != nil {
			return nil, fmt.Errorf("sqlite: scanning circle post row: %w", err)
		}
		if drinkID.Valid {
			p.DrinkID = &drinkID.String
		}
		posts = append(posts, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: iterating circle posts: %w", err)
	}
	return posts, nil
}

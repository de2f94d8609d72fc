package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/sakif/drink-journal/internal/apperror"
	"github.com/sakif/drink-journal/internal/model"
	"github.com/sakif/drink-journal/internal/repository"
)

var _ repository.FollowRepository = (*DB)(nil)

// GetFollow returns the directed edge follower->following, or
// apperror.ErrNotFound when there is none.
func (db *DB) GetFollow(ctx context.Context, followerID, followingID string) (*model.Follow, error) {
	var f model.Follow
	err := db.conn.QueryRowContext(ctx,
		`SELECT follower_id, following_id, status, created_at, updated_at
		 FROM follows WHERE follower_id = ? AND following_id = ?`,
		followerID, followingID,
	).Scan(&f.FollowerID, &f.FollowingID, &f.Status, &f.CreatedAt, &f.UpdatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, apperror.NotFound("follow", followerID+"->"+followingID)
		}
		return nil, fmt.Errorf("sqlite: getting follow: %w", err)
	}
	return &f, nil
}

// CreateFollow inserts a new edge. An existing edge in either state is a
// conflict; callers check GetFollow first to tell the two apart.
func (db *DB) CreateFollow(ctx context.Context, followerID, followingID string, status model.FollowStatus) error {
	ts := now()
	_, err := db.conn.ExecContext(ctx,
		`INSERT INTO follows (follower_id, following_id, status, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?)`,
		followerID, followingID, status, ts, ts,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return apperror.Conflict("follow", "edge already exists")
		}
		return fmt.Errorf("sqlite: creating follow: %w", err)
	}
	return nil
}

func (db *DB) AcceptFollow(ctx context.Context, followerID, followingID string) (bool, error) {
	result, err := db.conn.ExecContext(ctx,
		`UPDATE follows SET status = ?, updated_at = ?
		 WHERE follower_id = ? AND following_id = ? AND status = ?`,
		model.FollowAccepted, now(), followerID, followingID, model.FollowPending,
	)
	if err != nil {
		return false, fmt.Errorf("sqlite: accepting follow: %w", err)
	}
	return rowsAffected(result)
}

func (db *DB) DeletePendingFollow(ctx context.Context, followerID, followingID string) (bool, error) {
	result, err := db.conn.ExecContext(ctx,
		`DELETE FROM follows WHERE follower_id = ? AND following_id = ? AND status = ?`,
		followerID, followingID, model.FollowPending,
	)
	if err != nil {
		return false, fmt.Errorf("sqlite: deleting pending follow: %w", err)
	}
	return rowsAffected(result)
}

// DeleteFollow removes the edge whatever its state.
func (db *DB) DeleteFollow(ctx context.Context, followerID, followingID string) (bool, error) {
	result, err := db.conn.ExecContext(ctx,
		`DELETE FROM follows WHERE follower_id = ? AND following_id = ?`,
		followerID, followingID,
	)
	if err != nil {
		return false, fmt.Errorf("sqlite: deleting follow: %w", err)
	}
	return rowsAffected(result)
}

// ListFollowers returns users with an edge pointing at userID in the given
// state, most recent first.
func (db *DB) ListFollowers(ctx context.Context, userID string, status model.FollowStatus) ([]model.FollowEntry, error) {
	return db.listFollowEntries(ctx,
		`SELECT u.id, u.display_name, u.username, u.avatar_url, f.status, f.updated_at
		 FROM follows f JOIN users u ON u.id = f.follower_id
		 WHERE f.following_id = ? AND f.status = ?
		 ORDER BY f.updated_at DESC, u.id DESC`,
		userID, status,
	)
}

// ListFollowing returns users userID has an edge to in the given state.
func (db *DB) ListFollowing(ctx context.Context, userID string, status model.FollowStatus) ([]model.FollowEntry, error) {
	return db.listFollowEntries(ctx,
		`SELECT u.id, u.display_name, u.username, u.avatar_url, f.status, f.updated_at
		 FROM follows f JOIN users u ON u.id = f.following_id
		 WHERE f.follower_id = ? AND f.status = ?
		 ORDER BY f.updated_at DESC, u.id DESC`,
		userID, status,
	)
}

func (db *DB) listFollowEntries(ctx context.Context, query string, args ...any) ([]model.FollowEntry, error) {
	rows, err := db.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("sqlite: listing follows: %w", err)
	}
	defer rows.Close()

	entries := make([]model.FollowEntry, 0)
	for rows.Next() {
		var e model.FollowEntry
		e.User, err = scanUserSummary(rows, &e.Status, &e.Since)
		if err != nil {
			return nil, fmt.Errorf("sqlite: scanning follow row: %w", err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: iterating follows: %w", err)
	}
	return entries, nil
}

// CountFollows counts accepted edges only.
func (db *DB) CountFollows(ctx context.Context, userID string) (followers, following int, err error) {
	err = db.conn.QueryRowContext(ctx,
		`SELECT
		   (SELECT COUNT(*) FROM follows WHERE following_id = ? AND status = 'accepted'),
		   (SELECT COUNT(*) FROM follows WHERE follower_id = ? AND status = 'accepted')`,
		userID, userID,
	).Scan(&followers, &following)
	if err != nil {
		return 0, 0, fmt.Errorf("sqlite: counting follows: %w", err)
	}
	return followers, following, nil
}

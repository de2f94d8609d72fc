// Package sqlite implements the repository interfaces using SQLite as the
// storage backend.
//
// modernc.org/sqlite is a pure Go translation of SQLite, so the binary
// builds without a C toolchain. Everything goes through database/sql:
//   - sql.DB      is a connection pool, not a single connection
//   - sql.Tx      is a transaction
//   - sql.Rows    must always be closed
//
// One rule applies across this package: never run a second query while a
// *sql.Rows is still open. Feed and inbox lookups collect their rows first
// and issue the follow-up queries afterwards. In-memory databases are pinned
// to one connection (every new connection to ":memory:" is a fresh, empty
// database), and an open Rows would hold that single connection hostage.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/sakif/drink-journal/internal/repository"

	// Registers the "sqlite" driver with database/sql.
	_ "modernc.org/sqlite"
)

// Compile-time check that *DB satisfies every repository interface.
var _ repository.Store = (*DB)(nil)

// DB wraps a sql.DB connection pool and provides repository methods.
type DB struct {
	conn *sql.DB
}

// New opens the database, applies pragmas and runs migrations.
//
// dbPath examples:
//   - "data/journal.db"  file-based database (persistent)
//   - ":memory:"         in-memory database (tests)
func New(dbPath string) (*DB, error) {
	conn, err := sql.Open("sqlite", dsn(dbPath))
	if err != nil {
		return nil, fmt.Errorf("sqlite: opening database: %w", err)
	}

	if isMemory(dbPath) {
		conn.SetMaxOpenConns(1)
		conn.SetConnMaxLifetime(0)
	} else {
		conn.SetMaxOpenConns(4)
		conn.SetMaxIdleConns(2)
		conn.SetConnMaxLifetime(time.Hour)
	}

	// Ping forces a real connection so a bad path fails here and not on the
	// first request.
	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: pinging database: %w", err)
	}

	db := &DB{conn: conn}

	if err := db.migrate(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: running migrations: %w", err)
	}

	return db, nil
}

// Close closes the database connection pool.
func (db *DB) Close() error {
	return db.conn.Close()
}

// Ping reports whether the database is reachable. Used by the health route.
func (db *DB) Ping(ctx context.Context) error {
	return db.conn.PingContext(ctx)
}

// pragmas are applied by the driver to every new connection in the pool.
// PRAGMA statements run through Exec would only reach one of them.
var pragmas = []string{
	"journal_mode(WAL)",
	"foreign_keys(1)",
	"busy_timeout(5000)",
}

func dsn(path string) string {
	params := make([]string, len(pragmas))
	for i, p := range pragmas {
		params[i] = "_pragma=" + p
	}
	sep := "?"
	if strings.Contains(path, "?") {
		sep = "&"
	}
	return path + sep + strings.Join(params, "&")
}

func isMemory(path string) bool {
	return path == ":memory:" || strings.HasPrefix(path, "file::memory:")
}

// builder is a squirrel statement builder using "?" placeholders, which is
// what the sqlite driver expects.
var builder = sq.StatementBuilder.PlaceholderFormat(sq.Question)

// now returns the current time in UTC. Every timestamp written by this
// package goes through it so stored values compare consistently.
func now() time.Time {
	return time.Now().UTC()
}

// migrate creates every table. CREATE ... IF NOT EXISTS keeps it idempotent,
// and addColumnIfNotExists handles columns added after a table shipped.
func (db *DB) migrate() error {
	steps := []struct {
		name string
		sql  string
	}{
		{"users", `
			CREATE TABLE IF NOT EXISTS users (
				id           TEXT PRIMARY KEY,
				auth_id      TEXT NOT NULL UNIQUE,
				email        TEXT NOT NULL DEFAULT '',
				display_name TEXT NOT NULL DEFAULT '',
				username     TEXT UNIQUE,
				bio          TEXT NOT NULL DEFAULT '',
				avatar_url   TEXT NOT NULL DEFAULT '',
				theme        TEXT NOT NULL DEFAULT 'system',
				created_at   DATETIME NOT NULL,
				updated_at   DATETIME NOT NULL
			);`},
		{"drinks", `
			CREATE TABLE IF NOT EXISTS drinks (
				id         TEXT PRIMARY KEY,
				user_id    TEXT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
				name       TEXT NOT NULL,
				maker      TEXT NOT NULL DEFAULT '',
				type       TEXT NOT NULL,
				subtype    TEXT NOT NULL DEFAULT '',
				rating     REAL NOT NULL DEFAULT 0,
				nose       TEXT NOT NULL DEFAULT '[]',
				palate     TEXT NOT NULL DEFAULT '[]',
				finish     TEXT NOT NULL DEFAULT '[]',
				notes      TEXT NOT NULL DEFAULT '',
				price      REAL,
				currency   TEXT NOT NULL DEFAULT '',
				location   TEXT NOT NULL DEFAULT '',
				pairings   TEXT NOT NULL DEFAULT '[]',
				occasion   TEXT NOT NULL DEFAULT '',
				mood       TEXT NOT NULL DEFAULT '',
				abv        REAL,
				image_url  TEXT NOT NULL DEFAULT '',
				is_private INTEGER NOT NULL DEFAULT 0,
				created_at DATETIME NOT NULL,
				updated_at DATETIME NOT NULL
			);
			CREATE INDEX IF NOT EXISTS idx_drinks_user_created ON drinks(user_id, created_at);
			CREATE INDEX IF NOT EXISTS idx_drinks_public_created ON drinks(is_private, created_at);`},
		{"follows", `
			CREATE TABLE IF NOT EXISTS follows (
				follower_id  TEXT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
				following_id TEXT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
				status       TEXT NOT NULL CHECK (status IN ('pending', 'accepted')),
				created_at   DATETIME NOT NULL,
				updated_at   DATETIME NOT NULL,
				PRIMARY KEY (follower_id, following_id)
			);
			CREATE INDEX IF NOT EXISTS idx_follows_following ON follows(following_id, status);`},
		{"cheers", `
			CREATE TABLE IF NOT EXISTS cheers (
				drink_id   TEXT NOT NULL REFERENCES drinks(id) ON DELETE CASCADE,
				user_id    TEXT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
				created_at DATETIME NOT NULL,
				PRIMARY KEY (drink_id, user_id)
			);`},
		{"comments", `
			CREATE TABLE IF NOT EXISTS comments (
				id         TEXT PRIMARY KEY,
				drink_id   TEXT NOT NULL REFERENCES drinks(id) ON DELETE CASCADE,
				user_id    TEXT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
				content    TEXT NOT NULL,
				created_at DATETIME NOT NULL
			);
			CREATE INDEX IF NOT EXISTS idx_comments_drink ON comments(drink_id, created_at);`},
		{"notifications", `
			CREATE TABLE IF NOT EXISTS notifications (
				id         TEXT PRIMARY KEY,
				user_id    TEXT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
				type       TEXT NOT NULL,
				actor_id   TEXT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
				drink_id   TEXT REFERENCES drinks(id) ON DELETE CASCADE,
				circle_id  TEXT,
				read       INTEGER NOT NULL DEFAULT 0,
				created_at DATETIME NOT NULL
			);
			CREATE INDEX IF NOT EXISTS idx_notifications_user ON notifications(user_id, read, created_at);`},
		{"conversations", `
			CREATE TABLE IF NOT EXISTS conversations (
				id         TEXT PRIMARY KEY,
				pair_key   TEXT NOT NULL UNIQUE,
				created_at DATETIME NOT NULL,
				updated_at DATETIME NOT NULL
			);
			CREATE TABLE IF NOT EXISTS conversation_participants (
				conversation_id TEXT NOT NULL REFERENCES conversations(id) ON DELETE CASCADE,
				user_id         TEXT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
				last_read_at    DATETIME NOT NULL,
				PRIMARY KEY (conversation_id, user_id)
			);
			CREATE INDEX IF NOT EXISTS idx_participants_user ON conversation_participants(user_id);
			CREATE TABLE IF NOT EXISTS messages (
				id              TEXT PRIMARY KEY,
				conversation_id TEXT NOT NULL REFERENCES conversations(id) ON DELETE CASCADE,
				sender_id       TEXT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
				content         TEXT NOT NULL,
				created_at      DATETIME NOT NULL
			);
			CREATE INDEX IF NOT EXISTS idx_messages_conversation ON messages(conversation_id, created_at);`},
		{"circles", `
			CREATE TABLE IF NOT EXISTS circles (
				id          TEXT PRIMARY KEY,
				name        TEXT NOT NULL,
				description TEXT NOT NULL DEFAULT '',
				is_private  INTEGER NOT NULL DEFAULT 0,
				owner_id    TEXT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
				created_at  DATETIME NOT NULL
			);
			CREATE TABLE IF NOT EXISTS circle_members (
				circle_id TEXT NOT NULL REFERENCES circles(id) ON DELETE CASCADE,
				user_id   TEXT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
				role      TEXT NOT NULL CHECK (role IN ('admin', 'member')),
				joined_at DATETIME NOT NULL,
				PRIMARY KEY (circle_id, user_id)
			);
			CREATE TABLE IF NOT EXISTS circle_invites (
				id         TEXT PRIMARY KEY,
				circle_id  TEXT NOT NULL REFERENCES circles(id) ON DELETE CASCADE,
				inviter_id TEXT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
				invitee_id TEXT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
				status     TEXT NOT NULL CHECK (status IN ('pending', 'accepted', 'declined')),
				created_at DATETIME NOT NULL
			);
			CREATE INDEX IF NOT EXISTS idx_circle_invites_invitee ON circle_invites(invitee_id, status);
			CREATE TABLE IF NOT EXISTS circle_posts (
				id         TEXT PRIMARY KEY,
				circle_id  TEXT NOT NULL REFERENCES circles(id) ON DELETE CASCADE,
				user_id    TEXT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
				content    TEXT NOT NULL,
				drink_id   TEXT REFERENCES drinks(id) ON DELETE SET NULL,
				created_at DATETIME NOT NULL
			);
			CREATE INDEX IF NOT EXISTS idx_circle_posts_circle ON circle_posts(circle_id, created_at);`},
	}

	for _, step := range steps {
		if _, err := db.conn.Exec(step.sql); err != nil {
			return fmt.Errorf("creating %s: %w", step.name, err)
		}
	}

	// Profiles gained a location after the first release.
	if err := db.addColumnIfNotExists("users", "location",
		"TEXT NOT NULL DEFAULT ''"); err != nil {
		return fmt.Errorf("adding users.location: %w", err)
	}

	return nil
}

// addColumnIfNotExists adds a column to a table only if it doesn't already exist.
// Makes ALTER TABLE migrations idempotent.
func (db *DB) addColumnIfNotExists(table, column, definition string) error {
	var count int
	err := db.conn.QueryRow(
		`SELECT COUNT(*) FROM pragma_table_info(?) WHERE name = ?`,
		table, column,
	).Scan(&count)
	if err != nil {
		return fmt.Errorf("checking column %s.%s: %w", table, column, err)
	}
	if count > 0 {
		return nil
	}
	_, err = db.conn.Exec(fmt.Sprintf(
		`ALTER TABLE %s ADD COLUMN %s %s`, table, column, definition,
	))
	return err
}

// rowsAffected returns whether a write touched at least one row.
func rowsAffected(result sql.Result) (bool, error) {
	n, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("sqlite: checking rows affected: %w", err)
	}
	return n > 0, nil
}

// isUniqueViolation reports whether err came from a UNIQUE or PRIMARY KEY
// constraint. The driver only exposes the message text for this.
func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "UNIQUE constraint failed") ||
		strings.Contains(msg, "PRIMARY KEY constraint failed")
}

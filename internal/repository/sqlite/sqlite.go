// Package sqlite implements the repository interfaces on SQLite.
//
// WHY SQLITE?
// The whole database is one file inside the deployment, no server process to
// run. For a single-binary chat app that stores account rows and transcripts,
// that is exactly the right weight, and ":memory:" gives tests a fresh
// database per test function for free.
//
// WHY modernc.org/sqlite INSTEAD OF mattn/go-sqlite3?
// mattn/go-sqlite3 is a CGo binding, so building needs a C toolchain and
// cross-compilation gets painful. modernc.org/sqlite is a pure-Go translation
// of the SQLite sources; it registers itself with database/sql under the
// driver name "sqlite" and works anywhere Go compiles.
//
// LAYOUT OF THIS PACKAGE:
// DB owns the connection pool and the schema. The per-entity repositories
// (UserDB, SessionDB, MessageDB) are thin views over the same pool, reached
// through DB.Users(), DB.Sessions(), DB.Messages(). Splitting them keeps the
// method sets apart — all three have a natural "Create" or "GetByID" that
// would collide on a single receiver.
package sqlite

import (
	"database/sql"
	"fmt"

	// Side-effect import: the driver's init() registers "sqlite" with
	// database/sql. No symbols from the package are used directly.
	_ "modernc.org/sqlite"
)

// DB wraps the sql.DB pool and provides schema management plus accessors
// for the per-entity repositories.
type DB struct {
	conn *sql.DB
}

// New opens (or creates) the SQLite database at dbPath and runs migrations.
//
// dbPath examples:
//   - "data/scratchpad.db" — file-based, persistent
//   - ":memory:"           — in-memory, gone when the pool closes (tests)
//
// sql.Open only prepares the pool; nothing talks to the database until the
// first query. Ping forces a real connection so a bad path or permission
// problem fails here, at startup, instead of inside the first request.
func New(dbPath string) (*DB, error) {
	conn, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("sqlite: opening database: %w", err)
	}

	// One connection, not a pool. SQLite allows a single writer anyway, the
	// PRAGMAs below are per-connection and must apply to every statement,
	// and ":memory:" would otherwise give each pooled connection its own
	// empty database.
	conn.SetMaxOpenConns(1)

	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: pinging database: %w", err)
	}

	// WAL lets reads proceed while a write is in flight. The chat flow
	// writes a transcript row per turn while list/detail requests read,
	// so the default rollback journal's whole-database write lock would
	// show up as stalls.
	if _, err := conn.Exec("PRAGMA journal_mode=WAL"); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: setting WAL mode: %w", err)
	}

	// Foreign keys are off by default in SQLite. Deleting a session is
	// supposed to take its messages with it, and that cascade lives in
	// the schema, so the enforcement has to be on.
	if _, err := conn.Exec("PRAGMA foreign_keys=ON"); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: enabling foreign keys: %w", err)
	}

	db := &DB{conn: conn}

	if err := db.migrate(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: running migrations: %w", err)
	}

	return db, nil
}

// Close closes the connection pool. Callers should defer this right after a
// successful New.
func (db *DB) Close() error {
	return db.conn.Close()
}

// Users returns the user repository view of this database.
func (db *DB) Users() *UserDB { return &UserDB{db: db} }

// Sessions returns the session repository view of this database.
func (db *DB) Sessions() *SessionDB { return &SessionDB{db: db} }

// Messages returns the message repository view of this database.
func (db *DB) Messages() *MessageDB { return &MessageDB{db: db} }

// migrate creates the schema. Every statement is idempotent (IF NOT EXISTS),
// so running it against an existing database is a no-op. Schema history is
// short enough that embedded SQL beats pulling in a migration framework.
func (db *DB) migrate() error {
	// users holds both account flavours in one table: password accounts
	// have a password_hash and github_id NULL; OAuth accounts the reverse.
	// SQLite's UNIQUE treats NULLs as distinct, so any number of password
	// accounts coexist while a GitHub account still maps to one row.
	_, err := db.conn.Exec(`
		CREATE TABLE IF NOT EXISTS users (
			id            TEXT PRIMARY KEY,
			username      TEXT NOT NULL UNIQUE,
			email         TEXT NOT NULL DEFAULT '',
			password_hash TEXT NOT NULL DEFAULT '',
			github_id     INTEGER UNIQUE,
			avatar_url    TEXT NOT NULL DEFAULT '',
			created_at    DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
			updated_at    DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
		);
	`)
	if err != nil {
		return fmt.Errorf("creating users table: %w", err)
	}

	_, err = db.conn.Exec(`
		CREATE TABLE IF NOT EXISTS sessions (
			id         TEXT PRIMARY KEY,
			owner_id   TEXT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
			title      TEXT NOT NULL,
			model      TEXT NOT NULL DEFAULT '',
			created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
			updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
		);
		CREATE INDEX IF NOT EXISTS idx_sessions_owner ON sessions(owner_id, updated_at);
	`)
	if err != nil {
		return fmt.Errorf("creating sessions table: %w", err)
	}

	// ON DELETE CASCADE is what makes SessionDB.Delete drop the transcript
	// in the same statement as the session row.
	_, err = db.conn.Exec(`
		CREATE TABLE IF NOT EXISTS messages (
			id         TEXT PRIMARY KEY,
			session_id TEXT NOT NULL REFERENCES sessions(id) ON DELETE CASCADE,
			role       TEXT NOT NULL,
			content    TEXT NOT NULL DEFAULT '',
			created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
		);
		CREATE INDEX IF NOT EXISTS idx_messages_session ON messages(session_id, created_at);
	`)
	if err != nil {
		return fmt.Errorf("creating messages table: %w", err)
	}

	return nil
}

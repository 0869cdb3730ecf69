package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite" // register "sqlite" driver
)

// SQLiteStore is a SessionStore backed by a local SQLite database.
type SQLiteStore struct {
	// db is the underlying database connection pool.
	db *sql.DB
}

// OpenSQLite opens (or creates) a SQLiteStore at the given path and runs the
// schema migration. Use ":memory:" for an in-memory database in tests.
func OpenSQLite(path string) (*SQLiteStore, error) {
	dsn := path + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("store: open %s: %w", path, err)
	}
	// A single connection serialises writers and keeps ":memory:" databases alive.
	db.SetMaxOpenConns(1)

	s := &SQLiteStore{db: db}
	if err := s.migrate(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

// migrate creates the schema if it does not already exist.
func (s *SQLiteStore) migrate() error {
	const ddl = `
CREATE TABLE IF NOT EXISTS chat_sessions (
    session_id  TEXT    PRIMARY KEY,
    created_at  INTEGER NOT NULL,  -- Unix milliseconds
    updated_at  INTEGER NOT NULL
);
CREATE TABLE IF NOT EXISTS chat_messages (
    id          INTEGER PRIMARY KEY AUTOINCREMENT,
    session_id  TEXT    NOT NULL REFERENCES chat_sessions(session_id) ON DELETE CASCADE,
    role        TEXT    NOT NULL CHECK(role IN ('user','assistant')),
    content     TEXT    NOT NULL,
    created_at  INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_chat_messages_session
    ON chat_messages (session_id, id);
`
	if _, err := s.db.Exec(ddl); err != nil {
		return fmt.Errorf("store: migrate: %w", err)
	}
	return nil
}

// Append persists a single message, creating or touching the session row.
func (s *SQLiteStore) Append(ctx context.Context, sessionID string, role Role, content string) error {
	now := time.Now().UnixMilli()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("store: append: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	const upsertSession = `
INSERT INTO chat_sessions (session_id, created_at, updated_at) VALUES (?, ?, ?)
ON CONFLICT(session_id) DO UPDATE SET updated_at = excluded.updated_at`
	if _, err := tx.ExecContext(ctx, upsertSession, sessionID, now, now); err != nil {
		return fmt.Errorf("store: append session: %w", err)
	}

	const insertMessage = `INSERT INTO chat_messages (session_id, role, content, created_at) VALUES (?, ?, ?, ?)`
	if _, err := tx.ExecContext(ctx, insertMessage, sessionID, string(role), content, now); err != nil {
		return fmt.Errorf("store: append message: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("store: append commit: %w", err)
	}
	return nil
}

// Session returns the session with every message in insertion order.
func (s *SQLiteStore) Session(ctx context.Context, sessionID string) (*Session, error) {
	const q = `SELECT created_at, updated_at FROM chat_sessions WHERE session_id = ?`

	var created, updated int64
	err := s.db.QueryRowContext(ctx, q, sessionID).Scan(&created, &updated)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrSessionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("store: session: %w", err)
	}

	const mq = `SELECT role, content, created_at FROM chat_messages WHERE session_id = ? ORDER BY id ASC`
	msgs, err := s.query(ctx, mq, sessionID)
	if err != nil {
		return nil, err
	}

	return &Session{
		ID:        sessionID,
		Messages:  msgs,
		CreatedAt: time.UnixMilli(created),
		UpdatedAt: time.UnixMilli(updated),
	}, nil
}

// Recent returns the most recent n messages for the session, oldest first.
// Uses a subquery to select the tail then re-order it.
func (s *SQLiteStore) Recent(ctx context.Context, sessionID string, n int) ([]Message, error) {
	const q = `
SELECT role, content, created_at FROM (
    SELECT id, role, content, created_at
    FROM   chat_messages
    WHERE  session_id = ?
    ORDER  BY id DESC
    LIMIT  ?
) ORDER BY id ASC`
	return s.query(ctx, q, sessionID, n)
}

func (s *SQLiteStore) query(ctx context.Context, q string, args ...any) ([]Message, error) {
	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("store: query messages: %w", err)
	}
	defer rows.Close()

	var msgs []Message
	for rows.Next() {
		var (
			m    Message
			ts   int64
			role string
		)
		if err := rows.Scan(&role, &m.Content, &ts); err != nil {
			return nil, fmt.Errorf("store: scan message: %w", err)
		}
		m.Role = Role(role)
		m.CreatedAt = time.UnixMilli(ts)
		msgs = append(msgs, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("store: message rows: %w", err)
	}
	return msgs, nil
}

// Close releases the database connection pool.
func (s *SQLiteStore) Close() error {
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("store: close: %w", err)
	}
	return nil
}

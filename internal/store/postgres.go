package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresStore is a SessionStore backed by PostgreSQL through a pgx pool.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// OpenPostgres connects to dsn, verifies the connection and runs the schema
// migration.
func OpenPostgres(ctx context.Context, dsn string) (*PostgresStore, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("store: parse postgres dsn: %w", err)
	}

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("store: connect postgres: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("store: ping postgres: %w", err)
	}

	s := &PostgresStore{pool: pool}
	if err := s.migrate(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return s, nil
}

func (s *PostgresStore) migrate(ctx context.Context) error {
	const ddl = `
CREATE TABLE IF NOT EXISTS chat_sessions (
    session_id  TEXT        PRIMARY KEY,
    created_at  TIMESTAMPTZ NOT NULL DEFAULT now(),
    updated_at  TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE TABLE IF NOT EXISTS chat_messages (
    id          BIGSERIAL   PRIMARY KEY,
    session_id  TEXT        NOT NULL REFERENCES chat_sessions(session_id) ON DELETE CASCADE,
    role        TEXT        NOT NULL CHECK (role IN ('user','assistant')),
    content     TEXT        NOT NULL,
    created_at  TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS idx_chat_messages_session
    ON chat_messages (session_id, id);
`
	if _, err := s.pool.Exec(ctx, ddl); err != nil {
		return fmt.Errorf("store: migrate: %w", err)
	}
	return nil
}

// Append persists a single message, creating or touching the session row.
func (s *PostgresStore) Append(ctx context.Context, sessionID string, role Role, content string) error {
	err := pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		const upsertSession = `
INSERT INTO chat_sessions (session_id) VALUES ($1)
ON CONFLICT (session_id) DO UPDATE SET updated_at = now()`
		if _, err := tx.Exec(ctx, upsertSession, sessionID); err != nil {
			return fmt.Errorf("session: %w", err)
		}

		const insertMessage = `INSERT INTO chat_messages (session_id, role, content) VALUES ($1, $2, $3)`
		if _, err := tx.Exec(ctx, insertMessage, sessionID, string(role), content); err != nil {
			return fmt.Errorf("message: %w", err)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("store: append: %w", err)
	}
	return nil
}

// Session returns the session with every message in insertion order.
func (s *PostgresStore) Session(ctx context.Context, sessionID string) (*Session, error) {
	sess := &Session{ID: sessionID}

	const q = `SELECT created_at, updated_at FROM chat_sessions WHERE session_id = $1`
	err := s.pool.QueryRow(ctx, q, sessionID).Scan(&sess.CreatedAt, &sess.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrSessionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("store: session: %w", err)
	}

	const mq = `SELECT role, content, created_at FROM chat_messages WHERE session_id = $1 ORDER BY id ASC`
	msgs, err := s.query(ctx, mq, sessionID)
	if err != nil {
		return nil, err
	}
	sess.Messages = msgs
	return sess, nil
}

// Recent returns the most recent n messages for the session, oldest first.
func (s *PostgresStore) Recent(ctx context.Context, sessionID string, n int) ([]Message, error) {
	const q = `
SELECT role, content, created_at FROM (
    SELECT id, role, content, created_at
    FROM   chat_messages
    WHERE  session_id = $1
    ORDER  BY id DESC
    LIMIT  $2
) tail ORDER BY id ASC`
	return s.query(ctx, q, sessionID, n)
}

func (s *PostgresStore) query(ctx context.Context, q string, args ...any) ([]Message, error) {
	rows, err := s.pool.Query(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("store: query messages: %w", err)
	}
	defer rows.Close()

	var msgs []Message
	for rows.Next() {
		var (
			m    Message
			role string
		)
		if err := rows.Scan(&role, &m.Content, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("store: scan message: %w", err)
		}
		m.Role = Role(role)
		msgs = append(msgs, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("store: message rows: %w", err)
	}
	return msgs, nil
}

// Close releases the connection pool.
func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}

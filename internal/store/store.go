// Package store persists chat sessions: one row per session and an ordered
// list of user and assistant messages. SQLite is the default backend;
// a postgres:// DSN selects PostgreSQL.
package store

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// Disabled is the DSN value that turns session persistence off.
const Disabled = "disabled"

// ErrSessionNotFound is returned when no session exists for an ID.
var ErrSessionNotFound = errors.New("store: session not found")

// Role identifies the author of a conversation message.
type Role string

const (
	// RoleUser is a message sent by the reader.
	RoleUser Role = "user"
	// RoleAssistant is a message produced by the model.
	RoleAssistant Role = "assistant"
)

// Message is a single turn in a session.
type Message struct {
	// Role is the author of the message.
	Role Role `json:"role"`
	// Content is the text of the message.
	Content string `json:"content"`
	// CreatedAt is when the message was persisted.
	CreatedAt time.Time `json:"created_at"`
}

// Session is a conversation and its messages, oldest first.
type Session struct {
	ID        string    `json:"session_id"`
	Messages  []Message `json:"messages"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// SessionStore persists and retrieves chat sessions.
// Implementations must be safe for concurrent use.
type SessionStore interface {
	// Append persists a message, creating the session on first use.
	Append(ctx context.Context, sessionID string, role Role, content string) error
	// Session returns the session with all its messages, or ErrSessionNotFound.
	Session(ctx context.Context, sessionID string) (*Session, error)
	// Recent returns the most recent n messages of the session, oldest first.
	// If fewer than n messages exist, all are returned.
	Recent(ctx context.Context, sessionID string, n int) ([]Message, error)
	// Close releases any resources held by the store.
	Close() error
}

// DefaultDBPath returns the default path for the session database.
// It resolves to ~/.tbrag/sessions.db, creating the directory if needed.
func DefaultDBPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("store: could not determine home directory: %w", err)
	}
	dir := filepath.Join(home, ".tbrag")
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return "", fmt.Errorf("store: could not create %s: %w", dir, err)
	}
	return filepath.Join(dir, "sessions.db"), nil
}

// Open selects a backend from dsn. "disabled" returns (nil, nil). An empty
// dsn opens SQLite at DefaultDBPath. postgres:// and postgresql:// URLs open
// PostgreSQL; anything else is treated as a SQLite path.
func Open(ctx context.Context, dsn string) (SessionStore, error) {
	dsn = strings.TrimSpace(dsn)
	switch {
	case strings.EqualFold(dsn, Disabled):
		return nil, nil
	case isPostgresDSN(dsn):
		s, err := OpenPostgres(ctx, dsn)
		if err != nil {
			return nil, err
		}
		return s, nil
	}

	path := strings.TrimPrefix(dsn, "sqlite://")
	if path == "" {
		var err error
		if path, err = DefaultDBPath(); err != nil {
			return nil, err
		}
	}
	s, err := OpenSQLite(path)
	if err != nil {
		return nil, err
	}
	return s, nil
}

func isPostgresDSN(dsn string) bool {
	lower := strings.ToLower(dsn)
	return strings.HasPrefix(lower, "postgres://") || strings.HasPrefix(lower, "postgresql://")
}

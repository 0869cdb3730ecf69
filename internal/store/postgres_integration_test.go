//go:build integration

package store

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

// startPostgres runs a disposable PostgreSQL container and returns its DSN.
func startPostgres(t *testing.T) string {
	t.Helper()
	ctx := context.Background()

	req := testcontainers.ContainerRequest{
		Image:        "postgres:16-alpine",
		ExposedPorts: []string{"5432/tcp"},
		Env: map[string]string{
			"POSTGRES_USER":     "tbrag",
			"POSTGRES_PASSWORD": "tbrag",
			"POSTGRES_DB":       "tbrag",
		},
		WaitingFor: wait.ForAll(
			wait.ForListeningPort("5432/tcp"),
			wait.ForLog("database system is ready to accept connections").WithOccurrence(2),
		).WithDeadline(60 * time.Second),
	}
	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		t.Fatalf("start postgres container: %v", err)
	}
	t.Cleanup(func() { _ = container.Terminate(context.Background()) })

	host, err := container.Host(ctx)
	if err != nil {
		t.Fatalf("container host: %v", err)
	}
	port, err := container.MappedPort(ctx, "5432")
	if err != nil {
		t.Fatalf("mapped port: %v", err)
	}
	return fmt.Sprintf("postgres://tbrag:tbrag@%s:%s/tbrag?sslmode=disable", host, port.Port())
}

func TestPostgresStore_Integration(t *testing.T) {
	dsn := startPostgres(t)
	ctx := context.Background()

	s, err := Open(ctx, dsn)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	if _, ok := s.(*PostgresStore); !ok {
		t.Fatalf("Open returned %T, want *PostgresStore", s)
	}

	id := uuid.NewString()
	if _, err := s.Session(ctx, id); !errors.Is(err, ErrSessionNotFound) {
		t.Fatalf("want ErrSessionNotFound before first append, got %v", err)
	}

	turns := []struct {
		role    Role
		content string
	}{
		{RoleUser, "What sensors does a humanoid use?"},
		{RoleAssistant, "IMUs, joint encoders and cameras."},
		{RoleUser, "Explain the IMU."},
	}
	for _, tr := range turns {
		if err := s.Append(ctx, id, tr.role, tr.content); err != nil {
			t.Fatalf("Append: %v", err)
		}
	}

	sess, err := s.Session(ctx, id)
	if err != nil {
		t.Fatalf("Session: %v", err)
	}
	if len(sess.Messages) != len(turns) {
		t.Fatalf("got %d messages, want %d", len(sess.Messages), len(turns))
	}
	for i, tr := range turns {
		if sess.Messages[i].Role != tr.role || sess.Messages[i].Content != tr.content {
			t.Errorf("message %d = %+v, want %s/%q", i, sess.Messages[i], tr.role, tr.content)
		}
	}

	recent, err := s.Recent(ctx, id, 2)
	if err != nil {
		t.Fatalf("Recent: %v", err)
	}
	if len(recent) != 2 || recent[1].Content != turns[2].content {
		t.Errorf("Recent = %+v", recent)
	}

	// Reopening runs the migration again against existing tables.
	again, err := OpenPostgres(ctx, dsn)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	_ = again.Close()
}

//go:build integration

package rag

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

// startQdrant runs a disposable Qdrant container and returns its gRPC URL.
func startQdrant(t *testing.T) string {
	t.Helper()
	ctx := context.Background()

	req := testcontainers.ContainerRequest{
		Image:        "qdrant/qdrant:latest",
		ExposedPorts: []string{"6333/tcp", "6334/tcp"},
		WaitingFor: wait.ForAll(
			wait.ForListeningPort("6333/tcp"),
			wait.ForLog("Qdrant gRPC listening"),
		).WithDeadline(90 * time.Second),
	}
	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		t.Fatalf("start qdrant container: %v", err)
	}
	t.Cleanup(func() { _ = container.Terminate(context.Background()) })

	host, err := container.Host(ctx)
	if err != nil {
		t.Fatalf("container host: %v", err)
	}
	port, err := container.MappedPort(ctx, "6334")
	if err != nil {
		t.Fatalf("mapped port: %v", err)
	}
	return fmt.Sprintf("http://%s:%s", host, port.Port())
}

func TestQdrantStore_Integration(t *testing.T) {
	url := startQdrant(t)
	ctx := context.Background()

	s, err := NewQdrantStore(QdrantConfig{URL: url, Collection: "textbook_it", VectorSize: 3})
	if err != nil {
		t.Fatalf("NewQdrantStore: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })

	if err := s.Connect(ctx); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	if s.State() != StateConnected {
		t.Fatalf("state = %v, want connected", s.State())
	}

	docs := []Document{
		{ID: "Sensors_0", Content: "IMUs measure acceleration.", Metadata: map[string]string{"title": "Sensors"}, Embedding: []float32{1, 0, 0}},
		{ID: "Actuators_0", Content: "Motors produce torque.", Metadata: map[string]string{"title": "Actuators"}, Embedding: []float32{0, 1, 0}},
	}
	if err := s.Upsert(ctx, docs); err != nil {
		t.Fatalf("Upsert: %v", err)
	}

	got, err := s.Search(ctx, []float32{0.9, 0.1, 0}, 1)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(got) != 1 || got[0].ID != "Sensors_0" || got[0].Metadata["title"] != "Sensors" {
		t.Fatalf("Search = %+v, want Sensors_0 first", got)
	}

	doc, err := s.Get(ctx, "Actuators_0")
	if err != nil || doc.Content != "Motors produce torque." {
		t.Fatalf("Get = %+v, %v", doc, err)
	}

	if err := s.Upsert(ctx, []Document{{ID: "bad", Embedding: []float32{1}}}); !errors.Is(err, ErrDimensionMismatch) {
		t.Errorf("want ErrDimensionMismatch, got %v", err)
	}

	if err := s.Delete(ctx, []string{"Actuators_0"}); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := s.Get(ctx, "Actuators_0"); !errors.Is(err, ErrNotFound) {
		t.Errorf("want ErrNotFound after delete, got %v", err)
	}

	if err := s.Ping(ctx); err != nil {
		t.Errorf("Ping: %v", err)
	}
}

package server

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"

	"github.com/54b3r/tbrag-go/internal/provider"
)

// LLMPinger probes an LLM backend. It satisfies the Pinger interface and is
// used by GET /api/v1/ready.
type LLMPinger struct {
	// model is the chat model to probe when no health check exists.
	model model.BaseChatModel
	// healthCheck is the token-free probe; preferred when non-nil.
	healthCheck provider.HealthCheckConfig
	// name identifies the backend in readiness responses (e.g. "ollama").
	name string
}

// NewLLMPinger constructs an LLMPinger for the given model and backend name.
func NewLLMPinger(m model.BaseChatModel, hc provider.HealthCheckConfig, name string) *LLMPinger {
	return &LLMPinger{model: m, healthCheck: hc, name: name}
}

// Name returns the backend label used in readiness responses.
func (p *LLMPinger) Name() string { return p.name }

// Ping probes the LLM backend for readiness. When a HealthCheckConfig is
// available it is used exclusively; otherwise it falls back to a single-token
// Generate call, which consumes tokens.
func (p *LLMPinger) Ping(ctx context.Context) error {
	if p.healthCheck != nil {
		if err := p.healthCheck.HealthCheck(ctx); err != nil {
			return fmt.Errorf("%s health check failed: %w", p.name, err)
		}
		return nil
	}
	if p.model == nil {
		return fmt.Errorf("%s: no model configured", p.name)
	}

	slog.Warn("pinger: falling back to Generate-based health check, tokens will be consumed",
		slog.String("backend", p.name),
	)
	resp, err := p.model.Generate(ctx, []*schema.Message{schema.UserMessage("ping")}, model.WithMaxTokens(1))
	if err != nil {
		return fmt.Errorf("generate failed: %w", err)
	}
	if resp == nil {
		return fmt.Errorf("generate returned nil response")
	}
	return nil
}

// storePinger is the probe surface of the vector store.
// *rag.QdrantStore satisfies it.
type storePinger interface {
	Ping(ctx context.Context) error
}

// QdrantPinger probes the vector store using its native HealthCheck RPC.
// A successful probe also marks the store connected again.
type QdrantPinger struct {
	store storePinger
}

// NewQdrantPinger constructs a QdrantPinger for the given store.
func NewQdrantPinger(s storePinger) *QdrantPinger {
	return &QdrantPinger{store: s}
}

// Name returns the dependency label used in readiness responses.
func (p *QdrantPinger) Name() string { return "qdrant" }

// Ping returns nil if Qdrant is reachable, or a descriptive error otherwise.
func (p *QdrantPinger) Ping(ctx context.Context) error {
	if err := p.store.Ping(ctx); err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	return nil
}

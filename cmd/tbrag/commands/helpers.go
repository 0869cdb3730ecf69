package commands

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/cloudwego/eino/components/model"

	"github.com/54b3r/tbrag-go/internal/agent"
	"github.com/54b3r/tbrag-go/internal/config"
	"github.com/54b3r/tbrag-go/internal/embedder"
	"github.com/54b3r/tbrag-go/internal/llm"
	"github.com/54b3r/tbrag-go/internal/provider"
	"github.com/54b3r/tbrag-go/internal/rag"
)

// vectorStack bundles the embedder, the Qdrant store and the retriever built
// on top of them.
type vectorStack struct {
	embedder  rag.Embedder
	store     *rag.QdrantStore
	retriever *rag.DefaultRetriever
}

// buildVectorStack constructs the retrieval path from environment variables
// and probes Qdrant once. An unreachable server is logged, not returned: the
// store starts Unreachable and callers run degraded.
func buildVectorStack(ctx context.Context, log *slog.Logger) (*vectorStack, error) {
	if err := embedder.Validate(log); err != nil {
		return nil, err
	}
	emb, err := embedder.NewFromEnv()
	if err != nil {
		return nil, err
	}

	backend := embedder.Backend()
	store, err := rag.NewQdrantStore(rag.QdrantConfig{
		URL:        os.Getenv("QDRANT_URL"),
		Collection: os.Getenv("QDRANT_COLLECTION"),
		VectorSize: uint64(embedder.DefaultDimensions(backend)), //nolint:gosec // dimensions are bounded
		APIKey:     os.Getenv("QDRANT_API_KEY"),
		Logger:     log,
	})
	if err != nil {
		return nil, err
	}

	if err := store.Connect(ctx); err != nil {
		log.Warn("qdrant: unreachable at startup, continuing without retrieval",
			slog.String("endpoint", store.Endpoint()),
			slog.Any("error", err),
		)
	}

	retriever, err := rag.NewRetriever(emb, store, rag.DefaultTopK)
	if err != nil {
		_ = store.Close()
		return nil, err
	}

	log.Info("vector store ready",
		slog.String("embedding_backend", backend),
		slog.String("endpoint", store.Endpoint()),
		slog.String("collection", store.Collection()),
		slog.String("state", store.State().String()),
	)
	return &vectorStack{embedder: emb, store: store, retriever: retriever}, nil
}

// Close releases the Qdrant connection.
func (v *vectorStack) Close() {
	_ = v.store.Close()
}

// buildAgent constructs the chat model from the environment and wraps it in
// a TextbookAgent. retriever may be nil.
func buildAgent(ctx context.Context, retriever rag.Retriever, onRetrieval func(string)) (*agent.TextbookAgent, model.BaseChatModel, *provider.Config, error) {
	chatModel, providerCfg, err := provider.NewFromEnv(ctx)
	if err != nil {
		return nil, nil, providerCfg, fmt.Errorf("failed to initialise model provider: %w", err)
	}

	client, err := llm.New(chatModel, &llm.Config{DisableSampling: !providerCfg.SupportsSampling()})
	if err != nil {
		return nil, nil, providerCfg, err
	}

	a, err := agent.New(&agent.Config{
		LLM:              client,
		Retriever:        retriever,
		MaxContextTokens: config.AppFromEnv().MaxContextLength,
		OnRetrieval:      onRetrieval,
	})
	if err != nil {
		return nil, nil, providerCfg, fmt.Errorf("failed to initialise agent: %w", err)
	}
	return a, chatModel, providerCfg, nil
}

// Package rag defines the retrieval building blocks used to ground answers in
// textbook content: the stored document model, vector storage, embedding and
// the retriever that composes them.
// Concrete implementations (Qdrant, HTTP embedders) satisfy these interfaces
// so the agent layer never depends on a specific backend.
package rag

import (
	"context"
	"errors"
)

var (
	// ErrStoreUnavailable is returned when the vector store is known to be
	// unreachable. Callers treat it as a signal to degrade, not to fail.
	ErrStoreUnavailable = errors.New("rag: vector store unavailable")

	// ErrDimensionMismatch is returned when an embedding's length differs from
	// the collection's configured dimensionality.
	ErrDimensionMismatch = errors.New("rag: embedding dimension mismatch")

	// ErrNotFound is returned by Get when no document has the requested ID.
	ErrNotFound = errors.New("rag: document not found")
)

// Document is a unit of stored or retrieved textbook content.
type Document struct {
	// ID is the caller-supplied or derived identifier of this chunk.
	ID string

	// Content is the raw text of the chunk.
	Content string

	// Metadata holds open-ended key/value pairs: title, source_file, section,
	// type, chunk_index, total_chunks, created_at.
	Metadata map[string]string

	// Embedding is the dense vector for Content. Nil until computed.
	Embedding []float32

	// Score is the similarity score assigned during retrieval.
	// Zero value means the score was not computed.
	Score float32
}

// ConnState is the vector store's view of its backend's reachability.
type ConnState int32

const (
	// StateUninitialized means no probe has completed yet.
	StateUninitialized ConnState = iota
	// StateConnected means the last probe or operation reached the backend.
	StateConnected
	// StateUnreachable means the backend could not be reached; retrieval is skipped.
	StateUnreachable
)

// String returns the lowercase name of the state for logs and health output.
func (s ConnState) String() string {
	switch s {
	case StateConnected:
		return "connected"
	case StateUnreachable:
		return "unreachable"
	default:
		return "uninitialized"
	}
}

// VectorStore persists documents with their embeddings and searches them.
// Implementations must be safe to call from multiple goroutines.
type VectorStore interface {
	// Upsert stores or overwrites documents. Every document must carry an
	// Embedding of the store's dimensionality.
	Upsert(ctx context.Context, docs []Document) error

	// Search returns the topK documents nearest to the query embedding.
	Search(ctx context.Context, queryEmbedding []float32, topK int) ([]Document, error)

	// Get returns the stored document with the given ID, or ErrNotFound.
	Get(ctx context.Context, id string) (*Document, error)

	// Delete removes documents by their IDs.
	Delete(ctx context.Context, ids []string) error

	// State reports the current reachability of the backend.
	State() ConnState

	// Close releases any resources held by the store.
	Close() error
}

// Embedder converts text into dense vector embeddings.
// Implementations must be safe to call from multiple goroutines.
type Embedder interface {
	// Embed converts a batch of texts into their corresponding embeddings.
	// The returned slice is parallel to the input slice.
	Embed(ctx context.Context, texts []string) ([][]float32, error)
}

// Retriever is the high-level interface used by the agent to fetch context
// for a query. It combines embedding and vector search.
// Implementations must be safe to call from multiple goroutines.
type Retriever interface {
	// Available reports whether retrieval should be attempted at all.
	Available() bool

	// Retrieve returns the top-k most relevant documents for the given query.
	Retrieve(ctx context.Context, query string, topK int) ([]Document, error)
}

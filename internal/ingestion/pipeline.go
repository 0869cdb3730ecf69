// Package ingestion turns textbook chapters into indexed passages.
// It chunks text, embeds each chunk, and upserts the results into the vector
// store. It backs the `tbrag ingest` command and the content upload endpoint.
package ingestion

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/54b3r/tbrag-go/internal/rag"
)

// DefaultPattern selects the files IngestDir reads.
const DefaultPattern = "*.md"

// defaultBatchSize caps the number of texts sent in a single embedding call.
const defaultBatchSize = 64

// ErrContentTooShort is returned for a chapter whose cleaned content is not
// longer than MinContentLength.
var ErrContentTooShort = errors.New("ingestion: content too short")

// Config holds the configuration for the ingestion pipeline.
type Config struct {
	// ChunkSize is the target number of characters per chunk. A zero
	// ChunkSize and ChunkOverlap together select DefaultChunkSize and
	// DefaultChunkOverlap.
	ChunkSize int

	// ChunkOverlap is the number of characters repeated between consecutive
	// chunks. It is used as given once ChunkSize is set, so zero means no
	// overlap.
	ChunkOverlap int

	// BatchSize caps texts per embedding request. Defaults to 64 if zero.
	BatchSize int

	// Logger receives per-file progress. Defaults to slog.Default().
	Logger *slog.Logger
}

// Report summarises an IngestDir run.
type Report struct {
	// Files is the number of files matched.
	Files int
	// Indexed is the number of files whose chunks were stored.
	Indexed int
	// Chunks is the total number of chunks stored.
	Chunks int
	// Skipped lists files ignored because their content was too short.
	Skipped []string
	// Failed maps a file path to the error that stopped it.
	Failed map[string]error
}

// Pipeline orchestrates the chunk → embed → upsert flow.
type Pipeline struct {
	// embedder converts text chunks into dense vector embeddings.
	embedder rag.Embedder

	// store persists the embedded chunks.
	store rag.VectorStore

	// chunker splits chapter text.
	chunker *Chunker

	// batchSize caps texts per Embed call.
	batchSize int

	log *slog.Logger
}

// NewPipeline constructs a Pipeline from the provided dependencies and config.
func NewPipeline(embedder rag.Embedder, store rag.VectorStore, cfg *Config) (*Pipeline, error) {
	if embedder == nil {
		return nil, fmt.Errorf("ingestion: embedder must not be nil")
	}
	if store == nil {
		return nil, fmt.Errorf("ingestion: store must not be nil")
	}
	if cfg == nil {
		cfg = &Config{}
	}

	size, overlap := cfg.ChunkSize, cfg.ChunkOverlap
	if size == 0 && overlap == 0 {
		size, overlap = DefaultChunkSize, DefaultChunkOverlap
	} else if size == 0 {
		size = DefaultChunkSize
	}
	chunker, err := NewChunker(size, overlap)
	if err != nil {
		return nil, err
	}

	batch := cfg.BatchSize
	if batch <= 0 {
		batch = defaultBatchSize
	}
	log := cfg.Logger
	if log == nil {
		log = slog.Default()
	}

	return &Pipeline{
		embedder:  embedder,
		store:     store,
		chunker:   chunker,
		batchSize: batch,
		log:       log,
	}, nil
}

// Chunker returns the chunker the pipeline splits text with.
func (p *Pipeline) Chunker() *Chunker { return p.chunker }

// Add embeds any document that lacks an embedding and upserts all of them.
// It returns rag.ErrStoreUnavailable without calling the embedder when the
// store is known to be unreachable.
func (p *Pipeline) Add(ctx context.Context, docs []rag.Document) error {
	if len(docs) == 0 {
		return nil
	}
	if p.store.State() == rag.StateUnreachable {
		return rag.ErrStoreUnavailable
	}

	var (
		pending []int
		texts   []string
	)
	for i := range docs {
		if len(docs[i].Embedding) == 0 {
			pending = append(pending, i)
			texts = append(texts, docs[i].Content)
		}
	}

	for start := 0; start < len(texts); start += p.batchSize {
		end := min(start+p.batchSize, len(texts))
		vecs, err := p.embedder.Embed(ctx, texts[start:end])
		if err != nil {
			return fmt.Errorf("ingestion: embedding failed: %w", err)
		}
		if len(vecs) != end-start {
			return fmt.Errorf("ingestion: embedder returned %d vectors for %d texts", len(vecs), end-start)
		}
		for j, vec := range vecs {
			docs[pending[start+j]].Embedding = vec
		}
	}

	if err := p.store.Upsert(ctx, docs); err != nil {
		return fmt.Errorf("ingestion: upsert failed: %w", err)
	}
	return nil
}

// IngestText chunks text, stamps meta on every chunk and stores them.
// It returns the stored chunks.
func (p *Pipeline) IngestText(ctx context.Context, text string, meta map[string]string) ([]rag.Document, error) {
	docs := p.chunker.CreateDocuments(text, meta)
	if len(docs) == 0 {
		return nil, ErrContentTooShort
	}
	if err := p.Add(ctx, docs); err != nil {
		return nil, err
	}
	return docs, nil
}

// IngestFile parses one markdown chapter and stores its chunks.
func (p *Pipeline) IngestFile(ctx context.Context, path string) (int, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return 0, fmt.Errorf("ingestion: reading %s: %w", path, err)
	}

	ch := ParseChapter(path, raw)
	if utf8.RuneCountInString(ch.Content) <= MinContentLength {
		return 0, ErrContentTooShort
	}

	docs, err := p.IngestText(ctx, ch.Content, ch.Metadata())
	if err != nil {
		return 0, err
	}
	return len(docs), nil
}

// IngestDir ingests every file under dir whose base name matches pattern.
// Files are processed in lexical order. A failing file is logged and recorded
// in the report; the walk continues. The run aborts early when the store
// becomes unavailable or ctx is cancelled.
func (p *Pipeline) IngestDir(ctx context.Context, dir, pattern string) (*Report, error) {
	if pattern == "" {
		pattern = DefaultPattern
	}
	if _, err := filepath.Match(pattern, ""); err != nil {
		return nil, fmt.Errorf("ingestion: invalid pattern %q: %w", pattern, err)
	}

	var files []string
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if path != dir && strings.HasPrefix(d.Name(), ".") {
				return filepath.SkipDir
			}
			return nil
		}
		if ok, _ := filepath.Match(pattern, d.Name()); ok {
			files = append(files, path)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("ingestion: walking %s: %w", dir, err)
	}
	sort.Strings(files)

	report := &Report{Files: len(files), Failed: make(map[string]error)}
	for _, path := range files {
		if err := ctx.Err(); err != nil {
			return report, err
		}

		n, err := p.IngestFile(ctx, path)
		switch {
		case err == nil:
			report.Indexed++
			report.Chunks += n
			p.log.Info("ingestion: indexed file", "path", path, "chunks", n)
		case errors.Is(err, ErrContentTooShort):
			report.Skipped = append(report.Skipped, path)
			p.log.Info("ingestion: skipped short file", "path", path)
		case errors.Is(err, rag.ErrStoreUnavailable):
			report.Failed[path] = err
			return report, err
		default:
			report.Failed[path] = err
			p.log.Warn("ingestion: file failed", "path", path, "error", err)
		}
	}

	p.log.Info("ingestion: directory complete",
		"dir", dir,
		"files", report.Files,
		"indexed", report.Indexed,
		"chunks", report.Chunks,
		"skipped", len(report.Skipped),
		"failed", len(report.Failed),
	)
	return report, nil
}

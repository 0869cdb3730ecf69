package ingestion

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"

	"github.com/54b3r/tbrag-go/internal/rag"
)

const (
	// DefaultChunkSize is the target chunk length in characters.
	DefaultChunkSize = 1000
	// DefaultChunkOverlap is the number of characters repeated between chunks.
	DefaultChunkOverlap = 100
)

// Span is a half-open [Start, End) range of rune offsets into the chunked text.
type Span struct {
	// Start is the offset of the first rune in the chunk.
	Start int
	// End is one past the offset of the last rune in the chunk.
	End int
}

// Chunker splits text into overlapping, sentence-biased chunks.
// Offsets and sizes are counted in runes.
type Chunker struct {
	size    int
	overlap int
}

// NewChunker returns a Chunker. size must be positive and overlap must lie in
// [0, size).
func NewChunker(size, overlap int) (*Chunker, error) {
	if size <= 0 {
		return nil, fmt.Errorf("ingestion: chunk size must be positive, got %d", size)
	}
	if overlap < 0 || overlap >= size {
		return nil, fmt.Errorf("ingestion: chunk overlap must be in [0, %d), got %d", size, overlap)
	}
	return &Chunker{size: size, overlap: overlap}, nil
}

// DefaultChunker returns a Chunker with the default size and overlap.
func DefaultChunker() *Chunker {
	return &Chunker{size: DefaultChunkSize, overlap: DefaultChunkOverlap}
}

// Split returns the chunk boundaries for text.
//
// Each window of size runes is cut after its last '.', '!' or '?'. The last
// space is used only when the window holds none of those. The cut is taken
// only when it lies past the middle of the window; otherwise the window is
// cut at its full length. The next window starts overlap runes before the
// cut. A window that reaches the end of the text is emitted whole.
func (c *Chunker) Split(text string) []Span {
	runes := []rune(text)
	n := len(runes)
	if n <= c.size {
		return []Span{{Start: 0, End: n}}
	}

	var spans []Span
	start := 0
	for start < n {
		end := start + c.size
		if end >= n {
			spans = append(spans, Span{Start: start, End: n})
			break
		}

		window := runes[start:end]
		cut := end
		if bp := breakPoint(window); bp != -1 && bp > len(window)/2 {
			cut = start + bp + 1
		}
		spans = append(spans, Span{Start: start, End: cut})

		next := cut - c.overlap
		if next <= start {
			// Overlap would stall the loop; continue from the cut instead.
			next = cut
		}
		start = next
	}
	return spans
}

// Chunk returns the text of each chunk produced by Split.
func (c *Chunker) Chunk(text string) []string {
	runes := []rune(text)
	spans := c.Split(text)
	out := make([]string, len(spans))
	for i, s := range spans {
		out[i] = string(runes[s.Start:s.End])
	}
	return out
}

// breakPoint returns the index of the last sentence terminator in window,
// falling back to the last space, or -1 when neither occurs.
func breakPoint(window []rune) int {
	lastSpace := -1
	for i := len(window) - 1; i >= 0; i-- {
		switch window[i] {
		case '.', '!', '?':
			return i
		case ' ':
			if lastSpace == -1 {
				lastSpace = i
			}
		}
	}
	return lastSpace
}

// CleanText collapses every run of whitespace to a single space and trims
// the ends.
func CleanText(text string) string {
	return strings.Join(strings.Fields(text), " ")
}

// CreateDocuments cleans text, chunks it and wraps each chunk in a
// rag.Document. meta is copied into every chunk's metadata together with
// chunk_index and total_chunks. When meta carries a source_id the chunk IDs
// are "{source_id}_{i}"; otherwise they are "chunk_{i}_{hash}" where hash is
// derived from the chunk content. Empty input yields no documents.
func (c *Chunker) CreateDocuments(text string, meta map[string]string) []rag.Document {
	cleaned := CleanText(text)
	if cleaned == "" {
		return nil
	}

	chunks := c.Chunk(cleaned)
	sourceID := meta["source_id"]
	total := strconv.Itoa(len(chunks))

	docs := make([]rag.Document, 0, len(chunks))
	for i, chunk := range chunks {
		md := make(map[string]string, len(meta)+2)
		for k, v := range meta {
			md[k] = v
		}
		md["chunk_index"] = strconv.Itoa(i)
		md["total_chunks"] = total

		docs = append(docs, rag.Document{
			ID:       chunkID(sourceID, i, chunk),
			Content:  chunk,
			Metadata: md,
		})
	}
	return docs
}

// chunkID builds a chunk identifier from the source ID, or from a content
// hash when there is none.
func chunkID(sourceID string, index int, content string) string {
	if sourceID != "" {
		return sourceID + "_" + strconv.Itoa(index)
	}
	return "chunk_" + strconv.Itoa(index) + "_" + contentHash(content)
}

// contentHash returns a short stable hex digest of s.
func contentHash(s string) string {
	h := sha256.Sum256([]byte(s))
	return hex.EncodeToString(h[:4])
}

package rag

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/qdrant/go-client/qdrant"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

const (
	// DefaultCollection is the collection holding textbook chunks.
	DefaultCollection = "textbook_content"

	// defaultGRPCPort is Qdrant's gRPC port. The Go client speaks gRPC only.
	defaultGRPCPort = 6334

	// restPort is Qdrant's HTTP port; URLs that name it are redirected to gRPC.
	restPort = 6333

	// Payload keys.
	payloadContent  = "content"
	payloadDocID    = "doc_id"
	payloadMetadata = "metadata"
)

// QdrantConfig holds connection parameters for a Qdrant vector store instance.
type QdrantConfig struct {
	// URL is the Qdrant endpoint, e.g. http://localhost:6334. An https scheme
	// enables TLS. A missing port defaults to 6334.
	URL string

	// Collection is the Qdrant collection name (default: textbook_content).
	Collection string

	// VectorSize is the dimensionality of the embeddings stored in this collection.
	VectorSize uint64

	// APIKey is the optional Qdrant API key for authenticated clusters.
	APIKey string

	// Logger receives state transitions. Defaults to slog.Default().
	Logger *slog.Logger
}

// QdrantStore implements VectorStore backed by a Qdrant instance.
type QdrantStore struct {
	// client is the underlying Qdrant gRPC client.
	client *qdrant.Client

	// cfg holds the resolved configuration for this store.
	cfg QdrantConfig

	// host and port are the resolved gRPC endpoint.
	host string
	port int

	// state holds a ConnState.
	state atomic.Int32

	// collectionMu serialises lazy collection creation.
	collectionMu sync.Mutex

	// collectionReady is set once the collection is known to exist.
	collectionReady bool

	// log receives state transitions.
	log *slog.Logger
}

// NewQdrantStore constructs a QdrantStore without contacting the server.
// The store starts in StateUninitialized; call Connect to probe it.
func NewQdrantStore(cfg QdrantConfig) (*QdrantStore, error) {
	if cfg.Collection == "" {
		cfg.Collection = DefaultCollection
	}
	if cfg.VectorSize == 0 {
		return nil, fmt.Errorf("qdrant: vector size must be positive")
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	host, port, useTLS, err := parseQdrantURL(cfg.URL)
	if err != nil {
		return nil, err
	}

	client, err := qdrant.NewClient(&qdrant.Config{
		Host:                   host,
		Port:                   port,
		APIKey:                 cfg.APIKey,
		UseTLS:                 useTLS,
		SkipCompatibilityCheck: true,
	})
	if err != nil {
		return nil, fmt.Errorf("qdrant: failed to create client: %w", err)
	}

	return &QdrantStore{
		client: client,
		cfg:    cfg,
		host:   host,
		port:   port,
		log:    cfg.Logger,
	}, nil
}

// parseQdrantURL resolves a Qdrant URL into gRPC host, port and TLS flag.
func parseQdrantURL(raw string) (string, int, bool, error) {
	if raw == "" {
		raw = "http://localhost:6334"
	}
	u, err := url.Parse(raw)
	if err != nil {
		return "", 0, false, fmt.Errorf("qdrant: invalid URL %q: %w", raw, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return "", 0, false, fmt.Errorf("qdrant: unsupported URL scheme %q", u.Scheme)
	}
	host := u.Hostname()
	if host == "" {
		return "", 0, false, fmt.Errorf("qdrant: URL %q has no host", raw)
	}

	port := defaultGRPCPort
	if p := u.Port(); p != "" {
		port, err = strconv.Atoi(p)
		if err != nil {
			return "", 0, false, fmt.Errorf("qdrant: invalid port in %q: %w", raw, err)
		}
	}
	if port == restPort {
		port = defaultGRPCPort
	}

	return host, port, u.Scheme == "https", nil
}

// Endpoint returns the resolved gRPC host:port for logs.
func (s *QdrantStore) Endpoint() string {
	return s.host + ":" + strconv.Itoa(s.port)
}

// Collection returns the collection name this store reads and writes.
func (s *QdrantStore) Collection() string {
	return s.cfg.Collection
}

// State reports the current reachability of the backend.
func (s *QdrantStore) State() ConnState {
	return ConnState(s.state.Load())
}

// setState records a transition and logs it when the state actually changes.
func (s *QdrantStore) setState(next ConnState, cause error) {
	prev := ConnState(s.state.Swap(int32(next)))
	if prev == next {
		return
	}
	attrs := []any{
		slog.String("from", prev.String()),
		slog.String("to", next.String()),
		slog.String("endpoint", s.Endpoint()),
	}
	if cause != nil {
		attrs = append(attrs, slog.Any("error", cause))
		s.log.Warn("qdrant: connection state changed", attrs...)
		return
	}
	s.log.Info("qdrant: connection state changed", attrs...)
}

// Connect probes the server by listing collections and transitions the
// store to Connected or Unreachable. The returned error is informational;
// callers are expected to continue in degraded mode.
func (s *QdrantStore) Connect(ctx context.Context) error {
	if _, err := s.client.ListCollections(ctx); err != nil {
		s.setState(StateUnreachable, err)
		return fmt.Errorf("qdrant: connect %s: %w", s.Endpoint(), err)
	}
	s.setState(StateConnected, nil)
	return nil
}

// Ping checks server health. A successful ping marks the store Connected.
func (s *QdrantStore) Ping(ctx context.Context) error {
	if _, err := s.client.HealthCheck(ctx); err != nil {
		s.setState(StateUnreachable, err)
		return fmt.Errorf("qdrant: health check failed: %w", err)
	}
	s.setState(StateConnected, nil)
	return nil
}

// Watch re-probes the server every interval while it is not connected, until
// ctx is cancelled.
func (s *QdrantStore) Watch(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if s.State() == StateConnected {
				continue
			}
			probeCtx, cancel := context.WithTimeout(ctx, interval)
			_ = s.Ping(probeCtx)
			cancel()
		}
	}
}

// observe downgrades the state when err indicates the server is unreachable.
func (s *QdrantStore) observe(err error) {
	if isUnavailable(err) {
		s.setState(StateUnreachable, err)
	}
}

// isUnavailable reports whether err is a gRPC transport failure.
func isUnavailable(err error) bool {
	if err == nil {
		return false
	}
	st, ok := status.FromError(err)
	return ok && st.Code() == codes.Unavailable
}

// ensureCollection creates the Qdrant collection if it does not already exist.
// Concurrent callers block on the mutex so the collection is created once.
func (s *QdrantStore) ensureCollection(ctx context.Context) error {
	s.collectionMu.Lock()
	defer s.collectionMu.Unlock()

	if s.collectionReady {
		return nil
	}

	exists, err := s.client.CollectionExists(ctx, s.cfg.Collection)
	if err != nil {
		s.observe(err)
		return fmt.Errorf("qdrant: failed to check collection existence: %w", err)
	}
	if !exists {
		err = s.client.CreateCollection(ctx, &qdrant.CreateCollection{
			CollectionName: s.cfg.Collection,
			VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{
				Size:     s.cfg.VectorSize,
				Distance: qdrant.Distance_Cosine,
			}),
		})
		if err != nil {
			s.observe(err)
			return fmt.Errorf("qdrant: failed to create collection %q: %w", s.cfg.Collection, err)
		}
		s.log.Info("qdrant: collection created",
			slog.String("collection", s.cfg.Collection),
			slog.Uint64("dimensions", s.cfg.VectorSize),
		)
	}

	s.collectionReady = true
	return nil
}

// Upsert stores or overwrites documents. Each document must carry an
// embedding of exactly VectorSize dimensions.
func (s *QdrantStore) Upsert(ctx context.Context, docs []Document) error {
	if len(docs) == 0 {
		return nil
	}

	points := make([]*qdrant.PointStruct, 0, len(docs))
	for _, doc := range docs {
		if uint64(len(doc.Embedding)) != s.cfg.VectorSize {
			return fmt.Errorf("%w: document %q has %d dimensions, collection expects %d",
				ErrDimensionMismatch, doc.ID, len(doc.Embedding), s.cfg.VectorSize)
		}
		points = append(points, &qdrant.PointStruct{
			Id:      qdrant.NewIDUUID(pointID(doc.ID)),
			Vectors: qdrant.NewVectors(doc.Embedding...),
			Payload: qdrant.NewValueMap(payloadFor(doc)),
		})
	}

	if err := s.ensureCollection(ctx); err != nil {
		return err
	}

	_, err := s.client.Upsert(ctx, &qdrant.UpsertPoints{
		CollectionName: s.cfg.Collection,
		Points:         points,
		Wait:           qdrant.PtrOf(true),
	})
	if err != nil {
		s.observe(err)
		return fmt.Errorf("qdrant: upsert failed: %w", err)
	}

	return nil
}

// Search performs a cosine similarity search and returns the top-k results.
func (s *QdrantStore) Search(ctx context.Context, queryEmbedding []float32, topK int) ([]Document, error) {
	if err := s.ensureCollection(ctx); err != nil {
		return nil, err
	}

	limit := uint64(topK) //nolint:gosec // topK is a small positive constant
	results, err := s.client.Query(ctx, &qdrant.QueryPoints{
		CollectionName: s.cfg.Collection,
		Query:          qdrant.NewQuery(queryEmbedding...),
		Limit:          &limit,
		WithPayload:    qdrant.NewWithPayload(true),
	})
	if err != nil {
		s.observe(err)
		return nil, fmt.Errorf("qdrant: search failed: %w", err)
	}

	docs := make([]Document, 0, len(results))
	for _, r := range results {
		doc := documentFromPayload(r.GetId().GetUuid(), r.GetPayload())
		doc.Score = r.GetScore()
		docs = append(docs, doc)
	}

	return docs, nil
}

// Get fetches a single document by its ID.
func (s *QdrantStore) Get(ctx context.Context, id string) (*Document, error) {
	if err := s.ensureCollection(ctx); err != nil {
		return nil, err
	}

	points, err := s.client.Get(ctx, &qdrant.GetPoints{
		CollectionName: s.cfg.Collection,
		Ids:            []*qdrant.PointId{qdrant.NewIDUUID(pointID(id))},
		WithPayload:    qdrant.NewWithPayload(true),
	})
	if err != nil {
		s.observe(err)
		return nil, fmt.Errorf("qdrant: get %q failed: %w", id, err)
	}
	if len(points) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}

	doc := documentFromPayload(points[0].GetId().GetUuid(), points[0].GetPayload())
	return &doc, nil
}

// Delete removes documents from the collection by their IDs.
func (s *QdrantStore) Delete(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}

	pointIDs := make([]*qdrant.PointId, 0, len(ids))
	for _, id := range ids {
		pointIDs = append(pointIDs, qdrant.NewIDUUID(pointID(id)))
	}

	_, err := s.client.Delete(ctx, &qdrant.DeletePoints{
		CollectionName: s.cfg.Collection,
		Points:         qdrant.NewPointsSelector(pointIDs...),
		Wait:           qdrant.PtrOf(true),
	})
	if err != nil {
		s.observe(err)
		return fmt.Errorf("qdrant: delete failed: %w", err)
	}

	return nil
}

// Close closes the underlying Qdrant gRPC connection.
func (s *QdrantStore) Close() error {
	if err := s.client.Close(); err != nil {
		return fmt.Errorf("qdrant: close: %w", err)
	}
	return nil
}

// pointID maps a document ID onto a Qdrant point UUID. UUIDs pass through;
// anything else becomes a deterministic UUIDv5 so re-adding the same ID
// overwrites the same point.
func pointID(docID string) string {
	if u, err := uuid.Parse(docID); err == nil {
		return u.String()
	}
	return uuid.NewSHA1(uuid.NameSpaceURL, []byte(docID)).String()
}

// payloadFor builds the point payload {content, doc_id, metadata}.
func payloadFor(doc Document) map[string]any {
	meta := make(map[string]any, len(doc.Metadata))
	for k, v := range doc.Metadata {
		meta[k] = v
	}
	return map[string]any{
		payloadContent:  doc.Content,
		payloadDocID:    doc.ID,
		payloadMetadata: meta,
	}
}

// documentFromPayload rebuilds a Document from a point payload. The original
// document ID is preferred over the point UUID when present.
func documentFromPayload(pointUUID string, payload map[string]*qdrant.Value) Document {
	doc := Document{
		ID:       pointUUID,
		Metadata: make(map[string]string),
	}
	if v, ok := payload[payloadContent]; ok {
		doc.Content = v.GetStringValue()
	}
	if v, ok := payload[payloadDocID]; ok && v.GetStringValue() != "" {
		doc.ID = v.GetStringValue()
	}
	if v, ok := payload[payloadMetadata]; ok {
		for k, mv := range v.GetStructValue().GetFields() {
			doc.Metadata[k] = mv.GetStringValue()
		}
	}
	return doc
}

// IsUnavailable reports whether err means the vector store could not be reached.
func IsUnavailable(err error) bool {
	return errors.Is(err, ErrStoreUnavailable) || isUnavailable(err)
}

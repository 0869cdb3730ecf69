package server

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/54b3r/tbrag-go/internal/agent"
	"github.com/54b3r/tbrag-go/internal/rag"
	"github.com/54b3r/tbrag-go/internal/store"
)

// Config holds the HTTP server configuration.
type Config struct {
	// Host is the address to bind to (default: 0.0.0.0).
	Host string
	// Port is the TCP port to listen on (default: 8000).
	Port int
	// ReadTimeout is the maximum duration for reading the request.
	ReadTimeout time.Duration
	// WriteTimeout is the maximum duration for writing the response.
	WriteTimeout time.Duration
	// ShutdownTimeout is the maximum duration for a graceful shutdown.
	ShutdownTimeout time.Duration
	// ChatTimeout bounds each POST /api/v1/chat request (RESPONSE_TIMEOUT).
	// Defaults to 30s if zero.
	ChatTimeout time.Duration
	// Logger is the structured logger used by the server and its handlers.
	// If nil, [logging.New] is used.
	Logger *slog.Logger
	// Pingers is the ordered list of dependency probes run by GET /api/v1/ready.
	// If empty, /api/v1/ready returns 200 with no checks (liveness-only mode).
	Pingers []Pinger
	// Ingester stores uploaded textbook content. If nil, uploads fail with 500.
	Ingester Ingester
	// Sessions persists chat turns. If nil, sessions are not stored.
	Sessions store.SessionStore
	// RateLimit is the sustained request rate allowed per IP on rate-limited
	// endpoints (requests/second). Defaults to 10 if zero.
	RateLimit float64
	// RateBurst is the maximum instantaneous burst per IP. Defaults to 20 if zero.
	RateBurst int
	// TrustProxy keys the rate limiter on the first X-Forwarded-For hop.
	// Enable only behind a reverse proxy that sets the header.
	TrustProxy bool
	// APIKey is the Bearer token required on protected /api/v1 routes.
	// If empty, authentication is disabled (development mode).
	APIKey string
	// Metrics is the metric set shared with the agent. If nil, one is
	// registered against MetricsRegistry.
	Metrics *Metrics
	// MetricsRegistry receives the server metrics. Defaults to
	// prometheus.DefaultRegisterer.
	MetricsRegistry prometheus.Registerer
	// MetricsGatherer backs GET /metrics. Defaults to prometheus.DefaultGatherer.
	MetricsGatherer prometheus.Gatherer
}

// Answerer produces answers for chat requests.
// *agent.TextbookAgent satisfies it; tests inject a fake.
type Answerer interface {
	Answer(ctx context.Context, qc agent.QueryContext) agent.Answer
}

// Ingester stores documents in the vector store.
// *ingestion.Pipeline satisfies it.
type Ingester interface {
	Add(ctx context.Context, docs []rag.Document) error
}

// Server is the HTTP server that exposes the textbook assistant.
type Server struct {
	// answerer handles every chat query.
	answerer Answerer
	// ingester stores uploaded content.
	ingester Ingester
	// sessions persists chat turns; may be nil.
	sessions store.SessionStore
	// cfg holds the resolved server configuration.
	cfg *Config
	// httpServer is the underlying net/http server.
	httpServer *http.Server
	// log is the structured logger for this server instance.
	log *slog.Logger
	// pingers is the ordered list of dependency probes for GET /api/v1/ready.
	pingers []Pinger
	// metrics holds the Prometheus collectors.
	metrics *Metrics
	// stopRL stops the rate limiter's background eviction goroutine on shutdown.
	stopRL func()
}

// chatRequest is the JSON body for POST /api/v1/chat.
type chatRequest struct {
	// Message is the reader's question.
	Message string `json:"message"`
	// SessionID groups turns; a new one is issued when empty.
	SessionID string `json:"session_id,omitempty"`
	// SelectedText is text the reader highlighted in the book.
	SelectedText string `json:"selected_text,omitempty"`
	// Language is "en" or "ur". Defaults to "en".
	Language string `json:"language,omitempty"`
	// ContextWindow is optional surrounding page text.
	ContextWindow string `json:"context_window,omitempty"`
}

// chatResponse is the JSON response for POST /api/v1/chat.
type chatResponse struct {
	Response  string         `json:"response"`
	SessionID string         `json:"session_id"`
	Timestamp string         `json:"timestamp"`
	Sources   []agent.Source `json:"sources"`
}

// uploadRequest is the body for POST /api/v1/chat/upload-textbook-content.
type uploadRequest struct {
	Content string `json:"content"`
	Title   string `json:"title,omitempty"`
	Section string `json:"section,omitempty"`
}

// uploadResponse acknowledges a stored upload.
type uploadResponse struct {
	Message string `json:"message"`
	DocID   string `json:"doc_id"`
}

// errorResponse is the body of every non-2xx JSON response.
type errorResponse struct {
	Error  string `json:"error"`
	Detail string `json:"detail,omitempty"`
}

// Package server implements the HTTP API that exposes the textbook assistant:
// chat, content upload, session lookup, health, readiness and metrics.
// The server is started by the `tbrag serve` CLI command.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/cors"

	"github.com/54b3r/tbrag-go/internal/logging"
)

// New constructs a Server from the provided answerer and config.
func New(a Answerer, cfg *Config) (*Server, error) {
	if a == nil {
		return nil, fmt.Errorf("server: answerer must not be nil")
	}
	if cfg == nil {
		cfg = &Config{}
	}
	if cfg.Host == "" {
		cfg.Host = "0.0.0.0"
	}
	if cfg.Port == 0 {
		cfg.Port = 8000
	}
	if cfg.ReadTimeout == 0 {
		cfg.ReadTimeout = 30 * time.Second
	}
	if cfg.ChatTimeout == 0 {
		cfg.ChatTimeout = 30 * time.Second
	}
	if cfg.WriteTimeout == 0 {
		// Leave room for the chat deadline plus response encoding.
		cfg.WriteTimeout = cfg.ChatTimeout + 15*time.Second
	}
	if cfg.ShutdownTimeout == 0 {
		cfg.ShutdownTimeout = 10 * time.Second
	}
	if cfg.RateLimit == 0 {
		cfg.RateLimit = defaultRateLimit
	}
	if cfg.RateBurst == 0 {
		cfg.RateBurst = defaultRateBurst
	}
	if cfg.Logger == nil {
		cfg.Logger = logging.New()
	}
	if cfg.MetricsRegistry == nil {
		cfg.MetricsRegistry = prometheus.DefaultRegisterer
	}
	if cfg.MetricsGatherer == nil {
		cfg.MetricsGatherer = prometheus.DefaultGatherer
	}
	metrics := cfg.Metrics
	if metrics == nil {
		metrics = NewMetrics(cfg.MetricsRegistry)
	}

	if cfg.APIKey == "" {
		cfg.Logger.Warn("server: TBRAG_API_KEY is not set, API authentication is disabled")
	}
	if cfg.Sessions == nil {
		cfg.Logger.Info("server: session persistence disabled")
	}

	rl, stopRL := newRateLimiter(cfg.RateLimit, cfg.RateBurst, cfg.Logger)
	rl.trustProxy = cfg.TrustProxy

	s := &Server{
		answerer: a,
		ingester: cfg.Ingester,
		sessions: cfg.Sessions,
		cfg:      cfg,
		log:      cfg.Logger,
		pingers:  cfg.Pingers,
		metrics:  metrics,
		stopRL:   stopRL,
	}

	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Handler:      s.routes(rl),
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}

	return s, nil
}

// routes builds the chi router with all middleware and endpoints.
func (s *Server) routes(rl *rateLimiter) http.Handler {
	r := chi.NewRouter()

	r.Use(func(next http.Handler) http.Handler { return requestLogger(s.log, next) })
	r.Use(middleware.Recoverer)
	r.Use(s.metrics.middleware)
	r.Use(cors.AllowAll().Handler)

	r.Get("/", s.handleRoot)
	r.Get("/health", s.handleHealth)
	r.Handle("/metrics", promhttp.HandlerFor(s.cfg.MetricsGatherer, promhttp.HandlerOpts{}))

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/ready", s.handleReady)
		r.Get("/chat/health", s.handleChatHealth)

		r.Group(func(r chi.Router) {
			r.Use(func(next http.Handler) http.Handler { return authMiddleware(s.cfg.APIKey, next) })

			r.Get("/chat/sessions/{sessionID}", s.handleSession)

			r.Group(func(r chi.Router) {
				r.Use(rl.middleware)
				r.Post("/chat", s.handleChat)
				r.Post("/chat/upload-textbook-content", s.handleUpload)
			})
		})
	})

	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusNotFound, "not found", "")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed", "")
	})

	return r
}

// Handler returns the root HTTP handler. Used by tests.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// Start begins listening and serving HTTP requests. It blocks until the
// context is cancelled, then performs a graceful shutdown.
func (s *Server) Start(ctx context.Context) error {
	defer s.stopRL()

	errCh := make(chan error, 1)

	go func() {
		s.log.Info("server listening", slog.String("addr", "http://"+s.httpServer.Addr))
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("server: listen error: %w", err)
	case <-ctx.Done():
		s.log.Info("server shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout)
		defer cancel()
		if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server: graceful shutdown failed: %w", err)
		}
		return nil
	}
}

package commands

import (
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/54b3r/tbrag-go/internal/config"
	"github.com/54b3r/tbrag-go/internal/ingestion"
	"github.com/54b3r/tbrag-go/internal/logging"
	"github.com/54b3r/tbrag-go/internal/provider"
	"github.com/54b3r/tbrag-go/internal/rag"
	"github.com/54b3r/tbrag-go/internal/server"
	"github.com/54b3r/tbrag-go/internal/store"
	"github.com/54b3r/tbrag-go/internal/tracing"
)

// qdrantReconnectInterval is how often an unreachable Qdrant is re-probed.
const qdrantReconnectInterval = 15 * time.Second

// NewServeCmd constructs the `tbrag serve` command, which starts the HTTP API.
func NewServeCmd() *cobra.Command {
	var host string
	var port int
	var trustProxy bool

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the textbook assistant HTTP API",
		Long: `Start the HTTP API.

The server answers POST /api/v1/chat, accepts content uploads and exposes
session history, health, readiness and Prometheus metrics. When Qdrant or the
session database is unavailable the server still starts and answers without
retrieved context or without persistence.

Examples:
  tbrag serve
  tbrag serve --port 9000
  MODEL_PROVIDER=ollama tbrag serve`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			log := logging.New()
			ctx = logging.WithLogger(ctx, log)
			app := config.AppFromEnv()

			log.Info("serve starting",
				slog.String("provider", os.Getenv("MODEL_PROVIDER")),
				slog.Duration("response_timeout", app.ResponseTimeout),
				slog.Int("max_context_length", app.MaxContextLength),
			)

			flush := tracing.Setup(tracing.ConfigFromEnv(), log)
			defer flush()

			metrics := server.NewMetrics(prometheus.DefaultRegisterer)

			var (
				retriever rag.Retriever
				ingester  server.Ingester
				pingers   []server.Pinger
			)
			vs, err := buildVectorStack(ctx, log)
			if err != nil {
				log.Warn("serve: retrieval disabled", slog.Any("error", err))
			} else {
				defer vs.Close()
				go vs.store.Watch(ctx, qdrantReconnectInterval)

				pipeline, err := ingestion.NewPipeline(vs.embedder, vs.store, &ingestion.Config{Logger: log})
				if err != nil {
					return fmt.Errorf("serve: %w", err)
				}
				retriever = vs.retriever
				ingester = pipeline
				pingers = append(pingers, server.NewQdrantPinger(vs.store))
			}

			textbookAgent, chatModel, providerCfg, err := buildAgent(ctx, retriever, metrics.ObserveRetrieval)
			if err != nil {
				return fmt.Errorf("serve: %w", err)
			}
			log.Info("provider initialised",
				slog.String("provider", string(providerCfg.Backend)),
				slog.String("model", providerCfg.ModelName()),
			)
			pingers = append(pingers, server.NewLLMPinger(chatModel, provider.NewHealthCheck(providerCfg), string(providerCfg.Backend)))

			sessions, err := store.Open(ctx, config.DatabaseURL())
			if err != nil {
				log.Warn("sessions: failed to open store, disabling", slog.Any("error", err))
				sessions = nil
			}
			if sessions != nil {
				defer func() { _ = sessions.Close() }()
			}

			srv, err := server.New(textbookAgent, &server.Config{
				Host:        host,
				Port:        port,
				ChatTimeout: app.ResponseTimeout,
				Logger:      log,
				Pingers:     pingers,
				Ingester:    ingester,
				Sessions:    sessions,
				APIKey:      os.Getenv("TBRAG_API_KEY"),
				TrustProxy:  trustProxy,
				Metrics:     metrics,
			})
			if err != nil {
				return fmt.Errorf("serve: failed to create server: %w", err)
			}

			return srv.Start(ctx)
		},
	}

	cmd.Flags().StringVar(&host, "host", "0.0.0.0", "Host address to bind to")
	cmd.Flags().IntVarP(&port, "port", "p", 8000, "TCP port to listen on")
	cmd.Flags().BoolVar(&trustProxy, "trust-proxy", false, "Rate-limit on X-Forwarded-For (set when behind a reverse proxy)")

	return cmd
}

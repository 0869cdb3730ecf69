package commands

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/54b3r/tbrag-go/internal/ingestion"
	"github.com/54b3r/tbrag-go/internal/logging"
	"github.com/54b3r/tbrag-go/internal/rag"
)

// NewIngestCmd constructs the `tbrag ingest` command, which loads markdown
// chapters into the vector store.
func NewIngestCmd() *cobra.Command {
	var (
		dir       string
		pattern   string
		chunkSize int
		overlap   int
	)

	cmd := &cobra.Command{
		Use:   "ingest",
		Short: "Index textbook chapters into the Qdrant vector store",
		Long: `Walk a directory of markdown chapters, split each into overlapping chunks,
embed them and store them in Qdrant.

Files whose content is too short are skipped. A file that fails is logged and
the run continues; the run stops if Qdrant becomes unreachable.

Examples:
  tbrag ingest --dir docs
  tbrag ingest --dir book/docs --pattern "*.mdx" --chunk-size 800 --overlap 80`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			log := logging.New()
			ctx := logging.WithLogger(cmd.Context(), log)

			vs, err := buildVectorStack(ctx, log)
			if err != nil {
				return fmt.Errorf("ingest: %w", err)
			}
			defer vs.Close()

			if vs.store.State() != rag.StateConnected {
				return fmt.Errorf("ingest: qdrant at %s: %w", vs.store.Endpoint(), rag.ErrStoreUnavailable)
			}

			pipeline, err := ingestion.NewPipeline(vs.embedder, vs.store, &ingestion.Config{
				ChunkSize:    chunkSize,
				ChunkOverlap: overlap,
				Logger:       log,
			})
			if err != nil {
				return fmt.Errorf("ingest: %w", err)
			}

			report, err := pipeline.IngestDir(ctx, dir, pattern)
			if report != nil {
				fmt.Fprintf(cmd.OutOrStdout(), "Successfully indexed %d of %d documents (%d chunks, %d skipped, %d failed)\n",
					report.Indexed, report.Files, report.Chunks, len(report.Skipped), len(report.Failed))
			}
			if err != nil {
				if errors.Is(err, rag.ErrStoreUnavailable) {
					log.Error("ingest: vector store became unavailable", slog.Any("error", err))
				}
				return fmt.Errorf("ingest: %w", err)
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&dir, "dir", "d", "docs", "Directory of markdown chapters")
	cmd.Flags().StringVar(&pattern, "pattern", ingestion.DefaultPattern, "Glob matched against file names")
	cmd.Flags().IntVar(&chunkSize, "chunk-size", ingestion.DefaultChunkSize, "Target chunk length in characters")
	cmd.Flags().IntVar(&overlap, "overlap", ingestion.DefaultChunkOverlap, "Characters repeated between consecutive chunks")

	return cmd
}

package commands

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/spf13/cobra"

	"github.com/54b3r/tbrag-go/internal/agent"
	"github.com/54b3r/tbrag-go/internal/logging"
	"github.com/54b3r/tbrag-go/internal/rag"
)

// NewAskCmd constructs the `tbrag ask` command, which answers one question
// and prints the answer followed by its sources.
func NewAskCmd() *cobra.Command {
	var (
		selected string
		language string
	)

	cmd := &cobra.Command{
		Use:   "ask [question]",
		Short: "Ask the textbook assistant a question",
		Long: `Answer a single question using the same retrieval and prompt as the API.

With --selected the given text is used as the only context and Qdrant is not
consulted.

Examples:
  tbrag ask "What is a humanoid robot?"
  tbrag ask --language ur "What is ROS 2?"
  tbrag ask --selected "Actuators convert energy into motion." "Explain this"`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			log := logging.New()
			ctx := logging.WithLogger(cmd.Context(), log)

			var retriever rag.Retriever
			if selected == "" {
				vs, err := buildVectorStack(ctx, log)
				if err != nil {
					log.Warn("ask: retrieval disabled", slog.Any("error", err))
				} else {
					defer vs.Close()
					retriever = vs.retriever
				}
			}

			textbookAgent, _, _, err := buildAgent(ctx, retriever, nil)
			if err != nil {
				return fmt.Errorf("ask: %w", err)
			}

			ans := textbookAgent.Answer(ctx, agent.QueryContext{
				Query:        strings.Join(args, " "),
				SelectedText: selected,
				Language:     strings.ToLower(language),
			})

			out := cmd.OutOrStdout()
			fmt.Fprintln(out, ans.Text)
			if len(ans.Sources) > 0 {
				fmt.Fprintln(out, "\nSources:")
				for _, s := range ans.Sources {
					fmt.Fprintf(out, "  - %s (%s, score %.3f)\n", s.Title, s.ID, s.Score)
				}
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&selected, "selected", "s", "", "Text selected in the book, used as the only context")
	cmd.Flags().StringVarP(&language, "language", "l", "en", "Answer language: en or ur")

	return cmd
}

// Package commands defines all Cobra CLI commands for the tbrag binary.
package commands

import (
	"github.com/spf13/cobra"

	"github.com/54b3r/tbrag-go/internal/audit"
	"github.com/54b3r/tbrag-go/internal/config"
	"github.com/54b3r/tbrag-go/internal/logging"
)

// configPath holds the --config flag value for YAML config file override.
var configPath string

// NewRootCmd constructs the root Cobra command that all subcommands attach to.
func NewRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "tbrag",
		Short: "Textbook assistant: retrieval-augmented answers over a Physical AI textbook",
		Long: `tbrag answers reader questions about the Physical AI & Humanoid Robotics
textbook. Chapters are chunked, embedded and stored in Qdrant; each question
retrieves the closest passages and an LLM composes the answer.

Configuration is read from the environment, a .env file and an optional YAML
file (~/.tbrag/config.yaml). Environment variables always win.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			log := logging.New()

			// .env is applied before YAML so that it takes precedence.
			if err := config.LoadDotEnv(log); err != nil {
				return err
			}
			path, err := config.Load(configPath, log)
			if err != nil {
				return err
			}

			audit.LogCommandStart(log, cmd.Name(), path)
			return nil
		},
	}

	root.PersistentFlags().StringVar(&configPath, "config", "", "Path to YAML config file (default: ~/.tbrag/config.yaml)")

	root.AddCommand(
		NewServeCmd(),
		NewIngestCmd(),
		NewAskCmd(),
		NewVersionCmd(),
	)

	return root
}

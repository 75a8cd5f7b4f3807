// Package commands defines all Cobra CLI commands for the docqa binary.
package commands

import (
	"github.com/spf13/cobra"

	"github.com/docqa/docqa-go/internal/audit"
	"github.com/docqa/docqa-go/internal/config"
	"github.com/docqa/docqa-go/internal/logging"
)

// configPath holds the --config flag value for YAML config file override.
var configPath string

// loadedConfigPath stores the resolved config file path for audit logging.
var loadedConfigPath string

// NewRootCmd constructs the root Cobra command that all subcommands attach to.
func NewRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "docqa",
		Short: "docqa — ask questions about your own documents",
		Long: `docqa is a document question-answering service.

Upload a .txt or .pdf document and ask questions about its content. Documents
are segmented into sentences, grouped into chunks, embedded, and stored; each
question retrieves the closest chunks and an LLM answers from that context.

The answering model is selected via the MODEL_PROVIDER environment variable
or a YAML config file (~/.docqa/config.yaml).
See 'docqa --help' for available commands.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			log := logging.New()

			// Load YAML config (env vars always override YAML values).
			path, err := config.Load(configPath, log)
			if err != nil {
				return err
			}
			loadedConfigPath = path

			// Emit structured audit log for every command invocation.
			audit.LogCommandStart(log, cmd.Name(), loadedConfigPath)

			return nil
		},
	}

	root.PersistentFlags().StringVar(&configPath, "config", "", "Path to YAML config file (default: ~/.docqa/config.yaml)")

	root.AddCommand(
		NewServeCmd(),
		NewIngestCmd(),
		NewAskCmd(),
		NewVersionCmd(),
	)

	return root
}

package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/docqa/docqa-go/internal/version"
)

// NewVersionCmd constructs the `docqa version` command.
func NewVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "docqa %s (commit: %s, built: %s)\n",
				version.Version, version.Commit, version.BuildDate)
		},
	}
}

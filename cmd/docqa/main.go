// Command docqa is the entry point for the document Q&A service.
// It provides a CLI interface (via Cobra) and an HTTP server exposing the
// upload/ask API.
package main

import (
	"fmt"
	"os"

	"github.com/docqa/docqa-go/cmd/docqa/commands"
)

func main() {
	if err := commands.NewRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

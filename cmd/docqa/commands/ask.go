package commands

import (
	"fmt"
	"os/signal"
	"strings"
	"syscall"

	"github.com/cloudwego/eino/callbacks"
	"github.com/spf13/cobra"

	"github.com/docqa/docqa-go/internal/answer"
	"github.com/docqa/docqa-go/internal/logging"
	"github.com/docqa/docqa-go/internal/rag"
	"github.com/docqa/docqa-go/internal/tracing"
)

// NewAskCmd constructs the `docqa ask` command, which answers a question
// about a previously ingested document from the terminal.
func NewAskCmd() *cobra.Command {
	var docID int64
	var topK int

	cmd := &cobra.Command{
		Use:   "ask --document <id> <question>",
		Short: "Ask a question about an ingested document",
		Long: `Ask a question about a previously ingested document.

Retrieves the chunks closest to the question within the document, then asks
the configured answering model (MODEL_PROVIDER, default gemini) to answer
from that context. The answer is printed to stdout.

Find document ids with 'docqa ingest' output or GET /api/documents.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			log := logging.New()
			ctx = logging.WithLogger(ctx, log)

			if docID <= 0 {
				return fmt.Errorf("ask: --document must be a positive document id")
			}
			question := strings.TrimSpace(strings.Join(args, " "))
			if question == "" {
				return fmt.Errorf("ask: question must not be empty")
			}

			if handler, flush, ok := tracing.Setup(); ok {
				callbacks.AppendGlobalHandlers(handler)
				defer flush()
			}

			emb, dims, err := probeEmbedder(ctx)
			if err != nil {
				return fmt.Errorf("ask: embedding backend not ready: %w", err)
			}

			store, err := openStore(dims)
			if err != nil {
				return fmt.Errorf("ask: open store: %w", err)
			}
			defer store.Close()

			// An unknown document id retrieves zero chunks and is answered
			// from an empty context, matching the HTTP API.
			mirror, err := buildMirror(ctx, dims)
			if err != nil {
				return fmt.Errorf("ask: qdrant mirror: %w", err)
			}
			if mirror != nil {
				defer mirror.Close()
			}

			retr, err := rag.NewContextRetriever(emb, retrievalSearcher(store, mirror), 0)
			if err != nil {
				return fmt.Errorf("ask: build retriever: %w", err)
			}

			docContext, err := retr.Context(ctx, docID, question, topK)
			if err != nil {
				return fmt.Errorf("ask: retrieve context: %w", err)
			}

			chatModel, err := answer.NewModelFromEnv(ctx)
			if err != nil {
				return fmt.Errorf("ask: init answering model: %w", err)
			}
			gen, err := answer.NewGenerator(chatModel, "")
			if err != nil {
				return fmt.Errorf("ask: build generator: %w", err)
			}

			text, err := gen.Answer(ctx, question, docContext)
			if err != nil {
				return fmt.Errorf("ask: generate answer: %w", err)
			}

			fmt.Fprintln(cmd.OutOrStdout(), text)
			return nil
		},
	}

	cmd.Flags().Int64Var(&docID, "document", 0, "Document id to answer from (required)")
	cmd.Flags().IntVar(&topK, "top-k", 0, "Number of chunks to retrieve as context (default 10)")
	_ = cmd.MarkFlagRequired("document")

	return cmd
}

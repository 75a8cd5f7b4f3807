package commands

import (
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/docqa/docqa-go/internal/extract"
	"github.com/docqa/docqa-go/internal/logging"
)

// NewIngestCmd constructs the `docqa ingest` command, which ingests local
// files into the chunk store without going through the HTTP API.
func NewIngestCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ingest <file> [file...]",
		Short: "Ingest local .txt or .pdf files into the document store",
		Long: `Ingest one or more local files into the document store.

Each file is extracted to plain text, segmented into sentences, grouped into
chunks, embedded, and stored. Ingestion runs synchronously; the command exits
once every file is fully indexed and ready for 'docqa ask'.

Re-ingesting a file creates a new document; it does not update an existing one.

Uses the same environment variables as 'docqa serve' for the embedding
backend, database path, and optional Qdrant mirror.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			log := logging.New()
			ctx = logging.WithLogger(ctx, log)

			emb, dims, err := probeEmbedder(ctx)
			if err != nil {
				return fmt.Errorf("ingest: embedding backend not ready: %w", err)
			}

			store, err := openStore(dims)
			if err != nil {
				return fmt.Errorf("ingest: open store: %w", err)
			}
			defer store.Close()

			mirror, err := buildMirror(ctx, dims)
			if err != nil {
				return fmt.Errorf("ingest: qdrant mirror: %w", err)
			}
			if mirror != nil {
				defer mirror.Close()
			}

			pipeline, err := buildPipeline(emb, store, mirror)
			if err != nil {
				return fmt.Errorf("ingest: build pipeline: %w", err)
			}

			extractor := extract.New(extract.NewOCRClientFromEnv())

			for _, path := range args {
				name := filepath.Base(path)
				if !extract.Supported(name) {
					return fmt.Errorf("ingest: %s: only .txt and .pdf files are supported", path)
				}

				content, err := os.ReadFile(path)
				if err != nil {
					return fmt.Errorf("ingest: read %s: %w", path, err)
				}

				text, err := extractor.Text(ctx, name, content)
				if err != nil {
					return fmt.Errorf("ingest: extract %s: %w", path, err)
				}

				doc, err := store.CreateDocument(ctx, name, text)
				if err != nil {
					return fmt.Errorf("ingest: create document for %s: %w", path, err)
				}

				res, err := pipeline.Ingest(ctx, doc.ID, text)
				if err != nil {
					return fmt.Errorf("ingest: %s: %w", path, err)
				}

				log.Info("document ingested",
					slog.Int64("document_id", doc.ID),
					slog.String("name", name),
					slog.Int("sentences", res.Sentences),
					slog.Int("chunks", res.Chunks),
				)
				fmt.Fprintf(cmd.OutOrStdout(), "ingested %s as document %d (%d chunks)\n", name, doc.ID, res.Chunks)
			}

			return nil
		},
	}

	return cmd
}

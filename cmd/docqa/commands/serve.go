package commands

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/cloudwego/eino/callbacks"
	"github.com/spf13/cobra"

	"github.com/docqa/docqa-go/internal/answer"
	"github.com/docqa/docqa-go/internal/extract"
	"github.com/docqa/docqa-go/internal/ingestion"
	"github.com/docqa/docqa-go/internal/logging"
	"github.com/docqa/docqa-go/internal/rag"
	"github.com/docqa/docqa-go/internal/server"
	"github.com/docqa/docqa-go/internal/tracing"
)

// queueShutdownTimeout bounds how long serve waits for in-flight ingestion
// jobs to finish after the HTTP server has stopped.
const queueShutdownTimeout = 30 * time.Second

// NewServeCmd constructs the `docqa serve` command, which starts the HTTP
// server exposing the document upload and question-answering API.
func NewServeCmd() *cobra.Command {
	var host string
	var port int

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the document Q&A HTTP server",
		Long: `Start the HTTP server exposing the document Q&A API.

Endpoints:
  POST /api/documents   Upload a .txt or .pdf document (multipart field "file")
  GET  /api/documents   List uploaded documents
  POST /api/ask         Ask a question about a document
  GET  /api/health      Liveness probe
  GET  /api/ready       Readiness probe (checks store, embedder, and Qdrant)
  GET  /metrics         Prometheus metrics

Key environment variables:
  MODEL_PROVIDER        Answering model backend: gemini (default), ollama,
                        openai, azure, bedrock
  GEMINI_API_KEY        API key for the default Gemini backend
  EMBEDDING_PROVIDER    Embedding backend: ollama (default), openai, azure
  EMBEDDING_DIMENSIONS  Embedding vector width (default 384)
  DOCQA_DB_PATH         SQLite database path (default ~/.docqa/chunks.db)
  QDRANT_HOST           Enable the Qdrant vector index mirror when set
  DOCQA_API_KEY         Require this Bearer token on all /api routes
  OCR_ENDPOINT          OCR sidecar for scanned PDFs (optional)

Values may also come from a YAML config file (see --config); environment
variables always win.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			log := logging.New()
			ctx = logging.WithLogger(ctx, log)

			if handler, flush, ok := tracing.Setup(); ok {
				callbacks.AppendGlobalHandlers(handler)
				defer flush()
				log.Info("langfuse tracing enabled")
			}

			emb, dims, err := probeEmbedder(ctx)
			if err != nil {
				return fmt.Errorf("serve: embedding backend not ready: %w", err)
			}
			log.Info("embedding backend ready", slog.Int("dimensions", dims))

			store, err := openStore(dims)
			if err != nil {
				return fmt.Errorf("serve: open store: %w", err)
			}
			defer store.Close()

			mirror, err := buildMirror(ctx, dims)
			if err != nil {
				return fmt.Errorf("serve: qdrant mirror: %w", err)
			}
			if mirror != nil {
				defer mirror.Close()
				log.Info("qdrant mirror enabled")
			}

			pipeline, err := buildPipeline(emb, store, mirror)
			if err != nil {
				return fmt.Errorf("serve: build pipeline: %w", err)
			}

			// The queue outlives the signal context so in-flight ingestion
			// jobs can finish during the shutdown grace period.
			queueCtx := logging.WithLogger(context.Background(), log)
			queue, err := ingestion.NewQueue(queueCtx, pipeline, &ingestion.QueueConfig{
				Workers: getEnvInt("INGEST_WORKERS", 0),
			})
			if err != nil {
				return fmt.Errorf("serve: build queue: %w", err)
			}
			defer func() {
				sctx, cancel := context.WithTimeout(context.Background(), queueShutdownTimeout)
				defer cancel()
				if err := queue.Shutdown(sctx); err != nil {
					log.Warn("ingestion queue shutdown", slog.Any("error", err))
				}
			}()

			chatModel, err := answer.NewModelFromEnv(ctx)
			if err != nil {
				return fmt.Errorf("serve: init answering model: %w", err)
			}
			gen, err := answer.NewGenerator(chatModel, "")
			if err != nil {
				return fmt.Errorf("serve: build generator: %w", err)
			}

			retr, err := rag.NewContextRetriever(emb, retrievalSearcher(store, mirror), 0)
			if err != nil {
				return fmt.Errorf("serve: build retriever: %w", err)
			}

			pingers := []server.Pinger{
				store,
				server.NewEmbedderPinger(emb, getEnvOrDefault("EMBEDDING_PROVIDER", "ollama")),
			}
			if mirror != nil {
				pingers = append(pingers, mirror)
			}

			if host == "" {
				host = os.Getenv("DOCQA_HOST")
			}
			if port == 0 {
				port = getEnvInt("DOCQA_PORT", 0)
			}

			srv, err := server.New(server.Deps{
				Store:     store,
				Extractor: extract.New(extract.NewOCRClientFromEnv()),
				Queue:     queue,
				Retriever: retr,
				Generator: gen,
			}, &server.Config{
				Host:    host,
				Port:    port,
				Logger:  log,
				Pingers: pingers,
				APIKey:  os.Getenv("DOCQA_API_KEY"),
			})
			if err != nil {
				return fmt.Errorf("serve: %w", err)
			}

			return srv.Start(ctx)
		},
	}

	cmd.Flags().StringVar(&host, "host", "", "Address to bind to (default: DOCQA_HOST or 127.0.0.1)")
	cmd.Flags().IntVar(&port, "port", 0, "Port to listen on (default: DOCQA_PORT or 8080)")

	return cmd
}

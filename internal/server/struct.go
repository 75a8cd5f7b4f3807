package server

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/docqa/docqa-go/internal/rag"
)

// Config holds the HTTP server configuration.
type Config struct {
	// Host is the address to bind to (default: 127.0.0.1).
	Host string
	// Port is the TCP port to listen on (default: 8080).
	Port int
	// ReadTimeout is the maximum duration for reading the request.
	ReadTimeout time.Duration
	// WriteTimeout is the maximum duration for writing the response.
	WriteTimeout time.Duration
	// ShutdownTimeout is the maximum duration for a graceful shutdown.
	ShutdownTimeout time.Duration
	// MaxUploadBytes caps the size of an uploaded document. Defaults to 20 MiB.
	MaxUploadBytes int64
	// Logger is the structured logger used by the server and its handlers.
	// If nil, [logging.New] is used.
	Logger *slog.Logger
	// Pingers is the ordered list of dependency probes run by GET /api/ready.
	// If empty, /api/ready returns 200 with no checks (liveness-only mode).
	Pingers []Pinger
	// RateLimit is the sustained request rate allowed per IP on rate-limited
	// endpoints (requests/second). Defaults to 10 if zero.
	RateLimit float64
	// RateBurst is the maximum instantaneous burst per IP. Defaults to 20 if zero.
	RateBurst int
	// APIKey is the Bearer token required on all protected /api/* routes.
	// If empty, authentication is disabled (development mode).
	APIKey string
	// Registry receives the server's Prometheus metrics and backs GET /metrics.
	// If nil, a fresh registry with Go runtime collectors is created. Tests
	// inject their own registry to stay hermetic.
	Registry *prometheus.Registry
}

// retriever is the interface handleAsk calls to fetch the question's document
// context. *rag.ContextRetriever satisfies it; tests inject a fake.
type retriever interface {
	// Context returns the space-joined text of the chunks nearest to question
	// within the given document.
	Context(ctx context.Context, docID int64, question string, k int) (string, error)
}

// generator is the interface handleAsk calls to produce the final answer.
// *answer.Generator satisfies it; tests inject a fake.
type generator interface {
	// Answer generates an answer to question grounded in docContext.
	Answer(ctx context.Context, question, docContext string) (string, error)
}

// extractor is the interface handleDocumentUpload calls to convert an
// uploaded file into plain text. *extract.Extractor satisfies it.
type extractor interface {
	// Text extracts plain text from content, dispatching on filename's extension.
	Text(ctx context.Context, filename string, content []byte) (string, error)
}

// enqueuer is the interface handleDocumentUpload calls to schedule background
// ingestion. *ingestion.Queue satisfies it; tests inject a fake.
type enqueuer interface {
	// Enqueue schedules an ingestion run for docID.
	Enqueue(docID int64, text string) error
}

// Server is the HTTP server exposing the document Q&A API.
type Server struct {
	// store persists documents and their embedded chunks.
	store rag.ChunkStore
	// extractor converts uploaded files into plain text.
	extractor extractor
	// queue schedules background ingestion runs.
	queue enqueuer
	// retriever fetches document context for questions.
	retriever retriever
	// generator produces the final answer from question plus context.
	generator generator
	// cfg holds the resolved server configuration.
	cfg *Config
	// httpServer is the underlying net/http server.
	httpServer *http.Server
	// log is the structured logger for this server instance.
	log *slog.Logger
	// pingers is the ordered list of dependency probes for GET /api/ready.
	pingers []Pinger
	// metrics holds the Prometheus instruments owned by this server.
	metrics *serverMetrics
	// stopRL stops the rate limiter's background eviction goroutine on shutdown.
	stopRL func()
}

// documentInfo is one entry in the GET /api/documents response.
type documentInfo struct {
	// ID is the store-assigned document identifier.
	ID int64 `json:"id"`
	// Name is the original filename.
	Name string `json:"name"`
}

// uploadResponse is the JSON body for a successful POST /api/documents.
// The 202 status signals that ingestion continues in the background.
type uploadResponse struct {
	// ID is the store-assigned document identifier.
	ID int64 `json:"id"`
	// Name is the original filename.
	Name string `json:"name"`
	// Status is always "ingesting" on a successful upload.
	Status string `json:"status"`
}

// askRequest is the JSON body for POST /api/ask.
type askRequest struct {
	// DocumentID selects the document to answer from.
	DocumentID int64 `json:"document_id"`
	// Question is the user's natural language question.
	Question string `json:"question"`
	// TopK caps the number of chunks retrieved as context. Zero uses the default.
	TopK int `json:"top_k,omitempty"`
}

// askResponse is the JSON body for a successful POST /api/ask.
type askResponse struct {
	// Answer is the generated answer text.
	Answer string `json:"answer"`
	// Context is the retrieved chunk text the answer was grounded in. Empty
	// when the document had no matching chunks.
	Context string `json:"context"`
}

// errorResponse is the JSON body for error statuses on API routes.
type errorResponse struct {
	// Error is the human-readable failure reason.
	Error string `json:"error"`
}

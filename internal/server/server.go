// Package server implements the HTTP server that exposes the document Q&A
// API: document upload and listing, question answering, health and readiness
// probes, and Prometheus metrics.
// The server is started by the `docqa serve` CLI command.
package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/docqa/docqa-go/internal/logging"
	"github.com/docqa/docqa-go/internal/rag"
)

// defaultMaxUploadBytes caps uploaded documents at 20 MiB.
const defaultMaxUploadBytes = 20 << 20

// Deps bundles the collaborators the server needs. All fields are required
// except as noted on each.
type Deps struct {
	// Store persists documents and chunks.
	Store rag.ChunkStore
	// Extractor converts uploads into plain text.
	Extractor extractor
	// Queue schedules background ingestion.
	Queue enqueuer
	// Retriever fetches document context for questions.
	Retriever retriever
	// Generator produces the final answer.
	Generator generator
}

// New constructs a Server from the provided dependencies and config.
func New(deps Deps, cfg *Config) (*Server, error) {
	if deps.Store == nil {
		return nil, fmt.Errorf("server: store must not be nil")
	}
	if deps.Extractor == nil {
		return nil, fmt.Errorf("server: extractor must not be nil")
	}
	if deps.Queue == nil {
		return nil, fmt.Errorf("server: queue must not be nil")
	}
	if deps.Retriever == nil {
		return nil, fmt.Errorf("server: retriever must not be nil")
	}
	if deps.Generator == nil {
		return nil, fmt.Errorf("server: generator must not be nil")
	}
	if cfg == nil {
		cfg = &Config{}
	}
	if cfg.Host == "" {
		cfg.Host = "127.0.0.1"
	}
	if cfg.Port == 0 {
		cfg.Port = 8080
	}
	if cfg.ReadTimeout == 0 {
		cfg.ReadTimeout = 30 * time.Second
	}
	if cfg.WriteTimeout == 0 {
		// WriteTimeout must cover a full LLM round trip on /api/ask.
		cfg.WriteTimeout = 2 * time.Minute
	}
	if cfg.ShutdownTimeout == 0 {
		cfg.ShutdownTimeout = 10 * time.Second
	}
	if cfg.MaxUploadBytes == 0 {
		cfg.MaxUploadBytes = defaultMaxUploadBytes
	}
	if cfg.RateLimit == 0 {
		cfg.RateLimit = defaultRateLimit
	}
	if cfg.RateBurst == 0 {
		cfg.RateBurst = defaultRateBurst
	}
	log := cfg.Logger
	if log == nil {
		log = logging.New()
	}
	reg := cfg.Registry
	if reg == nil {
		reg = prometheus.NewRegistry()
		reg.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
	}

	s := &Server{
		store:     deps.Store,
		extractor: deps.Extractor,
		queue:     deps.Queue,
		retriever: deps.Retriever,
		generator: deps.Generator,
		cfg:       cfg,
		log:       log,
		pingers:   cfg.Pingers,
		metrics:   newServerMetrics(reg),
	}

	rl, stopRL := newRateLimiter(cfg.RateLimit, cfg.RateBurst, log)
	s.stopRL = stopRL

	if cfg.APIKey == "" {
		log.Warn("API authentication disabled — set DOCQA_API_KEY to protect the API")
	}

	// protect wraps the mutating/expensive routes with auth and rate limiting.
	protect := func(name string, h http.HandlerFunc) http.Handler {
		return authMiddleware(cfg.APIKey, rl.middleware(s.instrument(name, h)))
	}

	mux := http.NewServeMux()
	mux.Handle("POST /api/documents", protect("documents_upload", s.handleDocumentUpload))
	mux.Handle("GET /api/documents", protect("documents_list", s.handleDocumentList))
	mux.Handle("POST /api/ask", protect("ask", s.handleAsk))
	mux.Handle("GET /api/health", s.instrument("health", s.handleHealth))
	mux.Handle("GET /api/ready", s.instrument("ready", s.handleReady))
	mux.Handle("GET /metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))

	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Handler:      requestLogger(log, mux),
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}

	return s, nil
}

// Handler returns the server's root HTTP handler. Exposed for tests that
// drive the full middleware chain through httptest.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// Start begins listening and serving HTTP requests. It blocks until the
// context is cancelled, then performs a graceful shutdown.
func (s *Server) Start(ctx context.Context) error {
	defer s.stopRL()

	errCh := make(chan error, 1)

	go func() {
		s.log.Info("docqa server listening", "addr", s.httpServer.Addr)
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("server: listen error: %w", err)
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout)
		defer cancel()
		if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server: graceful shutdown failed: %w", err)
		}
		return nil
	}
}

// handleHealth handles GET /api/health for liveness checks.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}

// writeJSON writes v as the JSON response body with the given status.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError writes a JSON error body with the given status.
func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}

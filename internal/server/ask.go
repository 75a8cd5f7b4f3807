package server

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/docqa/docqa-go/internal/logging"
)

// handleAsk handles POST /api/ask. It retrieves the chunks nearest to the
// question within the selected document, joins them into a context blob, and
// asks the answering model. A document with no chunks (ingestion still
// running, an empty document, or an unknown id) produces an empty context —
// the model then answers that the document does not cover the question.
func (s *Server) handleAsk(w http.ResponseWriter, r *http.Request) {
	log := logging.FromContext(r.Context())
	start := time.Now()

	var req askRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.metrics.askRequestsTotal.WithLabelValues(outcomeError).Inc()
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.DocumentID <= 0 {
		s.metrics.askRequestsTotal.WithLabelValues(outcomeError).Inc()
		writeError(w, http.StatusBadRequest, "document_id is required")
		return
	}
	if strings.TrimSpace(req.Question) == "" {
		s.metrics.askRequestsTotal.WithLabelValues(outcomeError).Inc()
		writeError(w, http.StatusBadRequest, "question is required")
		return
	}
	if req.TopK < 0 {
		s.metrics.askRequestsTotal.WithLabelValues(outcomeError).Inc()
		writeError(w, http.StatusBadRequest, "top_k must be positive")
		return
	}

	// No existence check on the document: an unknown id retrieves zero
	// chunks and is answered from an empty context, the same as a document
	// whose ingestion has not produced chunks yet.
	docContext, err := s.retriever.Context(r.Context(), req.DocumentID, req.Question, req.TopK)
	if err != nil {
		log.Error("context retrieval failed",
			slog.Int64("document_id", req.DocumentID),
			slog.Any("error", err),
		)
		s.metrics.askRequestsTotal.WithLabelValues(outcomeError).Inc()
		s.metrics.askDurationSeconds.WithLabelValues(outcomeError).Observe(time.Since(start).Seconds())
		writeError(w, http.StatusBadGateway, "could not retrieve document context")
		return
	}

	ans, err := s.generator.Answer(r.Context(), req.Question, docContext)
	if err != nil {
		log.Error("answer generation failed",
			slog.Int64("document_id", req.DocumentID),
			slog.Any("error", err),
		)
		s.metrics.askRequestsTotal.WithLabelValues(outcomeError).Inc()
		s.metrics.askDurationSeconds.WithLabelValues(outcomeError).Observe(time.Since(start).Seconds())
		writeError(w, http.StatusBadGateway, "could not generate answer")
		return
	}

	log.Info("question answered",
		slog.Int64("document_id", req.DocumentID),
		slog.Duration("duration", time.Since(start)),
	)
	s.metrics.askRequestsTotal.WithLabelValues(outcomeOK).Inc()
	s.metrics.askDurationSeconds.WithLabelValues(outcomeOK).Observe(time.Since(start).Seconds())
	writeJSON(w, http.StatusOK, askResponse{Answer: ans, Context: docContext})
}

package server

import (
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/docqa/docqa-go/internal/extract"
	"github.com/docqa/docqa-go/internal/ingestion"
	"github.com/docqa/docqa-go/internal/logging"
)

// handleDocumentUpload handles POST /api/documents. It accepts a multipart
// form with a single "file" part, extracts the text, creates the document
// record, and schedules background ingestion. The response is 202 Accepted:
// chunking and embedding continue after the response is sent, so a question
// asked immediately after upload may see partial context.
func (s *Server) handleDocumentUpload(w http.ResponseWriter, r *http.Request) {
	log := logging.FromContext(r.Context())

	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.MaxUploadBytes)

	file, header, err := r.FormFile("file")
	if err != nil {
		s.metrics.uploadsTotal.WithLabelValues(outcomeError).Inc()
		writeError(w, http.StatusBadRequest, "multipart form with a \"file\" part is required")
		return
	}
	defer file.Close()

	if !extract.Supported(header.Filename) {
		s.metrics.uploadsTotal.WithLabelValues(outcomeError).Inc()
		writeError(w, http.StatusBadRequest, "invalid file type: only .txt and .pdf are allowed")
		return
	}

	content, err := io.ReadAll(file)
	if err != nil {
		s.metrics.uploadsTotal.WithLabelValues(outcomeError).Inc()
		writeError(w, http.StatusBadRequest, "could not read uploaded file")
		return
	}

	text, err := s.extractor.Text(r.Context(), header.Filename, content)
	if err != nil {
		// Supported extensions never fail extraction; this is the unsupported
		// type path racing a direct call.
		s.metrics.uploadsTotal.WithLabelValues(outcomeError).Inc()
		writeError(w, http.StatusBadRequest, "invalid file type: only .txt and .pdf are allowed")
		return
	}

	doc, err := s.store.CreateDocument(r.Context(), header.Filename, text)
	if err != nil {
		log.Error("document create failed", slog.Any("error", err))
		s.metrics.uploadsTotal.WithLabelValues(outcomeError).Inc()
		writeError(w, http.StatusInternalServerError, "could not save document")
		return
	}

	if err := s.queue.Enqueue(doc.ID, text); err != nil {
		// The document record exists; ingestion can be retried by re-uploading.
		log.Error("ingestion enqueue failed",
			slog.Int64("document_id", doc.ID),
			slog.Any("error", err),
		)
		s.metrics.uploadsTotal.WithLabelValues(outcomeError).Inc()
		if errors.Is(err, ingestion.ErrAlreadyIngesting) {
			writeError(w, http.StatusConflict, "document is already being ingested")
			return
		}
		writeError(w, http.StatusServiceUnavailable, "ingestion queue unavailable")
		return
	}

	log.Info("document accepted",
		slog.Int64("document_id", doc.ID),
		slog.String("filename", header.Filename),
		slog.Int("bytes", len(content)),
	)
	s.metrics.uploadsTotal.WithLabelValues(outcomeOK).Inc()
	writeJSON(w, http.StatusAccepted, uploadResponse{
		ID:     doc.ID,
		Name:   doc.Name,
		Status: "ingesting",
	})
}

// handleDocumentList handles GET /api/documents. Documents are listed in
// upload order regardless of ingestion state.
func (s *Server) handleDocumentList(w http.ResponseWriter, r *http.Request) {
	log := logging.FromContext(r.Context())

	docs, err := s.store.ListDocuments(r.Context())
	if err != nil {
		log.Error("document list failed", slog.Any("error", err))
		writeError(w, http.StatusInternalServerError, "could not list documents")
		return
	}

	out := make([]documentInfo, 0, len(docs))
	for _, d := range docs {
		out = append(out, documentInfo{ID: d.ID, Name: d.Name})
	}
	writeJSON(w, http.StatusOK, out)
}

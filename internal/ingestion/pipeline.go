// Package ingestion implements the document ingestion pipeline: segment the
// document text into sentences, group them into chunks, embed each chunk, and
// persist the results in the chunk store. The Queue runs pipelines in the
// background so document uploads return before ingestion completes.
package ingestion

import (
	"context"
	"fmt"

	"github.com/docqa/docqa-go/internal/logging"
	"github.com/docqa/docqa-go/internal/rag"
	"github.com/docqa/docqa-go/internal/textsplit"
)

// Mirror is an optional secondary vector index kept in sync with the chunk
// store, e.g. a Qdrant collection. Sync replaces the index entries for one
// document. The store remains the source of truth; mirror failures are logged
// but do not fail ingestion.
type Mirror interface {
	// Remove deletes all index entries for docID.
	Remove(ctx context.Context, docID int64) error

	// Add indexes the given chunks. Chunk IDs are used as point identifiers.
	Add(ctx context.Context, chunks []rag.Chunk) error
}

// Config holds the configuration for the ingestion pipeline.
type Config struct {
	// ChunkSize is the number of sentences grouped into one chunk.
	// Defaults to textsplit.DefaultChunkSize if zero.
	ChunkSize int
}

// Pipeline orchestrates the segment → chunk → embed → store flow for one
// document at a time. It is safe for concurrent use as long as concurrent
// calls target distinct documents; the Queue enforces that.
type Pipeline struct {
	// embedder converts chunk texts into dense vector embeddings.
	embedder rag.Embedder

	// store persists the embedded chunks.
	store rag.ChunkStore

	// mirror is the optional secondary index. Nil disables mirroring.
	mirror Mirror

	// chunkSize is the resolved sentences-per-chunk setting.
	chunkSize int
}

// NewPipeline constructs a Pipeline from the provided dependencies and config.
// mirror may be nil.
func NewPipeline(embedder rag.Embedder, store rag.ChunkStore, mirror Mirror, cfg *Config) (*Pipeline, error) {
	if embedder == nil {
		return nil, fmt.Errorf("ingestion: embedder must not be nil")
	}
	if store == nil {
		return nil, fmt.Errorf("ingestion: store must not be nil")
	}
	if cfg == nil {
		cfg = &Config{}
	}
	chunkSize := cfg.ChunkSize
	if chunkSize <= 0 {
		chunkSize = textsplit.DefaultChunkSize
	}

	return &Pipeline{
		embedder:  embedder,
		store:     store,
		mirror:    mirror,
		chunkSize: chunkSize,
	}, nil
}

// Result summarizes a completed ingestion run.
type Result struct {
	// DocumentID is the ingested document.
	DocumentID int64

	// Sentences is the number of sentences the document was segmented into.
	Sentences int

	// Chunks is the number of chunks persisted.
	Chunks int
}

// Ingest segments, chunks, embeds, and stores the text for docID. Re-running
// for the same document replaces its previous chunks. An empty or whitespace
// document yields zero chunks and is not an error: the document simply has no
// retrievable content.
func (p *Pipeline) Ingest(ctx context.Context, docID int64, text string) (Result, error) {
	sentences := textsplit.Sentences(text)

	chunks, err := textsplit.BuildChunks(sentences, p.chunkSize)
	if err != nil {
		return Result{}, fmt.Errorf("ingestion: document %d: %w", docID, err)
	}

	res := Result{DocumentID: docID, Sentences: len(sentences), Chunks: len(chunks)}

	if len(chunks) == 0 {
		// Still clear any chunks from a previous ingestion of this document.
		if _, err := p.store.ReplaceChunks(ctx, docID, nil); err != nil {
			return Result{}, fmt.Errorf("ingestion: document %d: %w", docID, err)
		}
		p.syncMirror(ctx, docID)
		return res, nil
	}

	embeddings, err := p.embedder.Embed(ctx, chunks)
	if err != nil {
		return Result{}, fmt.Errorf("ingestion: document %d: embedding: %w", docID, err)
	}
	if len(embeddings) != len(chunks) {
		return Result{}, fmt.Errorf("ingestion: document %d: got %d embeddings for %d chunks",
			docID, len(embeddings), len(chunks))
	}

	inputs := make([]rag.ChunkInput, len(chunks))
	for i, ct := range chunks {
		inputs[i] = rag.ChunkInput{Text: ct, Embedding: embeddings[i]}
	}

	if _, err := p.store.ReplaceChunks(ctx, docID, inputs); err != nil {
		return Result{}, fmt.Errorf("ingestion: document %d: %w", docID, err)
	}

	p.syncMirror(ctx, docID)
	return res, nil
}

// syncMirror mirrors the stored chunks for docID into the secondary index.
// Mirror errors are logged, not returned: the store already holds the data
// and retrieval falls back to it.
func (p *Pipeline) syncMirror(ctx context.Context, docID int64) {
	if p.mirror == nil {
		return
	}
	log := logging.FromContext(ctx)
	if err := p.mirror.Remove(ctx, docID); err != nil {
		log.Warn("mirror remove failed", "document_id", docID, "error", err)
		return
	}
	stored, err := p.store.ChunksByDocument(ctx, docID)
	if err != nil {
		log.Warn("mirror readback failed", "document_id", docID, "error", err)
		return
	}
	if len(stored) == 0 {
		return
	}
	if err := p.mirror.Add(ctx, stored); err != nil {
		log.Warn("mirror add failed", "document_id", docID, "error", err)
	}
}

// Package rag defines the chunk-embed-retrieve core: the types and interfaces
// for persisting document chunks with their embedding vectors and retrieving
// the nearest chunks for a question. Concrete backends (SQLite, Qdrant)
// satisfy these interfaces so the pipelines never depend on a specific store.
package rag

import (
	"context"
)

// Document is an uploaded document as persisted by the chunk store.
type Document struct {
	// ID is the store-assigned numeric identifier.
	ID int64

	// Name is the display name, normally the original filename.
	Name string

	// Text is the full extracted text. May be empty or a placeholder when
	// extraction partially failed — the pipeline treats that as normal input.
	Text string
}

// Chunk is one retrieval unit: a contiguous group of sentences with a single
// embedding vector, belonging to exactly one document.
type Chunk struct {
	// ID is the store-assigned numeric identifier. IDs are assigned in
	// insertion order, so ascending ID reproduces sentence order.
	ID int64

	// DocumentID references the owning document.
	DocumentID int64

	// Text is the chunk text (1..chunkSize consecutive sentences).
	Text string

	// Embedding is the fixed-dimensionality vector for Text.
	Embedding []float32
}

// ChunkInput is a chunk ready for insertion: text plus its pre-computed
// embedding. The store assigns the identifier.
type ChunkInput struct {
	// Text is the chunk text.
	Text string

	// Embedding is the vector for Text. Its length must equal the store's
	// configured dimensionality.
	Embedding []float32
}

// NearestSearcher performs nearest-neighbor retrieval scoped to one document.
// Implementations must be safe to call from multiple goroutines.
type NearestSearcher interface {
	// Nearest returns at most k chunks belonging to docID, ordered by
	// ascending L2 distance between query and each chunk's embedding, ties
	// broken by insertion order. A document with no chunks (or an unknown
	// docID) yields an empty slice, not an error.
	Nearest(ctx context.Context, docID int64, query []float32, k int) ([]Chunk, error)
}

// ChunkStore persists documents and their embedded chunks.
// Implementations must be safe to call from multiple goroutines.
type ChunkStore interface {
	NearestSearcher

	// CreateDocument inserts a document record and returns it with its
	// assigned identifier.
	CreateDocument(ctx context.Context, name, text string) (Document, error)

	// GetDocument returns the document with the given id, or an error
	// wrapping ErrDocumentNotFound when it does not exist.
	GetDocument(ctx context.Context, id int64) (Document, error)

	// ListDocuments returns all documents ordered by ascending identifier.
	ListDocuments(ctx context.Context) ([]Document, error)

	// InsertChunks appends a batch of chunks for docID in slice order.
	// The batch is atomic: all chunks are persisted or none are. A docID
	// without a matching document fails the whole batch.
	// Returns the number of chunks inserted.
	InsertChunks(ctx context.Context, docID int64, chunks []ChunkInput) (int, error)

	// ReplaceChunks atomically removes any existing chunks for docID and
	// inserts the new batch, making re-ingestion idempotent.
	// Returns the number of chunks inserted.
	ReplaceChunks(ctx context.Context, docID int64, chunks []ChunkInput) (int, error)

	// ChunksByDocument returns all chunks belonging to docID in insertion
	// order. A document with no chunks yields an empty slice, not an error.
	ChunksByDocument(ctx context.Context, docID int64) ([]Chunk, error)

	// Close releases the underlying database resources.
	Close() error
}

// Embedder converts text into dense vector embeddings. For a fixed model the
// mapping is deterministic: the same text always yields the same vector.
// Implementations must be safe to call from multiple goroutines.
type Embedder interface {
	// Embed converts a batch of texts into their embeddings. The returned
	// slice is parallel to the input slice.
	Embed(ctx context.Context, texts []string) ([][]float32, error)
}

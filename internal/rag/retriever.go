package rag

import (
	"context"
	"fmt"
	"strings"
)

// DefaultTopK is the number of chunks retrieved per question when the caller
// does not specify a count.
const DefaultTopK = 10

// ContextRetriever composes an Embedder and a NearestSearcher: it embeds a
// question, fetches the nearest chunks for a document, and joins their text
// into the context blob handed to the answer generator.
type ContextRetriever struct {
	// embedder converts the question into a query vector.
	embedder Embedder

	// searcher performs the per-document nearest-neighbor lookup.
	searcher NearestSearcher

	// defaultTopK is the chunk count used when the caller passes k <= 0.
	defaultTopK int
}

// NewContextRetriever constructs a ContextRetriever. defaultTopK falls back
// to DefaultTopK when not positive.
func NewContextRetriever(embedder Embedder, searcher NearestSearcher, defaultTopK int) (*ContextRetriever, error) {
	if embedder == nil {
		return nil, fmt.Errorf("rag: embedder must not be nil")
	}
	if searcher == nil {
		return nil, fmt.Errorf("rag: searcher must not be nil")
	}
	if defaultTopK <= 0 {
		defaultTopK = DefaultTopK
	}
	return &ContextRetriever{
		embedder:    embedder,
		searcher:    searcher,
		defaultTopK: defaultTopK,
	}, nil
}

// Context embeds question, retrieves the top-k nearest chunks for docID, and
// joins their text with single spaces in the order returned. A document with
// no chunks yields an empty string; how to prompt with empty context is the
// caller's decision. Embedding and storage failures propagate unretried.
func (r *ContextRetriever) Context(ctx context.Context, docID int64, question string, k int) (string, error) {
	if k <= 0 {
		k = r.defaultTopK
	}

	embeddings, err := r.embedder.Embed(ctx, []string{question})
	if err != nil {
		return "", fmt.Errorf("rag: embedding question failed: %w", err)
	}
	if len(embeddings) == 0 {
		return "", fmt.Errorf("rag: embedder returned empty result for question")
	}

	chunks, err := r.searcher.Nearest(ctx, docID, embeddings[0], k)
	if err != nil {
		return "", fmt.Errorf("rag: nearest-chunk search failed: %w", err)
	}

	texts := make([]string, len(chunks))
	for i, c := range chunks {
		texts[i] = c.Text
	}
	return strings.Join(texts, " "), nil
}

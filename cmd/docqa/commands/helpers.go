package commands

import (
	"context"
	"fmt"
	"os"
	"strconv"

	"github.com/docqa/docqa-go/internal/embedder"
	"github.com/docqa/docqa-go/internal/ingestion"
	"github.com/docqa/docqa-go/internal/rag"
)

// getEnvOrDefault returns the env var value, or def when unset.
func getEnvOrDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

// getEnvInt returns the env var parsed as int, or def when unset or invalid.
func getEnvInt(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}

// openStore opens the SQLite chunk store at DOCQA_DB_PATH, falling back to
// the per-user default path (~/.docqa/chunks.db).
func openStore(dims int) (*rag.SQLiteStore, error) {
	path := os.Getenv("DOCQA_DB_PATH")
	if path == "" {
		p, err := rag.DefaultDBPath()
		if err != nil {
			return nil, fmt.Errorf("commands: resolve db path: %w", err)
		}
		path = p
	}
	return rag.Open(path, dims)
}

// buildMirror constructs the optional Qdrant vector index mirror.
// Returns (nil, nil) when QDRANT_HOST is unset; the SQLite store then serves
// retrieval on its own.
func buildMirror(ctx context.Context, dims int) (*rag.QdrantIndex, error) {
	host := os.Getenv("QDRANT_HOST")
	if host == "" {
		return nil, nil
	}
	cfg := &rag.QdrantConfig{
		Host:       host,
		Port:       getEnvInt("QDRANT_PORT", 6334),
		Collection: getEnvOrDefault("QDRANT_COLLECTION", "docqa_chunks"),
		VectorSize: uint64(dims),
		APIKey:     os.Getenv("QDRANT_API_KEY"),
		UseTLS:     os.Getenv("QDRANT_TLS") == "true",
	}
	return rag.NewQdrantIndex(ctx, cfg)
}

// buildPipeline wires the embedder, chunk store, and optional mirror into an
// ingestion pipeline with the configured chunk size.
func buildPipeline(emb rag.Embedder, store rag.ChunkStore, mirror *rag.QdrantIndex) (*ingestion.Pipeline, error) {
	cfg := &ingestion.Config{ChunkSize: getEnvInt("CHUNK_SIZE", 0)}
	// A typed nil *QdrantIndex must not leak into the Mirror interface.
	var m ingestion.Mirror
	if mirror != nil {
		m = mirror
	}
	return ingestion.NewPipeline(emb, store, m, cfg)
}

// retrievalSearcher picks the nearest-neighbor backend questions are answered
// from: the Qdrant index when the mirror is configured, otherwise the SQLite
// scan. Writes always go through the store regardless.
func retrievalSearcher(store rag.NearestSearcher, mirror *rag.QdrantIndex) rag.NearestSearcher {
	if mirror != nil {
		return mirror
	}
	return store
}

// probeEmbedder builds the configured embedding backend and verifies it is
// reachable and returns vectors of the expected width before any data flows.
func probeEmbedder(ctx context.Context) (rag.Embedder, int, error) {
	emb, err := embedder.NewFromEnv()
	if err != nil {
		return nil, 0, err
	}
	dims := embedder.Dimensions()
	if err := embedder.Probe(ctx, emb, dims); err != nil {
		return nil, 0, err
	}
	return emb, dims, nil
}

package server

import (
	"context"
	"fmt"

	"github.com/docqa/docqa-go/internal/rag"
)

// Pinger is the interface implemented by any dependency that can report its
// own reachability. Each implementation must return nil when the dependency
// is healthy and a descriptive error otherwise.
// Implementations must be safe to call from multiple goroutines.
// *rag.SQLiteStore and *rag.QdrantIndex satisfy it directly.
type Pinger interface {
	// Ping checks whether the dependency is reachable within the given context.
	// Returns nil on success, a descriptive error on failure.
	Ping(ctx context.Context) error

	// Name returns a short human-readable label used in readiness responses
	// (e.g. "sqlite", "qdrant", "embedder").
	Name() string
}

// EmbedderPinger probes the embedding backend by embedding a single short
// text. It satisfies the Pinger interface and is used by GET /api/ready.
// One short embed call per readiness check is cheap for local backends; tune
// probe frequency at the load balancer if a paid API backs the embedder.
type EmbedderPinger struct {
	// embedder is the embedding backend to probe.
	embedder rag.Embedder
	// name identifies the backend in readiness responses (e.g. "ollama").
	name string
}

// NewEmbedderPinger constructs an EmbedderPinger for the given embedder and
// backend name.
func NewEmbedderPinger(e rag.Embedder, name string) *EmbedderPinger {
	return &EmbedderPinger{embedder: e, name: name}
}

// Name returns the backend label used in readiness responses.
func (p *EmbedderPinger) Name() string { return p.name }

// Ping embeds a single short text and verifies a vector came back.
func (p *EmbedderPinger) Ping(ctx context.Context) error {
	vecs, err := p.embedder.Embed(ctx, []string{"ping"})
	if err != nil {
		return fmt.Errorf("embed failed: %w", err)
	}
	if len(vecs) != 1 || len(vecs[0]) == 0 {
		return fmt.Errorf("embed returned no vector")
	}
	return nil
}

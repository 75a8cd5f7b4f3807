package embedder

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/docqa/docqa-go/internal/rag"
)

// ErrUnavailable reports that the embedding backend could not produce a
// vector. Callers use errors.Is to distinguish a dead backend from bad input.
var ErrUnavailable = errors.New("embedder: embedding backend unavailable")

// probeTimeout bounds the startup embed call so a hung backend fails fast.
const probeTimeout = 15 * time.Second

// Probe performs a single embed call against the backend and verifies the
// returned vector has the expected dimensionality. It runs once at process
// startup so a misconfigured or unreachable backend is reported before the
// server starts accepting documents.
func Probe(ctx context.Context, e rag.Embedder, wantDims int) error {
	ctx, cancel := context.WithTimeout(ctx, probeTimeout)
	defer cancel()

	vecs, err := e.Embed(ctx, []string{"ping"})
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	if len(vecs) != 1 {
		return fmt.Errorf("%w: probe returned %d vectors", ErrUnavailable, len(vecs))
	}
	if len(vecs[0]) != wantDims {
		return fmt.Errorf("embedder: backend produces %d-dimensional vectors, store expects %d", len(vecs[0]), wantDims)
	}
	return nil
}

package rag

import (
	"context"
	"fmt"

	"github.com/qdrant/go-client/qdrant"
)

// QdrantConfig holds connection parameters for a Qdrant vector index.
type QdrantConfig struct {
	// Host is the Qdrant server hostname (default: localhost).
	Host string

	// Port is the Qdrant gRPC port (default: 6334).
	Port int

	// Collection is the Qdrant collection name to use.
	Collection string

	// VectorSize is the dimensionality of the embeddings stored in this collection.
	VectorSize uint64

	// APIKey is the optional Qdrant API key for authenticated clusters.
	APIKey string

	// UseTLS enables TLS for the gRPC connection.
	UseTLS bool
}

// QdrantIndex is an optional secondary NearestSearcher backed by a Qdrant
// instance. The SQLite store remains the source of truth for document and
// chunk records; committed chunks are mirrored into the collection so the
// retrieval path can use the engine's native search instead of the local
// scan. Point ids are the SQLite chunk ids, so the engine's ordering still
// corresponds to insertion order on exact ties.
type QdrantIndex struct {
	// client is the underlying Qdrant gRPC client.
	client *qdrant.Client

	// cfg holds the resolved configuration for this index.
	cfg *QdrantConfig
}

// NewQdrantIndex creates a QdrantIndex, ensuring the target collection exists
// (creating it with Euclid distance if necessary).
func NewQdrantIndex(ctx context.Context, cfg *QdrantConfig) (*QdrantIndex, error) {
	if cfg.Host == "" {
		cfg.Host = "localhost"
	}
	if cfg.Port == 0 {
		cfg.Port = 6334
	}
	if cfg.VectorSize == 0 {
		cfg.VectorSize = DefaultDimensions
	}

	client, err := qdrant.NewClient(&qdrant.Config{
		Host:   cfg.Host,
		Port:   cfg.Port,
		APIKey: cfg.APIKey,
		UseTLS: cfg.UseTLS,
	})
	if err != nil {
		return nil, fmt.Errorf("qdrant: failed to create client: %w", err)
	}

	idx := &QdrantIndex{client: client, cfg: cfg}
	if err := idx.ensureCollection(ctx); err != nil {
		return nil, err
	}
	return idx, nil
}

// ensureCollection creates the collection if it does not already exist.
// Euclid distance matches the L2 ranking contract of the SQLite scan.
func (x *QdrantIndex) ensureCollection(ctx context.Context) error {
	exists, err := x.client.CollectionExists(ctx, x.cfg.Collection)
	if err != nil {
		return fmt.Errorf("qdrant: failed to check collection existence: %w", err)
	}
	if exists {
		return nil
	}

	err = x.client.CreateCollection(ctx, &qdrant.CreateCollection{
		CollectionName: x.cfg.Collection,
		VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{
			Size:     x.cfg.VectorSize,
			Distance: qdrant.Distance_Euclid,
		}),
	})
	if err != nil {
		return fmt.Errorf("qdrant: failed to create collection %q: %w", x.cfg.Collection, err)
	}
	return nil
}

// Add mirrors committed chunks into the collection. Chunk ids double as
// point ids, so re-adding the same chunks is an idempotent upsert.
func (x *QdrantIndex) Add(ctx context.Context, chunks []Chunk) error {
	if len(chunks) == 0 {
		return nil
	}

	points := make([]*qdrant.PointStruct, 0, len(chunks))
	for _, c := range chunks {
		if uint64(len(c.Embedding)) != x.cfg.VectorSize {
			return fmt.Errorf("qdrant: chunk %d has %d dimensions, collection expects %d: %w",
				c.ID, len(c.Embedding), x.cfg.VectorSize, ErrDimensionMismatch)
		}
		points = append(points, &qdrant.PointStruct{
			Id:      qdrant.NewIDNum(uint64(c.ID)),
			Vectors: qdrant.NewVectors(c.Embedding...),
			Payload: qdrant.NewValueMap(map[string]any{
				"document_id": c.DocumentID,
				"chunk_text":  c.Text,
			}),
		})
	}

	_, err := x.client.Upsert(ctx, &qdrant.UpsertPoints{
		CollectionName: x.cfg.Collection,
		Points:         points,
	})
	if err != nil {
		return fmt.Errorf("qdrant: upsert failed: %w", err)
	}
	return nil
}

// Remove deletes all points belonging to docID, used when a document's
// chunks are replaced.
func (x *QdrantIndex) Remove(ctx context.Context, docID int64) error {
	_, err := x.client.Delete(ctx, &qdrant.DeletePoints{
		CollectionName: x.cfg.Collection,
		Points: qdrant.NewPointsSelectorFilter(&qdrant.Filter{
			Must: []*qdrant.Condition{qdrant.NewMatchInt("document_id", docID)},
		}),
	})
	if err != nil {
		return fmt.Errorf("qdrant: delete for document %d failed: %w", docID, err)
	}
	return nil
}

// Nearest performs an L2 similarity search filtered to docID and returns at
// most k chunks, ascending by distance.
func (x *QdrantIndex) Nearest(ctx context.Context, docID int64, query []float32, k int) ([]Chunk, error) {
	if k < 1 {
		return nil, fmt.Errorf("qdrant: nearest: k=%d: %w", k, ErrInvalidLimit)
	}
	if uint64(len(query)) != x.cfg.VectorSize {
		return nil, fmt.Errorf("qdrant: nearest: query has %d dimensions, collection expects %d: %w",
			len(query), x.cfg.VectorSize, ErrDimensionMismatch)
	}

	limit := uint64(k)
	results, err := x.client.Query(ctx, &qdrant.QueryPoints{
		CollectionName: x.cfg.Collection,
		Query:          qdrant.NewQuery(query...),
		Filter: &qdrant.Filter{
			Must: []*qdrant.Condition{qdrant.NewMatchInt("document_id", docID)},
		},
		Limit:       &limit,
		WithPayload: qdrant.NewWithPayload(true),
	})
	if err != nil {
		return nil, fmt.Errorf("qdrant: search failed: %w", err)
	}

	chunks := make([]Chunk, 0, len(results))
	for _, r := range results {
		chunk := Chunk{
			ID:         int64(r.Id.GetNum()),
			DocumentID: docID,
		}
		if p := r.Payload; p != nil {
			if v, ok := p["chunk_text"]; ok {
				chunk.Text = v.GetStringValue()
			}
		}
		chunks = append(chunks, chunk)
	}
	return chunks, nil
}

// Ping calls the Qdrant HealthCheck RPC, satisfying the server's readiness
// probe interface.
func (x *QdrantIndex) Ping(ctx context.Context) error {
	_, err := x.client.HealthCheck(ctx)
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	return nil
}

// Name returns the dependency label used in readiness responses.
func (x *QdrantIndex) Name() string { return "qdrant" }

// Close closes the underlying Qdrant gRPC connection.
func (x *QdrantIndex) Close() error {
	return x.client.Close()
}

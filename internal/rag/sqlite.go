package rag

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	_ "modernc.org/sqlite" // register "sqlite" driver
)

// DefaultDimensions is the embedding dimensionality of the reference
// deployment (an all-MiniLM-class sentence model).
const DefaultDimensions = 384

// SQLiteStore is a ChunkStore backed by a local SQLite database. Chunk
// vectors are stored as little-endian float32 blobs and nearest-neighbor
// queries run an exact brute-force L2 scan over the document's chunks.
// Chunks are scoped per document, so N stays small enough that a scan beats
// the operational cost of an approximate index.
type SQLiteStore struct {
	// db is the underlying database connection pool.
	db *sql.DB

	// dims is the configured embedding dimensionality. Every vector written
	// to or queried against this store must have exactly this length.
	dims int
}

// DefaultDBPath returns the default path for the chunk database.
// It resolves to ~/.docqa/chunks.db, creating the directory if needed.
func DefaultDBPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("rag: could not determine home directory: %w", err)
	}
	dir := filepath.Join(home, ".docqa")
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return "", fmt.Errorf("rag: could not create %s: %w", dir, err)
	}
	return filepath.Join(dir, "chunks.db"), nil
}

// Open opens (or creates) a SQLiteStore at the given path with the given
// embedding dimensionality and runs the schema migration. Use ":memory:"
// for an in-memory database in tests. dims defaults to DefaultDimensions
// when zero.
func Open(path string, dims int) (*SQLiteStore, error) {
	if dims == 0 {
		dims = DefaultDimensions
	}
	if dims < 1 {
		return nil, fmt.Errorf("rag: open %s: dimensionality %d: %w", path, dims, ErrDimensionMismatch)
	}

	// WAL mode improves concurrent read performance and is safe for single-host use.
	dsn := path + "?_journal_mode=WAL&_busy_timeout=5000"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("rag: open %s: %w", path, err)
	}
	// Limit to a single writer connection to avoid SQLITE_BUSY under concurrent writes.
	db.SetMaxOpenConns(1)

	s := &SQLiteStore{db: db, dims: dims}
	if err := s.migrate(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

// migrate creates the schema if it does not already exist.
func (s *SQLiteStore) migrate() error {
	const ddl = `
CREATE TABLE IF NOT EXISTS documents (
    id           INTEGER PRIMARY KEY AUTOINCREMENT,
    name         TEXT    NOT NULL,
    content      TEXT    NOT NULL,
    created_at   INTEGER NOT NULL  -- Unix timestamp (seconds)
);
CREATE TABLE IF NOT EXISTS chunks (
    id           INTEGER PRIMARY KEY AUTOINCREMENT,
    document_id  INTEGER NOT NULL REFERENCES documents(id),
    chunk_text   TEXT    NOT NULL,
    embedding    BLOB    NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_chunks_document ON chunks (document_id);
`
	if _, err := s.db.Exec(ddl); err != nil {
		return fmt.Errorf("rag: migrate: %w", err)
	}
	return nil
}

// Dimensions returns the embedding dimensionality this store was opened with.
func (s *SQLiteStore) Dimensions() int { return s.dims }

// CreateDocument inserts a document record and returns it with its assigned id.
func (s *SQLiteStore) CreateDocument(ctx context.Context, name, text string) (Document, error) {
	const q = `INSERT INTO documents (name, content, created_at) VALUES (?, ?, ?)`
	res, err := s.db.ExecContext(ctx, q, name, text, time.Now().Unix())
	if err != nil {
		return Document{}, fmt.Errorf("rag: create document: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return Document{}, fmt.Errorf("rag: create document: %w", err)
	}
	return Document{ID: id, Name: name, Text: text}, nil
}

// GetDocument returns the document with the given id.
func (s *SQLiteStore) GetDocument(ctx context.Context, id int64) (Document, error) {
	const q = `SELECT id, name, content FROM documents WHERE id = ?`
	var doc Document
	err := s.db.QueryRowContext(ctx, q, id).Scan(&doc.ID, &doc.Name, &doc.Text)
	if errors.Is(err, sql.ErrNoRows) {
		return Document{}, fmt.Errorf("rag: get document %d: %w", id, ErrDocumentNotFound)
	}
	if err != nil {
		return Document{}, fmt.Errorf("rag: get document %d: %w", id, err)
	}
	return doc, nil
}

// ListDocuments returns all documents ordered by ascending identifier.
func (s *SQLiteStore) ListDocuments(ctx context.Context) ([]Document, error) {
	const q = `SELECT id, name, content FROM documents ORDER BY id`
	rows, err := s.db.QueryContext(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("rag: list documents: %w", err)
	}
	defer rows.Close()

	var docs []Document
	for rows.Next() {
		var doc Document
		if err := rows.Scan(&doc.ID, &doc.Name, &doc.Text); err != nil {
			return nil, fmt.Errorf("rag: list documents: %w", err)
		}
		docs = append(docs, doc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rag: list documents: %w", err)
	}
	return docs, nil
}

// InsertChunks appends a batch of chunks for docID in slice order, atomically.
func (s *SQLiteStore) InsertChunks(ctx context.Context, docID int64, chunks []ChunkInput) (int, error) {
	return s.writeChunks(ctx, docID, chunks, false)
}

// ReplaceChunks atomically removes any existing chunks for docID and inserts
// the new batch. Re-running ingestion for a document therefore replaces its
// chunks instead of appending duplicates.
func (s *SQLiteStore) ReplaceChunks(ctx context.Context, docID int64, chunks []ChunkInput) (int, error) {
	return s.writeChunks(ctx, docID, chunks, true)
}

// writeChunks implements the shared transactional insert path. The whole
// batch commits or rolls back together, and the owning document must exist
// at insert time.
func (s *SQLiteStore) writeChunks(ctx context.Context, docID int64, chunks []ChunkInput, replace bool) (int, error) {
	for i, c := range chunks {
		if len(c.Embedding) != s.dims {
			return 0, fmt.Errorf("rag: insert chunks: chunk %d has %d dimensions, store expects %d: %w",
				i, len(c.Embedding), s.dims, ErrDimensionMismatch)
		}
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("rag: insert chunks: begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	// Referential existence check inside the transaction so a concurrent
	// writer cannot invalidate it before commit.
	var exists int
	err = tx.QueryRowContext(ctx, `SELECT 1 FROM documents WHERE id = ?`, docID).Scan(&exists)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, fmt.Errorf("rag: insert chunks for document %d: %w", docID, ErrDocumentNotFound)
	}
	if err != nil {
		return 0, fmt.Errorf("rag: insert chunks: %w", err)
	}

	if replace {
		if _, err := tx.ExecContext(ctx, `DELETE FROM chunks WHERE document_id = ?`, docID); err != nil {
			return 0, fmt.Errorf("rag: replace chunks: delete: %w", err)
		}
	}

	stmt, err := tx.PrepareContext(ctx, `INSERT INTO chunks (document_id, chunk_text, embedding) VALUES (?, ?, ?)`)
	if err != nil {
		return 0, fmt.Errorf("rag: insert chunks: prepare: %w", err)
	}
	defer stmt.Close()

	for _, c := range chunks {
		if _, err := stmt.ExecContext(ctx, docID, c.Text, encodeVector(c.Embedding)); err != nil {
			return 0, fmt.Errorf("rag: insert chunks: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("rag: insert chunks: commit: %w", err)
	}
	return len(chunks), nil
}

// ChunksByDocument returns all chunks belonging to docID in insertion order.
// A document with no chunks (or an unknown docID) yields an empty slice.
func (s *SQLiteStore) ChunksByDocument(ctx context.Context, docID int64) ([]Chunk, error) {
	const q = `SELECT id, chunk_text, embedding FROM chunks WHERE document_id = ? ORDER BY id`
	rows, err := s.db.QueryContext(ctx, q, docID)
	if err != nil {
		return nil, fmt.Errorf("rag: chunks by document: %w", err)
	}
	defer rows.Close()

	var chunks []Chunk
	for rows.Next() {
		var (
			chunk Chunk
			blob  []byte
		)
		if err := rows.Scan(&chunk.ID, &chunk.Text, &blob); err != nil {
			return nil, fmt.Errorf("rag: chunks by document: %w", err)
		}
		chunk.DocumentID = docID
		chunk.Embedding, err = decodeVector(blob)
		if err != nil {
			return nil, fmt.Errorf("rag: chunks by document: chunk %d: %w", chunk.ID, err)
		}
		chunks = append(chunks, chunk)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rag: chunks by document: %w", err)
	}
	return chunks, nil
}

// Nearest runs an exact L2 scan over docID's chunks and returns the k
// closest, ascending by distance, ties broken by insertion order.
func (s *SQLiteStore) Nearest(ctx context.Context, docID int64, query []float32, k int) ([]Chunk, error) {
	if k < 1 {
		return nil, fmt.Errorf("rag: nearest: k=%d: %w", k, ErrInvalidLimit)
	}
	if len(query) != s.dims {
		return nil, fmt.Errorf("rag: nearest: query has %d dimensions, store expects %d: %w",
			len(query), s.dims, ErrDimensionMismatch)
	}

	const q = `SELECT id, chunk_text, embedding FROM chunks WHERE document_id = ? ORDER BY id`
	rows, err := s.db.QueryContext(ctx, q, docID)
	if err != nil {
		return nil, fmt.Errorf("rag: nearest: %w", err)
	}
	defer rows.Close()

	type scored struct {
		chunk Chunk
		dist  float64
	}
	var candidates []scored
	for rows.Next() {
		var (
			chunk Chunk
			blob  []byte
		)
		if err := rows.Scan(&chunk.ID, &chunk.Text, &blob); err != nil {
			return nil, fmt.Errorf("rag: nearest: %w", err)
		}
		chunk.DocumentID = docID
		chunk.Embedding, err = decodeVector(blob)
		if err != nil {
			return nil, fmt.Errorf("rag: nearest: chunk %d: %w", chunk.ID, err)
		}
		if len(chunk.Embedding) != s.dims {
			return nil, fmt.Errorf("rag: nearest: chunk %d has %d dimensions, store expects %d: %w",
				chunk.ID, len(chunk.Embedding), s.dims, ErrDimensionMismatch)
		}
		candidates = append(candidates, scored{chunk: chunk, dist: l2Squared(query, chunk.Embedding)})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rag: nearest: %w", err)
	}

	// Candidates arrive in insertion order; the stable sort keeps that order
	// for equal distances.
	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].dist < candidates[j].dist
	})
	if len(candidates) > k {
		candidates = candidates[:k]
	}

	out := make([]Chunk, len(candidates))
	for i, c := range candidates {
		out[i] = c.chunk
	}
	return out, nil
}

// Ping verifies the database connection is alive. Used by readiness checks.
func (s *SQLiteStore) Ping(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return fmt.Errorf("rag: ping: %w", err)
	}
	return nil
}

// Name returns the dependency label used in readiness responses.
func (s *SQLiteStore) Name() string { return "sqlite" }

// Close closes the underlying database.
func (s *SQLiteStore) Close() error {
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("rag: close: %w", err)
	}
	return nil
}

package rag

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
)

// openTestStore opens an in-memory SQLiteStore with 3-dimensional vectors so
// test fixtures stay readable.
func openTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := Open(":memory:", 3)
	if err != nil {
		t.Fatalf("open in-memory store: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

// mustCreateDocument creates a document or fails the test.
func mustCreateDocument(t *testing.T, s *SQLiteStore, name string) Document {
	t.Helper()
	doc, err := s.CreateDocument(context.Background(), name, "content of "+name)
	if err != nil {
		t.Fatalf("create document %s: %v", name, err)
	}
	return doc
}

func Test_Store_CreateAndGetDocument(t *testing.T) {
	t.Parallel()
	s := openTestStore(t)
	ctx := context.Background()

	created := mustCreateDocument(t, s, "report.pdf")
	if created.ID == 0 {
		t.Fatal("want non-zero document id")
	}

	got, err := s.GetDocument(ctx, created.ID)
	if err != nil {
		t.Fatalf("get document: %v", err)
	}
	if got.Name != "report.pdf" || got.Text != "content of report.pdf" {
		t.Errorf("got %+v", got)
	}
}

func Test_Store_GetDocumentNotFound(t *testing.T) {
	t.Parallel()
	s := openTestStore(t)

	_, err := s.GetDocument(context.Background(), 9999)
	if !errors.Is(err, ErrDocumentNotFound) {
		t.Errorf("want ErrDocumentNotFound, got %v", err)
	}
}

func Test_Store_ListDocumentsAscending(t *testing.T) {
	t.Parallel()
	s := openTestStore(t)

	names := []string{"a.txt", "b.txt", "c.pdf"}
	for _, n := range names {
		mustCreateDocument(t, s, n)
	}

	docs, err := s.ListDocuments(context.Background())
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(docs) != 3 {
		t.Fatalf("want 3 documents, got %d", len(docs))
	}
	for i := 1; i < len(docs); i++ {
		if docs[i].ID <= docs[i-1].ID {
			t.Errorf("ids not ascending: %d then %d", docs[i-1].ID, docs[i].ID)
		}
	}
	for i, n := range names {
		if docs[i].Name != n {
			t.Errorf("doc[%d]: want %q, got %q", i, n, docs[i].Name)
		}
	}
}

func Test_Store_InsertChunksRequiresDocument(t *testing.T) {
	t.Parallel()
	s := openTestStore(t)

	_, err := s.InsertChunks(context.Background(), 42, []ChunkInput{
		{Text: "orphan", Embedding: []float32{1, 2, 3}},
	})
	if !errors.Is(err, ErrDocumentNotFound) {
		t.Fatalf("want ErrDocumentNotFound, got %v", err)
	}

	// The failed batch must leave nothing behind.
	doc := mustCreateDocument(t, s, "real.txt")
	chunks, err := s.Nearest(context.Background(), doc.ID, []float32{0, 0, 0}, 10)
	if err != nil {
		t.Fatalf("nearest: %v", err)
	}
	if len(chunks) != 0 {
		t.Errorf("want no chunks after rolled-back batch, got %d", len(chunks))
	}
}

func Test_Store_InsertChunksDimensionMismatchRollsBack(t *testing.T) {
	t.Parallel()
	s := openTestStore(t)
	ctx := context.Background()
	doc := mustCreateDocument(t, s, "doc.txt")

	_, err := s.InsertChunks(ctx, doc.ID, []ChunkInput{
		{Text: "good", Embedding: []float32{1, 2, 3}},
		{Text: "bad", Embedding: []float32{1, 2}},
	})
	if !errors.Is(err, ErrDimensionMismatch) {
		t.Fatalf("want ErrDimensionMismatch, got %v", err)
	}

	chunks, err := s.Nearest(ctx, doc.ID, []float32{0, 0, 0}, 10)
	if err != nil {
		t.Fatalf("nearest: %v", err)
	}
	if len(chunks) != 0 {
		t.Errorf("partial batch persisted: got %d chunks", len(chunks))
	}
}

func Test_Store_NearestOrderingAndLimit(t *testing.T) {
	t.Parallel()
	s := openTestStore(t)
	ctx := context.Background()
	doc := mustCreateDocument(t, s, "doc.txt")

	inputs := []ChunkInput{
		{Text: "far", Embedding: []float32{10, 0, 0}},
		{Text: "nearest", Embedding: []float32{1, 0, 0}},
		{Text: "middle", Embedding: []float32{5, 0, 0}},
	}
	if _, err := s.InsertChunks(ctx, doc.ID, inputs); err != nil {
		t.Fatalf("insert: %v", err)
	}

	got, err := s.Nearest(ctx, doc.ID, []float32{0, 0, 0}, 2)
	if err != nil {
		t.Fatalf("nearest: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("want 2 chunks, got %d", len(got))
	}
	if got[0].Text != "nearest" || got[1].Text != "middle" {
		t.Errorf("ordering: got [%s, %s]", got[0].Text, got[1].Text)
	}
}

func Test_Store_NearestTiesBreakByInsertionOrder(t *testing.T) {
	t.Parallel()
	s := openTestStore(t)
	ctx := context.Background()
	doc := mustCreateDocument(t, s, "doc.txt")

	// Both chunks sit at the same distance from the query.
	inputs := []ChunkInput{
		{Text: "first inserted", Embedding: []float32{1, 0, 0}},
		{Text: "second inserted", Embedding: []float32{-1, 0, 0}},
	}
	if _, err := s.InsertChunks(ctx, doc.ID, inputs); err != nil {
		t.Fatalf("insert: %v", err)
	}

	got, err := s.Nearest(ctx, doc.ID, []float32{0, 0, 0}, 2)
	if err != nil {
		t.Fatalf("nearest: %v", err)
	}
	if got[0].Text != "first inserted" || got[1].Text != "second inserted" {
		t.Errorf("tie-break: got [%s, %s]", got[0].Text, got[1].Text)
	}
}

func Test_Store_NearestScopedToDocument(t *testing.T) {
	t.Parallel()
	s := openTestStore(t)
	ctx := context.Background()

	docA := mustCreateDocument(t, s, "a.txt")
	docB := mustCreateDocument(t, s, "b.txt")

	if _, err := s.InsertChunks(ctx, docA.ID, []ChunkInput{
		{Text: "belongs to a", Embedding: []float32{0, 0, 1}},
	}); err != nil {
		t.Fatalf("insert a: %v", err)
	}
	if _, err := s.InsertChunks(ctx, docB.ID, []ChunkInput{
		{Text: "belongs to b", Embedding: []float32{0, 0, 1}},
	}); err != nil {
		t.Fatalf("insert b: %v", err)
	}

	got, err := s.Nearest(ctx, docA.ID, []float32{0, 0, 1}, 10)
	if err != nil {
		t.Fatalf("nearest: %v", err)
	}
	if len(got) != 1 || got[0].Text != "belongs to a" {
		t.Errorf("cross-document leak: got %+v", got)
	}
	for _, c := range got {
		if c.DocumentID != docA.ID {
			t.Errorf("chunk %d attributed to document %d, want %d", c.ID, c.DocumentID, docA.ID)
		}
	}
}

func Test_Store_NearestEmptyDocument(t *testing.T) {
	t.Parallel()
	s := openTestStore(t)
	doc := mustCreateDocument(t, s, "empty.txt")

	got, err := s.Nearest(context.Background(), doc.ID, []float32{0, 0, 0}, 5)
	if err != nil {
		t.Fatalf("nearest on chunkless document: %v", err)
	}
	if len(got) != 0 {
		t.Errorf("want empty result, got %d chunks", len(got))
	}
}

func Test_Store_NearestUnknownDocumentIsEmptyNotError(t *testing.T) {
	t.Parallel()
	s := openTestStore(t)

	got, err := s.Nearest(context.Background(), 777, []float32{0, 0, 0}, 5)
	if err != nil {
		t.Fatalf("nearest on unknown document: %v", err)
	}
	if len(got) != 0 {
		t.Errorf("want empty result, got %d chunks", len(got))
	}
}

func Test_Store_NearestQueryDimensionMismatch(t *testing.T) {
	t.Parallel()
	s := openTestStore(t)
	doc := mustCreateDocument(t, s, "doc.txt")

	_, err := s.Nearest(context.Background(), doc.ID, []float32{1, 2}, 5)
	if !errors.Is(err, ErrDimensionMismatch) {
		t.Errorf("want ErrDimensionMismatch, got %v", err)
	}
}

func Test_Store_NearestInvalidLimit(t *testing.T) {
	t.Parallel()
	s := openTestStore(t)
	doc := mustCreateDocument(t, s, "doc.txt")

	for _, k := range []int{0, -3} {
		if _, err := s.Nearest(context.Background(), doc.ID, []float32{0, 0, 0}, k); !errors.Is(err, ErrInvalidLimit) {
			t.Errorf("k=%d: want ErrInvalidLimit, got %v", k, err)
		}
	}
}

func Test_Store_ExactMatchRoundTrip(t *testing.T) {
	t.Parallel()
	s := openTestStore(t)
	ctx := context.Background()
	doc := mustCreateDocument(t, s, "doc.txt")

	v1 := []float32{1, 0, 0}
	v2 := []float32{0, 1, 0}
	if _, err := s.InsertChunks(ctx, doc.ID, []ChunkInput{
		{Text: "t1", Embedding: v1},
		{Text: "t2", Embedding: v2},
	}); err != nil {
		t.Fatalf("insert: %v", err)
	}

	got, err := s.Nearest(ctx, doc.ID, v1, 1)
	if err != nil {
		t.Fatalf("nearest: %v", err)
	}
	if len(got) != 1 || got[0].Text != "t1" {
		t.Fatalf("exact-match retrieval: got %+v", got)
	}
	for i, v := range v1 {
		if got[0].Embedding[i] != v {
			t.Errorf("embedding[%d]: want %v, got %v", i, v, got[0].Embedding[i])
		}
	}
}

func Test_Store_ReplaceChunksIsIdempotent(t *testing.T) {
	t.Parallel()
	s := openTestStore(t)
	ctx := context.Background()
	doc := mustCreateDocument(t, s, "doc.txt")

	batch := []ChunkInput{
		{Text: "c1", Embedding: []float32{1, 0, 0}},
		{Text: "c2", Embedding: []float32{0, 1, 0}},
	}
	for range 3 {
		if _, err := s.ReplaceChunks(ctx, doc.ID, batch); err != nil {
			t.Fatalf("replace: %v", err)
		}
	}

	got, err := s.Nearest(ctx, doc.ID, []float32{0, 0, 0}, 10)
	if err != nil {
		t.Fatalf("nearest: %v", err)
	}
	if len(got) != 2 {
		t.Errorf("re-ingestion duplicated chunks: want 2, got %d", len(got))
	}
}

func Test_Store_InsertChunksAppends(t *testing.T) {
	t.Parallel()
	s := openTestStore(t)
	ctx := context.Background()
	doc := mustCreateDocument(t, s, "doc.txt")

	one := []ChunkInput{{Text: "c", Embedding: []float32{1, 0, 0}}}
	for range 2 {
		if _, err := s.InsertChunks(ctx, doc.ID, one); err != nil {
			t.Fatalf("insert: %v", err)
		}
	}

	got, err := s.Nearest(ctx, doc.ID, []float32{0, 0, 0}, 10)
	if err != nil {
		t.Fatalf("nearest: %v", err)
	}
	if len(got) != 2 {
		t.Errorf("append contract: want 2 chunks, got %d", len(got))
	}
}

// Test_Store_ConcurrentIngestIsolation inserts chunks for two documents from
// concurrent goroutines and verifies no chunk crosses document boundaries.
func Test_Store_ConcurrentIngestIsolation(t *testing.T) {
	t.Parallel()
	s := openTestStore(t)
	ctx := context.Background()

	docA := mustCreateDocument(t, s, "a.txt")
	docB := mustCreateDocument(t, s, "b.txt")

	var wg sync.WaitGroup
	errs := make(chan error, 2)
	ingest := func(docID int64, label string) {
		defer wg.Done()
		batch := make([]ChunkInput, 20)
		for i := range batch {
			batch[i] = ChunkInput{
				Text:      fmt.Sprintf("%s-%d", label, i),
				Embedding: []float32{float32(i), 0, 0},
			}
		}
		if _, err := s.InsertChunks(ctx, docID, batch); err != nil {
			errs <- err
		}
	}

	wg.Add(2)
	go ingest(docA.ID, "a")
	go ingest(docB.ID, "b")
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Fatalf("concurrent insert: %v", err)
	}

	for _, tc := range []struct {
		doc   Document
		label string
	}{{docA, "a"}, {docB, "b"}} {
		chunks, err := s.Nearest(ctx, tc.doc.ID, []float32{0, 0, 0}, 100)
		if err != nil {
			t.Fatalf("nearest %s: %v", tc.label, err)
		}
		if len(chunks) != 20 {
			t.Errorf("document %s: want 20 chunks, got %d", tc.label, len(chunks))
		}
		for _, c := range chunks {
			if c.DocumentID != tc.doc.ID {
				t.Errorf("chunk %d attributed to document %d, want %d", c.ID, c.DocumentID, tc.doc.ID)
			}
			if c.Text[:1] != tc.label {
				t.Errorf("chunk text %q leaked into document %s", c.Text, tc.label)
			}
		}
	}
}

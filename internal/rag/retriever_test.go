package rag

import (
	"context"
	"errors"
	"testing"
)

// fakeEmbedder is a test double that returns a fixed vector per input text.
type fakeEmbedder struct {
	// vectors maps input text to the vector to return.
	vectors map[string][]float32
	// err, when set, fails every Embed call.
	err error
}

func (f *fakeEmbedder) Embed(_ context.Context, texts []string) ([][]float32, error) {
	if f.err != nil {
		return nil, f.err
	}
	out := make([][]float32, len(texts))
	for i, tx := range texts {
		out[i] = f.vectors[tx]
	}
	return out, nil
}

// fakeSearcher is a test double recording the Nearest call it received.
type fakeSearcher struct {
	gotDocID int64
	gotK     int
	chunks   []Chunk
	err      error
}

func (f *fakeSearcher) Nearest(_ context.Context, docID int64, _ []float32, k int) ([]Chunk, error) {
	f.gotDocID = docID
	f.gotK = k
	return f.chunks, f.err
}

func Test_Retriever_JoinsChunksInReturnedOrder(t *testing.T) {
	t.Parallel()

	emb := &fakeEmbedder{vectors: map[string][]float32{"where is john?": {1, 0, 0}}}
	search := &fakeSearcher{chunks: []Chunk{
		{Text: "My Name is John. I live in New York."},
		{Text: "I am from the USA."},
	}}

	r, err := NewContextRetriever(emb, search, 0)
	if err != nil {
		t.Fatalf("new retriever: %v", err)
	}

	got, err := r.Context(context.Background(), 7, "where is john?", 2)
	if err != nil {
		t.Fatalf("context: %v", err)
	}
	want := "My Name is John. I live in New York. I am from the USA."
	if got != want {
		t.Errorf("context blob:\nwant %q\ngot  %q", want, got)
	}
	if search.gotDocID != 7 || search.gotK != 2 {
		t.Errorf("searcher called with docID=%d k=%d", search.gotDocID, search.gotK)
	}
}

func Test_Retriever_DefaultTopK(t *testing.T) {
	t.Parallel()

	emb := &fakeEmbedder{vectors: map[string][]float32{"q": {1}}}
	search := &fakeSearcher{}

	r, err := NewContextRetriever(emb, search, 0)
	if err != nil {
		t.Fatalf("new retriever: %v", err)
	}
	if _, err := r.Context(context.Background(), 1, "q", 0); err != nil {
		t.Fatalf("context: %v", err)
	}
	if search.gotK != DefaultTopK {
		t.Errorf("want default k=%d, got %d", DefaultTopK, search.gotK)
	}
}

func Test_Retriever_NoChunksYieldsEmptyString(t *testing.T) {
	t.Parallel()

	emb := &fakeEmbedder{vectors: map[string][]float32{"q": {1}}}
	r, err := NewContextRetriever(emb, &fakeSearcher{}, 5)
	if err != nil {
		t.Fatalf("new retriever: %v", err)
	}

	got, err := r.Context(context.Background(), 1, "q", 3)
	if err != nil {
		t.Fatalf("context: %v", err)
	}
	if got != "" {
		t.Errorf("want empty context, got %q", got)
	}
}

func Test_Retriever_EmbedFailurePropagates(t *testing.T) {
	t.Parallel()

	wantErr := errors.New("model offline")
	r, err := NewContextRetriever(&fakeEmbedder{err: wantErr}, &fakeSearcher{}, 5)
	if err != nil {
		t.Fatalf("new retriever: %v", err)
	}

	if _, err := r.Context(context.Background(), 1, "q", 3); !errors.Is(err, wantErr) {
		t.Errorf("want embed error to propagate, got %v", err)
	}
}

func Test_Retriever_SearchFailurePropagates(t *testing.T) {
	t.Parallel()

	wantErr := errors.New("store down")
	emb := &fakeEmbedder{vectors: map[string][]float32{"q": {1}}}
	r, err := NewContextRetriever(emb, &fakeSearcher{err: wantErr}, 5)
	if err != nil {
		t.Fatalf("new retriever: %v", err)
	}

	if _, err := r.Context(context.Background(), 1, "q", 3); !errors.Is(err, wantErr) {
		t.Errorf("want search error to propagate, got %v", err)
	}
}

func Test_Retriever_NilDependenciesRejected(t *testing.T) {
	t.Parallel()

	if _, err := NewContextRetriever(nil, &fakeSearcher{}, 5); err == nil {
		t.Error("want error for nil embedder")
	}
	if _, err := NewContextRetriever(&fakeEmbedder{}, nil, 5); err == nil {
		t.Error("want error for nil searcher")
	}
}

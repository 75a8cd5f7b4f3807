package ingestion

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

// blockingEmbedder blocks inside Embed until released, so tests can observe
// the in-flight state of a job.
type blockingEmbedder struct {
	dims    int
	started chan struct{}
	release chan struct{}
	once    sync.Once
}

func (b *blockingEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	b.once.Do(func() { close(b.started) })
	select {
	case <-b.release:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = make([]float32, b.dims)
	}
	return out, nil
}

func newTestQueue(t *testing.T, p *Pipeline, cfg *QueueConfig) *Queue {
	t.Helper()
	q, err := NewQueue(context.Background(), p, cfg)
	if err != nil {
		t.Fatalf("new queue: %v", err)
	}
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = q.Shutdown(ctx)
	})
	return q
}

func Test_Queue_IngestsInBackground(t *testing.T) {
	t.Parallel()

	store := openTestStore(t, 3)
	p, err := NewPipeline(&stubEmbedder{dims: 3}, store, nil, nil)
	if err != nil {
		t.Fatalf("new pipeline: %v", err)
	}
	q := newTestQueue(t, p, nil)

	doc, err := store.CreateDocument(context.Background(), "doc.txt", sampleText)
	if err != nil {
		t.Fatalf("create document: %v", err)
	}
	if err := q.Enqueue(doc.ID, sampleText); err != nil {
		t.Fatalf("enqueue: %v", err)
	}

	deadline := time.Now().Add(5 * time.Second)
	for q.Pending(doc.ID) {
		if time.Now().After(deadline) {
			t.Fatal("job did not complete in time")
		}
		time.Sleep(10 * time.Millisecond)
	}

	stored, err := store.ChunksByDocument(context.Background(), doc.ID)
	if err != nil {
		t.Fatalf("chunks by document: %v", err)
	}
	if len(stored) != 3 {
		t.Errorf("want 3 chunks after background ingest, got %d", len(stored))
	}
}

func Test_Queue_RejectsConcurrentSameDocument(t *testing.T) {
	t.Parallel()

	store := openTestStore(t, 3)
	emb := &blockingEmbedder{dims: 3, started: make(chan struct{}), release: make(chan struct{})}
	p, err := NewPipeline(emb, store, nil, nil)
	if err != nil {
		t.Fatalf("new pipeline: %v", err)
	}
	q := newTestQueue(t, p, &QueueConfig{Workers: 2})

	doc, err := store.CreateDocument(context.Background(), "doc.txt", sampleText)
	if err != nil {
		t.Fatalf("create document: %v", err)
	}
	if err := q.Enqueue(doc.ID, sampleText); err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	<-emb.started

	if err := q.Enqueue(doc.ID, sampleText); !errors.Is(err, ErrAlreadyIngesting) {
		t.Errorf("want ErrAlreadyIngesting, got %v", err)
	}

	close(emb.release)
	deadline := time.Now().Add(5 * time.Second)
	for q.Pending(doc.ID) {
		if time.Now().After(deadline) {
			t.Fatal("job did not complete in time")
		}
		time.Sleep(10 * time.Millisecond)
	}

	// Once the first run finishes, the document can be re-ingested.
	if err := q.Enqueue(doc.ID, sampleText); err != nil {
		t.Errorf("re-enqueue after completion: %v", err)
	}
}

func Test_Queue_DistinctDocumentsRunIndependently(t *testing.T) {
	t.Parallel()

	store := openTestStore(t, 3)
	p, err := NewPipeline(&stubEmbedder{dims: 3}, store, nil, nil)
	if err != nil {
		t.Fatalf("new pipeline: %v", err)
	}
	q := newTestQueue(t, p, &QueueConfig{Workers: 2})

	a, err := store.CreateDocument(context.Background(), "a.txt", "Alpha text here.")
	if err != nil {
		t.Fatalf("create document: %v", err)
	}
	b, err := store.CreateDocument(context.Background(), "b.txt", "Beta text here.")
	if err != nil {
		t.Fatalf("create document: %v", err)
	}

	if err := q.Enqueue(a.ID, "Alpha text here."); err != nil {
		t.Fatalf("enqueue a: %v", err)
	}
	if err := q.Enqueue(b.ID, "Beta text here."); err != nil {
		t.Fatalf("enqueue b: %v", err)
	}

	deadline := time.Now().Add(5 * time.Second)
	for q.Pending(a.ID) || q.Pending(b.ID) {
		if time.Now().After(deadline) {
			t.Fatal("jobs did not complete in time")
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func Test_Queue_ShutdownDrainsAndRejects(t *testing.T) {
	t.Parallel()

	store := openTestStore(t, 3)
	p, err := NewPipeline(&stubEmbedder{dims: 3}, store, nil, nil)
	if err != nil {
		t.Fatalf("new pipeline: %v", err)
	}
	q, err := NewQueue(context.Background(), p, nil)
	if err != nil {
		t.Fatalf("new queue: %v", err)
	}

	doc, err := store.CreateDocument(context.Background(), "doc.txt", sampleText)
	if err != nil {
		t.Fatalf("create document: %v", err)
	}
	if err := q.Enqueue(doc.ID, sampleText); err != nil {
		t.Fatalf("enqueue: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := q.Shutdown(ctx); err != nil {
		t.Fatalf("shutdown: %v", err)
	}

	// Queued work finished before shutdown returned.
	stored, err := store.ChunksByDocument(context.Background(), doc.ID)
	if err != nil {
		t.Fatalf("chunks by document: %v", err)
	}
	if len(stored) != 3 {
		t.Errorf("want queued job drained, got %d chunks", len(stored))
	}

	if err := q.Enqueue(doc.ID, sampleText); !errors.Is(err, ErrQueueClosed) {
		t.Errorf("want ErrQueueClosed after shutdown, got %v", err)
	}
}

func Test_Queue_FullBufferReturnsErrQueueFull(t *testing.T) {
	t.Parallel()

	store := openTestStore(t, 3)
	emb := &blockingEmbedder{dims: 3, started: make(chan struct{}), release: make(chan struct{})}
	p, err := NewPipeline(emb, store, nil, nil)
	if err != nil {
		t.Fatalf("new pipeline: %v", err)
	}
	// One worker and a one-slot buffer: the first job occupies the worker,
	// the second fills the buffer, the third has nowhere to go.
	q := newTestQueue(t, p, &QueueConfig{Workers: 1, Buffer: 1})

	if err := q.Enqueue(1, "First sentence here."); err != nil {
		t.Fatalf("enqueue 1: %v", err)
	}
	<-emb.started
	if err := q.Enqueue(2, "Second sentence here."); err != nil {
		t.Fatalf("enqueue 2: %v", err)
	}

	err = q.Enqueue(3, "Third sentence here.")
	if !errors.Is(err, ErrQueueFull) {
		t.Errorf("want ErrQueueFull, got %v", err)
	}
	if errors.Is(err, ErrQueueClosed) {
		t.Errorf("a full queue must not report ErrQueueClosed")
	}
	// The rejected document is not left marked in-flight.
	if q.Pending(3) {
		t.Errorf("rejected document still pending")
	}

	close(emb.release)
}

func Test_Queue_EnqueueDuringShutdown(t *testing.T) {
	t.Parallel()

	// Enqueue must never panic by sending on the jobs channel after Shutdown
	// has closed it; it returns ErrQueueClosed instead.
	for i := 0; i < 200; i++ {
		store := openTestStore(t, 3)
		p, err := NewPipeline(&stubEmbedder{dims: 3}, store, nil, nil)
		if err != nil {
			t.Fatalf("new pipeline: %v", err)
		}
		q, err := NewQueue(context.Background(), p, &QueueConfig{Workers: 1, Buffer: 4})
		if err != nil {
			t.Fatalf("new queue: %v", err)
		}

		var wg sync.WaitGroup
		wg.Add(2)
		go func() {
			defer wg.Done()
			for d := int64(1); d <= 10; d++ {
				if err := q.Enqueue(d, "Some text here."); err != nil && !errors.Is(err, ErrQueueClosed) && !errors.Is(err, ErrQueueFull) {
					t.Errorf("enqueue %d: %v", d, err)
				}
			}
		}()
		go func() {
			defer wg.Done()
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := q.Shutdown(ctx); err != nil {
				t.Errorf("shutdown: %v", err)
			}
		}()
		wg.Wait()
	}
}

func Test_Queue_FailedJobReleasesDocument(t *testing.T) {
	t.Parallel()

	store := openTestStore(t, 3)
	p, err := NewPipeline(&stubEmbedder{dims: 3, err: errors.New("model offline")}, store, nil, nil)
	if err != nil {
		t.Fatalf("new pipeline: %v", err)
	}
	q := newTestQueue(t, p, nil)

	doc, err := store.CreateDocument(context.Background(), "doc.txt", sampleText)
	if err != nil {
		t.Fatalf("create document: %v", err)
	}
	if err := q.Enqueue(doc.ID, sampleText); err != nil {
		t.Fatalf("enqueue: %v", err)
	}

	deadline := time.Now().Add(5 * time.Second)
	for q.Pending(doc.ID) {
		if time.Now().After(deadline) {
			t.Fatal("failed job never released the document")
		}
		time.Sleep(10 * time.Millisecond)
	}
}

package ingestion

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/docqa/docqa-go/internal/logging"
)

// Queue runs ingestion jobs in the background so upload handlers can return
// immediately. Jobs for distinct documents run concurrently up to the worker
// count; a second job for a document already being ingested is rejected so
// two pipelines never race on the same document's chunks.
type Queue struct {
	// pipeline executes each job.
	pipeline *Pipeline

	// jobs carries pending work to the workers.
	jobs chan job

	// inflight tracks document IDs currently queued or running.
	inflight map[int64]struct{}

	// mu guards inflight.
	mu sync.Mutex

	// wg tracks running workers for Shutdown.
	wg sync.WaitGroup

	// jobTimeout bounds each ingestion run.
	jobTimeout time.Duration

	// closed flags that Shutdown has begun; Enqueue rejects new work.
	closed bool
}

// job is one pending ingestion run.
type job struct {
	docID int64
	text  string
}

// ErrAlreadyIngesting reports that the document has an ingestion run queued
// or in progress.
var ErrAlreadyIngesting = fmt.Errorf("ingestion: document is already being ingested")

// ErrQueueClosed reports that the queue is shutting down.
var ErrQueueClosed = fmt.Errorf("ingestion: queue is closed")

// ErrQueueFull reports that the pending-job buffer is at capacity.
var ErrQueueFull = fmt.Errorf("ingestion: queue is full")

// QueueConfig holds the settings for constructing a Queue.
type QueueConfig struct {
	// Workers is the number of concurrent ingestion workers. Defaults to 2.
	Workers int

	// Buffer is the pending-job channel capacity. Defaults to 16.
	Buffer int

	// JobTimeout bounds each ingestion run. Defaults to 5 minutes.
	JobTimeout time.Duration
}

// NewQueue constructs a Queue and starts its workers. baseCtx carries the
// logger the workers report with; worker contexts derive from it, so
// cancelling baseCtx aborts in-flight jobs.
func NewQueue(baseCtx context.Context, pipeline *Pipeline, cfg *QueueConfig) (*Queue, error) {
	if pipeline == nil {
		return nil, fmt.Errorf("ingestion: pipeline must not be nil")
	}
	if cfg == nil {
		cfg = &QueueConfig{}
	}
	workers := cfg.Workers
	if workers <= 0 {
		workers = 2
	}
	buffer := cfg.Buffer
	if buffer <= 0 {
		buffer = 16
	}
	timeout := cfg.JobTimeout
	if timeout <= 0 {
		timeout = 5 * time.Minute
	}

	q := &Queue{
		pipeline:   pipeline,
		jobs:       make(chan job, buffer),
		inflight:   make(map[int64]struct{}),
		jobTimeout: timeout,
	}

	for i := 0; i < workers; i++ {
		q.wg.Add(1)
		go q.worker(baseCtx)
	}
	return q, nil
}

// Enqueue schedules an ingestion run for docID. It returns ErrAlreadyIngesting
// when a run for the same document is queued or in progress, ErrQueueFull when
// the pending-job buffer is at capacity, and ErrQueueClosed once Shutdown has
// begun.
func (q *Queue) Enqueue(docID int64, text string) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return ErrQueueClosed
	}
	if _, busy := q.inflight[docID]; busy {
		return fmt.Errorf("document %d: %w", docID, ErrAlreadyIngesting)
	}

	// The send happens under mu, and Shutdown closes the channel under mu,
	// so a send on a closed channel cannot occur. The send never blocks: the
	// full-buffer case falls through to ErrQueueFull.
	select {
	case q.jobs <- job{docID: docID, text: text}:
		q.inflight[docID] = struct{}{}
		return nil
	default:
		return fmt.Errorf("document %d: %w", docID, ErrQueueFull)
	}
}

// Pending reports whether docID has an ingestion run queued or in progress.
func (q *Queue) Pending(docID int64) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	_, busy := q.inflight[docID]
	return busy
}

// Shutdown stops accepting new jobs and waits for queued and running jobs to
// drain, or for ctx to expire.
func (q *Queue) Shutdown(ctx context.Context) error {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return nil
	}
	q.closed = true
	close(q.jobs)
	q.mu.Unlock()

	done := make(chan struct{})
	go func() {
		q.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("ingestion: shutdown: %w", ctx.Err())
	}
}

// worker drains the job channel until it is closed.
func (q *Queue) worker(baseCtx context.Context) {
	defer q.wg.Done()

	log := logging.FromContext(baseCtx)
	for j := range q.jobs {
		ctx, cancel := context.WithTimeout(baseCtx, q.jobTimeout)

		start := time.Now()
		res, err := q.pipeline.Ingest(ctx, j.docID, j.text)
		cancel()
		q.release(j.docID)

		if err != nil {
			log.Error("ingestion failed",
				"document_id", j.docID,
				"duration", time.Since(start).String(),
				"error", err,
			)
			continue
		}
		log.Info("ingestion complete",
			"document_id", j.docID,
			"sentences", res.Sentences,
			"chunks", res.Chunks,
			"duration", time.Since(start).String(),
		)
	}
}

// release removes docID from the in-flight set.
func (q *Queue) release(docID int64) {
	q.mu.Lock()
	delete(q.inflight, docID)
	q.mu.Unlock()
}

package ingest

import (
	"context"
	"errors"
	"sync"

	"github.com/rs/zerolog"

	"github.com/shreyansh2912/prashnly-backend/internal/domain"
	"github.com/shreyansh2912/prashnly-backend/internal/repo"
)

// ErrQueueFull is returned by Enqueue when the pending buffer is at capacity.
// The caller surfaces this as backpressure; the document stays in its current
// state and is not silently dropped.
var ErrQueueFull = errors.New("ingest queue full")

// ErrQueueClosed is returned by Enqueue after Stop.
var ErrQueueClosed = errors.New("ingest queue closed")

// Queue is a bounded work queue feeding a fixed pool of ingestion workers.
// Uploads enqueue; workers drain, one document per worker at a time.
type Queue struct {
	pipeline *Pipeline
	log      zerolog.Logger

	jobs    chan *domain.Document
	workers int

	mu     sync.Mutex
	closed bool
	wg     sync.WaitGroup
}

// NewQueue sizes the pending buffer to depth and the pool to workers.
// Values below 1 are raised to 1.
func NewQueue(p *Pipeline, workers, depth int, log zerolog.Logger) *Queue {
	if workers < 1 {
		workers = 1
	}
	if depth < 1 {
		depth = 1
	}
	return &Queue{
		pipeline: p,
		log:      log,
		jobs:     make(chan *domain.Document, depth),
		workers:  workers,
	}
}

// Start launches the worker pool. Workers exit when Stop closes the queue or
// ctx is cancelled; ctx is also the base context for every pipeline run.
func (q *Queue) Start(ctx context.Context) {
	for i := 0; i < q.workers; i++ {
		q.wg.Add(1)
		go q.worker(ctx, i)
	}
}

func (q *Queue) worker(ctx context.Context, id int) {
	defer q.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case doc, ok := <-q.jobs:
			if !ok {
				return
			}
			q.log.Debug().
				Int("worker", id).
				Str("document_id", doc.ID).
				Msg("ingest worker picked up document")
			// Run records the terminal state itself; the error is
			// already logged there.
			_ = q.pipeline.Run(ctx, doc)
		}
	}
}

// Resume re-enqueues documents left in the processing state by a previous
// run. Documents that no longer fit the buffer are marked failed so they do
// not sit in processing forever; the owner re-uploads. Returns the number of
// documents requeued.
func (q *Queue) Resume(ctx context.Context) (int, error) {
	docs, err := repo.ListDocumentsByStatus(ctx, q.pipeline.DB, domain.StatusProcessing)
	if err != nil {
		return 0, err
	}
	requeued := 0
	for i := range docs {
		doc := docs[i]
		if err := q.Enqueue(&doc); err != nil {
			q.log.Warn().Err(err).
				Str("document_id", doc.ID).
				Msg("interrupted document could not be requeued")
			if err := repo.MarkDocumentFailed(ctx, q.pipeline.DB, doc.ID); err != nil {
				q.log.Error().Err(err).
					Str("document_id", doc.ID).
					Msg("failed to mark interrupted document")
			}
			continue
		}
		requeued++
	}
	return requeued, nil
}

// Enqueue hands a document to the pool without blocking.
func (q *Queue) Enqueue(doc *domain.Document) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return ErrQueueClosed
	}
	select {
	case q.jobs <- doc:
		return nil
	default:
		return ErrQueueFull
	}
}

// Stop closes the queue and waits for workers to finish the documents they
// already picked up. Pending documents still in the buffer are drained too.
func (q *Queue) Stop() {
	q.mu.Lock()
	if !q.closed {
		q.closed = true
		close(q.jobs)
	}
	q.mu.Unlock()
	q.wg.Wait()
}

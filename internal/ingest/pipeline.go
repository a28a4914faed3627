// Package ingest runs the document ingestion pipeline: extract text, chunk
// it, embed the chunks, and upsert the vectors into the index. Each document
// ends in exactly one terminal state, completed or failed, recorded on its
// row; pipeline errors never surface to the uploader directly.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"

	"github.com/shreyansh2912/prashnly-backend/internal/chunker"
	"github.com/shreyansh2912/prashnly-backend/internal/domain"
	"github.com/shreyansh2912/prashnly-backend/internal/embedding"
	"github.com/shreyansh2912/prashnly-backend/internal/extract"
	"github.com/shreyansh2912/prashnly-backend/internal/notify"
	"github.com/shreyansh2912/prashnly-backend/internal/repo"
	"github.com/shreyansh2912/prashnly-backend/internal/vectorindex"
)

// DefaultEmbedConcurrency bounds how many embedding batches are in flight
// per document.
const DefaultEmbedConcurrency = 2

// ErrNoText is recorded when extraction yields nothing to index.
var ErrNoText = errors.New("document contains no extractable text")

// Pipeline executes ingestion for one document at a time. It is safe for
// concurrent use; the queue runs one Run call per worker.
type Pipeline struct {
	DB       *gorm.DB
	Extract  extract.Extractor
	Chunker  *chunker.Chunker
	Embedder embedding.Embedder
	Index    vectorindex.Index
	Notify   notify.Notifier
	Log      zerolog.Logger

	// StageTimeout bounds each external call (embedding batch, index
	// upsert); <= 0 disables the per-stage deadline.
	StageTimeout time.Duration

	// EmbedConcurrency caps in-flight embedding batches; <= 0 uses
	// DefaultEmbedConcurrency.
	EmbedConcurrency int
}

// Run ingests one document end to end. On success the document row is marked
// completed with a fresh share token and its chunk ids; on any stage error it
// is marked failed and the error is returned for logging only. Run never
// leaves a document in the processing state.
func (p *Pipeline) Run(ctx context.Context, doc *domain.Document) error {
	prog := &progress{n: p.notifier(), docID: doc.ID}
	prog.set(0, "queued")

	ids, err := p.ingest(ctx, doc, prog)
	if err != nil {
		p.Log.Error().Err(err).
			Str("document_id", doc.ID).
			Msg("ingestion failed")
		if mErr := repo.MarkDocumentFailed(ctx, p.DB, doc.ID); mErr != nil {
			p.Log.Error().Err(mErr).
				Str("document_id", doc.ID).
				Msg("could not record failed status")
		}
		prog.fail("failed")
		return err
	}

	token := uuid.NewString()
	if err := repo.MarkDocumentCompleted(ctx, p.DB, doc.ID, token, ids); err != nil {
		p.Log.Error().Err(err).
			Str("document_id", doc.ID).
			Msg("could not record completed status")
		prog.fail("failed")
		return err
	}

	prog.set(100, "completed")
	p.Log.Info().
		Str("document_id", doc.ID).
		Int("chunks", len(ids)).
		Msg("ingestion completed")
	return nil
}

func (p *Pipeline) ingest(ctx context.Context, doc *domain.Document, prog *progress) ([]string, error) {
	data, err := os.ReadFile(doc.StoragePath)
	if err != nil {
		return nil, fmt.Errorf("read upload: %w", err)
	}

	prog.set(10, "extracting text")
	text, err := p.Extract.Extract(data, doc.MimeType)
	if err != nil {
		return nil, err
	}
	if text == "" {
		return nil, ErrNoText
	}

	prog.set(20, "chunking")
	chunks := p.Chunker.Split(doc.ID, text)
	if len(chunks) == 0 {
		return nil, ErrNoText
	}

	vectors, err := p.embedChunks(ctx, chunks, prog)
	if err != nil {
		return nil, err
	}

	prog.set(90, "indexing")
	records := make([]vectorindex.Record, len(chunks))
	ids := make([]string, len(chunks))
	for i, c := range chunks {
		ids[i] = c.ID
		records[i] = vectorindex.Record{
			ID:     c.ID,
			Vector: vectors[i],
			Metadata: map[string]string{
				vectorindex.MetaDocumentID: doc.ID,
				vectorindex.MetaOwnerID:    doc.UserID,
				vectorindex.MetaText:       c.Text,
			},
		}
	}
	if err := p.upsert(ctx, records); err != nil {
		return nil, err
	}
	return ids, nil
}

// embedChunks embeds all chunks in bounded batches, a few batches in flight
// at once. All-or-nothing: one failing batch fails the whole document, so no
// partially embedded document is ever upserted.
func (p *Pipeline) embedChunks(ctx context.Context, chunks []chunker.Chunk, prog *progress) ([][]float32, error) {
	vectors := make([][]float32, len(chunks))

	batches := (len(chunks) + vectorindex.DefaultBatchSize - 1) / vectorindex.DefaultBatchSize

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.embedConcurrency())

	var mu sync.Mutex
	done := 0
	for start := 0; start < len(chunks); start += vectorindex.DefaultBatchSize {
		end := start + vectorindex.DefaultBatchSize
		if end > len(chunks) {
			end = len(chunks)
		}
		start, end := start, end
		g.Go(func() error {
			texts := make([]string, end-start)
			for i := start; i < end; i++ {
				texts[i-start] = chunks[i].Text
			}

			cctx, cancel := p.stageContext(gctx)
			defer cancel()
			vecs, err := p.Embedder.EmbedBatch(cctx, texts)
			if err != nil {
				return fmt.Errorf("embed batch at chunk %d: %w", start, err)
			}
			for i, v := range vecs {
				vectors[start+i] = v
			}

			mu.Lock()
			done++
			// embedding occupies the 20..80 band of the progress scale
			pct := 20 + (60*done)/batches
			mu.Unlock()
			prog.set(pct, "embedding")
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return vectors, nil
}

func (p *Pipeline) upsert(ctx context.Context, records []vectorindex.Record) error {
	uctx, cancel := p.stageContext(ctx)
	defer cancel()
	if err := p.Index.Upsert(uctx, records); err != nil {
		var ue *vectorindex.UpsertError
		if errors.As(err, &ue) {
			// a prefix of batches may have landed; re-ingestion upserts
			// the same ids, so leftovers are overwritten, not duplicated
			p.Log.Warn().
				Int("batches_ok", ue.BatchesOK).
				Int("records_ok", ue.RecordsOK).
				Msg("partial vector upsert before failure")
		}
		return err
	}
	return nil
}

func (p *Pipeline) stageContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if p.StageTimeout > 0 {
		return context.WithTimeout(ctx, p.StageTimeout)
	}
	return context.WithCancel(ctx)
}

func (p *Pipeline) embedConcurrency() int {
	if p.EmbedConcurrency <= 0 {
		return DefaultEmbedConcurrency
	}
	return p.EmbedConcurrency
}

func (p *Pipeline) notifier() notify.Notifier {
	if p.Notify == nil {
		return notify.Discard{}
	}
	return p.Notify
}

// progress reports percent updates, clamped to be monotonic so concurrent
// embedding batches can never walk the bar backwards. Delivery happens under
// the same lock as the clamp, so observers see a non-decreasing sequence too;
// Notifier implementations never block.
type progress struct {
	n     notify.Notifier
	docID string

	mu   sync.Mutex
	last int
}

func (p *progress) set(pct int, msg string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if pct < p.last {
		return
	}
	p.last = pct
	p.n.Notify(p.docID, pct, msg)
}

// fail emits a terminal message at the last reported percent.
func (p *progress) fail(msg string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.n.Notify(p.docID, p.last, msg)
}

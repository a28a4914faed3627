// Package vectorindex defines the store for (id, vector, metadata) triples
// with filtered nearest-neighbor search. The index is an injected dependency
// of the ingestion pipeline and the retrieval assembler, never a process-wide
// singleton, so backends can be substituted in tests.
package vectorindex

import (
	"context"
	"fmt"
)

// Metadata keys every record carries. Text is the authoritative chunk content
// returned on retrieval so no second lookup is needed.
const (
	MetaDocumentID = "documentId"
	MetaOwnerID    = "ownerId"
	MetaText       = "text"
)

// DefaultBatchSize bounds upsert groups sent to the backend in one call.
const DefaultBatchSize = 100

// Record is the index-side representation of one embedded chunk.
type Record struct {
	ID       string
	Vector   []float32
	Metadata map[string]string
}

// Filter restricts queries and deletes to records whose metadata matches all
// listed keys exactly.
type Filter map[string]string

// Match is one ranked query result.
type Match struct {
	ID       string
	Text     string
	Metadata map[string]string
	Score    float64
}

// Index stores embedding records and serves filtered similarity search.
//
// Contract:
//   - Upsert is idempotent by record id and internally splits large inputs
//     into bounded batches. On partial failure it returns an *UpsertError
//     reporting how many whole batches landed before the failure.
//   - Query returns at most k matches ordered by descending similarity.
//     For a fixed index state and query vector the order and scores are stable.
//   - Delete removes all matching records. Backends may be eventually
//     consistent; callers must not assume deleted records are unqueryable
//     immediately after return.
type Index interface {
	Upsert(ctx context.Context, records []Record) error
	Query(ctx context.Context, vector []float32, filter Filter, k int) ([]Match, error)
	Delete(ctx context.Context, filter Filter) error
}

// UpsertError reports a batched upsert that failed partway. Batches
// [0, BatchesOK) were durably written; everything after must be considered
// lost. When the backend cannot attribute the failure, BatchesOK is 0 and
// the caller assumes no reliable subset succeeded.
type UpsertError struct {
	BatchesOK int
	RecordsOK int
	Err       error
}

// Error implements the error interface.
func (e *UpsertError) Error() string {
	return fmt.Sprintf("vector upsert failed after %d batches: %v", e.BatchesOK, e.Err)
}

// Unwrap returns the underlying backend error.
func (e *UpsertError) Unwrap() error { return e.Err }

// Batches splits records into groups of at most size, preserving order.
// A size <= 0 falls back to DefaultBatchSize.
func Batches(records []Record, size int) [][]Record {
	if size <= 0 {
		size = DefaultBatchSize
	}
	var out [][]Record
	for start := 0; start < len(records); start += size {
		end := start + size
		if end > len(records) {
			end = len(records)
		}
		out = append(out, records[start:end])
	}
	return out
}

// Matches reports whether md satisfies every equality constraint in f.
func (f Filter) Matches(md map[string]string) bool {
	for k, v := range f {
		if md[k] != v {
			return false
		}
	}
	return true
}

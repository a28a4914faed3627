// Package memory provides an in-process vectorindex.Index backed by a map.
// It serves tests and single-node deployments where an external index is
// overkill. Query results are fully deterministic: ties in similarity break
// on ascending record id.
package memory

import (
	"context"
	"math"
	"sort"
	"sync"

	"github.com/shreyansh2912/prashnly-backend/internal/vectorindex"
)

// Index is a thread-safe in-memory vector store using cosine similarity.
type Index struct {
	mu      sync.RWMutex
	records map[string]vectorindex.Record
}

// New returns an empty in-memory index.
func New() *Index {
	return &Index{records: make(map[string]vectorindex.Record)}
}

// Upsert inserts or replaces records by id. The in-memory backend has no
// batch limit, so the whole call is atomic.
func (ix *Index) Upsert(ctx context.Context, records []vectorindex.Record) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	ix.mu.Lock()
	defer ix.mu.Unlock()
	for _, r := range records {
		ix.records[r.ID] = r
	}
	return nil
}

// Query returns up to k records matching the filter, ranked by descending
// cosine similarity to vector.
func (ix *Index) Query(ctx context.Context, vector []float32, filter vectorindex.Filter, k int) ([]vectorindex.Match, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if k <= 0 {
		k = 5
	}

	ix.mu.RLock()
	matches := make([]vectorindex.Match, 0, len(ix.records))
	for _, r := range ix.records {
		if !filter.Matches(r.Metadata) {
			continue
		}
		matches = append(matches, vectorindex.Match{
			ID:       r.ID,
			Text:     r.Metadata[vectorindex.MetaText],
			Metadata: r.Metadata,
			Score:    cosine(vector, r.Vector),
		})
	}
	ix.mu.RUnlock()

	sort.Slice(matches, func(i, j int) bool {
		if matches[i].Score != matches[j].Score {
			return matches[i].Score > matches[j].Score
		}
		return matches[i].ID < matches[j].ID
	})
	if len(matches) > k {
		matches = matches[:k]
	}
	return matches, nil
}

// Delete removes every record matching the filter.
func (ix *Index) Delete(ctx context.Context, filter vectorindex.Filter) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	ix.mu.Lock()
	defer ix.mu.Unlock()
	for id, r := range ix.records {
		if filter.Matches(r.Metadata) {
			delete(ix.records, id)
		}
	}
	return nil
}

// Len reports the number of stored records.
func (ix *Index) Len() int {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	return len(ix.records)
}

// Get returns the stored record for id, if present.
func (ix *Index) Get(id string) (vectorindex.Record, bool) {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	r, ok := ix.records[id]
	return r, ok
}

func cosine(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}

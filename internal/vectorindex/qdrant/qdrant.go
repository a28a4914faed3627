// Package qdrant implements vectorindex.Index against the Qdrant REST API.
// It creates the collection on demand (cosine distance), splits upserts into
// bounded batches, and translates the equality Filter into Qdrant match
// clauses for search and delete.
package qdrant

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/shreyansh2912/prashnly-backend/internal/vectorindex"
)

// Config configures the Qdrant client.
type Config struct {
	URL        string
	APIKey     string
	Collection string
	BatchSize  int // 0 = vectorindex.DefaultBatchSize
	Timeout    time.Duration
}

// Index is a minimal REST client to Qdrant.
type Index struct {
	url        string
	apiKey     string
	collection string
	batchSize  int
	client     *http.Client
}

// New creates a Qdrant-backed index.
func New(cfg Config) *Index {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 15 * time.Second
	}
	batch := cfg.BatchSize
	if batch <= 0 {
		batch = vectorindex.DefaultBatchSize
	}
	return &Index{
		url:        cfg.URL,
		apiKey:     cfg.APIKey,
		collection: cfg.Collection,
		batchSize:  batch,
		client:     &http.Client{Timeout: timeout},
	}
}

// Init ensures the collection exists with the given vector dimension.
// Qdrant answers 200 when the collection already exists with the same schema.
func (ix *Index) Init(ctx context.Context, dimension int) error {
	if dimension <= 0 {
		return errors.New("invalid dimension")
	}
	body := map[string]any{
		"vectors": map[string]any{
			"size":     dimension,
			"distance": "Cosine",
		},
	}
	return ix.putJSON(ctx, fmt.Sprintf("%s/collections/%s", ix.url, ix.collection), body)
}

// Upsert writes records in batches of the configured size. On a failed batch
// it returns a *vectorindex.UpsertError reporting the prefix of batches that
// landed; Qdrant applies each wait=true upsert atomically, so batches before
// the failing one are durable.
func (ix *Index) Upsert(ctx context.Context, records []vectorindex.Record) error {
	recordsOK := 0
	for i, group := range vectorindex.Batches(records, ix.batchSize) {
		points := make([]map[string]any, len(group))
		for j, r := range group {
			payload := make(map[string]any, len(r.Metadata))
			for k, v := range r.Metadata {
				payload[k] = v
			}
			points[j] = map[string]any{
				"id":      r.ID,
				"vector":  r.Vector,
				"payload": payload,
			}
		}
		body := map[string]any{"points": points}
		url := fmt.Sprintf("%s/collections/%s/points?wait=true", ix.url, ix.collection)
		if err := ix.putJSON(ctx, url, body); err != nil {
			return &vectorindex.UpsertError{BatchesOK: i, RecordsOK: recordsOK, Err: err}
		}
		recordsOK += len(group)
	}
	return nil
}

// Query runs a filtered similarity search and returns ranked matches.
func (ix *Index) Query(ctx context.Context, vector []float32, filter vectorindex.Filter, k int) ([]vectorindex.Match, error) {
	if k <= 0 {
		k = 5
	}
	req := map[string]any{
		"vector":       vector,
		"limit":        k,
		"with_payload": true,
	}
	if clause := filterClause(filter); clause != nil {
		req["filter"] = clause
	}

	var resp struct {
		Result []struct {
			ID      any            `json:"id"`
			Score   float64        `json:"score"`
			Payload map[string]any `json:"payload"`
		} `json:"result"`
	}
	url := fmt.Sprintf("%s/collections/%s/points/search", ix.url, ix.collection)
	if err := ix.postJSON(ctx, url, req, &resp); err != nil {
		return nil, err
	}

	matches := make([]vectorindex.Match, 0, len(resp.Result))
	for _, r := range resp.Result {
		md := make(map[string]string, len(r.Payload))
		for k, v := range r.Payload {
			if s, ok := v.(string); ok {
				md[k] = s
			}
		}
		matches = append(matches, vectorindex.Match{
			ID:       fmt.Sprintf("%v", r.ID),
			Text:     md[vectorindex.MetaText],
			Metadata: md,
			Score:    r.Score,
		})
	}
	return matches, nil
}

// Delete removes all points matching the filter. The call returns once
// Qdrant accepts the operation; visibility of the removal may lag.
func (ix *Index) Delete(ctx context.Context, filter vectorindex.Filter) error {
	clause := filterClause(filter)
	if clause == nil {
		return errors.New("refusing to delete without a filter")
	}
	body := map[string]any{"filter": clause}
	url := fmt.Sprintf("%s/collections/%s/points/delete", ix.url, ix.collection)
	return ix.postJSON(ctx, url, body, nil)
}

// filterClause builds a Qdrant must-match clause from the equality filter.
func filterClause(filter vectorindex.Filter) map[string]any {
	if len(filter) == 0 {
		return nil
	}
	must := make([]map[string]any, 0, len(filter))
	for k, v := range filter {
		must = append(must, map[string]any{
			"key":   k,
			"match": map[string]any{"value": v},
		})
	}
	return map[string]any{"must": must}
}

func (ix *Index) putJSON(ctx context.Context, url string, body any) error {
	return ix.send(ctx, http.MethodPut, url, body, nil)
}

func (ix *Index) postJSON(ctx context.Context, url string, body any, out any) error {
	return ix.send(ctx, http.MethodPost, url, body, out)
}

func (ix *Index) send(ctx context.Context, method, url string, body, out any) error {
	data, err := json.Marshal(body)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, method, url, bytes.NewReader(data))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if ix.apiKey != "" {
		req.Header.Set("api-key", ix.apiKey)
	}
	resp, err := ix.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return fmt.Errorf("qdrant %s %s failed: %s", method, url, resp.Status)
	}
	if out != nil {
		return json.NewDecoder(resp.Body).Decode(out)
	}
	return nil
}

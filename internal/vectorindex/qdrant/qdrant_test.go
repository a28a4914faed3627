package qdrant

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/shreyansh2912/prashnly-backend/internal/vectorindex"
)

func newTestIndex(t *testing.T, handler http.HandlerFunc, batchSize int) *Index {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return New(Config{URL: srv.URL, Collection: "test", BatchSize: batchSize})
}

func records(n int) []vectorindex.Record {
	out := make([]vectorindex.Record, n)
	for i := range out {
		out[i] = vectorindex.Record{
			ID:     vectorindex.MetaDocumentID, // id content is irrelevant here
			Vector: []float32{1, 0},
			Metadata: map[string]string{
				vectorindex.MetaDocumentID: "d1",
				vectorindex.MetaOwnerID:    "u1",
				vectorindex.MetaText:       "chunk",
			},
		}
	}
	return out
}

func TestUpsert_SplitsIntoBatches(t *testing.T) {
	var calls int32
	ix := newTestIndex(t, func(w http.ResponseWriter, r *http.Request) {
		if !strings.Contains(r.URL.Path, "/points") {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if r.URL.Query().Get("wait") != "true" {
			t.Errorf("expected wait=true upsert")
		}
		var body struct {
			Points []json.RawMessage `json:"points"`
		}
		_ = json.NewDecoder(r.Body).Decode(&body)
		if len(body.Points) > 2 {
			t.Errorf("batch of %d exceeds limit", len(body.Points))
		}
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusOK)
	}, 2)

	if err := ix.Upsert(context.Background(), records(5)); err != nil {
		t.Fatalf("upsert: %v", err)
	}
	if atomic.LoadInt32(&calls) != 3 {
		t.Fatalf("batches sent = %d, want 3", calls)
	}
}

func TestUpsert_ReportsSucceededPrefix(t *testing.T) {
	var calls int32
	ix := newTestIndex(t, func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) == 3 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.WriteHeader(http.StatusOK)
	}, 2)

	err := ix.Upsert(context.Background(), records(6))
	var ue *vectorindex.UpsertError
	if !errors.As(err, &ue) {
		t.Fatalf("expected UpsertError, got %v", err)
	}
	if ue.BatchesOK != 2 || ue.RecordsOK != 4 {
		t.Fatalf("prefix = %d batches / %d records, want 2/4", ue.BatchesOK, ue.RecordsOK)
	}
}

func TestQuery_SendsFilterAndParsesMatches(t *testing.T) {
	ix := newTestIndex(t, func(w http.ResponseWriter, r *http.Request) {
		var req map[string]any
		_ = json.NewDecoder(r.Body).Decode(&req)
		if req["limit"].(float64) != 2 {
			t.Errorf("limit = %v", req["limit"])
		}
		filter, ok := req["filter"].(map[string]any)
		if !ok {
			t.Fatalf("filter missing: %v", req)
		}
		must := filter["must"].([]any)
		if len(must) != 1 {
			t.Fatalf("must clauses = %d", len(must))
		}
		_, _ = w.Write([]byte(`{"result":[
			{"id":"d1_2","score":0.97,"payload":{"documentId":"d1","ownerId":"u1","text":"second chunk"}},
			{"id":"d1_0","score":0.41,"payload":{"documentId":"d1","ownerId":"u1","text":"first chunk"}}
		]}`))
	}, 0)

	got, err := ix.Query(context.Background(), []float32{1, 0}, vectorindex.Filter{vectorindex.MetaDocumentID: "d1"}, 2)
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if len(got) != 2 || got[0].ID != "d1_2" || got[0].Text != "second chunk" {
		t.Fatalf("matches = %+v", got)
	}
	if got[0].Score <= got[1].Score {
		t.Fatalf("scores not descending")
	}
}

func TestDelete_RequiresFilter(t *testing.T) {
	ix := newTestIndex(t, func(w http.ResponseWriter, r *http.Request) {
		t.Error("no request expected")
	}, 0)
	if err := ix.Delete(context.Background(), nil); err == nil {
		t.Fatal("expected error for empty filter")
	}
}

func TestDelete_SendsMatchClause(t *testing.T) {
	var called int32
	ix := newTestIndex(t, func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&called, 1)
		if !strings.HasSuffix(r.URL.Path, "/points/delete") {
			t.Errorf("path = %s", r.URL.Path)
		}
		var req map[string]any
		_ = json.NewDecoder(r.Body).Decode(&req)
		if _, ok := req["filter"]; !ok {
			t.Errorf("filter missing")
		}
		w.WriteHeader(http.StatusOK)
	}, 0)

	if err := ix.Delete(context.Background(), vectorindex.Filter{vectorindex.MetaDocumentID: "d1"}); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if atomic.LoadInt32(&called) != 1 {
		t.Fatalf("delete calls = %d", called)
	}
}

func TestInit_RejectsInvalidDimension(t *testing.T) {
	ix := New(Config{URL: "http://unused", Collection: "c"})
	if err := ix.Init(context.Background(), 0); err == nil {
		t.Fatal("expected error for dimension 0")
	}
}

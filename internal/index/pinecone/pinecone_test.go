package pinecone

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/spinwisely/kbase/config"
	"github.com/spinwisely/kbase/internal/index"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return New(config.PineconeConfig{
		APIKey:  "key",
		Host:    srv.URL,
		Timeout: 2 * time.Second,
	})
}

func makeRecords(docID string, n int) []index.Record {
	records := make([]index.Record, n)
	for i := range records {
		records[i] = index.Record{
			ID:       index.RecordID(docID, i),
			Values:   []float32{float32(i)},
			Metadata: map[string]any{"documentId": docID, "chunkIndex": i},
		}
	}
	return records
}

func TestRecordIDDeterminism(t *testing.T) {
	a := index.RecordID("doc_42", 7)
	b := index.RecordID("doc_42", 7)
	if a != b || a != "doc_42_chunk_7" {
		t.Fatalf("RecordID = %q / %q", a, b)
	}
	// two ingestions of the same document collide id-for-id
	first := makeRecords("doc_42", 3)
	second := makeRecords("doc_42", 3)
	for i := range first {
		if first[i].ID != second[i].ID {
			t.Fatalf("ids must collide for overwrite semantics: %q vs %q", first[i].ID, second[i].ID)
		}
	}
}

func TestUpsertBatches(t *testing.T) {
	var batchSizes []int
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/vectors/upsert" {
			t.Errorf("path = %q", r.URL.Path)
		}
		if got := r.Header.Get("Api-Key"); got != "key" {
			t.Errorf("api key header = %q", got)
		}
		var req struct {
			Vectors []index.Record `json:"vectors"`
		}
		_ = json.NewDecoder(r.Body).Decode(&req)
		batchSizes = append(batchSizes, len(req.Vectors))
		_, _ = w.Write([]byte(`{}`))
	})

	written, err := c.Upsert(context.Background(), makeRecords("doc_1", 101))
	if err != nil {
		t.Fatalf("Upsert: %v", err)
	}
	if written != 101 {
		t.Fatalf("written = %d", written)
	}
	if len(batchSizes) != 2 || batchSizes[0] != 100 || batchSizes[1] != 1 {
		t.Fatalf("batches = %v, want [100 1]", batchSizes)
	}
}

func TestUpsertMidSequenceFailureReportsWritten(t *testing.T) {
	var calls int
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls > 2 {
			http.Error(w, "quota", http.StatusForbidden)
			return
		}
		_, _ = w.Write([]byte(`{}`))
	})

	written, err := c.Upsert(context.Background(), makeRecords("doc_1", 250))
	var ue *index.UpsertError
	if !errors.As(err, &ue) {
		t.Fatalf("expected *index.UpsertError, got %v", err)
	}
	if written != 200 || ue.Written != 200 {
		t.Fatalf("written = %d / %d, want 200", written, ue.Written)
	}
	if ue.Batch != 3 {
		t.Fatalf("failed batch = %d, want 3", ue.Batch)
	}
}

func TestQueryOrderingPassthrough(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		var req map[string]any
		_ = json.NewDecoder(r.Body).Decode(&req)
		if req["topK"] != float64(5) {
			t.Errorf("topK = %v", req["topK"])
		}
		if req["includeMetadata"] != true {
			t.Errorf("includeMetadata not set")
		}
		if _, present := req["filter"]; present {
			t.Errorf("empty filter must be omitted")
		}
		_, _ = fmt.Fprint(w, `{"matches":[
			{"id":"d_chunk_2","score":0.93,"metadata":{"text":"second chunk"}},
			{"id":"d_chunk_0","score":0.81,"metadata":{"text":"first chunk"}}
		]}`)
	})

	matches, err := c.Query(context.Background(), index.QueryRequest{
		Vector:          []float32{0.1},
		TopK:            5,
		IncludeMetadata: true,
	})
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	if len(matches) != 2 {
		t.Fatalf("matches = %d", len(matches))
	}
	if matches[0].ID != "d_chunk_2" || matches[0].Score < matches[1].Score {
		t.Fatalf("order not preserved: %+v", matches)
	}
}

func TestDeleteByDocumentTaggedStates(t *testing.T) {
	t.Run("deleted", func(t *testing.T) {
		c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			var req map[string]any
			_ = json.NewDecoder(r.Body).Decode(&req)
			filter, _ := req["filter"].(map[string]any)
			if _, ok := filter["documentId"]; !ok {
				t.Errorf("filter missing documentId: %v", req)
			}
			_, _ = w.Write([]byte(`{}`))
		})
		res := c.DeleteByDocument(context.Background(), "doc_9")
		if res.Status != index.Deleted {
			t.Fatalf("status = %v", res.Status)
		}
	})

	t.Run("unsupported", func(t *testing.T) {
		c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "filtered delete not supported in this tier", http.StatusBadRequest)
		})
		res := c.DeleteByDocument(context.Background(), "doc_9")
		if res.Status != index.DeleteUnsupported {
			t.Fatalf("status = %v, want unsupported", res.Status)
		}
		if res.Err == nil {
			t.Fatalf("unsupported result should carry the store reply")
		}
	})

	t.Run("failed", func(t *testing.T) {
		c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "internal", http.StatusInternalServerError)
		})
		res := c.DeleteByDocument(context.Background(), "doc_9")
		if res.Status != index.DeleteFailed {
			t.Fatalf("status = %v, want failed", res.Status)
		}
	})
}

func TestStats(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/describe_index_stats" {
			t.Errorf("path = %q", r.URL.Path)
		}
		_, _ = w.Write([]byte(`{"totalVectorCount": 1234, "dimension": 384}`))
	})

	stats, err := c.Stats(context.Background())
	if err != nil {
		t.Fatalf("Stats: %v", err)
	}
	if stats.VectorCount != 1234 || stats.Dimension != 384 {
		t.Fatalf("stats = %+v", stats)
	}
}

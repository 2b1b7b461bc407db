// Package ingest runs the document ingestion pipeline: extract text,
// chunk it, embed every chunk, upsert the vectors and record metadata.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/redis/go-redis/v9"

	"github.com/spinwisely/kbase/config"
	"github.com/spinwisely/kbase/internal/chunker"
	"github.com/spinwisely/kbase/internal/extract"
	"github.com/spinwisely/kbase/internal/index"
	"github.com/spinwisely/kbase/internal/provider"
	"github.com/spinwisely/kbase/internal/store"
)

// ErrEmptyContent indicates a document whose extracted text produced zero
// chunks. The pipeline aborts instead of upserting nothing.
var ErrEmptyContent = errors.New("no text content found in document")

// Pipeline stages, in order. A failure carries the stage it happened in.
const (
	StageReceived  = "received"
	StageExtracted = "extracted"
	StageChunked   = "chunked"
	StageEmbedded  = "embedded"
	StageIndexed   = "indexed"
	StageRecorded  = "recorded"
)

// StageError reports which pipeline stage failed and whether the fault is
// client-fixable (bad input) or server-side.
type StageError struct {
	Stage  string
	Client bool
	Cause  error
}

func (e *StageError) Error() string { return fmt.Sprintf("ingest %s: %v", e.Stage, e.Cause) }
func (e *StageError) Unwrap() error { return e.Cause }

var (
	documentsIngested = promauto.NewCounter(prometheus.CounterOpts{
		Name: "kbase_documents_ingested_total",
		Help: "Documents that completed the ingestion pipeline.",
	})
	chunksIndexed = promauto.NewCounter(prometheus.CounterOpts{
		Name: "kbase_chunks_indexed_total",
		Help: "Chunk vectors upserted to the index.",
	})
	ingestFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "kbase_ingest_failures_total",
		Help: "Ingestion failures by pipeline stage.",
	}, []string{"stage"})
)

// Request is one file handed to the pipeline.
type Request struct {
	Filename   string
	MimeType   string
	UploadedBy string
	Data       []byte
}

// Result summarizes a successful ingestion.
type Result struct {
	DocumentID string
	Filename   string
	ChunkCount int
	Message    string
}

// Ingestor wires the pipeline collaborators. All clients are injected;
// the orchestrator holds no global state.
type Ingestor struct {
	Provider provider.Provider
	Index    index.Index
	Store    *store.Store
	Rdb      *redis.Client // optional; nil disables ingest locks
	Cfg      config.IngestConfig
	Logger   *log.Logger
}

func New(p provider.Provider, ix index.Index, st *store.Store, rdb *redis.Client, cfg config.IngestConfig, logger *log.Logger) *Ingestor {
	if logger == nil {
		logger = log.New(log.Writer(), "[INGEST] ", log.LstdFlags)
	}
	return &Ingestor{Provider: p, Index: ix, Store: st, Rdb: rdb, Cfg: cfg, Logger: logger}
}

// Ingest runs the pipeline for one document, strictly sequentially:
// received, extracted, chunked, embedded, indexed, recorded. Any failure
// aborts with a StageError; metadata recording alone is best-effort.
func (i *Ingestor) Ingest(ctx context.Context, req Request) (Result, error) {
	if max := i.Cfg.MaxUploadBytes(); int64(len(req.Data)) > max {
		return Result{}, fail(StageReceived, true, fmt.Errorf("file size exceeds %dMB limit", i.Cfg.MaxUploadMB))
	}

	if unlock := i.lock(ctx, req.Filename); unlock != nil {
		defer unlock()
	}

	text, err := extract.Extract(req.Data, req.Filename)
	if err != nil {
		return Result{}, fail(StageExtracted, true, err)
	}

	chunks, err := chunker.Split(text, i.Cfg.ChunkSize, i.Cfg.ChunkOverlap)
	if err != nil {
		return Result{}, fail(StageChunked, false, err)
	}
	if len(chunks) == 0 {
		return Result{}, fail(StageChunked, true, ErrEmptyContent)
	}

	batch, err := i.Provider.EmbedBatch(ctx, chunks)
	if err != nil {
		return Result{}, fail(StageEmbedded, false, err)
	}
	if !batch.Complete() {
		// a gap would break chunk/vector alignment; abort with nothing upserted
		first := batch.Failures[0]
		return Result{}, fail(StageEmbedded, false,
			fmt.Errorf("%d of %d chunks failed to embed (first at index %d): %w",
				len(batch.Failures), len(chunks), first.Index, first.Err))
	}

	docID := "doc_" + uuid.NewString()
	uploadedAt := time.Now().UTC().Format(time.RFC3339)
	records := make([]index.Record, len(batch.Vectors))
	for n, v := range batch.Vectors {
		records[n] = index.Record{
			ID:     index.RecordID(docID, v.Index),
			Values: v.Values,
			Metadata: map[string]any{
				"documentId": docID,
				"filename":   req.Filename,
				"chunkIndex": v.Index,
				"text":       chunks[v.Index],
				"uploadedAt": uploadedAt,
			},
		}
	}

	written, err := i.Index.Upsert(ctx, records)
	if err != nil {
		ingestFailures.WithLabelValues(StageIndexed).Inc()
		return Result{}, &StageError{Stage: StageIndexed, Cause: fmt.Errorf("failed to store vectors (%d of %d written): %w", written, len(records), err)}
	}

	doc := store.Document{
		ID:         docID,
		Filename:   req.Filename,
		SizeBytes:  int64(len(req.Data)),
		MimeType:   req.MimeType,
		ChunkCount: len(chunks),
		UploadedBy: req.UploadedBy,
	}
	if err := i.Store.InsertDocument(ctx, doc); err != nil {
		// vectors are durable at this point; losing the metadata row is an
		// accepted inconsistency, not a pipeline failure
		i.Logger.Printf("warn: record document metadata failed for %s: %v", docID, err)
	}

	documentsIngested.Inc()
	chunksIndexed.Add(float64(len(records)))
	return Result{
		DocumentID: docID,
		Filename:   req.Filename,
		ChunkCount: len(chunks),
		Message:    fmt.Sprintf("Successfully processed %d chunks from %s", len(chunks), req.Filename),
	}, nil
}

// Delete removes a document's vectors then its metadata record. Each
// sub-failure is logged; the call reports success when the sequence ran.
func (i *Ingestor) Delete(ctx context.Context, documentID string) index.DeleteResult {
	res := i.Index.DeleteByDocument(ctx, documentID)
	switch res.Status {
	case index.Deleted:
	case index.DeleteUnsupported:
		i.Logger.Printf("warn: filtered vector deletion unsupported for %s; stale vectors remain until re-upload overwrites them", documentID)
	default:
		i.Logger.Printf("warn: vector deletion failed for %s: %v", documentID, res.Err)
	}

	if err := i.Store.DeleteDocument(ctx, documentID); err != nil {
		i.Logger.Printf("warn: metadata deletion failed for %s: %v", documentID, err)
	}
	return res
}

func fail(stage string, client bool, cause error) *StageError {
	ingestFailures.WithLabelValues(stage).Inc()
	return &StageError{Stage: stage, Client: client, Cause: cause}
}

// lock takes a best-effort per-filename redis lock so concurrent uploads
// of the same file do not interleave. Returns nil when redis is absent or
// the lock is unavailable; ingestion proceeds either way.
func (i *Ingestor) lock(ctx context.Context, filename string) func() {
	if i.Rdb == nil {
		return nil
	}
	key := "ingest:lock:" + filename
	ok, err := i.Rdb.SetNX(ctx, key, "1", 5*time.Minute).Result()
	if err != nil || !ok {
		return nil
	}
	return func() { i.Rdb.Del(context.Background(), key) }
}

// Package index defines the remote similarity-search store contract.
package index

import (
	"context"
	"fmt"
)

// Record is the unit stored in the index. ID is derived from the parent
// document id and chunk index, so re-ingesting the same document
// overwrites instead of duplicating.
type Record struct {
	ID       string         `json:"id"`
	Values   []float32      `json:"values"`
	Metadata map[string]any `json:"metadata"`
}

// RecordID composes the deterministic vector id for a document chunk.
func RecordID(documentID string, chunkIndex int) string {
	return fmt.Sprintf("%s_chunk_%d", documentID, chunkIndex)
}

// QueryRequest bounds a nearest-neighbor search.
type QueryRequest struct {
	Vector          []float32
	TopK            int
	Filter          map[string]any
	IncludeMetadata bool
}

// Match is one query hit; matches arrive ordered by descending score.
type Match struct {
	ID       string         `json:"id"`
	Score    float32        `json:"score"`
	Metadata map[string]any `json:"metadata"`
}

// Stats describes the index contents.
type Stats struct {
	VectorCount int
	Dimension   int
}

// DeleteStatus tags the outcome of a filtered deletion, so a store that
// cannot filter never masquerades as a successful delete.
type DeleteStatus int

const (
	DeleteFailed DeleteStatus = iota
	Deleted
	DeleteUnsupported
)

func (s DeleteStatus) String() string {
	switch s {
	case Deleted:
		return "deleted"
	case DeleteUnsupported:
		return "unsupported"
	default:
		return "failed"
	}
}

// DeleteResult reports a deletion attempt.
type DeleteResult struct {
	Status DeleteStatus
	Count  int
	Err    error
}

// UpsertError reports a mid-sequence batch failure. Upserts are not
// transactional across batches, so Written records stay durable.
type UpsertError struct {
	Written int
	Batch   int
	Cause   error
}

func (e *UpsertError) Error() string {
	return fmt.Sprintf("upsert batch %d failed after %d records written: %v", e.Batch, e.Written, e.Cause)
}

func (e *UpsertError) Unwrap() error { return e.Cause }

// Index is a remote ANN store with upsert, query and delete.
type Index interface {
	// Upsert writes records in store-sized batches, sequentially. It
	// returns the number of records durably written; on a mid-sequence
	// failure the error is an *UpsertError carrying that count.
	Upsert(ctx context.Context, records []Record) (int, error)
	// Query returns up to TopK matches ordered by descending similarity;
	// the store may return fewer.
	Query(ctx context.Context, req QueryRequest) ([]Match, error)
	// DeleteByDocument removes every vector belonging to documentID.
	DeleteByDocument(ctx context.Context, documentID string) DeleteResult
	// Stats reports vector count and dimension.
	Stats(ctx context.Context) (Stats, error)
}

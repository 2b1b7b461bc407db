// Package pinecone implements index.Index against the Pinecone data-plane
// REST API.
package pinecone

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/spinwisely/kbase/config"
	"github.com/spinwisely/kbase/internal/httpclient"
	"github.com/spinwisely/kbase/internal/index"
)

// DefaultBatchSize is the store's upsert payload limit in records.
const DefaultBatchSize = 100

// Client is a minimal REST client to a single Pinecone index host.
type Client struct {
	host      string
	apiKey    string
	namespace string
	batchSize int
	http      *httpclient.Client
}

var _ index.Index = (*Client)(nil)

func New(cfg config.PineconeConfig) *Client {
	batch := cfg.BatchSize
	if batch <= 0 {
		batch = DefaultBatchSize
	}
	host := strings.TrimSuffix(cfg.Host, "/")
	if host != "" && !strings.HasPrefix(host, "http") {
		host = "https://" + host
	}
	return &Client{
		host:      host,
		apiKey:    cfg.APIKey,
		namespace: cfg.Namespace,
		batchSize: batch,
		http:      httpclient.New(cfg.Timeout, cfg.MaxRetries, 0),
	}
}

func (c *Client) headers() map[string]string {
	return map[string]string{"Api-Key": c.apiKey}
}

// Upsert writes records in sequential batches of at most batchSize. The
// returned count is the number of records durably written even when a
// later batch fails.
func (c *Client) Upsert(ctx context.Context, records []index.Record) (int, error) {
	written := 0
	batchNum := 0
	for start := 0; start < len(records); start += c.batchSize {
		end := start + c.batchSize
		if end > len(records) {
			end = len(records)
		}
		batch := records[start:end]
		batchNum++

		body := map[string]any{"vectors": batch}
		if c.namespace != "" {
			body["namespace"] = c.namespace
		}
		if err := c.http.DoJSON(ctx, http.MethodPost, c.host+"/vectors/upsert", c.headers(), body, nil); err != nil {
			return written, &index.UpsertError{Written: written, Batch: batchNum, Cause: err}
		}
		written += len(batch)
	}
	return written, nil
}

// Query runs a nearest-neighbor search. Matches come back in the store's
// order, which is descending similarity.
func (c *Client) Query(ctx context.Context, req index.QueryRequest) ([]index.Match, error) {
	body := map[string]any{
		"vector":          req.Vector,
		"topK":            req.TopK,
		"includeMetadata": req.IncludeMetadata,
		"includeValues":   false,
	}
	if c.namespace != "" {
		body["namespace"] = c.namespace
	}
	if len(req.Filter) > 0 {
		body["filter"] = req.Filter
	}

	var out struct {
		Matches []index.Match `json:"matches"`
	}
	if err := c.http.DoJSON(ctx, http.MethodPost, c.host+"/query", c.headers(), body, &out); err != nil {
		return nil, fmt.Errorf("index query: %w", err)
	}
	return out.Matches, nil
}

// DeleteByDocument issues a filtered delete on the documentId metadata
// field. Store tiers without filtered deletion answer 4xx; that surfaces
// as DeleteUnsupported rather than silent success.
func (c *Client) DeleteByDocument(ctx context.Context, documentID string) index.DeleteResult {
	body := map[string]any{
		"filter": map[string]any{"documentId": map[string]any{"$eq": documentID}},
	}
	if c.namespace != "" {
		body["namespace"] = c.namespace
	}
	err := c.http.DoJSON(ctx, http.MethodPost, c.host+"/vectors/delete", c.headers(), body, nil)
	if err == nil {
		return index.DeleteResult{Status: index.Deleted}
	}
	var se *httpclient.StatusError
	if errors.As(err, &se) && se.Code >= 400 && se.Code < 500 {
		return index.DeleteResult{Status: index.DeleteUnsupported, Err: err}
	}
	return index.DeleteResult{Status: index.DeleteFailed, Err: fmt.Errorf("index delete: %w", err)}
}

// Stats reports total vector count and index dimension.
func (c *Client) Stats(ctx context.Context) (index.Stats, error) {
	var out struct {
		TotalVectorCount int `json:"totalVectorCount"`
		Dimension        int `json:"dimension"`
	}
	if err := c.http.DoJSON(ctx, http.MethodPost, c.host+"/describe_index_stats", c.headers(), map[string]any{}, &out); err != nil {
		return index.Stats{}, fmt.Errorf("index stats: %w", err)
	}
	return index.Stats{VectorCount: out.TotalVectorCount, Dimension: out.Dimension}, nil
}

// Package huggingface implements provider.Provider on the HuggingFace
// inference API.
package huggingface

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"sync"

	"github.com/spinwisely/kbase/config"
	"github.com/spinwisely/kbase/internal/httpclient"
	"github.com/spinwisely/kbase/internal/provider"
)

// Client talks to the HuggingFace inference API with bounded timeouts and
// retry on transient failures. A missing API token surfaces as an error on
// the first call, not at construction.
type Client struct {
	cfg  config.HuggingFaceConfig
	http *httpclient.Client
}

var _ provider.Provider = (*Client)(nil)

func New(cfg config.HuggingFaceConfig) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api-inference.huggingface.co/models"
	}
	if cfg.EmbeddingModel == "" {
		cfg.EmbeddingModel = "sentence-transformers/all-MiniLM-L6-v2"
	}
	if cfg.ChatModel == "" {
		cfg.ChatModel = "mistralai/Mistral-7B-Instruct-v0.2"
	}
	if cfg.Temperature == 0 {
		cfg.Temperature = 0.7
	}
	if cfg.MaxTokens == 0 {
		cfg.MaxTokens = 1024
	}
	return &Client{
		cfg:  cfg,
		http: httpclient.New(cfg.Timeout, cfg.MaxRetries, 0),
	}
}

func (c *Client) headers() map[string]string {
	return map[string]string{"Authorization": "Bearer " + c.cfg.APIToken}
}

// Embed returns the embedding vector for a single text.
func (c *Client) Embed(ctx context.Context, text string) ([]float32, error) {
	var raw json.RawMessage
	url := c.cfg.BaseURL + "/" + c.cfg.EmbeddingModel
	body := map[string]any{"inputs": text}
	if err := c.http.DoJSON(ctx, http.MethodPost, url, c.headers(), body, &raw); err != nil {
		return nil, &provider.EmbeddingError{Cause: err}
	}

	// feature-extraction pipelines answer either a flat vector or a
	// one-element batch of vectors depending on the model
	var flat []float32
	if err := json.Unmarshal(raw, &flat); err == nil {
		return flat, nil
	}
	var nested [][]float32
	if err := json.Unmarshal(raw, &nested); err == nil && len(nested) > 0 {
		return nested[0], nil
	}
	return nil, &provider.EmbeddingError{Cause: fmt.Errorf("unexpected embedding response shape: %s", clip(raw, 120))}
}

// EmbedBatch issues one Embed call per text concurrently and joins on all
// of them. Results are slotted by input index so chunk/vector alignment
// never depends on completion order.
func (c *Client) EmbedBatch(ctx context.Context, texts []string) (provider.BatchResult, error) {
	vectors := make([][]float32, len(texts))
	errs := make([]error, len(texts))

	var wg sync.WaitGroup
	for i, text := range texts {
		wg.Add(1)
		go func(i int, text string) {
			defer wg.Done()
			vectors[i], errs[i] = c.Embed(ctx, text)
		}(i, text)
	}
	wg.Wait()

	var res provider.BatchResult
	for i := range texts {
		if errs[i] != nil {
			res.Failures = append(res.Failures, provider.IndexedError{Index: i, Err: errs[i]})
			continue
		}
		res.Vectors = append(res.Vectors, provider.IndexedVector{Index: i, Values: vectors[i]})
	}
	return res, nil
}

// Generate produces a completion for prompt using the configured chat model.
func (c *Client) Generate(ctx context.Context, prompt string, opts provider.GenerateOptions) (string, error) {
	model := opts.Model
	if model == "" {
		model = c.cfg.ChatModel
	}
	temperature := opts.Temperature
	if temperature == 0 {
		temperature = c.cfg.Temperature
	}
	maxTokens := opts.MaxTokens
	if maxTokens == 0 {
		maxTokens = c.cfg.MaxTokens
	}

	full := prompt
	if opts.SystemPrompt != "" {
		full = opts.SystemPrompt + "\n\n" + prompt
	}
	full += "\n\nAnswer:"

	body := map[string]any{
		"inputs": full,
		"parameters": map[string]any{
			"max_new_tokens":     maxTokens,
			"temperature":        temperature,
			"top_p":              0.95,
			"repetition_penalty": 1.2,
			"return_full_text":   false,
		},
	}

	var out []struct {
		GeneratedText string `json:"generated_text"`
	}
	url := c.cfg.BaseURL + "/" + model
	if err := c.http.DoJSON(ctx, http.MethodPost, url, c.headers(), body, &out); err != nil {
		return "", &provider.GenerationError{Cause: err}
	}
	if len(out) == 0 {
		return "", &provider.GenerationError{Cause: fmt.Errorf("model %s returned no candidates", model)}
	}
	return strings.TrimSpace(out[0].GeneratedText), nil
}

func clip(b []byte, n int) string {
	if len(b) > n {
		b = b[:n]
	}
	return string(b)
}

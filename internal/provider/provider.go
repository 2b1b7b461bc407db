// Package provider defines the embedding and text-generation contracts
// backed by external model services.
package provider

import (
	"context"
	"fmt"
)

// Provider converts text into embedding vectors and generates completions.
type Provider interface {
	// Embed returns the embedding vector for a single text.
	Embed(ctx context.Context, text string) ([]float32, error)
	// EmbedBatch embeds texts concurrently. A partial failure never aborts
	// the batch: both successes and failures are returned with the original
	// input index preserved, so callers decide whether to proceed with gaps.
	EmbedBatch(ctx context.Context, texts []string) (BatchResult, error)
	// Generate produces a completion for prompt. Zero-value option fields
	// fall back to the provider's configured defaults.
	Generate(ctx context.Context, prompt string, opts GenerateOptions) (string, error)
}

// GenerateOptions carries per-call generation settings with named, typed
// fields. Defaults: Model from config, Temperature 0.7, MaxTokens 1024,
// SystemPrompt the provider's grounding instruction set.
type GenerateOptions struct {
	Model        string
	Temperature  float64
	MaxTokens    int
	SystemPrompt string
}

// IndexedVector is one successful batch embedding keyed by input index.
type IndexedVector struct {
	Index  int
	Values []float32
}

// IndexedError is one failed batch embedding keyed by input index.
type IndexedError struct {
	Index int
	Err   error
}

// BatchResult reports both sides of a batch embedding call.
type BatchResult struct {
	Vectors  []IndexedVector
	Failures []IndexedError
}

// Complete reports whether every input produced a vector.
func (r BatchResult) Complete() bool { return len(r.Failures) == 0 }

// EmbeddingError wraps any failure of an embedding call, including
// provider and network faults.
type EmbeddingError struct {
	Cause error
}

func (e *EmbeddingError) Error() string { return fmt.Sprintf("embedding: %v", e.Cause) }
func (e *EmbeddingError) Unwrap() error { return e.Cause }

// GenerationError wraps any failure of a completion call.
type GenerationError struct {
	Cause error
}

func (e *GenerationError) Error() string { return fmt.Sprintf("generation: %v", e.Cause) }
func (e *GenerationError) Unwrap() error { return e.Cause }

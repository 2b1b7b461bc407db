// Package chunker splits extracted text into overlapping fixed-size
// fragments, the unit of embedding and retrieval.
package chunker

import (
	"errors"
	"strings"
)

// DefaultChunkSize is the default number of characters per chunk.
const DefaultChunkSize = 1000

// DefaultChunkOverlap is the default number of overlapping characters.
const DefaultChunkOverlap = 200

// ErrInvalidWindow indicates size/overlap values that would stall the
// sliding window (overlap must stay strictly below size).
var ErrInvalidWindow = errors.New("chunker: overlap must be >= 0 and < size")

// Split slices text into windows of size characters advancing by
// size-overlap. Each window is trimmed of surrounding whitespace; windows
// that trim to nothing are dropped. Order follows the document left to
// right. Deterministic for identical inputs.
func Split(text string, size, overlap int) ([]string, error) {
	if size <= 0 || overlap < 0 || overlap >= size {
		return nil, ErrInvalidWindow
	}

	var chunks []string
	stride := size - overlap
	for start := 0; start < len(text); start += stride {
		end := start + size
		if end > len(text) {
			end = len(text)
		}
		chunk := strings.TrimSpace(text[start:end])
		if chunk != "" {
			chunks = append(chunks, chunk)
		}
	}
	return chunks, nil
}

// Package embedding turns text into vectors via Ollama, with an LRU cache and a deterministic mock.
package embedding

import (
	"context"
	"errors"
	"fmt"
)

// ErrEmbeddingFailed is matched by every error returned from an embedding call.
var ErrEmbeddingFailed = errors.New("embedding failed")

// Embedder produces vector embeddings for text. The same text must always map to the
// same vector for incremental ingest to be meaningful.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
	Dimensions() int
	Close() error
}

// Error describes a failed embedding call.
type Error struct {
	Model string
	Err   error
}

func (e *Error) Error() string {
	if e.Model == "" {
		return fmt.Sprintf("%v: %v", ErrEmbeddingFailed, e.Err)
	}
	return fmt.Sprintf("%v (model %s): %v", ErrEmbeddingFailed, e.Model, e.Err)
}

// Unwrap exposes both ErrEmbeddingFailed and the cause to errors.Is / errors.As.
func (e *Error) Unwrap() []error {
	return []error{ErrEmbeddingFailed, e.Err}
}

// Timeout reports whether the call failed because its deadline expired.
func (e *Error) Timeout() bool {
	return errors.Is(e.Err, context.DeadlineExceeded)
}

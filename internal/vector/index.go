// Package vector provides brute-force cosine similarity search over chunk embeddings.
package vector

import "context"

// VectorIndex defines vector storage and similarity search.
type VectorIndex interface {
	Add(ctx context.Context, ids []string, vectors [][]float32) error
	Search(ctx context.Context, query []float32, k int) ([]*VectorResult, error)
	Reset()
	Size() int
	Dimensions() int
}

// VectorResult is a single search hit; ID is a chunk ID.
type VectorResult struct {
	ID    string
	Score float64 // cosine similarity in [-1, 1]
}

package vector

import (
	"context"
	"fmt"
	"sort"
	"sync"
)

// MemoryIndex is an in-memory vector index using brute-force cosine search.
// Its dimension is fixed by the constructor or, when zero, by the first Add.
type MemoryIndex struct {
	dimensions int
	ids        []string
	vectors    [][]float32
	norms      []float64
	mu         sync.RWMutex
}

var _ VectorIndex = (*MemoryIndex)(nil)

// NewMemoryIndex creates an in-memory vector index. dimensions may be 0 to defer to the first Add.
func NewMemoryIndex(dimensions int) (*MemoryIndex, error) {
	if dimensions < 0 {
		return nil, fmt.Errorf("dimensions must not be negative")
	}
	return &MemoryIndex{dimensions: dimensions}, nil
}

// Add appends vectors with the given IDs. Either all vectors are added or none.
func (m *MemoryIndex) Add(ctx context.Context, ids []string, vectors [][]float32) error {
	if len(ids) != len(vectors) {
		return fmt.Errorf("ids and vectors length mismatch")
	}
	if len(ids) == 0 {
		return nil
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	dim := m.dimensions
	if dim == 0 {
		dim = len(vectors[0])
	}
	if dim == 0 {
		return fmt.Errorf("empty vector for %s", ids[0])
	}
	for i := range vectors {
		if len(vectors[i]) != dim {
			return fmt.Errorf("vector dimension mismatch for %s: got %d, expected %d", ids[i], len(vectors[i]), dim)
		}
	}
	m.dimensions = dim
	for i, id := range ids {
		vec := make([]float32, dim)
		copy(vec, vectors[i])
		m.ids = append(m.ids, id)
		m.vectors = append(m.vectors, vec)
		m.norms = append(m.norms, L2Norm(vec))
	}
	return nil
}

// Search returns up to k IDs ordered by descending cosine similarity.
// An empty index returns no results and no error.
func (m *MemoryIndex) Search(ctx context.Context, query []float32, k int) ([]*VectorResult, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if k <= 0 || len(m.ids) == 0 {
		return nil, nil
	}
	if len(query) != m.dimensions {
		return nil, fmt.Errorf("query dimension mismatch: got %d, expected %d", len(query), m.dimensions)
	}
	qn := L2Norm(query)
	scores := make([]VectorResult, len(m.ids))
	for i, vec := range m.vectors {
		var s float64
		if qn > 0 && m.norms[i] > 0 {
			s = InnerProduct(query, vec) / (qn * m.norms[i])
		}
		scores[i] = VectorResult{ID: m.ids[i], Score: s}
	}
	sort.SliceStable(scores, func(i, j int) bool { return scores[i].Score > scores[j].Score })
	if k > len(scores) {
		k = len(scores)
	}
	result := make([]*VectorResult, k)
	for i := 0; i < k; i++ {
		r := scores[i]
		result[i] = &r
	}
	return result, nil
}

// Reset removes every vector. A dimension learned from Add is forgotten.
func (m *MemoryIndex) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ids = nil
	m.vectors = nil
	m.norms = nil
	m.dimensions = 0
}

// Size returns the number of vectors in the index.
func (m *MemoryIndex) Size() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.ids)
}

// Dimensions returns the vector length, or 0 if not yet known.
func (m *MemoryIndex) Dimensions() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.dimensions
}

// Package keyword provides full-text lookup over chunk text.
package keyword

import (
	"context"

	"github.com/Tornshorts/RAG-Tutorial/internal/models"
)

// SearchOptions optional parameters for keyword search. Nil means use defaults.
type SearchOptions struct {
	// FuzzyEnabled matches terms within Fuzziness edits of the query terms.
	FuzzyEnabled bool
	// Fuzziness is the maximum Levenshtein edit distance (1 or 2). Default 2.
	Fuzziness int
	// Source restricts hits to chunks of one source document.
	Source string
}

// KeywordIndex defines keyword search operations over index entries.
type KeywordIndex interface {
	IndexEntries(ctx context.Context, entries []*models.IndexEntry) error
	Search(ctx context.Context, query string, limit int, opts *SearchOptions) ([]*KeywordResult, error)
	DocCount() (uint64, error)
	Close() error
}

// KeywordResult is a single keyword search hit; ID is a chunk ID.
type KeywordResult struct {
	ID    string
	Score float64
}

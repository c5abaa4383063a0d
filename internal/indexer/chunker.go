// Package indexer splits documents into chunks and runs incremental ingest into an index store.
package indexer

import (
	"strings"

	"github.com/Tornshorts/RAG-Tutorial/internal/models"
)

const (
	// DefaultChunkSize is the maximum chunk length in characters.
	DefaultChunkSize = 500
	// DefaultChunkOverlap is the number of characters shared by consecutive chunks of a page.
	DefaultChunkOverlap = 50
)

// Splitter splits page text into overlapping character windows.
type Splitter struct {
	chunkSize    int
	chunkOverlap int
}

// SplitterOption configures a Splitter.
type SplitterOption func(*Splitter)

// WithChunkSize sets the maximum chunk length in characters.
func WithChunkSize(n int) SplitterOption {
	return func(s *Splitter) {
		if n > 0 {
			s.chunkSize = n
		}
	}
}

// WithChunkOverlap sets the overlap between consecutive chunks in characters.
func WithChunkOverlap(n int) SplitterOption {
	return func(s *Splitter) {
		if n >= 0 {
			s.chunkOverlap = n
		}
	}
}

// NewSplitter creates a splitter with the default 500/50 window unless overridden.
func NewSplitter(opts ...SplitterOption) *Splitter {
	s := &Splitter{
		chunkSize:    DefaultChunkSize,
		chunkOverlap: DefaultChunkOverlap,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.chunkOverlap >= s.chunkSize {
		s.chunkOverlap = s.chunkSize / 4
	}
	return s
}

// ChunkSize returns the configured window size.
func (s *Splitter) ChunkSize() int { return s.chunkSize }

// ChunkOverlap returns the configured overlap.
func (s *Splitter) ChunkOverlap() int { return s.chunkOverlap }

// Split returns the chunks of doc in document order, without IDs or embeddings.
// Chunks never span pages. Empty pages produce nothing.
func (s *Splitter) Split(doc *models.Document) []*models.Chunk {
	if doc == nil {
		return nil
	}
	var chunks []*models.Chunk
	for _, page := range doc.Pages {
		for _, text := range s.splitText(page.Text) {
			chunks = append(chunks, &models.Chunk{
				Text:   text,
				Source: doc.Source,
				Page:   page.Index,
			})
		}
	}
	return chunks
}

// SplitAll splits every document and concatenates the results in the given order.
func (s *Splitter) SplitAll(docs []*models.Document) []*models.Chunk {
	var chunks []*models.Chunk
	for _, doc := range docs {
		chunks = append(chunks, s.Split(doc)...)
	}
	return chunks
}

func (s *Splitter) splitText(text string) []string {
	if strings.TrimSpace(text) == "" {
		return nil
	}
	runes := []rune(text)
	step := s.chunkSize - s.chunkOverlap
	if step <= 0 {
		step = 1
	}
	out := make([]string, 0, len(runes)/step+1)
	for start := 0; start < len(runes); start += step {
		end := start + s.chunkSize
		if end > len(runes) {
			end = len(runes)
		}
		out = append(out, string(runes[start:end]))
		if end >= len(runes) {
			break
		}
	}
	return out
}

// Package models defines core data structures for documents, chunks, index entries, and answers.
package models

import "time"

// Document is a loaded source file and its pages, in page order.
type Document struct {
	Source string `json:"source"`
	Pages  []Page `json:"pages"`
}

// Page is the extracted plain text of one page. Index is zero-based.
type Page struct {
	Index int    `json:"index"`
	Text  string `json:"text"`
}

// Chunk is a bounded slice of a single page's text. ID and ChunkIndex are assigned
// by chunkid.Assign; Embedding is filled during ingest.
type Chunk struct {
	ID         string    `json:"id"`
	Text       string    `json:"text"`
	Source     string    `json:"source"`
	Page       int       `json:"page"`
	ChunkIndex int       `json:"chunk_index"`
	Embedding  []float32 `json:"-"`
}

// EntryMetadata is the metadata persisted with every index entry.
type EntryMetadata struct {
	Source string `json:"source"`
	Page   int    `json:"page"`
	ID     string `json:"id"`
}

// IndexEntry is a persisted chunk keyed by its chunk ID.
type IndexEntry struct {
	ID        string        `json:"id"`
	Text      string        `json:"text"`
	Metadata  EntryMetadata `json:"metadata"`
	Embedding []float32     `json:"-"`
	CreatedAt time.Time     `json:"created_at"`
}

// Entry converts an embedded chunk into the record persisted by an index store.
func (c *Chunk) Entry() *IndexEntry {
	return &IndexEntry{
		ID:   c.ID,
		Text: c.Text,
		Metadata: EntryMetadata{
			Source: c.Source,
			Page:   c.Page,
			ID:     c.ID,
		},
		Embedding: c.Embedding,
	}
}

// ScoredEntry is a query hit; higher Score means more similar.
type ScoredEntry struct {
	Entry *IndexEntry `json:"entry"`
	Score float64     `json:"score"`
}

// IngestResult reports the outcome of one ingest run. Total counts the chunks the run
// produced from the loaded documents, stored before or not.
type IngestResult struct {
	Added int `json:"added"`
	Total int `json:"total_chunks"`
}

// StoreStats summarises the contents of an index store.
type StoreStats struct {
	Entries int      `json:"entries"`
	Sources []string `json:"sources"`
}

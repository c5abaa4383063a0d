// Package chunkid assigns deterministic chunk IDs of the form source:page:index.
package chunkid

import (
	"strconv"

	"github.com/Tornshorts/RAG-Tutorial/internal/models"
)

const sep = ":"

// PageKey returns the key shared by every chunk of one page.
func PageKey(source string, page int) string {
	return source + sep + strconv.Itoa(page)
}

// ID returns the chunk ID for the given source, page and position within the page.
// Same triple always yields the same ID.
func ID(source string, page, index int) string {
	return PageKey(source, page) + sep + strconv.Itoa(index)
}

// Assign sets ChunkIndex and ID on every chunk, in place.
// Chunks must be in document order with each page's chunks consecutive; a page key that
// reappears later restarts its counter at zero and will collide with the earlier run.
func Assign(chunks []*models.Chunk) []*models.Chunk {
	lastKey := ""
	counter := 0
	for i, c := range chunks {
		key := PageKey(c.Source, c.Page)
		if i > 0 && key == lastKey {
			counter++
		} else {
			counter = 0
		}
		c.ChunkIndex = counter
		c.ID = key + sep + strconv.Itoa(counter)
		lastKey = key
	}
	return chunks
}

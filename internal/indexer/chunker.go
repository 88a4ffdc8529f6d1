// Package indexer provides document chunking and vector index building.
package indexer

import (
	"iter"

	"github.com/google/uuid"
	"github.com/hyperjump/hiddenclasses/internal/models"
)

const (
	DefaultChunkSize    = 500
	DefaultChunkOverlap = 100
)

// separators in order of preference; the last resort is a hard cut.
var separators = [][]rune{
	[]rune("\n\n"),
	[]rune("\n"),
	[]rune(". "),
	[]rune("! "),
	[]rune("? "),
	[]rune(" "),
}

// Chunker splits text into overlapping character windows.
// Sizes are counted in runes.
type Chunker struct {
	chunkSize    int
	chunkOverlap int
}

// NewChunker creates a chunker with the given size and overlap (in characters).
// A non-positive size falls back to DefaultChunkSize, a negative overlap to
// DefaultChunkOverlap, and an overlap that does not fit the size is reduced to size/4.
func NewChunker(chunkSize, chunkOverlap int) *Chunker {
	if chunkSize <= 0 {
		chunkSize = DefaultChunkSize
	}
	if chunkOverlap < 0 {
		chunkOverlap = DefaultChunkOverlap
	}
	if chunkOverlap >= chunkSize {
		chunkOverlap = chunkSize / 4
	}
	return &Chunker{chunkSize: chunkSize, chunkOverlap: chunkOverlap}
}

// Size returns the maximum chunk length.
func (c *Chunker) Size() int { return c.chunkSize }

// Overlap returns the number of characters shared by consecutive chunks.
func (c *Chunker) Overlap() int { return c.chunkOverlap }

// Chunks returns the chunks of text as a lazy sequence. Each chunk is at most
// Size characters and starts with the last Overlap characters of the previous one.
// The sequence can be ranged over any number of times with the same result.
func (c *Chunker) Chunks(text string) iter.Seq[string] {
	return func(yield func(string) bool) {
		runes := []rune(text)
		start := 0
		for start < len(runes) {
			end := c.cut(runes, start)
			if !yield(string(runes[start:end])) {
				return
			}
			if end >= len(runes) {
				return
			}
			start = end - c.chunkOverlap
		}
	}
}

// cut returns the end of the window starting at start. The end always lies past
// start+overlap so the next window makes progress.
func (c *Chunker) cut(runes []rune, start int) int {
	limit := start + c.chunkSize
	if limit >= len(runes) {
		return len(runes)
	}
	window := runes[start:limit]
	for _, sep := range separators {
		if end := lastBoundary(window, sep, c.chunkOverlap); end > 0 {
			return start + end
		}
	}
	return limit
}

// lastBoundary returns the offset just after the last occurrence of sep in window
// that ends beyond minEnd, or -1.
func lastBoundary(window, sep []rune, minEnd int) int {
	for i := len(window) - len(sep); i >= 0; i-- {
		end := i + len(sep)
		if end <= minEnd {
			return -1
		}
		if runesEqual(window[i:end], sep) {
			return end
		}
	}
	return -1
}

func runesEqual(a, b []rune) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// Split chunks a document's content into Chunks that point back at the document.
func (c *Chunker) Split(doc models.Document) []models.Chunk {
	var chunks []models.Chunk
	for text := range c.Chunks(doc.Content) {
		chunks = append(chunks, models.Chunk{
			ID:   uuid.New().String(),
			Text: text,
			Metadata: models.ChunkMetadata{
				PageID: doc.ID,
				Title:  doc.Title,
			},
		})
	}
	return chunks
}

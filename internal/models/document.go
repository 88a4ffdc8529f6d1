// Package models defines core data structures for documents, chunks, posts, and replies.
package models

// Document is one row of the content database, flattened to text.
type Document struct {
	ID      string `json:"id"`
	Title   string `json:"title"`
	Content string `json:"content"`
}

// Entry holds the raw fields of a single content row used for post generation.
type Entry struct {
	Content  string `json:"content"`
	Examples string `json:"examples"`
}

// ChunkMetadata links a chunk back to the document it was cut from.
type ChunkMetadata struct {
	PageID string `json:"page_id"`
	Title  string `json:"title"`
}

// Chunk is a bounded piece of a Document, the unit of embedding and retrieval.
// ID is unique per index build and is used to verify that the vector file and
// the metadata file describe the same ordering.
type Chunk struct {
	ID       string        `json:"id"`
	Text     string        `json:"text"`
	Metadata ChunkMetadata `json:"metadata"`
}

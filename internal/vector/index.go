// Package vector provides an exact L2 vector index and its on-disk storage.
package vector

import (
	"context"
	"errors"
)

var (
	// ErrDimensionMismatch is returned when a vector's length differs from the index dimension.
	ErrDimensionMismatch = errors.New("vector dimension mismatch")
	// ErrCorruptIndex is returned when the vector file and its metadata file disagree.
	ErrCorruptIndex = errors.New("corrupt vector index")
)

// VectorIndex defines vector storage and nearest-neighbour search.
type VectorIndex interface {
	Add(ctx context.Context, ids []string, vectors [][]float32) error
	Search(ctx context.Context, query []float32, k int) ([]*VectorResult, error)
	Save(path string) error
	Load(path string) error
	Size() int
	Dimensions() int
	Close() error
}

// VectorResult is a single search hit. Position is the vector's insertion index,
// which is also the index of its chunk in the metadata file.
type VectorResult struct {
	ID       string
	Position int
	Distance float64 // squared Euclidean distance; 0 for an exact match
}

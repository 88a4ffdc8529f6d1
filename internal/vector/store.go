package vector

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/hyperjump/hiddenclasses/internal/models"
)

// Store persists a MemoryIndex together with its chunk metadata as a pair of files.
// Position i in the vector file and element i of the metadata JSON array describe
// the same chunk.
type Store struct {
	IndexPath    string
	MetadataPath string

	renameFn func(from, to string) error
}

// NewStore returns a store for the given vector and metadata file paths.
func NewStore(indexPath, metadataPath string) *Store {
	return &Store{IndexPath: indexPath, MetadataPath: metadataPath}
}

// Save writes both files to temporary paths and renames them into place only
// after both writes succeed. The previous vector file is kept as a backup until
// the metadata rename succeeds, so a failed save leaves the previous pair intact.
func (s *Store) Save(idx *MemoryIndex, chunks []models.Chunk) error {
	if err := checkPair(idx.IDs(), chunks); err != nil {
		return err
	}
	tmpIndex := s.IndexPath + ".tmp"
	tmpMeta := s.MetadataPath + ".tmp"
	backup := s.IndexPath + ".bak"
	cleanup := func() {
		_ = os.Remove(tmpIndex)
		_ = os.Remove(tmpMeta)
	}
	if err := idx.Save(tmpIndex); err != nil {
		cleanup()
		return fmt.Errorf("write vectors: %w", err)
	}
	if err := writeMetadata(tmpMeta, chunks); err != nil {
		cleanup()
		return fmt.Errorf("write metadata: %w", err)
	}

	hadIndex, err := fileExists(s.IndexPath)
	if err != nil {
		cleanup()
		return err
	}
	if hadIndex {
		if err := s.rename(s.IndexPath, backup); err != nil {
			cleanup()
			return fmt.Errorf("back up vectors: %w", err)
		}
	}
	restore := func() {
		if hadIndex {
			_ = s.rename(backup, s.IndexPath)
		} else {
			_ = os.Remove(s.IndexPath)
		}
	}
	if err := s.rename(tmpIndex, s.IndexPath); err != nil {
		restore()
		cleanup()
		return fmt.Errorf("rename vectors: %w", err)
	}
	if err := s.rename(tmpMeta, s.MetadataPath); err != nil {
		restore()
		cleanup()
		return fmt.Errorf("rename metadata: %w", err)
	}
	if hadIndex {
		_ = os.Remove(backup)
	}
	return nil
}

func (s *Store) rename(from, to string) error {
	if s.renameFn != nil {
		return s.renameFn(from, to)
	}
	return os.Rename(from, to)
}

// Load reads the file pair into a fresh index of the given dimension.
// When neither file exists the index is empty. When only one exists, or the two
// disagree on count or chunk IDs, ErrCorruptIndex is returned. A dimension
// different from the file's yields ErrDimensionMismatch.
func (s *Store) Load(dimensions int) (*MemoryIndex, []models.Chunk, error) {
	idx, err := NewMemoryIndex(dimensions)
	if err != nil {
		return nil, nil, err
	}
	indexExists, err := fileExists(s.IndexPath)
	if err != nil {
		return nil, nil, err
	}
	metaExists, err := fileExists(s.MetadataPath)
	if err != nil {
		return nil, nil, err
	}
	switch {
	case !indexExists && !metaExists:
		return idx, nil, nil
	case indexExists != metaExists:
		return nil, nil, fmt.Errorf("%w: only one of %s and %s exists", ErrCorruptIndex, s.IndexPath, s.MetadataPath)
	}
	if err := idx.Load(s.IndexPath); err != nil {
		return nil, nil, fmt.Errorf("load vectors: %w", err)
	}
	chunks, err := readMetadata(s.MetadataPath)
	if err != nil {
		return nil, nil, err
	}
	if err := checkPair(idx.IDs(), chunks); err != nil {
		return nil, nil, err
	}
	return idx, chunks, nil
}

// Exists reports whether both files of the pair are present.
func (s *Store) Exists() bool {
	a, _ := fileExists(s.IndexPath)
	b, _ := fileExists(s.MetadataPath)
	return a && b
}

func checkPair(ids []string, chunks []models.Chunk) error {
	if len(ids) != len(chunks) {
		return fmt.Errorf("%w: %d vectors but %d metadata records", ErrCorruptIndex, len(ids), len(chunks))
	}
	for i := range ids {
		if ids[i] != chunks[i].ID {
			return fmt.Errorf("%w: position %d has vector %q but chunk %q", ErrCorruptIndex, i, ids[i], chunks[i].ID)
		}
	}
	return nil
}

func writeMetadata(path string, chunks []models.Chunk) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("create metadata dir: %w", err)
	}
	if chunks == nil {
		chunks = []models.Chunk{}
	}
	data, err := json.Marshal(chunks)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

func readMetadata(path string) ([]models.Chunk, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read metadata: %w", err)
	}
	var chunks []models.Chunk
	if err := json.Unmarshal(data, &chunks); err != nil {
		return nil, fmt.Errorf("%w: parse metadata: %v", ErrCorruptIndex, err)
	}
	return chunks, nil
}

func fileExists(path string) (bool, error) {
	_, err := os.Stat(path)
	if err == nil {
		return true, nil
	}
	if errors.Is(err, os.ErrNotExist) {
		return false, nil
	}
	return false, fmt.Errorf("stat %s: %w", path, err)
}

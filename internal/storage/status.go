package storage

import (
	"fmt"

	"github.com/hyperjump/hiddenclasses/internal/config"
	"github.com/hyperjump/hiddenclasses/internal/vector"
)

// Status summarises the persisted state of the pipeline.
type Status struct {
	IndexPath      string `json:"index_path"`
	MetadataPath   string `json:"metadata_path"`
	ImageDir       string `json:"image_dir"`
	IndexExists    bool   `json:"index_exists"`
	Chunks         int    `json:"chunks"`
	Dimensions     int    `json:"dimensions"`
	DiskUsageBytes int64  `json:"disk_usage_bytes"`
}

// Inspect loads the index pair described by cfg and reports its size and
// the disk space used by the index pair and generated images.
func Inspect(cfg *config.StorageConfig, dimensions int) (*Status, error) {
	st := &Status{
		IndexPath:    cfg.IndexPath,
		MetadataPath: cfg.MetadataPath,
		ImageDir:     cfg.ImageDir,
		Dimensions:   dimensions,
	}
	store := vector.NewStore(cfg.IndexPath, cfg.MetadataPath)
	st.IndexExists = store.Exists()
	idx, _, err := store.Load(dimensions)
	if err != nil {
		return nil, fmt.Errorf("load index: %w", err)
	}
	defer idx.Close()
	st.Chunks = idx.Size()

	n, err := DiskUsageBytes(cfg.IndexPath, cfg.MetadataPath, cfg.ImageDir)
	if err != nil {
		return nil, fmt.Errorf("disk usage: %w", err)
	}
	st.DiskUsageBytes = n
	return st, nil
}

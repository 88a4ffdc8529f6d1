// Package storage reports on the files the pipeline persists: the index pair
// and generated images.
package storage

import (
	"errors"
	"io/fs"
	"path/filepath"
)

// DiskUsageBytes returns the total size in bytes of paths. Directories are
// summed recursively; empty and missing paths count as zero.
func DiskUsageBytes(paths ...string) (int64, error) {
	var total int64
	for _, p := range paths {
		if p == "" {
			continue
		}
		n, err := usage(p)
		if err != nil {
			return 0, err
		}
		total += n
	}
	return total, nil
}

func usage(path string) (int64, error) {
	var total int64
	err := filepath.WalkDir(path, func(_ string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		total += info.Size()
		return nil
	})
	if errors.Is(err, fs.ErrNotExist) {
		return 0, nil
	}
	return total, err
}

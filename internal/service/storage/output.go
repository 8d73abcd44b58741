package storage

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
)

var (
	// ErrPathIsFile means the output path exists but is not a directory.
	ErrPathIsFile = errors.New("path exists and is not a directory")
	// ErrPermissionDenied means the directory could not be created or inspected.
	ErrPermissionDenied = errors.New("permission denied")
)

// EnsureDir creates dir (and parents) unless it already exists. created is
// false when the directory was already there.
func EnsureDir(dir string) (created bool, err error) {
	info, err := os.Stat(dir)
	switch {
	case err == nil:
		if !info.IsDir() {
			return false, fmt.Errorf("%s: %w", dir, ErrPathIsFile)
		}
		return false, nil
	case errors.Is(err, fs.ErrPermission):
		return false, fmt.Errorf("%s: %w: %v", dir, ErrPermissionDenied, err)
	case !errors.Is(err, fs.ErrNotExist):
		// ENOTDIR: a parent component is a regular file.
		return false, fmt.Errorf("%s: %w: %v", dir, ErrPathIsFile, err)
	}

	if err := os.MkdirAll(dir, 0755); err != nil {
		if errors.Is(err, fs.ErrPermission) {
			return false, fmt.Errorf("%s: %w: %v", dir, ErrPermissionDenied, err)
		}
		if errors.Is(err, fs.ErrExist) || errors.Is(err, fs.ErrInvalid) {
			return false, fmt.Errorf("%s: %w: %v", dir, ErrPathIsFile, err)
		}
		return false, fmt.Errorf("failed to create directory %s: %w", dir, err)
	}
	return true, nil
}

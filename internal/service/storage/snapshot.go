package storage

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// SnapshotStore writes annotated JPEG frames into the output directory.
type SnapshotStore struct {
	dir string
}

func NewSnapshotStore(dir string) *SnapshotStore {
	return &SnapshotStore{dir: dir}
}

func (s *SnapshotStore) Dir() string {
	return s.dir
}

// Save writes data as dir/name and returns the full path and size.
// A snapshot with the same name (same second) is replaced.
func (s *SnapshotStore) Save(name string, data []byte) (string, int64, error) {
	if !ValidFilename(name) {
		return "", 0, fmt.Errorf("invalid snapshot name %q", name)
	}
	if _, err := EnsureDir(s.dir); err != nil {
		return "", 0, err
	}

	fullpath := filepath.Join(s.dir, name)
	if err := os.WriteFile(fullpath, data, 0644); err != nil {
		return "", 0, fmt.Errorf("error saving snapshot %s: %w", name, err)
	}
	return fullpath, int64(len(data)), nil
}

// Path resolves a snapshot name inside the store, rejecting traversal.
func (s *SnapshotStore) Path(name string) (string, bool) {
	if !ValidFilename(name) {
		return "", false
	}
	return filepath.Join(s.dir, name), true
}

// ValidFilename accepts plain file names only.
func ValidFilename(name string) bool {
	if name == "" || name == "." || name == ".." {
		return false
	}
	if strings.ContainsAny(name, "/\\\x00") {
		return false
	}
	return !strings.HasPrefix(name, "..")
}

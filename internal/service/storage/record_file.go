package storage

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// RecordFile is the plain-text session log on disk, one label per line.
type RecordFile struct {
	dir  string
	name string
}

func NewRecordFile(dir, name string) *RecordFile {
	return &RecordFile{dir: dir, name: name}
}

func (f *RecordFile) Name() string {
	return f.name
}

func (f *RecordFile) Path() string {
	return filepath.Join(f.dir, f.name)
}

// WriteRecords creates or replaces the file with labels, newline terminated.
// Content goes to a temp file in the same directory first and is renamed
// over the target, so readers never observe a partial log.
func (f *RecordFile) WriteRecords(labels []string) error {
	if _, err := EnsureDir(f.dir); err != nil {
		return err
	}

	tmp, err := os.CreateTemp(f.dir, "."+f.name+".*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName) // no-op after a successful rename

	w := bufio.NewWriter(tmp)
	for _, label := range labels {
		w.WriteString(label)
		w.WriteByte('\n')
	}
	if err := w.Flush(); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write records: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to sync records: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close records: %w", err)
	}
	if err := os.Chmod(tmpName, 0644); err != nil {
		return fmt.Errorf("failed to set record file mode: %w", err)
	}
	if err := os.Rename(tmpName, f.Path()); err != nil {
		return fmt.Errorf("failed to replace %s: %w", f.Path(), err)
	}
	return nil
}

// ReadRecords returns the labels in file order. A missing file reads as empty.
func (f *RecordFile) ReadRecords() ([]string, error) {
	return ReadRecordFile(f.Path())
}

// ReadRecordFile parses a record file written by WriteRecords.
func ReadRecordFile(path string) ([]string, error) {
	file, err := os.Open(path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer file.Close()

	var labels []string
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := strings.TrimRight(scanner.Text(), "\r")
		if line == "" {
			continue
		}
		labels = append(labels, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	return labels, nil
}

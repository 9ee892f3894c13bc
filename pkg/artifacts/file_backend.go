package artifacts

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
)

// FileBackend reads and writes local files.
type FileBackend struct {
	maxSize int64
}

func NewFileBackend(maxSize int64) *FileBackend {
	return &FileBackend{maxSize: maxSize}
}

func (b *FileBackend) Load(_ context.Context, uri string) ([]byte, error) {
	loc, err := ParseURI(uri)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(loc.Key)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", loc.Key, err)
	}
	defer func() { _ = f.Close() }()
	data, err := readLimited(f, b.maxSize)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", loc.Key, err)
	}
	return data, nil
}

// Save writes atomically: temp file in the same directory, then rename.
func (b *FileBackend) Save(_ context.Context, uri string, data []byte) error {
	loc, err := ParseURI(uri)
	if err != nil {
		return err
	}
	dir := filepath.Dir(loc.Key)
	//nolint:gosec // G301: output directories are shared with the operator
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to ensure dir %s: %w", dir, err)
	}
	tmp := loc.Key + ".tmp"
	//nolint:gosec // G306: certificates are public records
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return fmt.Errorf("failed to write %s: %w", tmp, err)
	}
	if err := os.Rename(tmp, loc.Key); err != nil {
		return fmt.Errorf("failed to commit %s: %w", loc.Key, err)
	}
	return nil
}

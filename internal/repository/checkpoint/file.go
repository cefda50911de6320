package checkpoint

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"
)

// FileStore keeps one JSON file per index and stream in a directory.
// Writes go to a temp file that is renamed over the target.
type FileStore struct {
	dir string
}

// NewFileStore creates a file-backed store rooted at dir.
func NewFileStore(dir string) *FileStore {
	return &FileStore{dir: dir}
}

func (s *FileStore) path(index, stream string) string {
	return filepath.Join(s.dir, index+"."+stream+".json")
}

// Load reads the cursor of a stream.
func (s *FileStore) Load(_ context.Context, index, stream string) (Cursor, error) {
	data, err := os.ReadFile(s.path(index, stream))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return Cursor{Stream: stream}, nil
		}
		return Cursor{}, fmt.Errorf("load checkpoint: %w", err)
	}
	var c Cursor
	if err := json.Unmarshal(data, &c); err != nil {
		return Cursor{}, fmt.Errorf("decode checkpoint %s: %w", s.path(index, stream), err)
	}
	c.Stream = stream
	return c, nil
}

// Save writes the cursor, stamping UpdatedAt.
func (s *FileStore) Save(_ context.Context, index string, c Cursor) error {
	c.UpdatedAt = time.Now().UTC()
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return fmt.Errorf("encode checkpoint: %w", err)
	}
	if err := os.MkdirAll(s.dir, 0o750); err != nil {
		return fmt.Errorf("create checkpoint dir: %w", err)
	}

	tmp, err := os.CreateTemp(s.dir, ".checkpoint-*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	defer func() { _ = os.Remove(tmp.Name()) }()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("write checkpoint: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close checkpoint: %w", err)
	}
	if err := os.Rename(tmp.Name(), s.path(index, c.Stream)); err != nil {
		return fmt.Errorf("rename checkpoint: %w", err)
	}
	return nil
}

// Reset removes the cursor file. A missing file is not an error.
func (s *FileStore) Reset(_ context.Context, index, stream string) error {
	err := os.Remove(s.path(index, stream))
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("reset checkpoint: %w", err)
	}
	return nil
}

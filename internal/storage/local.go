package storage

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
)

// FileStore is an ObjectStore on the local filesystem, for single-node setups.
type FileStore struct {
	root string
}

// NewFileStore creates a FileStore rooted at dir. An empty dir uses ./data/archive.
func NewFileStore(dir string) *FileStore {
	if dir == "" {
		dir = "./data/archive"
	}
	return &FileStore{root: dir}
}

func (f *FileStore) path(key string) string {
	return filepath.Join(f.root, filepath.FromSlash(filepath.Clean("/" + key)))
}

// EnsureBucket creates the root directory.
func (f *FileStore) EnsureBucket(ctx context.Context) error {
	return os.MkdirAll(f.root, 0o755)
}

// Put writes the object atomically via a temp file rename.
func (f *FileStore) Put(ctx context.Context, key string, body []byte, contentType string) error {
	target := f.path(key)
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return fmt.Errorf("failed to create archive directory: %w", err)
	}
	tmp := target + ".tmp"
	if err := os.WriteFile(tmp, body, 0o644); err != nil {
		return fmt.Errorf("failed to write object: %w", err)
	}
	return os.Rename(tmp, target)
}

// Get reads the object.
func (f *FileStore) Get(ctx context.Context, key string) ([]byte, error) {
	body, err := os.ReadFile(f.path(key))
	if os.IsNotExist(err) {
		return nil, ErrObjectNotFound
	}
	return body, err
}

// URL returns a file:// link.
func (f *FileStore) URL(ctx context.Context, key string) (string, error) {
	abs, err := filepath.Abs(f.path(key))
	if err != nil {
		return "", err
	}
	return "file://" + filepath.ToSlash(abs), nil
}

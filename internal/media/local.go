package media

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
)

// LocalStore serves media from a directory on the local filesystem. Refs
// are paths relative to the root; absolute refs and parent traversal are
// rejected.
type LocalStore struct {
	root string
}

// NewLocalStore creates a store rooted at dir.
func NewLocalStore(dir string) *LocalStore {
	return &LocalStore{root: dir}
}

func (s *LocalStore) resolve(ref string) (string, error) {
	if ref == "" {
		return "", errors.New("empty media ref")
	}
	clean := filepath.Clean(ref)
	if filepath.IsAbs(clean) || clean == ".." || len(clean) >= 3 && clean[:3] == ".."+string(filepath.Separator) {
		return "", fmt.Errorf("media ref escapes root: %s", ref)
	}
	return filepath.Join(s.root, clean), nil
}

func (s *LocalStore) WriteFile(ctx context.Context, ref string, r io.Reader) error {
	path, err := s.resolve(ref)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create media dir: %w", err)
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create media %s: %w", ref, err)
	}
	if _, err := io.Copy(f, r); err != nil {
		f.Close()
		os.Remove(path)
		return fmt.Errorf("failed to write media %s: %w", ref, err)
	}
	return f.Close()
}

func (s *LocalStore) ReadFile(ctx context.Context, ref string) ([]byte, error) {
	path, err := s.resolve(ref)
	if err != nil {
		return nil, err
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read media %s: %w", ref, err)
	}
	return b, nil
}

func (s *LocalStore) DeleteFile(ctx context.Context, ref string) error {
	path, err := s.resolve(ref)
	if err != nil {
		return err
	}
	if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("failed to delete media %s: %w", ref, err)
	}
	return nil
}

func (s *LocalStore) Size(ctx context.Context, ref string) (int64, error) {
	path, err := s.resolve(ref)
	if err != nil {
		return 0, err
	}
	info, err := os.Stat(path)
	if err != nil {
		return 0, fmt.Errorf("failed to stat media %s: %w", ref, err)
	}
	return info.Size(), nil
}

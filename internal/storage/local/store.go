package local

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/nbai/nbai/internal/storage"
)

// Store keeps objects as files below Root.
type Store struct {
	Root string
}

func New(root string) *Store {
	root = strings.TrimSpace(root)
	if root == "" {
		root = "."
	}
	return &Store{Root: filepath.Clean(root)}
}

func (s *Store) Put(ctx context.Context, key string, body io.Reader, _ int64, _ storage.PutOptions) (storage.ObjectInfo, error) {
	if err := ctx.Err(); err != nil {
		return storage.ObjectInfo{}, err
	}
	target, err := s.resolve(key)
	if err != nil {
		return storage.ObjectInfo{}, err
	}
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return storage.ObjectInfo{}, fmt.Errorf("create directory for %q: %w", key, err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(target), ".nbai-*")
	if err != nil {
		return storage.ObjectInfo{}, fmt.Errorf("create temp file for %q: %w", key, err)
	}
	tmpName := tmp.Name()
	_, copyErr := io.Copy(tmp, body)
	closeErr := tmp.Close()
	if copyErr != nil || closeErr != nil {
		_ = os.Remove(tmpName)
		return storage.ObjectInfo{}, fmt.Errorf("write %q: %w", key, errors.Join(copyErr, closeErr))
	}
	if err := os.Rename(tmpName, target); err != nil {
		_ = os.Remove(tmpName)
		return storage.ObjectInfo{}, fmt.Errorf("publish %q: %w", key, err)
	}
	return s.Stat(ctx, key)
}

func (s *Store) Get(ctx context.Context, key string) (io.ReadCloser, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	target, err := s.resolve(key)
	if err != nil {
		return nil, err
	}
	file, err := os.Open(target)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, storage.ErrObjectNotFound
		}
		return nil, fmt.Errorf("open %q: %w", key, err)
	}
	return file, nil
}

func (s *Store) Stat(ctx context.Context, key string) (storage.ObjectInfo, error) {
	if err := ctx.Err(); err != nil {
		return storage.ObjectInfo{}, err
	}
	target, err := s.resolve(key)
	if err != nil {
		return storage.ObjectInfo{}, err
	}
	info, err := os.Stat(target)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return storage.ObjectInfo{}, storage.ErrObjectNotFound
		}
		return storage.ObjectInfo{}, fmt.Errorf("stat %q: %w", key, err)
	}
	if info.IsDir() {
		return storage.ObjectInfo{}, fmt.Errorf("%q is a directory", key)
	}
	return storage.ObjectInfo{Key: key, Size: info.Size(), LastModified: info.ModTime().UTC()}, nil
}

func (s *Store) resolve(key string) (string, error) {
	key = strings.TrimSpace(key)
	if key == "" {
		return "", fmt.Errorf("object key is required")
	}
	cleaned := filepath.Clean(filepath.FromSlash(key))
	if filepath.IsAbs(cleaned) || cleaned == ".." || strings.HasPrefix(cleaned, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("invalid object key: %q", key)
	}
	return filepath.Join(s.Root, cleaned), nil
}

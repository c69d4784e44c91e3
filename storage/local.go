package storage

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"strings"
)

// LocalBackend serves objects from a directory on disk. Keys are
// slash-separated paths relative to Root.
type LocalBackend struct {
	Root string
}

// NewLocalBackend creates the root directory if it does not exist yet.
func NewLocalBackend(root string) (*LocalBackend, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("resolve media dir %s: %w", root, err)
	}
	if err := os.MkdirAll(abs, 0755); err != nil {
		return nil, fmt.Errorf("create media dir %s: %w", abs, err)
	}
	return &LocalBackend{Root: abs}, nil
}

func (b *LocalBackend) Name() string { return "local" }

// Path maps a key to a file under Root. Keys that escape Root are rejected.
func (b *LocalBackend) Path(key string) (string, error) {
	clean := path.Clean("/" + strings.ReplaceAll(key, "\\", "/"))
	if clean == "/" {
		return "", ErrNotFound
	}
	return filepath.Join(b.Root, filepath.FromSlash(clean)), nil
}

// Key is the inverse of Path. ok is false for paths outside Root.
func (b *LocalBackend) Key(p string) (key string, ok bool) {
	rel, err := filepath.Rel(b.Root, p)
	if err != nil || rel == "." || strings.HasPrefix(rel, "..") {
		return "", false
	}
	return filepath.ToSlash(rel), true
}

func (b *LocalBackend) Open(ctx context.Context, key string) (Source, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	p, err := b.Path(key)
	if err != nil {
		return nil, err
	}

	f, err := os.Open(p)
	if err != nil {
		return nil, classify(key, err)
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("stat %s: %v: %w", key, err, ErrIO)
	}
	if info.IsDir() {
		f.Close()
		return nil, fmt.Errorf("%s is a directory: %w", key, ErrNotFound)
	}
	return &fileSource{File: f, size: info.Size()}, nil
}

func (b *LocalBackend) Stat(ctx context.Context, key string) (ObjectInfo, error) {
	if err := ctx.Err(); err != nil {
		return ObjectInfo{}, err
	}
	p, err := b.Path(key)
	if err != nil {
		return ObjectInfo{}, err
	}
	info, err := os.Stat(p)
	if err != nil {
		return ObjectInfo{}, classify(key, err)
	}
	if info.IsDir() {
		return ObjectInfo{}, fmt.Errorf("%s is a directory: %w", key, ErrNotFound)
	}
	return ObjectInfo{
		Key:          key,
		Size:         info.Size(),
		LastModified: info.ModTime(),
		ContentType:  ContentTypeByKey(key),
	}, nil
}

func classify(key string, err error) error {
	if errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("open %s: %w", key, ErrNotFound)
	}
	return fmt.Errorf("open %s: %v: %w", key, err, ErrIO)
}

// fileSource relies on (*os.File).ReadAt, which is pread and does not move
// the shared file offset.
type fileSource struct {
	*os.File
	size int64
}

func (s *fileSource) Size() int64 { return s.size }

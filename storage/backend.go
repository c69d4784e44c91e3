package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"tunestream/config"
)

var (
	// ErrNotFound is returned when the object does not exist.
	ErrNotFound = errors.New("storage: object not found")
	// ErrIO is returned when the object exists but cannot be opened or read.
	ErrIO = errors.New("storage: i/o failure")
)

// Source is an open, seekable byte source. ReadAt is positioned, so one
// Source may serve concurrent reads at distinct offsets.
type Source interface {
	io.ReaderAt
	io.Closer
	Size() int64
}

// ObjectInfo describes a stored object without opening it.
type ObjectInfo struct {
	Key          string
	Size         int64
	LastModified time.Time
	ContentType  string
	ETag         string
}

// Backend maps storage keys to byte sources.
type Backend interface {
	Open(ctx context.Context, key string) (Source, error)
	Stat(ctx context.Context, key string) (ObjectInfo, error)
	Name() string
}

// New builds the backend selected by cfg.StorageBackend.
func New(ctx context.Context, cfg *config.Config) (Backend, error) {
	switch cfg.StorageBackend {
	case config.StorageLocal:
		return NewLocalBackend(cfg.MediaDir)
	case config.StorageMinio:
		return NewMinioBackend(ctx, MinioOptions{
			Endpoint:  cfg.MinioEndpoint,
			AccessKey: cfg.MinioAccessKey,
			SecretKey: cfg.MinioSecretKey,
			Bucket:    cfg.MinioBucket,
			Region:    cfg.MinioRegion,
			UseSSL:    cfg.MinioUseSSL,
		})
	default:
		return nil, fmt.Errorf("unknown storage backend %q", cfg.StorageBackend)
	}
}

// Package media resolves catalog ids to open, seekable audio sources.
package media

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"tunestream/cache"
	"tunestream/logger"
	"tunestream/model"
	"tunestream/repository"
	"tunestream/storage"

	"golang.org/x/sync/singleflight"
)

// DefaultMimeType is served when neither the catalog, the key's extension
// nor content sniffing identify the audio format.
const DefaultMimeType = "audio/mpeg"

const sniffLen = 512

// lookupTimeout bounds a shared catalog lookup.
const lookupTimeout = 10 * time.Second

var (
	// ErrNotFound means the id is unknown or its object is missing.
	ErrNotFound = errors.New("media not found")
	// ErrIO means the object exists but could not be opened or read.
	ErrIO = errors.New("media i/o failure")
)

// Catalog looks up track metadata by id.
type Catalog interface {
	GetTrackByID(ctx context.Context, id string) (*model.Track, error)
}

// MetadataCache memoizes catalog lookups. *cache.MetadataCache implements it.
type MetadataCache interface {
	Get(ctx context.Context, id string) *cache.Metadata
	Put(ctx context.Context, id string, m cache.Metadata)
}

// Resolver maps ids to Resources.
type Resolver struct {
	catalog Catalog
	backend storage.Backend
	cache   MetadataCache
	group   singleflight.Group
}

// NewResolver creates a Resolver. metaCache may be nil.
func NewResolver(catalog Catalog, backend storage.Backend, metaCache MetadataCache) *Resolver {
	return &Resolver{catalog: catalog, backend: backend, cache: metaCache}
}

// Resolve opens the resource for id. The caller must Close it.
//
// Errors wrap ErrNotFound or ErrIO, except when ctx ends first: then the
// error wraps ctx.Err().
func (r *Resolver) Resolve(ctx context.Context, id string) (*Resource, error) {
	if strings.TrimSpace(id) == "" {
		return nil, fmt.Errorf("empty id: %w", ErrNotFound)
	}

	meta, err := r.metadata(ctx, id)
	if err != nil {
		return nil, err
	}

	src, err := r.backend.Open(ctx, meta.StorageKey)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, fmt.Errorf("%s: %v: %w", id, err, ErrNotFound)
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, fmt.Errorf("open %s: %w", id, ctxErr)
		}
		return nil, fmt.Errorf("%s: %v: %w", id, err, ErrIO)
	}

	res := &Resource{
		ID:       id,
		Size:     src.Size(),
		MimeType: meta.MimeType,
		Seekable: true,
		src:      src,
	}
	if res.MimeType == "" {
		res.MimeType = detectMimeType(meta.StorageKey, src)
	}
	return res, nil
}

func (r *Resolver) metadata(ctx context.Context, id string) (cache.Metadata, error) {
	if r.cache != nil {
		if m := r.cache.Get(ctx, id); m != nil {
			return *m, nil
		}
	}

	// Concurrent misses for the same id share one catalog query. The query
	// is detached from any single caller so one client hanging up cannot
	// fail the others; each caller still stops waiting on its own ctx.
	ch := r.group.DoChan(id, func() (interface{}, error) {
		lctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), lookupTimeout)
		defer cancel()

		track, err := r.catalog.GetTrackByID(lctx, id)
		if err != nil {
			if errors.Is(err, repository.ErrTrackNotFound) {
				return nil, fmt.Errorf("%s: %w", id, ErrNotFound)
			}
			return nil, fmt.Errorf("catalog lookup %s: %v: %w", id, err, ErrIO)
		}
		if track == nil || track.StorageKey == "" {
			return nil, fmt.Errorf("%s has no stored object: %w", id, ErrNotFound)
		}

		m := cache.Metadata{StorageKey: track.StorageKey, MimeType: track.MimeType}
		if r.cache != nil {
			r.cache.Put(lctx, id, m)
		}
		return m, nil
	})

	select {
	case <-ctx.Done():
		return cache.Metadata{}, fmt.Errorf("resolve %s: %w", id, ctx.Err())
	case res := <-ch:
		if res.Err != nil {
			return cache.Metadata{}, res.Err
		}
		return res.Val.(cache.Metadata), nil
	}
}

// detectMimeType tries the key's extension, then the first bytes of the
// content, and finally falls back to DefaultMimeType.
func detectMimeType(key string, src io.ReaderAt) string {
	if t := storage.ContentTypeByKey(key); isSpecific(t) {
		return t
	}

	buf := make([]byte, sniffLen)
	n, err := src.ReadAt(buf, 0)
	if n == 0 && err != nil && !errors.Is(err, io.EOF) {
		logger.Debug("content sniffing failed", logger.String("key", key), logger.ErrorField(err))
		return DefaultMimeType
	}
	if t := http.DetectContentType(buf[:n]); isSpecific(t) {
		return t
	}
	return DefaultMimeType
}

// isSpecific rejects the catch-all answers of content sniffing.
func isSpecific(contentType string) bool {
	if contentType == "" {
		return false
	}
	base, _, _ := strings.Cut(contentType, ";")
	switch strings.TrimSpace(base) {
	case "application/octet-stream", "text/plain":
		return false
	}
	return true
}

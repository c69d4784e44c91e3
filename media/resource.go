package media

import (
	"errors"
	"fmt"
	"io"

	"tunestream/byterange"
	"tunestream/storage"
)

// Resource is a resolved, open media object. It is request scoped.
type Resource struct {
	ID       string
	Size     int64
	MimeType string
	Seekable bool

	src storage.Source
}

// NewResource wraps an already open source. Used by tests and by callers
// that resolve sources themselves.
func NewResource(id, mimeType string, src storage.Source) *Resource {
	return &Resource{ID: id, Size: src.Size(), MimeType: mimeType, Seekable: true, src: src}
}

// Section returns a reader over the inclusive range rng. Reads are
// positioned, so sections of the same Resource may be read concurrently.
// If the source ends before rng.End the reader fails with ErrIO.
func (r *Resource) Section(rng byterange.Range) io.Reader {
	return &sectionReader{ra: r.src, off: rng.Start, remaining: rng.Length()}
}

// ReadRange returns exactly rng.Length() bytes.
func (r *Resource) ReadRange(rng byterange.Range) ([]byte, error) {
	buf := make([]byte, rng.Length())
	if _, err := io.ReadFull(r.Section(rng), buf); err != nil {
		if errors.Is(err, ErrIO) {
			return nil, err
		}
		return nil, fmt.Errorf("read %s %s: %v: %w", r.ID, rng, err, ErrIO)
	}
	return buf, nil
}

// Close releases the underlying source.
func (r *Resource) Close() error {
	if r.src == nil {
		return nil
	}
	return r.src.Close()
}

type sectionReader struct {
	ra        io.ReaderAt
	off       int64
	remaining int64
}

func (s *sectionReader) Read(p []byte) (int, error) {
	if s.remaining <= 0 {
		return 0, io.EOF
	}
	if int64(len(p)) > s.remaining {
		p = p[:s.remaining]
	}

	n, err := s.ra.ReadAt(p, s.off)
	s.off += int64(n)
	s.remaining -= int64(n)

	switch {
	case err == nil:
		return n, nil
	case errors.Is(err, io.EOF) && s.remaining == 0:
		return n, nil
	case errors.Is(err, io.EOF):
		return n, fmt.Errorf("source ended %d bytes early: %w: %w", s.remaining, io.ErrUnexpectedEOF, ErrIO)
	default:
		return n, fmt.Errorf("read at %d: %v: %w", s.off, err, ErrIO)
	}
}

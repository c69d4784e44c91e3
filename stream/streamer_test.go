package stream

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"reflect"
	"testing"
	"time"

	"tunestream/media"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memSource struct {
	*bytes.Reader
	closed bool
}

func (m *memSource) Size() int64  { return m.Reader.Size() }
func (m *memSource) Close() error { m.closed = true; return nil }

type fakeResolver struct {
	data   map[string][]byte
	err    error
	opened []*memSource
}

func (f *fakeResolver) Resolve(_ context.Context, id string) (*media.Resource, error) {
	if f.err != nil {
		return nil, f.err
	}
	data, ok := f.data[id]
	if !ok {
		return nil, fmt.Errorf("track %q: %w", id, media.ErrNotFound)
	}
	src := &memSource{Reader: bytes.NewReader(data)}
	f.opened = append(f.opened, src)
	return media.NewResource(id, "audio/mpeg", src), nil
}

func sample(n int) []byte {
	data := make([]byte, n)
	for i := range data {
		data[i] = byte(i % 251)
	}
	return data
}

func serve(t *testing.T, s *Streamer, method, id, rangeHeader string) (*Response, []byte) {
	t.Helper()
	h := make(http.Header)
	if rangeHeader != "" {
		h.Set(HeaderRange, rangeHeader)
	}
	resp := s.Serve(context.Background(), Request{Method: method, Header: h, ID: id})
	t.Cleanup(func() { resp.Close() })
	if resp.Body == nil {
		return resp, nil
	}
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp, body
}

func assertCORS(t *testing.T, h http.Header) {
	t.Helper()
	assert.Equal(t, "*", h.Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "GET, HEAD, OPTIONS", h.Get("Access-Control-Allow-Methods"))
	assert.Equal(t, "Range, Content-Range, Content-Length, Content-Type", h.Get("Access-Control-Allow-Headers"))
	assert.Equal(t, "Content-Range, Content-Length, Accept-Ranges", h.Get("Access-Control-Expose-Headers"))
}

func TestServe_FullResource(t *testing.T) {
	data := sample(1000)
	s := NewStreamer(&fakeResolver{data: map[string][]byte{"a": data}}, 0)

	resp, body := serve(t, s, http.MethodGet, "a", "")

	assert.Equal(t, http.StatusOK, resp.Status)
	assert.Equal(t, data, body)
	assert.Equal(t, "1000", resp.Header.Get("Content-Length"))
	assert.Equal(t, "audio/mpeg", resp.Header.Get("Content-Type"))
	assert.Equal(t, "bytes", resp.Header.Get("Accept-Ranges"))
	assert.Equal(t, "public, max-age=31536000", resp.Header.Get("Cache-Control"))
	assert.Empty(t, resp.Header.Get("Content-Range"))
	assertCORS(t, resp.Header)
}

func TestServe_PartialContent(t *testing.T) {
	data := sample(1000)
	s := NewStreamer(&fakeResolver{data: map[string][]byte{"a": data}}, 0)

	tests := []struct {
		name         string
		header       string
		start, end   int
		contentRange string
	}{
		{name: "closed", header: "bytes=0-499", start: 0, end: 499, contentRange: "bytes 0-499/1000"},
		{name: "open ended", header: "bytes=500-", start: 500, end: 999, contentRange: "bytes 500-999/1000"},
		{name: "end clamped", header: "bytes=900-5000", start: 900, end: 999, contentRange: "bytes 900-999/1000"},
		{name: "single byte", header: "bytes=999-999", start: 999, end: 999, contentRange: "bytes 999-999/1000"},
		{name: "suffix", header: "bytes=-100", start: 900, end: 999, contentRange: "bytes 900-999/1000"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, body := serve(t, s, http.MethodGet, "a", tt.header)

			assert.Equal(t, http.StatusPartialContent, resp.Status)
			assert.Equal(t, tt.contentRange, resp.Header.Get("Content-Range"))
			assert.Equal(t, fmt.Sprint(tt.end-tt.start+1), resp.Header.Get("Content-Length"))
			assert.Equal(t, data[tt.start:tt.end+1], body)
			assert.Equal(t, "bytes", resp.Header.Get("Accept-Ranges"))
			assertCORS(t, resp.Header)
		})
	}
}

func TestServe_SplitRangesConcatenate(t *testing.T) {
	data := sample(4096)
	s := NewStreamer(&fakeResolver{data: map[string][]byte{"a": data}}, 0)

	var joined []byte
	for _, h := range []string{"bytes=0-1023", "bytes=1024-3000", "bytes=3001-"} {
		resp, body := serve(t, s, http.MethodGet, "a", h)
		require.Equal(t, http.StatusPartialContent, resp.Status)
		joined = append(joined, body...)
	}
	assert.Equal(t, data, joined)
}

func TestServe_NotSatisfiable(t *testing.T) {
	res := &fakeResolver{data: map[string][]byte{"a": sample(1000), "empty": {}}}
	s := NewStreamer(res, 0)

	resp, body := serve(t, s, http.MethodGet, "a", "bytes=1000-")
	assert.Equal(t, http.StatusRequestedRangeNotSatisfiable, resp.Status)
	assert.Equal(t, "bytes */1000", resp.Header.Get("Content-Range"))
	assert.Empty(t, body)
	assertCORS(t, resp.Header)
	require.Len(t, res.opened, 1)
	assert.True(t, res.opened[0].closed)

	resp, _ = serve(t, s, http.MethodGet, "empty", "bytes=0-")
	assert.Equal(t, http.StatusRequestedRangeNotSatisfiable, resp.Status)
	assert.Equal(t, "bytes */0", resp.Header.Get("Content-Range"))
}

func TestServe_UnusableRangeFallsBackToFull(t *testing.T) {
	data := sample(100)
	s := NewStreamer(&fakeResolver{data: map[string][]byte{"a": data}}, 0)

	for _, h := range []string{"items=0-10", "bytes=abc-def", "bytes=0-10,20-30", "bytes=50-10", "bytes=-0", "bytes"} {
		t.Run(h, func(t *testing.T) {
			resp, body := serve(t, s, http.MethodGet, "a", h)
			assert.Equal(t, http.StatusOK, resp.Status)
			assert.Equal(t, data, body)
		})
	}
}

func TestServe_EmptyResource(t *testing.T) {
	s := NewStreamer(&fakeResolver{data: map[string][]byte{"e": {}}}, 0)

	resp, body := serve(t, s, http.MethodGet, "e", "")
	assert.Equal(t, http.StatusOK, resp.Status)
	assert.Equal(t, "0", resp.Header.Get("Content-Length"))
	assert.Empty(t, body)
}

func TestServe_Head(t *testing.T) {
	s := NewStreamer(&fakeResolver{data: map[string][]byte{"a": sample(1000)}}, 0)

	resp, body := serve(t, s, http.MethodHead, "a", "bytes=10-19")
	assert.Equal(t, http.StatusPartialContent, resp.Status)
	assert.Equal(t, "10", resp.Header.Get("Content-Length"))
	assert.Equal(t, "bytes 10-19/1000", resp.Header.Get("Content-Range"))
	assert.Nil(t, resp.Body)
	assert.Empty(t, body)
}

func TestServe_HeadMatchesGet(t *testing.T) {
	s := NewStreamer(&fakeResolver{data: map[string][]byte{"a": sample(1000)}}, 0)

	tests := []struct {
		name   string
		id     string
		header string
	}{
		{name: "full", id: "a"},
		{name: "ranged", id: "a", header: "bytes=100-199"},
		{name: "suffix", id: "a", header: "bytes=-10"},
		{name: "not satisfiable", id: "a", header: "bytes=5000-"},
		{name: "not found", id: "missing"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			get, body := serve(t, s, http.MethodGet, tt.id, tt.header)
			head, headBody := serve(t, s, http.MethodHead, tt.id, tt.header)

			assert.Equal(t, get.Status, head.Status)
			assert.True(t, reflect.DeepEqual(get.Header, head.Header), "GET %v\nHEAD %v", get.Header, head.Header)
			assert.Equal(t, get.Header.Get("Content-Length"), fmt.Sprint(len(body)))
			assert.Empty(t, headBody)
		})
	}
}

func TestServe_Options(t *testing.T) {
	res := &fakeResolver{}
	s := NewStreamer(res, 0)

	resp, body := serve(t, s, http.MethodOptions, "anything", "")
	assert.Equal(t, http.StatusOK, resp.Status)
	assert.Equal(t, "86400", resp.Header.Get("Access-Control-Max-Age"))
	assert.Empty(t, body)
	assertCORS(t, resp.Header)
	assert.Empty(t, res.opened, "preflight must not resolve media")
}

func TestServe_Errors(t *testing.T) {
	tests := []struct {
		name     string
		resolver *fakeResolver
		status   int
		msg      string
	}{
		{name: "not found", resolver: &fakeResolver{}, status: http.StatusNotFound, msg: "Media not found\n"},
		{name: "io failure", resolver: &fakeResolver{err: fmt.Errorf("disk: %w", media.ErrIO)}, status: http.StatusInternalServerError, msg: "Failed to open media\n"},
		{name: "unknown failure", resolver: &fakeResolver{err: errors.New("boom")}, status: http.StatusInternalServerError, msg: "Failed to open media\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := NewStreamer(tt.resolver, 0)
			resp, body := serve(t, s, http.MethodGet, "missing", "bytes=0-10")
			assert.Equal(t, tt.status, resp.Status)
			assert.Equal(t, tt.msg, string(body))
			assert.Empty(t, resp.Header.Get("Content-Range"))
			assertCORS(t, resp.Header)
		})
	}
}

func TestServe_MethodNotAllowed(t *testing.T) {
	s := NewStreamer(&fakeResolver{}, 0)
	resp, _ := serve(t, s, http.MethodPost, "a", "")
	assert.Equal(t, http.StatusMethodNotAllowed, resp.Status)
	assert.Equal(t, "GET, HEAD, OPTIONS", resp.Header.Get("Allow"))
}

func TestServe_BodyStopsWhenContextDone(t *testing.T) {
	s := NewStreamer(&fakeResolver{data: map[string][]byte{"a": sample(1 << 16)}}, 0)

	ctx, cancel := context.WithCancel(context.Background())
	resp := s.Serve(ctx, Request{Method: http.MethodGet, ID: "a"})
	defer resp.Close()

	buf := make([]byte, 1024)
	_, err := resp.Body.Read(buf)
	require.NoError(t, err)

	cancel()
	_, err = resp.Body.Read(buf)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestServe_RateLimit(t *testing.T) {
	data := sample(3000)
	s := NewStreamer(&fakeResolver{data: map[string][]byte{"a": data}}, 1000)

	start := time.Now()
	resp, body := serve(t, s, http.MethodGet, "a", "")
	elapsed := time.Since(start)

	assert.Equal(t, http.StatusOK, resp.Status)
	assert.Equal(t, data, body)
	// First second is covered by the burst.
	assert.GreaterOrEqual(t, elapsed, 1500*time.Millisecond)
}

package storage

import (
	"bytes"
	"context"
	"io"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestBackend(t *testing.T) *LocalBackend {
	t.Helper()
	b, err := NewLocalBackend(t.TempDir())
	require.NoError(t, err)
	return b
}

func writeObject(t *testing.T, b *LocalBackend, key string, data []byte) {
	t.Helper()
	p, err := b.Path(key)
	require.NoError(t, err)
	require.NoError(t, os.MkdirAll(filepath.Dir(p), 0755))
	require.NoError(t, os.WriteFile(p, data, 0644))
}

func pattern(n int) []byte {
	data := make([]byte, n)
	for i := range data {
		data[i] = byte(i % 251)
	}
	return data
}

func TestLocalBackend_OpenAndReadAt(t *testing.T) {
	b := newTestBackend(t)
	data := pattern(1000)
	writeObject(t, b, "artist/song.mp3", data)

	src, err := b.Open(context.Background(), "artist/song.mp3")
	require.NoError(t, err)
	defer src.Close()

	assert.Equal(t, int64(1000), src.Size())

	buf := make([]byte, 200)
	n, err := src.ReadAt(buf, 500)
	require.NoError(t, err)
	assert.Equal(t, 200, n)
	assert.Equal(t, data[500:700], buf)
}

func TestLocalBackend_ConcurrentReadsDoNotInterfere(t *testing.T) {
	b := newTestBackend(t)
	data := pattern(64 * 1024)
	writeObject(t, b, "song.flac", data)

	src, err := b.Open(context.Background(), "song.flac")
	require.NoError(t, err)
	defer src.Close()

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func(off int64) {
			defer wg.Done()
			got, err := io.ReadAll(io.NewSectionReader(src, off, 4096))
			assert.NoError(t, err)
			assert.True(t, bytes.Equal(data[off:off+4096], got), "offset %d", off)
		}(int64(i) * 4000)
	}
	wg.Wait()
}

func TestLocalBackend_NotFound(t *testing.T) {
	b := newTestBackend(t)
	require.NoError(t, os.MkdirAll(filepath.Join(b.Root, "dir"), 0755))

	for _, key := range []string{"missing.mp3", "dir", "", "/"} {
		_, err := b.Open(context.Background(), key)
		assert.ErrorIs(t, err, ErrNotFound, "key %q", key)

		_, err = b.Stat(context.Background(), key)
		assert.ErrorIs(t, err, ErrNotFound, "key %q", key)
	}
}

func TestLocalBackend_PathStaysUnderRoot(t *testing.T) {
	b := newTestBackend(t)

	for _, key := range []string{"../etc/passwd", "a/../../etc/passwd", "..\\..\\secret"} {
		p, err := b.Path(key)
		require.NoError(t, err)
		rel, err := filepath.Rel(b.Root, p)
		require.NoError(t, err)
		assert.NotContains(t, rel, "..", "key %q escaped to %s", key, p)
	}
}

func TestLocalBackend_KeyRoundTrip(t *testing.T) {
	b := newTestBackend(t)

	p, err := b.Path("a/b/c.mp3")
	require.NoError(t, err)
	key, ok := b.Key(p)
	require.True(t, ok)
	assert.Equal(t, "a/b/c.mp3", key)

	_, ok = b.Key(filepath.Dir(b.Root))
	assert.False(t, ok)
}

func TestLocalBackend_Stat(t *testing.T) {
	b := newTestBackend(t)
	writeObject(t, b, "track.mp3", pattern(42))

	info, err := b.Stat(context.Background(), "track.mp3")
	require.NoError(t, err)
	assert.Equal(t, int64(42), info.Size)
	assert.Equal(t, "track.mp3", info.Key)
	assert.Equal(t, "audio/mpeg", info.ContentType)
}

func TestLocalBackend_CancelledContext(t *testing.T) {
	b := newTestBackend(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := b.Open(ctx, "anything.mp3")
	assert.ErrorIs(t, err, context.Canceled)
}

func TestFormatSize(t *testing.T) {
	assert.Equal(t, "512 B", FormatSize(512))
	assert.Equal(t, "1.5 KB", FormatSize(1536))
	assert.Equal(t, "3.0 MB", FormatSize(3*1024*1024))
	assert.Equal(t, "mp3", extension("a/B.MP3"))
	assert.Equal(t, "unknown", extension("README"))
}

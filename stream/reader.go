package stream

import (
	"context"
	"io"

	"golang.org/x/time/rate"
)

// contextReader stops reading once ctx is done, so a client that hangs up
// or a request that hits its deadline does not keep the source busy.
type contextReader struct {
	ctx context.Context
	r   io.Reader
}

func (c *contextReader) Read(p []byte) (int, error) {
	if err := c.ctx.Err(); err != nil {
		return 0, err
	}
	return c.r.Read(p)
}

// throttledReader 限速 Reader
type throttledReader struct {
	ctx     context.Context
	r       io.Reader
	limiter *rate.Limiter
	burst   int
}

func newThrottledReader(ctx context.Context, r io.Reader, bytesPerSecond int) *throttledReader {
	return &throttledReader{
		ctx:     ctx,
		r:       r,
		limiter: rate.NewLimiter(rate.Limit(bytesPerSecond), bytesPerSecond),
		burst:   bytesPerSecond,
	}
}

func (t *throttledReader) Read(p []byte) (int, error) {
	if len(p) > t.burst {
		p = p[:t.burst]
	}
	n, err := t.r.Read(p)
	if n > 0 {
		if werr := t.limiter.WaitN(t.ctx, n); werr != nil {
			return n, werr
		}
	}
	return n, err
}

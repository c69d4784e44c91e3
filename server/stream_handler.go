package server

import (
	"context"
	"errors"
	"io"
	"net/http"
	"sync"
	"time"

	"tunestream/logger"
	"tunestream/stream"

	"github.com/gorilla/mux"
	"go.uber.org/zap"
)

// StreamHandler 处理 /stream/{id} 的 Range 请求
type StreamHandler struct {
	streamer *stream.Streamer
	timeout  time.Duration
	bufPool  sync.Pool
}

// NewStreamHandler 创建 StreamHandler 实例. timeout bounds one transfer,
// chunkSize is the copy buffer size.
func NewStreamHandler(streamer *stream.Streamer, timeout time.Duration, chunkSize int) *StreamHandler {
	h := &StreamHandler{streamer: streamer, timeout: timeout}
	h.bufPool.New = func() any {
		buf := make([]byte, chunkSize)
		return &buf
	}
	return h
}

// ServeHTTP 实现 http.Handler 接口
func (h *StreamHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, h.timeout)
		defer cancel()
	}

	id := mux.Vars(r)["id"]
	resp := h.streamer.Serve(ctx, stream.Request{Method: r.Method, Header: r.Header, ID: id})
	defer resp.Close()

	header := w.Header()
	for k, v := range resp.Header {
		header[k] = v
	}
	w.WriteHeader(resp.Status)

	if resp.Body == nil {
		return
	}

	bufp := h.bufPool.Get().(*[]byte)
	defer h.bufPool.Put(bufp)

	start := time.Now()
	n, err := io.CopyBuffer(writerOnly{w}, resp.Body, *bufp)
	if err != nil {
		// Headers are already out. Returning short of Content-Length makes
		// net/http drop the connection, so the client sees a truncated
		// transfer instead of a complete one.
		fields := []zap.Field{
			logger.String("id", id),
			logger.String("range", resp.Range.String()),
			logger.Int64("written", n),
			logger.Duration("elapsed", time.Since(start)),
			logger.ErrorField(err),
		}
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			logger.Info("stream aborted", fields...)
			return
		}
		logger.Error("stream copy failed", fields...)
	}
}

// writerOnly hides ReadFrom so CopyBuffer uses the pooled buffer.
type writerOnly struct {
	io.Writer
}

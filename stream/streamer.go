// Package stream assembles HTTP range responses for media resources.
//
// Serve is a pure boundary: it takes the request method, headers and media
// id and returns status, headers and a body stream. It never touches an
// http.ResponseWriter, so it can be driven from any transport and tested
// without a server.
package stream

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"

	"tunestream/byterange"
	"tunestream/logger"
	"tunestream/media"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Resolver opens media by id. *media.Resolver implements it.
type Resolver interface {
	Resolve(ctx context.Context, id string) (*media.Resource, error)
}

// Request is the transport-independent input of Serve.
type Request struct {
	Method string
	Header http.Header
	ID     string
}

// Response is the outcome of Serve. Body is nil when the response has no
// payload. The caller must Close the response once the body is consumed.
type Response struct {
	Status int
	Header http.Header
	Body   io.Reader

	// Range is the byte window served by a 200 or 206 response.
	Range byterange.Range

	resource *media.Resource
}

// Close releases the media source, if any.
func (r *Response) Close() error {
	if r.resource == nil {
		return nil
	}
	return r.resource.Close()
}

// Streamer turns requests into responses.
type Streamer struct {
	resolver  Resolver
	rateLimit int
	tracer    trace.Tracer
}

// NewStreamer creates a Streamer. rateLimit caps each GET body in bytes per
// second; 0 disables throttling.
func NewStreamer(resolver Resolver, rateLimit int) *Streamer {
	return &Streamer{
		resolver:  resolver,
		rateLimit: rateLimit,
		tracer:    otel.Tracer("tunestream/stream"),
	}
}

// Serve computes the response for req. The returned body, if any, reads
// from the media source lazily and stops when ctx is done.
//
// Methods other than GET, HEAD and OPTIONS get 405 with an Allow header.
// Over HTTP the router rejects those methods before Serve is reached, so
// this only applies when Serve is driven directly.
func (s *Streamer) Serve(ctx context.Context, req Request) *Response {
	ctx, span := s.tracer.Start(ctx, "stream.Serve", trace.WithAttributes(
		attribute.String("media.id", req.ID),
		attribute.String("http.request.method", req.Method),
	))
	defer span.End()

	resp := s.serve(ctx, req)

	span.SetAttributes(attribute.Int("http.response.status_code", resp.Status))
	if resp.Status == http.StatusOK || resp.Status == http.StatusPartialContent {
		span.SetAttributes(
			attribute.Int64("media.range.start", resp.Range.Start),
			attribute.Int64("media.range.end", resp.Range.End),
		)
	}
	if resp.Status >= http.StatusInternalServerError {
		span.SetStatus(codes.Error, http.StatusText(resp.Status))
	}
	return resp
}

func (s *Streamer) serve(ctx context.Context, req Request) *Response {
	method := strings.ToUpper(req.Method)
	switch method {
	case http.MethodOptions:
		return preflight()
	case http.MethodGet, http.MethodHead:
	default:
		resp := errorResponse(http.StatusMethodNotAllowed, http.StatusText(http.StatusMethodNotAllowed), false)
		resp.Header.Set("Allow", AllowMethods)
		return resp
	}
	head := method == http.MethodHead

	res, err := s.resolver.Resolve(ctx, req.ID)
	if err != nil {
		if errors.Is(err, media.ErrNotFound) {
			logger.Info("media not found", logger.String("id", req.ID), logger.ErrorField(err))
			return errorResponse(http.StatusNotFound, MsgNotFound, head)
		}
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			logger.Info("request ended before media resolved", logger.String("id", req.ID), logger.ErrorField(err))
		} else {
			logger.Error("failed to resolve media", logger.String("id", req.ID), logger.ErrorField(err))
		}
		return errorResponse(http.StatusInternalServerError, MsgIOError, head)
	}

	rangeHeader := ""
	if req.Header != nil {
		rangeHeader = req.Header.Get(HeaderRange)
	}

	status := http.StatusPartialContent
	rng, err := byterange.Parse(rangeHeader, res.Size)
	switch {
	case errors.Is(err, byterange.ErrNoRange):
		if rangeHeader != "" {
			logger.Debug("ignoring unusable range header", logger.String("id", req.ID), logger.String("range", rangeHeader))
		}
		status = http.StatusOK
		rng = byterange.Full(res.Size)
	case errors.Is(err, byterange.ErrNotSatisfiable):
		res.Close()
		return notSatisfiable(res.Size)
	}

	h := make(http.Header)
	setCORS(h)
	h.Set(HeaderContentType, res.MimeType)
	h.Set(HeaderContentLength, strconv.FormatInt(rng.Length(), 10))
	h.Set(HeaderAcceptRanges, AcceptRangesBytes)
	h.Set(HeaderCacheControl, CacheControlMedia)
	if status == http.StatusPartialContent {
		h.Set(HeaderContentRange, rng.ContentRange(res.Size))
	}

	resp := &Response{Status: status, Header: h, Range: rng, resource: res}
	if !head && rng.Length() > 0 {
		var body io.Reader = res.Section(rng)
		if s.rateLimit > 0 {
			body = newThrottledReader(ctx, body, s.rateLimit)
		}
		resp.Body = &contextReader{ctx: ctx, r: body}
	}
	return resp
}

func preflight() *Response {
	h := make(http.Header)
	setCORS(h)
	h.Set(HeaderMaxAge, MaxAge)
	h.Set(HeaderContentLength, "0")
	return &Response{Status: http.StatusOK, Header: h}
}

func notSatisfiable(size int64) *Response {
	h := make(http.Header)
	setCORS(h)
	h.Set(HeaderContentRange, byterange.UnsatisfiedContentRange(size))
	h.Set(HeaderAcceptRanges, AcceptRangesBytes)
	h.Set(HeaderContentLength, "0")
	return &Response{Status: http.StatusRequestedRangeNotSatisfiable, Header: h}
}

// errorResponse mirrors http.Error: plain text message plus newline.
func errorResponse(status int, msg string, head bool) *Response {
	body := msg + "\n"
	h := make(http.Header)
	setCORS(h)
	h.Set(HeaderContentType, textPlain)
	h.Set("X-Content-Type-Options", "nosniff")
	h.Set(HeaderContentLength, strconv.Itoa(len(body)))
	resp := &Response{Status: status, Header: h}
	if !head {
		resp.Body = strings.NewReader(body)
	}
	return resp
}

package stream

import "net/http"

const (
	HeaderRange         = "Range"
	HeaderContentRange  = "Content-Range"
	HeaderContentLength = "Content-Length"
	HeaderContentType   = "Content-Type"
	HeaderAcceptRanges  = "Accept-Ranges"
	HeaderCacheControl  = "Cache-Control"

	HeaderAllowOrigin   = "Access-Control-Allow-Origin"
	HeaderAllowMethods  = "Access-Control-Allow-Methods"
	HeaderAllowHeaders  = "Access-Control-Allow-Headers"
	HeaderExposeHeaders = "Access-Control-Expose-Headers"
	HeaderMaxAge        = "Access-Control-Max-Age"
)

// Header values that browsers' media elements depend on. Do not reformat.
const (
	AcceptRangesBytes = "bytes"
	CacheControlMedia = "public, max-age=31536000" // 缓存一年

	AllowOrigin   = "*"
	AllowMethods  = "GET, HEAD, OPTIONS"
	AllowHeaders  = "Range, Content-Range, Content-Length, Content-Type"
	ExposeHeaders = "Content-Range, Content-Length, Accept-Ranges"
	MaxAge        = "86400" // 24 hours

	textPlain = "text/plain; charset=utf-8"
)

// Messages for error responses.
const (
	MsgNotFound       = "Media not found"
	MsgIOError        = "Failed to open media"
	MsgNotSatisfiable = "Requested range not satisfiable"
)

func setCORS(h http.Header) {
	h.Set(HeaderAllowOrigin, AllowOrigin)
	h.Set(HeaderAllowMethods, AllowMethods)
	h.Set(HeaderAllowHeaders, AllowHeaders)
	h.Set(HeaderExposeHeaders, ExposeHeaders)
}

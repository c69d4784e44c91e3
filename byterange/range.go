// Package byterange parses HTTP Range headers (RFC 7233) for single
// byte ranges against a resource of known size.
package byterange

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
)

const unit = "bytes"

var (
	// ErrNoRange means the header was absent or could not be used; the
	// caller serves the full resource.
	ErrNoRange = errors.New("byterange: no usable range")

	// ErrNotSatisfiable means the first byte position lies at or past the
	// end of the resource.
	ErrNotSatisfiable = errors.New("byterange: range not satisfiable")
)

// Range is an end-inclusive byte range.
type Range struct {
	Start int64
	End   int64
}

// Full returns the range covering a whole resource. For an empty resource
// the range is empty (End is -1).
func Full(size int64) Range {
	return Range{Start: 0, End: size - 1}
}

// Length is the number of bytes in the range.
func (r Range) Length() int64 {
	if r.End < r.Start {
		return 0
	}
	return r.End - r.Start + 1
}

// ContentRange formats the Content-Range value for a 206 response.
func (r Range) ContentRange(size int64) string {
	return fmt.Sprintf("bytes %d-%d/%d", r.Start, r.End, size)
}

func (r Range) String() string {
	return fmt.Sprintf("%s=%d-%d", unit, r.Start, r.End)
}

// UnsatisfiedContentRange formats the Content-Range value for a 416 response.
func UnsatisfiedContentRange(size int64) string {
	return fmt.Sprintf("bytes */%d", size)
}

// Parse resolves a Range header value against a resource of the given size.
//
// Accepted forms are "bytes=start-end", "bytes=start-" and "bytes=-suffix".
// The end position is clamped to size-1. Anything else, including multiple
// ranges, yields ErrNoRange. A start at or beyond size yields
// ErrNotSatisfiable.
func Parse(header string, size int64) (Range, error) {
	header = strings.TrimSpace(header)
	if header == "" {
		return Range{}, ErrNoRange
	}

	name, set, ok := strings.Cut(header, "=")
	if !ok || !strings.EqualFold(strings.TrimSpace(name), unit) {
		return Range{}, ErrNoRange
	}
	set = strings.TrimSpace(set)
	if strings.Contains(set, ",") {
		return Range{}, ErrNoRange
	}

	first, last, ok := strings.Cut(set, "-")
	if !ok {
		return Range{}, ErrNoRange
	}
	first = strings.TrimSpace(first)
	last = strings.TrimSpace(last)

	if first == "" {
		return parseSuffix(last, size)
	}

	start, err := parseOffset(first)
	if err != nil {
		return Range{}, ErrNoRange
	}

	end := size - 1
	if last != "" {
		e, err := parseOffset(last)
		if err != nil || e < start {
			return Range{}, ErrNoRange
		}
		if e < end {
			end = e
		}
	}

	if start >= size {
		return Range{}, ErrNotSatisfiable
	}
	return Range{Start: start, End: end}, nil
}

func parseSuffix(last string, size int64) (Range, error) {
	n, err := parseOffset(last)
	if err != nil || n == 0 {
		return Range{}, ErrNoRange
	}
	if size == 0 {
		return Range{}, ErrNotSatisfiable
	}
	start := size - n
	if start < 0 {
		start = 0
	}
	return Range{Start: start, End: size - 1}, nil
}

// parseOffset accepts only unsigned decimal digits. Positions too large
// for int64 saturate to math.MaxInt64: such a start is past any resource
// and such an end is clamped like any other.
func parseOffset(s string) (int64, error) {
	if s == "" || s[0] == '+' || s[0] == '-' {
		return 0, strconv.ErrSyntax
	}
	n, err := strconv.ParseInt(s, 10, 64)
	if errors.Is(err, strconv.ErrRange) {
		return math.MaxInt64, nil
	}
	return n, err
}

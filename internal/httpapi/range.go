package httpapi

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

var (
	errInvalidRange  = errors.New("invalid range format")
	errUnsatisfiable = errors.New("range not satisfiable")
)

type byteRange struct {
	start int64
	end   int64
}

func (r byteRange) length() int64 { return r.end - r.start + 1 }

func (r byteRange) contentRange(total int64) string {
	return fmt.Sprintf("bytes %d-%d/%d", r.start, r.end, total)
}

// parseRange handles a single bytes= range spec against a file of the
// given size. A nil result with nil error means no Range header was sent.
// Multi-range requests are collapsed to their first range.
func parseRange(header string, size int64) (*byteRange, error) {
	if header == "" {
		return nil, nil
	}
	spec, ok := strings.CutPrefix(header, "bytes=")
	if !ok {
		return nil, errInvalidRange
	}
	if idx := strings.Index(spec, ","); idx != -1 {
		spec = strings.TrimSpace(spec[:idx])
	}

	first, last, ok := strings.Cut(spec, "-")
	if !ok {
		return nil, errInvalidRange
	}

	var r byteRange
	if first == "" {
		// suffix form: last N bytes
		n, err := strconv.ParseInt(last, 10, 64)
		if err != nil || n <= 0 {
			return nil, errInvalidRange
		}
		r.start = size - n
		if r.start < 0 {
			r.start = 0
		}
		r.end = size - 1
	} else {
		start, err := strconv.ParseInt(first, 10, 64)
		if err != nil || start < 0 {
			return nil, errInvalidRange
		}
		r.start = start
		if last == "" {
			r.end = size - 1
		} else {
			end, err := strconv.ParseInt(last, 10, 64)
			if err != nil {
				return nil, errInvalidRange
			}
			r.end = end
		}
	}

	if r.start > r.end || r.start >= size {
		return nil, errUnsatisfiable
	}
	if r.end >= size {
		r.end = size - 1
	}
	return &r, nil
}

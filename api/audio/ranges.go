package audio

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
)

// ErrUnsatisfiable is a range starting at or beyond the end of the content.
var ErrUnsatisfiable = errors.New("range not satisfiable")

var rangeRegex = regexp.MustCompile(`^bytes=(\d*)-(\d*)$`)

// ByteRange is an inclusive byte range. End < 0 means through the last byte.
// Start < 0 is the suffix form: the last Suffix bytes.
type ByteRange struct {
	Start  int
	End    int
	Suffix int
}

// ContentRange describes the bytes actually served.
type ContentRange struct {
	Start int
	End   int
	Total int
}

func (c ContentRange) Length() int {
	if c.Total == 0 {
		return 0
	}
	return c.End - c.Start + 1
}

// Header formats the Content-Range header value.
func (c ContentRange) Header() string {
	return fmt.Sprintf("bytes %d-%d/%d", c.Start, c.End, c.Total)
}

// ParseRange reads a single-range Range header. Absent, multi-range or malformed headers
// yield nil, which callers treat as "send everything".
func ParseRange(header string) *ByteRange {
	m := rangeRegex.FindStringSubmatch(header)
	if m == nil || (m[1] == "" && m[2] == "") {
		return nil
	}

	if m[1] == "" {
		n, err := strconv.Atoi(m[2])
		if err != nil {
			return nil
		}
		return &ByteRange{Start: -1, End: -1, Suffix: n}
	}

	start, err := strconv.Atoi(m[1])
	if err != nil {
		return nil
	}
	end := -1
	if m[2] != "" {
		if end, err = strconv.Atoi(m[2]); err != nil || end < start {
			return nil
		}
	}
	return &ByteRange{Start: start, End: end}
}

// Slice returns the part of data selected by r. A nil r selects everything; an end past
// the content is clamped to the last byte.
func Slice(data []byte, r *ByteRange) ([]byte, ContentRange, error) {
	total := len(data)
	if r == nil {
		return data, ContentRange{Start: 0, End: max(total-1, 0), Total: total}, nil
	}

	start, end := r.Start, r.End
	if start < 0 {
		if r.Suffix <= 0 {
			return nil, ContentRange{Total: total}, ErrUnsatisfiable
		}
		start, end = max(total-r.Suffix, 0), total-1
	}
	if start >= total {
		return nil, ContentRange{Total: total}, ErrUnsatisfiable
	}
	if end < 0 || end >= total {
		end = total - 1
	}
	return data[start : end+1], ContentRange{Start: start, End: end, Total: total}, nil
}

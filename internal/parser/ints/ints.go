// Package ints provides strict parsing of the integer records stored one per
// line in numsort input files.
package ints

import (
	"errors"
	"fmt"
	"math"
	"strconv"
)

var (
	// ErrMalformed is returned for a line that is not a base-10 run of ASCII
	// digits (signs, spaces, prefixes and underscores are all rejected).
	ErrMalformed = errors.New("malformed integer")

	// ErrOverflow is returned for a line whose value exceeds math.MaxUint64.
	ErrOverflow = errors.New("integer out of range")
)

// ParseError reports the line text that failed to parse.
type ParseError struct {
	Line string
	Err  error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse %q: %v", e.Line, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

// maxLineDisplay caps how much of a bad line is copied into a ParseError.
const maxLineDisplay = 64

// ParseUint parses b as a non-negative base-10 integer.
//
// It is the hot path of the reader, so it works on the mapped bytes directly
// without converting to a string first. Leading zeros are accepted ("007"
// is 7); an empty slice is malformed.
func ParseUint(b []byte) (uint64, error) {
	if len(b) == 0 {
		return 0, &ParseError{Err: ErrMalformed}
	}
	var n uint64
	for _, c := range b {
		d := c - '0'
		if d > 9 {
			return 0, &ParseError{Line: display(b), Err: ErrMalformed}
		}
		if n > (math.MaxUint64-uint64(d))/10 {
			// Keep scanning so a trailing non-digit still reports as malformed.
			for _, r := range b {
				if r-'0' > 9 {
					return 0, &ParseError{Line: display(b), Err: ErrMalformed}
				}
			}
			return 0, &ParseError{Line: display(b), Err: ErrOverflow}
		}
		n = n*10 + uint64(d)
	}
	return n, nil
}

// ParseString is ParseUint for already-decoded text.
func ParseString(s string) (uint64, error) {
	return ParseUint([]byte(s))
}

// AppendUint appends the canonical decimal form of v to dst.
func AppendUint(dst []byte, v uint64) []byte {
	return strconv.AppendUint(dst, v, 10)
}

func display(b []byte) string {
	if len(b) > maxLineDisplay {
		return string(b[:maxLineDisplay]) + "..."
	}
	return string(b)
}

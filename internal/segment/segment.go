// Package segment splits a source file into line-aligned byte ranges, one per
// reader task.
package segment

import (
	"bytes"
	"errors"
	"fmt"
	"io"
)

// ErrInvalidWorkers is returned for a worker count below one.
var ErrInvalidWorkers = errors.New("worker count must be at least 1")

// scanBufSize bounds each ReadAt issued while searching for a line break.
const scanBufSize = 32 << 10 // 32 KiB

// terminators are the bytes that end a record.
const terminators = "\n\r"

// ByteRange is an inclusive [Start, End] span of the source file.
type ByteRange struct {
	Start int64
	End   int64
}

// Len returns the number of bytes covered.
func (r ByteRange) Len() int64 { return r.End - r.Start + 1 }

func (r ByteRange) String() string { return fmt.Sprintf("[%d,%d]", r.Start, r.End) }

// IsTerminator reports whether b ends a record.
func IsTerminator(b byte) bool { return b == '\n' || b == '\r' }

// Plan partitions [0, size-1] into at most workers contiguous ranges of
// roughly size/workers bytes whose ends fall on a line terminator or on the
// last byte of the file.
//
// Each proposed end is pushed forward to the next terminator with a buffered
// forward scan, so a long run without line breaks costs one ReadAt per
// scanBufSize bytes instead of one seek per byte. When no terminator is
// found the range simply runs to EOF. An empty file yields no ranges.
func Plan(r io.ReaderAt, size int64, workers int) ([]ByteRange, error) {
	if workers < 1 {
		return nil, ErrInvalidWorkers
	}
	if size <= 0 {
		return nil, nil
	}

	batch := size / int64(workers)
	if batch < 1 {
		batch = 1
	}
	last := size - 1

	ranges := make([]ByteRange, 0, workers)
	buf := make([]byte, scanBufSize)
	for begin := int64(0); begin <= last; {
		end := begin + batch - 1
		// The last worker absorbs whatever the earlier rounding left over.
		if end >= last || len(ranges) == workers-1 {
			ranges = append(ranges, ByteRange{Start: begin, End: last})
			break
		}
		end, err := nextTerminator(r, buf, end, last)
		if err != nil {
			return nil, err
		}
		ranges = append(ranges, ByteRange{Start: begin, End: end})
		begin = end + 1
	}
	return ranges, nil
}

// nextTerminator returns the offset of the first terminator at or after pos,
// or last when there is none.
func nextTerminator(r io.ReaderAt, buf []byte, pos, last int64) (int64, error) {
	for pos <= last {
		want := int64(len(buf))
		if rem := last - pos + 1; rem < want {
			want = rem
		}
		n, err := r.ReadAt(buf[:want], pos)
		if i := bytes.IndexAny(buf[:n], terminators); i >= 0 {
			return pos + int64(i), nil
		}
		pos += int64(n)
		if err != nil {
			if err == io.EOF {
				break
			}
			return 0, fmt.Errorf("scan for line break at %d: %w", pos, err)
		}
		if n == 0 {
			return 0, fmt.Errorf("scan for line break at %d: %w", pos, io.ErrNoProgress)
		}
	}
	return last, nil
}

// Validate checks that ranges partition [0, size-1] and that every
// boundary except the last sits on a terminator. It reads one byte per range.
func Validate(r io.ReaderAt, size int64, ranges []ByteRange) error {
	if size == 0 {
		if len(ranges) != 0 {
			return fmt.Errorf("empty file has %d ranges", len(ranges))
		}
		return nil
	}
	if len(ranges) == 0 {
		return fmt.Errorf("no ranges for %d bytes", size)
	}
	var next int64
	b := make([]byte, 1)
	for i, rg := range ranges {
		if rg.Start != next {
			return fmt.Errorf("range %d %v: starts at %d, want %d", i, rg, rg.Start, next)
		}
		if rg.End < rg.Start {
			return fmt.Errorf("range %d %v: end before start", i, rg)
		}
		if i < len(ranges)-1 {
			if _, err := r.ReadAt(b, rg.End); err != nil {
				return fmt.Errorf("range %d %v: read end byte: %w", i, rg, err)
			}
			if !IsTerminator(b[0]) {
				return fmt.Errorf("range %d %v: ends mid-line", i, rg)
			}
		}
		next = rg.End + 1
	}
	if next != size {
		return fmt.Errorf("ranges end at %d, want %d", next-1, size-1)
	}
	return nil
}

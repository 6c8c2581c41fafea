// Package reader maps each planned byte range of the source file and parses
// its integer lines, one pool task per range.
package reader

import (
	"context"
	"fmt"
	"slices"

	"numsort/internal/charset"
	"numsort/internal/datasource/file"
	"numsort/internal/parser/ints"
	"numsort/internal/segment"
	"numsort/internal/workpool"
)

// ctxCheckEvery is how many bytes a task scans between context checks.
const ctxCheckEvery = 1 << 20

// Source is the part of file.Source the reader needs.
type Source interface {
	Map(off, n int64) (*file.Region, error)
}

// Options configures Read.
type Options struct {
	// Codec decodes non-ASCII lines for error reporting; nil means UTF-8.
	Codec *charset.Codec

	// Logf, when set, receives one line per finished segment.
	Logf func(format string, args ...any)
}

// Result is the outcome of one segment task. Values are sorted ascending.
type Result struct {
	Index  int
	Range  segment.ByteRange
	Values []uint64
}

// SegmentError locates a failure within the source file.
type SegmentError struct {
	Index  int
	Range  segment.ByteRange
	Offset int64 // absolute offset of the failing line (or of the range)
	Err    error
}

func (e *SegmentError) Error() string {
	return fmt.Sprintf("segment %d %v: offset %d: %v", e.Index, e.Range, e.Offset, e.Err)
}

func (e *SegmentError) Unwrap() error { return e.Err }

// Read runs one task per range on pool and waits for all of them. Either
// every segment succeeds and one Result per range is returned in range
// order, or the first failure is returned and no results are.
func Read(ctx context.Context, pool *workpool.Pool, src Source, ranges []segment.ByteRange, opts Options) ([]Result, error) {
	if opts.Codec == nil {
		opts.Codec = charset.MustLookup(charset.DefaultName)
	}
	results := make([]Result, len(ranges))
	err := pool.RunAll(ctx, len(ranges), func(ctx context.Context, i int) error {
		values, err := readSegment(ctx, src, ranges[i], opts.Codec)
		if err != nil {
			if se, ok := err.(*SegmentError); ok {
				se.Index = i
				return se
			}
			return &SegmentError{Index: i, Range: ranges[i], Offset: ranges[i].Start, Err: err}
		}
		results[i] = Result{Index: i, Range: ranges[i], Values: values}
		if opts.Logf != nil {
			opts.Logf("reader: segment=%d range=%v values=%d", i, ranges[i], len(values))
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return results, nil
}

func readSegment(ctx context.Context, src Source, rg segment.ByteRange, codec *charset.Codec) ([]uint64, error) {
	region, err := src.Map(rg.Start, rg.Len())
	if err != nil {
		return nil, err
	}
	defer region.Close()

	data := region.Bytes()
	base := rg.Start
	if base == 0 {
		trimmed := charset.StripBOM(data)
		base += int64(len(data) - len(trimmed))
		data = trimmed
	}

	// Average line is at least two bytes ("7\n").
	values := make([]uint64, 0, len(data)/2+1)
	start := 0
	nextCheck := ctxCheckEvery
	for i := 0; i <= len(data); i++ {
		if i < len(data) && !segment.IsTerminator(data[i]) {
			continue
		}
		if i > start {
			v, err := parseLine(data[start:i], codec)
			if err != nil {
				return nil, &SegmentError{Range: rg, Offset: base + int64(start), Err: err}
			}
			values = append(values, v)
		}
		start = i + 1
		if i >= nextCheck {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
			nextCheck = i + ctxCheckEvery
		}
	}

	slices.Sort(values)
	return values, nil
}

// parseLine parses one record. A failing non-ASCII line is decoded first so
// the error shows readable text.
func parseLine(line []byte, codec *charset.Codec) (uint64, error) {
	v, err := ints.ParseUint(line)
	if err == nil {
		return v, nil
	}
	text, derr := codec.Decode(line)
	if derr != nil {
		return 0, fmt.Errorf("%w: %v", ints.ErrMalformed, derr)
	}
	return ints.ParseString(text)
}

// Package verify checks a written destination against the parsed input: the
// file must be in non-decreasing order and hold the same multiset of values.
package verify

import (
	"context"
	"errors"
	"fmt"

	"github.com/zeebo/xxh3"
	"golang.org/x/sync/errgroup"

	"numsort/internal/datasource/file"
	"numsort/internal/parser/ints"
	"numsort/internal/segment"
)

// ErrMismatch is returned when the destination is out of order or its
// digest differs from the expected one.
var ErrMismatch = errors.New("output does not match input")

// Digest is an order-independent fingerprint of a multiset of values: the
// count plus the wrapping sum of the xxh3 hashes of their decimal forms.
type Digest struct {
	Count uint64
	Sum   uint64
}

// Add folds v into d.
func (d *Digest) Add(v uint64) {
	var buf [20]byte
	d.Count++
	d.Sum += xxh3.Hash(ints.AppendUint(buf[:0], v))
}

// Merge folds o into d.
func (d *Digest) Merge(o Digest) {
	d.Count += o.Count
	d.Sum += o.Sum
}

func (d Digest) String() string { return fmt.Sprintf("count=%d sum=%016x", d.Count, d.Sum) }

// Of returns the digest of values.
func Of(values []uint64) Digest {
	var d Digest
	for _, v := range values {
		d.Add(v)
	}
	return d
}

// segmentScan is what one verification task learns about its range.
type segmentScan struct {
	digest      Digest
	first, last uint64
	empty       bool
}

// File digests the file at path using up to workers goroutines and checks
// that its values never decrease.
func File(ctx context.Context, path string, workers int) (Digest, error) {
	src, err := file.NewLocal(path).Open(ctx)
	if err != nil {
		return Digest{}, err
	}
	defer src.Close()

	ranges, err := segment.Plan(src, src.Size(), workers)
	if err != nil {
		return Digest{}, err
	}

	scans := make([]segmentScan, len(ranges))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i, rg := range ranges {
		g.Go(func() error {
			s, err := scanRange(gctx, src, rg)
			if err != nil {
				return err
			}
			scans[i] = s
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return Digest{}, err
	}

	var total Digest
	var prev uint64
	seen := false
	for i, s := range scans {
		if s.empty {
			continue
		}
		if seen && s.first < prev {
			return Digest{}, fmt.Errorf("%w: %d follows %d at start of %v", ErrMismatch, s.first, prev, ranges[i])
		}
		total.Merge(s.digest)
		prev, seen = s.last, true
	}
	return total, nil
}

// Check digests path and compares the result with want.
func Check(ctx context.Context, path string, want Digest, workers int) error {
	got, err := File(ctx, path, workers)
	if err != nil {
		return err
	}
	if got != want {
		return fmt.Errorf("%w: got %v, want %v", ErrMismatch, got, want)
	}
	return nil
}

func scanRange(ctx context.Context, src *file.Source, rg segment.ByteRange) (segmentScan, error) {
	s := segmentScan{empty: true}
	region, err := src.Map(rg.Start, rg.Len())
	if err != nil {
		return s, err
	}
	defer region.Close()

	data := region.Bytes()
	start := 0
	for i := 0; i <= len(data); i++ {
		if i < len(data) && !segment.IsTerminator(data[i]) {
			continue
		}
		if i > start {
			v, err := ints.ParseUint(data[start:i])
			if err != nil {
				return s, fmt.Errorf("offset %d: %w", rg.Start+int64(start), err)
			}
			if s.empty {
				s.first, s.empty = v, false
			} else if v < s.last {
				return s, fmt.Errorf("%w: %d follows %d at offset %d", ErrMismatch, v, s.last, rg.Start+int64(start))
			}
			s.last = v
			s.digest.Add(v)
		}
		start = i + 1
		if i&0xfffff == 0 {
			if err := ctx.Err(); err != nil {
				return s, err
			}
		}
	}
	return s, nil
}

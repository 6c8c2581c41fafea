// Package output splits the sorted values into byte chunks and writes them
// into the destination file at precomputed offsets.
package output

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"strings"

	"numsort/internal/parser/ints"
	"numsort/internal/workpool"
)

// DefaultChunks is the number of output chunks when none is configured.
const DefaultChunks = 10

var (
	ErrInvalidChunks    = errors.New("chunk count must be at least 1")
	ErrUnknownSeparator = errors.New("unknown line separator")
)

// Chunk is one contiguous block of the destination file.
type Chunk struct {
	Text        []byte
	ByteLength  uint64
	StartOffset uint64
}

// Separator maps a configured separator name to its bytes. The empty name
// selects the platform default.
func Separator(name string) ([]byte, error) {
	switch strings.ToLower(name) {
	case "":
		if runtime.GOOS == "windows" {
			return []byte("\r\n"), nil
		}
		return []byte("\n"), nil
	case "lf":
		return []byte("\n"), nil
	case "crlf":
		return []byte("\r\n"), nil
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownSeparator, name)
}

// Plan renders values (already sorted) into at most k chunks on pool.
// Chunk i < k-1 holds len(values)/k values and the last one takes the rest;
// chunks that would be empty are omitted.
func Plan(ctx context.Context, pool *workpool.Pool, values []uint64, k int, sep []byte) ([]Chunk, error) {
	if k < 1 {
		return nil, ErrInvalidChunks
	}
	n := len(values)
	per := n / k

	type span struct{ lo, hi int }
	spans := make([]span, 0, k)
	for i := 0; i < k; i++ {
		lo, hi := i*per, (i+1)*per
		if i == k-1 {
			hi = n
		}
		if hi > lo {
			spans = append(spans, span{lo, hi})
		}
	}

	chunks := make([]Chunk, len(spans))
	err := pool.RunAll(ctx, len(spans), func(ctx context.Context, i int) error {
		text, err := render(ctx, values[spans[i].lo:spans[i].hi], sep)
		if err != nil {
			return fmt.Errorf("render chunk %d: %w", i, err)
		}
		chunks[i] = Chunk{Text: text, ByteLength: uint64(len(text))}
		return nil
	})
	if err != nil {
		return nil, err
	}

	var off uint64
	for i := range chunks {
		chunks[i].StartOffset = off
		off += chunks[i].ByteLength
	}
	return chunks, nil
}

// Size is the total byte length of chunks.
func Size(chunks []Chunk) uint64 {
	var n uint64
	for _, c := range chunks {
		n += c.ByteLength
	}
	return n
}

func render(ctx context.Context, values []uint64, sep []byte) ([]byte, error) {
	// Seven digits plus separator covers the default generator range.
	buf := make([]byte, 0, len(values)*(7+len(sep)))
	for i, v := range values {
		if i&0xffff == 0xffff {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}
		buf = ints.AppendUint(buf, v)
		buf = append(buf, sep...)
	}
	return buf, nil
}

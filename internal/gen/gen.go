// Package gen writes random numsort input files.
package gen

import (
	"bufio"
	"errors"
	"io"
	"math/rand/v2"

	"numsort/internal/parser/ints"
)

// Defaults used by cmd/gennums.
const (
	DefaultCount = 1_000_000
	DefaultMax   = 1_000_000
)

var ErrInvalidMax = errors.New("upper bound must be at least 1")

// Write emits n values drawn uniformly from [0, upper), each followed by sep.
func Write(w io.Writer, n int, upper uint64, rng *rand.Rand, sep []byte) error {
	if upper == 0 {
		return ErrInvalidMax
	}
	bw := bufio.NewWriterSize(w, 64<<10)
	var buf [24]byte
	for i := 0; i < n; i++ {
		b := ints.AppendUint(buf[:0], rng.Uint64N(upper))
		b = append(b, sep...)
		if _, err := bw.Write(b); err != nil {
			return err
		}
	}
	return bw.Flush()
}

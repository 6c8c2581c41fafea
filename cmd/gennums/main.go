// Command gennums writes a file of random non-negative integers, one per
// line, for feeding numsort.
//
//	gennums -o numbers.txt -n 1000000 --max 1000000 --seed 42
package main

import (
	"fmt"
	"log"
	"math/rand/v2"
	"os"
	"path/filepath"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/pflag"

	"numsort/internal/gen"
	"numsort/internal/output"
)

func main() {
	var (
		out   = pflag.StringP("out", "o", "numbers.txt", "output file")
		n     = pflag.IntP("count", "n", gen.DefaultCount, "number of values")
		upper = pflag.Uint64("max", gen.DefaultMax, "values are drawn from [0, max)")
		seed  = pflag.Uint64("seed", 0, "random seed (0 picks one from the clock)")
		sepNm = pflag.String("line-separator", "", "lf or crlf (default: platform)")
	)
	pflag.Parse()

	if *seed == 0 {
		*seed = uint64(time.Now().UnixNano())
	}
	sep, err := output.Separator(*sepNm)
	if err != nil {
		fatalf("%v", err)
	}

	start := time.Now()
	if err := writeFile(*out, *n, *upper, *seed, sep); err != nil {
		fatalf("gennums: %v", err)
	}
	st, err := os.Stat(*out)
	if err != nil {
		fatalf("gennums: %v", err)
	}
	log.Printf("gennums: wrote values=%d bytes=%s seed=%d to %s in %s",
		*n, humanize.Bytes(uint64(st.Size())), *seed, *out, time.Since(start).Truncate(time.Millisecond))
}

// writeFile generates into a temporary file next to path and renames it into
// place once complete.
func writeFile(path string, n int, upper, seed uint64, sep []byte) (err error) {
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = tmp.Close()
			_ = os.Remove(tmp.Name())
		}
	}()
	if err := tmp.Chmod(0o644); err != nil {
		return err
	}
	if err := gen.Write(tmp, n, upper, rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15)), sep); err != nil {
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}

func fatalf(format string, a ...any) {
	fmt.Fprintf(os.Stderr, format+"\n", a...)
	os.Exit(1)
}

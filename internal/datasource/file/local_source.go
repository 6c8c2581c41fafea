// Package file implements the local filesystem source of a numsort run: a
// read-only handle shared by every reader task, with per-range memory maps.
package file

import (
	"context"
	"errors"
	"fmt"
	"os"
)

// ErrEmptyRegion is returned by Map for a zero-length request.
var ErrEmptyRegion = errors.New("empty region")

// Local is a filesystem data source that opens files from the local disk.
type Local struct{ path string }

// NewLocal returns a new Local data source bound to the provided filesystem
// path.
func NewLocal(path string) *Local { return &Local{path: path} }

// Path returns the bound path.
func (l *Local) Path() string { return l.path }

// Open opens the configured path read-only and returns a Source.
//
// Behavior:
//   - If the context is already canceled or its deadline exceeded at the time
//     of the call, Open returns the context error immediately without touching
//     the filesystem.
//   - Any filesystem error is wrapped with the path for context, while still
//     permitting errors.Is/As checks by callers (e.g., errors.Is(err, os.ErrNotExist)).
//   - Directories are rejected.
func (l *Local) Open(ctx context.Context) (*Source, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}
	f, err := os.Open(l.path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", l.path, err)
	}
	st, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("stat %s: %w", l.path, err)
	}
	if st.IsDir() {
		_ = f.Close()
		return nil, fmt.Errorf("open %s: is a directory", l.path)
	}
	adviseSequential(f)
	return &Source{f: f, size: st.Size()}, nil
}

// Source is an open input file. ReadAt and Map are safe for concurrent use.
type Source struct {
	f    *os.File
	size int64
}

// Name returns the file path.
func (s *Source) Name() string { return s.f.Name() }

// Size returns the file length captured at Open.
func (s *Source) Size() int64 { return s.size }

// ReadAt implements io.ReaderAt.
func (s *Source) ReadAt(p []byte, off int64) (int, error) { return s.f.ReadAt(p, off) }

// Map returns the bytes [off, off+n) of the file. The Region must be closed
// once the caller is done with its bytes.
func (s *Source) Map(off, n int64) (*Region, error) {
	if n <= 0 {
		return nil, ErrEmptyRegion
	}
	if off < 0 || off+n > s.size {
		return nil, fmt.Errorf("map %s [%d,%d): outside file of %d bytes", s.f.Name(), off, off+n, s.size)
	}
	r, err := mapRegion(s.f, off, n)
	if err != nil {
		return nil, fmt.Errorf("map %s [%d,%d): %w", s.f.Name(), off, off+n, err)
	}
	return r, nil
}

// Close releases the file handle.
func (s *Source) Close() error { return s.f.Close() }

// Region is a mapped (or, where mmap is unavailable, copied) view of part of
// a Source.
type Region struct {
	data  []byte // whole mapping, page aligned
	bytes []byte // the requested window into data
	unmap func([]byte) error
}

// Bytes returns the requested window. It must not be used after Close.
func (r *Region) Bytes() []byte { return r.bytes }

// Close unmaps the region. It is safe to call more than once.
func (r *Region) Close() error {
	if r.data == nil {
		return nil
	}
	data := r.data
	r.data, r.bytes = nil, nil
	if r.unmap == nil {
		return nil
	}
	return r.unmap(data)
}

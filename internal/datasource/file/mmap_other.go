//go:build !linux

package file

import (
	"io"
	"os"
)

// mapRegion falls back to reading the window into memory on platforms
// other than linux.
func mapRegion(f *os.File, off, n int64) (*Region, error) {
	buf := make([]byte, n)
	if _, err := f.ReadAt(buf, off); err != nil && err != io.EOF {
		return nil, err
	}
	return &Region{data: buf, bytes: buf}, nil
}

func adviseSequential(*os.File) {}

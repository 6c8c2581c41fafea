//go:build linux

package file

import (
	"os"

	"golang.org/x/sys/unix"
)

// mapRegion maps [off, off+n) read-only. mmap offsets must be page aligned,
// so the mapping starts at the enclosing page boundary and Bytes() skips the
// leading slack.
func mapRegion(f *os.File, off, n int64) (*Region, error) {
	page := int64(unix.Getpagesize())
	aligned := off &^ (page - 1)
	slack := off - aligned

	data, err := unix.Mmap(int(f.Fd()), aligned, int(n+slack), unix.PROT_READ, unix.MAP_SHARED)
	if err != nil {
		return nil, err
	}
	// Best-effort kernel hint: each reader walks its range front to back.
	_ = unix.Madvise(data, unix.MADV_SEQUENTIAL)

	return &Region{data: data, bytes: data[slack : slack+n], unmap: unix.Munmap}, nil
}

// adviseSequential is a best-effort readahead hint for the whole file.
func adviseSequential(f *os.File) {
	_ = unix.Fadvise(int(f.Fd()), 0, 0, unix.FADV_SEQUENTIAL)
	_ = unix.Fadvise(int(f.Fd()), 0, 0, unix.FADV_WILLNEED)
}

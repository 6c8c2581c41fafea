//go:build unix

package output

import (
	"errors"

	"golang.org/x/sys/unix"
)

func transient(err error) bool {
	return errors.Is(err, unix.EINTR) || errors.Is(err, unix.EAGAIN)
}

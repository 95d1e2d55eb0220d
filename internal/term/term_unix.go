//go:build linux || darwin || freebsd || netbsd || openbsd || dragonfly

package term

import (
	"errors"

	"golang.org/x/sys/unix"
)

func probe(fd int) error {
	if _, err := unix.IoctlGetTermios(fd, ioctlReadTermios); err != nil {
		if errors.Is(err, unix.ENOTTY) || errors.Is(err, unix.EINVAL) || errors.Is(err, unix.EBADF) {
			return ErrNotTerminal
		}
		return err
	}
	return nil
}

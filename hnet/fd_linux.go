//go:build linux
// +build linux

package hnet

import (
	"errors"

	"golang.org/x/sys/unix"
)

func isFDValid(fd int) bool {
	_, err := unix.FcntlInt(uintptr(fd), unix.F_GETFD, 0)
	return err == nil
}

// IsTemporaryError reports whether err means "try again later".
func IsTemporaryError(err error) bool {
	return errors.Is(err, unix.EAGAIN) || errors.Is(err, unix.EWOULDBLOCK) || errors.Is(err, unix.EINTR)
}

// CloseFd closes fd if it is still open.
func CloseFd(fd int) error {
	if isFDValid(fd) {
		return wrap("close", unix.Close(fd))
	}
	return nil
}

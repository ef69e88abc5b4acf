//go:build linux
// +build linux

package hnet

import (
	"golang.org/x/sys/unix"
)

func Nonblock(fd int) error {
	return wrap("fcntl(F_SETFL,O_NONBLOCK)", unix.SetNonblock(fd, true))
}

// KeepAlive enables TCP keep-alive, probing after interval seconds of
// idleness, then every interval/3 seconds, giving up after three probes.
func KeepAlive(fd int, interval int) error {
	if err := unix.SetsockoptInt(fd, unix.SOL_SOCKET, unix.SO_KEEPALIVE, 1); err != nil {
		return wrap("setsockopt SO_KEEPALIVE", err)
	}
	if err := unix.SetsockoptInt(fd, unix.IPPROTO_TCP, unix.TCP_KEEPIDLE, interval); err != nil {
		return wrap("setsockopt TCP_KEEPIDLE", err)
	}
	intvl := interval / 3
	if intvl == 0 {
		intvl = 1
	}
	if err := unix.SetsockoptInt(fd, unix.IPPROTO_TCP, unix.TCP_KEEPINTVL, intvl); err != nil {
		return wrap("setsockopt TCP_KEEPINTVL", err)
	}
	if err := unix.SetsockoptInt(fd, unix.IPPROTO_TCP, unix.TCP_KEEPCNT, 3); err != nil {
		return wrap("setsockopt TCP_KEEPCNT", err)
	}
	return nil
}

func EnableTCPNoDelay(fd int) error {
	return wrap("setsockopt TCP_NODELAY", unix.SetsockoptInt(fd, unix.IPPROTO_TCP, unix.TCP_NODELAY, 1))
}

// SendTimeout bounds blocking sends on fd to ms milliseconds.
func SendTimeout(fd int, ms int64) error {
	tv := unix.NsecToTimeval(ms * 1000 * 1000)
	return wrap("setsockopt SO_SNDTIMEO", unix.SetsockoptTimeval(fd, unix.SOL_SOCKET, unix.SO_SNDTIMEO, &tv))
}

func SetRecvBuffer(fd int, size int) error {
	return wrap("setsockopt SO_RCVBUF", unix.SetsockoptInt(fd, unix.SOL_SOCKET, unix.SO_RCVBUF, size))
}

func SetSendBuffer(fd int, size int) error {
	return wrap("setsockopt SO_SNDBUF", unix.SetsockoptInt(fd, unix.SOL_SOCKET, unix.SO_SNDBUF, size))
}

// SockError returns the pending error on fd, typically the outcome of a
// non-blocking connect. It returns nil when there is none.
func SockError(fd int) error {
	v, err := unix.GetsockoptInt(fd, unix.SOL_SOCKET, unix.SO_ERROR)
	if err != nil {
		return err
	}
	if v != 0 {
		return unix.Errno(v)
	}
	return nil
}

func setReuseAddr(fd int) error {
	return wrap("setsockopt SO_REUSEADDR", unix.SetsockoptInt(fd, unix.SOL_SOCKET, unix.SO_REUSEADDR, 1))
}

func setReusePort(fd int) error {
	return wrap("setsockopt SO_REUSEPORT", unix.SetsockoptInt(fd, unix.SOL_SOCKET, unix.SO_REUSEPORT, 1))
}

func setV6Only(fd int) error {
	return wrap("setsockopt IPV6_V6ONLY", unix.SetsockoptInt(fd, unix.IPPROTO_IPV6, unix.IPV6_V6ONLY, 1))
}

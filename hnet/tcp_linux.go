//go:build linux
// +build linux

package hnet

import (
	"go.uber.org/multierr"
	"golang.org/x/sys/unix"
)

// TCPNonblockConnect starts a non-blocking connect to addr:port and returns
// the socket. Completion is signalled by the socket turning writable; check
// SockError afterwards.
func TCPNonblockConnect(addr string, port int) (int, error) {
	sas, err := resolve(addr, port, unix.AF_UNSPEC, false)
	if err != nil {
		return -1, err
	}
	var errs error
	for _, sa := range sas {
		s, err := unix.Socket(sockFamily(sa), unix.SOCK_STREAM|unix.SOCK_CLOEXEC, 0)
		if err != nil {
			errs = multierr.Append(errs, wrap("socket", err))
			continue
		}
		if err := setReuseAddr(s); err != nil {
			unix.Close(s)
			return -1, err
		}
		if err := Nonblock(s); err != nil {
			unix.Close(s)
			return -1, err
		}
		if err := unix.Connect(s, sa); err != nil && err != unix.EINPROGRESS {
			unix.Close(s)
			errs = multierr.Append(errs, wrap("connect", err))
			continue
		}
		return s, nil
	}
	return -1, errs
}

func listen(s int, sa unix.Sockaddr, backlog int) error {
	if err := unix.Bind(s, sa); err != nil {
		return wrap("bind", err)
	}
	return wrap("listen", unix.Listen(s, backlog))
}

func genericTCPServer(port int, bindaddr string, family int, backlog int, reusePort bool) (int, error) {
	sas, err := resolve(bindaddr, port, family, true)
	if err != nil {
		return -1, err
	}
	sa := sas[0]
	s, err := unix.Socket(family, unix.SOCK_STREAM|unix.SOCK_CLOEXEC, 0)
	if err != nil {
		return -1, wrap("socket", err)
	}
	err = func() error {
		if family == unix.AF_INET6 {
			if err := setV6Only(s); err != nil {
				return err
			}
		}
		if err := setReuseAddr(s); err != nil {
			return err
		}
		if reusePort {
			if err := setReusePort(s); err != nil {
				return err
			}
		}
		return listen(s, sa, backlog)
	}()
	if err != nil {
		unix.Close(s)
		return -1, err
	}
	return s, nil
}

// TCPServer returns an IPv4 listening socket bound to bindaddr:port. An
// empty bindaddr listens on every address.
func TCPServer(port int, bindaddr string, backlog int, reusePort bool) (int, error) {
	return genericTCPServer(port, bindaddr, unix.AF_INET, backlog, reusePort)
}

// TCP6Server is TCPServer for IPv6 only.
func TCP6Server(port int, bindaddr string, backlog int, reusePort bool) (int, error) {
	return genericTCPServer(port, bindaddr, unix.AF_INET6, backlog, reusePort)
}

// TCPAccept accepts one connection from the listening socket s, retrying on
// EINTR. The new descriptor keeps the blocking mode of a fresh socket.
func TCPAccept(s int) (int, unix.Sockaddr, error) {
	for {
		fd, sa, err := unix.Accept4(s, unix.SOCK_CLOEXEC)
		if err == unix.EINTR {
			continue
		}
		if err != nil {
			return -1, nil, wrap("accept", err)
		}
		return fd, sa, nil
	}
}

//go:build linux
// +build linux

package hnet

import (
	"go.uber.org/multierr"
	"golang.org/x/sys/unix"
)

func genericUDPServer(port int, bindaddr string, family int, reusePort bool) (int, error) {
	sas, err := resolve(bindaddr, port, family, true)
	if err != nil {
		return -1, err
	}
	s, err := unix.Socket(family, unix.SOCK_DGRAM|unix.SOCK_CLOEXEC, 0)
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
		return wrap("bind", unix.Bind(s, sas[0]))
	}()
	if err != nil {
		unix.Close(s)
		return -1, err
	}
	return s, nil
}

// UDPServer returns an IPv4 datagram socket bound to bindaddr:port.
func UDPServer(port int, bindaddr string, reusePort bool) (int, error) {
	return genericUDPServer(port, bindaddr, unix.AF_INET, reusePort)
}

// UDP6Server is UDPServer for IPv6 only.
func UDP6Server(port int, bindaddr string, reusePort bool) (int, error) {
	return genericUDPServer(port, bindaddr, unix.AF_INET6, reusePort)
}

// UDPNonblockSendTo creates a non-blocking datagram socket and sends buf to
// addr:port from it. A send that would block is not an error and reports
// zero bytes written.
func UDPNonblockSendTo(addr string, port int, buf []byte) (int, int, error) {
	sas, err := resolve(addr, port, unix.AF_UNSPEC, false)
	if err != nil {
		return -1, 0, err
	}
	var errs error
	for _, sa := range sas {
		s, err := unix.Socket(sockFamily(sa), unix.SOCK_DGRAM|unix.SOCK_CLOEXEC, 0)
		if err != nil {
			errs = multierr.Append(errs, wrap("socket", err))
			continue
		}
		if err := setReuseAddr(s); err != nil {
			unix.Close(s)
			return -1, 0, err
		}
		if err := Nonblock(s); err != nil {
			unix.Close(s)
			return -1, 0, err
		}
		n, err := unix.SendmsgN(s, buf, nil, sa, 0)
		if err != nil {
			if err == unix.EAGAIN {
				return s, 0, nil
			}
			unix.Close(s)
			return -1, 0, wrap("sendto", err)
		}
		return s, n, nil
	}
	return -1, 0, errs
}

// RecvFrom reads one datagram into buf and returns its sender.
func RecvFrom(fd int, buf []byte) (int, unix.Sockaddr, error) {
	n, sa, err := unix.Recvfrom(fd, buf, 0)
	if err != nil {
		return 0, nil, wrap("recvfrom", err)
	}
	return n, sa, nil
}

// SendTo sends buf to sa.
func SendTo(fd int, buf []byte, sa unix.Sockaddr) (int, error) {
	n, err := unix.SendmsgN(fd, buf, nil, sa, 0)
	if err != nil {
		return 0, wrap("sendto", err)
	}
	return n, nil
}

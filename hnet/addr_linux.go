//go:build linux
// +build linux

package hnet

import (
	"context"
	"net"
	"strconv"

	"golang.org/x/sys/unix"
)

// resolve turns addr and port into candidate socket addresses for family
// (AF_UNSPEC, AF_INET or AF_INET6). An empty addr is the wildcard address
// when passive, loopback otherwise.
func resolve(addr string, port int, family int, passive bool) ([]unix.Sockaddr, error) {
	if err := checkPort(port); err != nil {
		return nil, err
	}

	var ips []net.IP
	switch {
	case addr == "" && passive:
		ips = []net.IP{net.IPv6zero, net.IPv4zero}
	case addr == "":
		ips = []net.IP{net.IPv6loopback, net.IPv4(127, 0, 0, 1)}
	default:
		if ip := net.ParseIP(addr); ip != nil {
			ips = []net.IP{ip}
			break
		}
		addrs, err := net.DefaultResolver.LookupIPAddr(context.Background(), addr)
		if err != nil {
			return nil, wrap("lookup "+addr, err)
		}
		for _, a := range addrs {
			ips = append(ips, a.IP)
		}
	}

	var sas []unix.Sockaddr
	for _, ip := range ips {
		if sa := sockaddr(ip, port, family); sa != nil {
			sas = append(sas, sa)
		}
	}
	if len(sas) == 0 {
		return nil, wrap(net.JoinHostPort(addr, strconv.Itoa(port)), ErrNoAddress)
	}
	return sas, nil
}

// Resolve returns the candidate addresses for reaching addr:port, in the
// order connecting helpers try them.
func Resolve(addr string, port int) ([]unix.Sockaddr, error) {
	return resolve(addr, port, unix.AF_UNSPEC, false)
}

func sockaddr(ip net.IP, port int, family int) unix.Sockaddr {
	if ip4 := ip.To4(); ip4 != nil {
		if family == unix.AF_INET6 {
			return nil
		}
		sa := &unix.SockaddrInet4{Port: port}
		copy(sa.Addr[:], ip4)
		return sa
	}
	if family == unix.AF_INET {
		return nil
	}
	sa := &unix.SockaddrInet6{Port: port}
	copy(sa.Addr[:], ip.To16())
	return sa
}

func sockFamily(sa unix.Sockaddr) int {
	if _, ok := sa.(*unix.SockaddrInet6); ok {
		return unix.AF_INET6
	}
	return unix.AF_INET
}

// IPPort extracts the textual address and port of sa.
func IPPort(sa unix.Sockaddr) (string, int) {
	switch a := sa.(type) {
	case *unix.SockaddrInet4:
		return net.IP(a.Addr[:]).String(), a.Port
	case *unix.SockaddrInet6:
		return net.IP(a.Addr[:]).String(), a.Port
	}
	return "", 0
}

// LocalPort returns the port fd is bound to.
func LocalPort(fd int) (int, error) {
	sa, err := unix.Getsockname(fd)
	if err != nil {
		return 0, wrap("getsockname", err)
	}
	_, port := IPPort(sa)
	return port, nil
}

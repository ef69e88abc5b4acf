//go:build linux
// +build linux

package hnet

import (
	"runtime"
	"unsafe"

	"golang.org/x/sys/unix"
)

// mmsghdr mirrors struct mmsghdr; Go pads it to the same size.
type mmsghdr struct {
	hdr unix.Msghdr
	n   uint32
}

// Batch holds the buffers and peer addresses for one RecvBatch call. Each
// slot receives at most one datagram of up to the slot size.
type Batch struct {
	bufs  [][]byte
	names []unix.RawSockaddrAny
	iovs  []unix.Iovec
	msgs  []mmsghdr
	n     int
}

// NewBatch allocates vlen slots of size bytes each.
func NewBatch(vlen, size int) *Batch {
	if vlen <= 0 {
		vlen = 1
	}
	b := &Batch{
		bufs:  make([][]byte, vlen),
		names: make([]unix.RawSockaddrAny, vlen),
		iovs:  make([]unix.Iovec, vlen),
		msgs:  make([]mmsghdr, vlen),
	}
	for i := range b.msgs {
		b.bufs[i] = make([]byte, size)
		if size > 0 {
			b.iovs[i].Base = &b.bufs[i][0]
		}
		b.iovs[i].SetLen(size)
		b.msgs[i].hdr.Iov = &b.iovs[i]
		b.msgs[i].hdr.SetIovlen(1)
		b.msgs[i].hdr.Name = (*byte)(unsafe.Pointer(&b.names[i]))
	}
	return b
}

// Len is the number of datagrams received by the last RecvBatch.
func (b *Batch) Len() int {
	return b.n
}

// Datagram returns the i-th datagram of the last RecvBatch and its sender.
// The data is only valid until the next RecvBatch.
func (b *Batch) Datagram(i int) ([]byte, unix.Sockaddr) {
	m := &b.msgs[i]
	return b.bufs[i][:m.n], rawToSockaddr(&b.names[i], m.hdr.Namelen)
}

// RecvBatch reads as many queued datagrams as fit in b with a single
// recvmmsg call. It never blocks.
func RecvBatch(fd int, b *Batch) (int, error) {
	b.n = 0
	for i := range b.msgs {
		b.msgs[i].hdr.Namelen = unix.SizeofSockaddrAny
		b.msgs[i].n = 0
	}
	r, _, e := unix.Syscall6(unix.SYS_RECVMMSG, uintptr(fd),
		uintptr(unsafe.Pointer(&b.msgs[0])), uintptr(len(b.msgs)),
		unix.MSG_DONTWAIT, 0, 0)
	runtime.KeepAlive(b)
	if e != 0 {
		return 0, wrap("recvmmsg", e)
	}
	b.n = int(r)
	return b.n, nil
}

func rawToSockaddr(rsa *unix.RawSockaddrAny, l uint32) unix.Sockaddr {
	if l < 2 {
		return nil
	}
	switch rsa.Addr.Family {
	case unix.AF_INET:
		p := (*unix.RawSockaddrInet4)(unsafe.Pointer(rsa))
		port := (*[2]byte)(unsafe.Pointer(&p.Port))
		sa := &unix.SockaddrInet4{Port: int(port[0])<<8 | int(port[1])}
		sa.Addr = p.Addr
		return sa
	case unix.AF_INET6:
		p := (*unix.RawSockaddrInet6)(unsafe.Pointer(rsa))
		port := (*[2]byte)(unsafe.Pointer(&p.Port))
		sa := &unix.SockaddrInet6{Port: int(port[0])<<8 | int(port[1]), ZoneId: p.Scope_id}
		sa.Addr = p.Addr
		return sa
	}
	return nil
}

//go:build linux
// +build linux

package he

import (
	"os"

	"golang.org/x/sys/unix"
)

// https://copyconstruct.medium.com/the-method-to-epolls-madness-d9d2d6378642

// epollPoller is level triggered.
type epollPoller struct {
	epfd   int
	events []unix.EpollEvent
}

// NewEpollPoller creates an epoll instance with room for setSize events.
func NewEpollPoller(setSize int) (Poller, error) {
	epfd, err := unix.EpollCreate1(unix.EPOLL_CLOEXEC)
	if err != nil {
		return nil, os.NewSyscallError("epoll_create1", err)
	}
	return &epollPoller{
		epfd:   epfd,
		events: make([]unix.EpollEvent, setSize),
	}, nil
}

func defaultPoller(setSize int) (Poller, error) {
	return NewEpollPoller(setSize)
}

func epollEvents(mask Mask) uint32 {
	var events uint32
	if mask&Readable != 0 {
		events |= unix.EPOLLIN
	}
	if mask&Writable != 0 {
		events |= unix.EPOLLOUT
	}
	return events
}

func (p *epollPoller) Watch(fd int, old, mask Mask) error {
	ev := &unix.EpollEvent{Fd: int32(fd), Events: epollEvents(mask | old)}
	if old == None {
		return os.NewSyscallError("epoll_ctl add", unix.EpollCtl(p.epfd, unix.EPOLL_CTL_ADD, fd, ev))
	}
	return os.NewSyscallError("epoll_ctl mod", unix.EpollCtl(p.epfd, unix.EPOLL_CTL_MOD, fd, ev))
}

func (p *epollPoller) Unwatch(fd int, remaining Mask) error {
	if remaining != None {
		ev := &unix.EpollEvent{Fd: int32(fd), Events: epollEvents(remaining)}
		return os.NewSyscallError("epoll_ctl mod", unix.EpollCtl(p.epfd, unix.EPOLL_CTL_MOD, fd, ev))
	}
	// A non-nil event keeps pre-2.6.9 kernels happy.
	return os.NewSyscallError("epoll_ctl del", unix.EpollCtl(p.epfd, unix.EPOLL_CTL_DEL, fd, &unix.EpollEvent{}))
}

func (p *epollPoller) Poll(fired []FiredEvent, timeoutMs int) (int, error) {
	events := p.events
	if len(fired) < len(events) {
		events = events[:len(fired)]
	}
	n, err := unix.EpollWait(p.epfd, events, timeoutMs)
	if err != nil {
		if err == unix.EINTR {
			return 0, nil
		}
		return 0, os.NewSyscallError("epoll_wait", err)
	}
	for i := 0; i < n; i++ {
		ev := &events[i]
		var mask Mask
		if ev.Events&unix.EPOLLIN != 0 {
			mask |= Readable
		}
		if ev.Events&unix.EPOLLOUT != 0 {
			mask |= Writable
		}
		if ev.Events&(unix.EPOLLERR|unix.EPOLLHUP) != 0 {
			mask |= Readable | Writable
		}
		fired[i] = FiredEvent{Fd: int(ev.Fd), Mask: mask}
	}
	return n, nil
}

func (p *epollPoller) Close() error {
	return os.NewSyscallError("close", unix.Close(p.epfd))
}

//go:build linux
// +build linux

package echo

import (
	"os"
	"unsafe"

	"github.com/fzft/hevent/he"
	"github.com/fzft/hevent/log"
	"go.uber.org/zap"
	"golang.org/x/sys/unix"
)

type pipeSignal uint64

const (
	SignalStop pipeSignal = 1
)

// notifier lets other goroutines reach the loop: they write a signal to an
// eventfd, the loop reads it like any other descriptor.
type notifier struct {
	efd int
}

func newNotifier(el *he.EventLoop) (*notifier, error) {
	efd, err := unix.Eventfd(0, unix.EFD_NONBLOCK|unix.EFD_CLOEXEC)
	if err != nil {
		return nil, os.NewSyscallError("eventfd", err)
	}
	n := &notifier{efd: efd}
	if err := el.CreateFileEvent(efd, he.Readable, n.handleSignal, nil); err != nil {
		unix.Close(efd)
		return nil, err
	}
	return n, nil
}

// handleSignal reads the accumulated signal value from the eventfd.
func (n *notifier) handleSignal(el *he.EventLoop, fd int, clientData interface{}, mask he.Mask) {
	var buf uint64
	_, err := unix.Read(fd, (*(*[8]byte)(unsafe.Pointer(&buf)))[:])
	if err != nil {
		log.Logger.Debug("Failed to read from event fd", zap.Error(err))
		return
	}
	// Writes add up in the counter; stop is the only signal.
	if pipeSignal(buf) >= SignalStop {
		el.Stop()
	}
}

// sendSignal is safe to call from any goroutine.
func (n *notifier) sendSignal(sig pipeSignal) error {
	_, err := unix.Write(n.efd, (*(*[8]byte)(unsafe.Pointer(&sig)))[:])
	if err != nil {
		log.Logger.Error("Failed to write to event fd", zap.Error(err))
	}
	return err
}

func (n *notifier) close(el *he.EventLoop) error {
	el.DeleteFileEvent(n.efd, he.Readable)
	return os.NewSyscallError("close", unix.Close(n.efd))
}

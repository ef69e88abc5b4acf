// Package he is a single-threaded readiness reactor. An EventLoop watches up
// to a fixed number of descriptors, dispatches read and write handlers when
// they become ready, and runs one periodic update callback.
//
// An EventLoop is not safe for concurrent use. Handlers run on the goroutine
// that calls Main or ProcessEvents and may register, deregister or Stop.
package he

import (
	"github.com/fzft/hevent/log"
	"go.uber.org/zap"
)

type EventLoop struct {
	setSize int
	events  []fileEvent
	fired   []FiredEvent
	ui      updateInfo
	stop    bool
	poller  Poller
	clock   Clock
}

// Option configures an EventLoop at creation.
type Option func(*options)

type options struct {
	newPoller PollerFactory
	clock     Clock
}

// WithPoller replaces the platform backend.
func WithPoller(f PollerFactory) Option {
	return func(o *options) { o.newPoller = f }
}

// WithClock replaces the wall clock used for the update deadline.
func WithClock(c Clock) Option {
	return func(o *options) { o.clock = c }
}

// New creates a loop able to watch descriptors 0..setSize-1. proc, if not
// nil, is called every updateMs milliseconds with clientData.
func New(setSize int, updateMs int64, proc UpdateProc, clientData interface{}, opts ...Option) (*EventLoop, error) {
	if setSize <= 0 {
		return nil, ErrInvalidSetSize
	}
	if updateMs < 0 {
		return nil, ErrInvalidInterval
	}
	o := options{newPoller: defaultPoller, clock: systemClock{}}
	for _, opt := range opts {
		opt(&o)
	}

	el := &EventLoop{
		setSize: setSize,
		events:  make([]fileEvent, setSize),
		fired:   make([]FiredEvent, setSize),
		clock:   o.clock,
	}
	now := el.nowMs()
	el.ui = updateInfo{
		when:       now + updateMs,
		updateMs:   updateMs,
		lastTime:   now,
		proc:       proc,
		clientData: clientData,
	}

	poller, err := o.newPoller(setSize)
	if err != nil {
		return nil, err
	}
	el.poller = poller
	return el, nil
}

// Close releases the backend. Registered descriptors are not closed.
func (el *EventLoop) Close() error {
	if el.poller == nil {
		return ErrClosed
	}
	err := el.poller.Close()
	el.poller = nil
	el.events = nil
	el.fired = nil
	return err
}

// Stop makes Main return after the current pass completes.
func (el *EventLoop) Stop() {
	el.stop = true
}

// SetSize returns the capacity fixed at creation.
func (el *EventLoop) SetSize() int {
	return el.setSize
}

// FileEventMask returns the directions currently registered for fd.
func (el *EventLoop) FileEventMask(fd int) Mask {
	if fd < 0 || fd >= len(el.events) {
		return None
	}
	return el.events[fd].mask
}

// CreateFileEvent registers proc for the directions in mask. Registering a
// direction again replaces its handler. clientData is shared by both
// directions and the last registration wins. If the backend rejects the
// watch the entry is left unchanged. mask must name at least one direction
// and proc must not be nil.
func (el *EventLoop) CreateFileEvent(fd int, mask Mask, proc FileProc, clientData interface{}) error {
	if el.poller == nil {
		return ErrClosed
	}
	if fd < 0 || fd >= el.setSize {
		return outOfRange(fd, el.setSize)
	}
	if mask == None || mask&^(Readable|Writable) != 0 {
		return ErrInvalidMask
	}
	if proc == nil {
		return ErrNilProc
	}
	fe := &el.events[fd]
	if err := el.poller.Watch(fd, fe.mask, fe.mask|mask); err != nil {
		return err
	}
	fe.mask |= mask
	if mask&Readable != 0 {
		fe.rfileProc = proc
	}
	if mask&Writable != 0 {
		fe.wfileProc = proc
	}
	fe.clientData = clientData
	return nil
}

// DeleteFileEvent drops the directions in mask for fd. Unknown descriptors
// and directions that are not registered are ignored.
func (el *EventLoop) DeleteFileEvent(fd int, mask Mask) {
	if el.poller == nil || fd < 0 || fd >= el.setSize {
		return
	}
	fe := &el.events[fd]
	if fe.mask == None {
		return
	}
	remaining := fe.mask &^ mask
	if remaining == fe.mask {
		return
	}
	if err := el.poller.Unwatch(fd, remaining); err != nil {
		log.Logger.Debug("unwatch failed", zap.Int("fd", fd), zap.Error(err))
	}
	fe.mask = remaining
}

// ProcessEvents runs one pass: wait until something is ready or the update
// is due, run the update if due, then dispatch every ready descriptor. It
// returns the number of descriptors dispatched plus what the update
// callback returned.
//
// Entries are re-read as each fired descriptor is dispatched, so handlers
// see deregistrations made earlier in the same pass. A descriptor closed and
// reused by a new resource within one pass is indistinguishable from the
// one it replaced.
func (el *EventLoop) ProcessEvents() int {
	if el.poller == nil {
		return 0
	}
	processed := 0

	numEvents, err := el.poller.Poll(el.fired, el.waitBudget())
	if err != nil {
		log.Logger.Debug("poll failed", zap.Error(err))
		numEvents = 0
	}

	processed += el.processUpdate()

	for j := 0; j < numEvents && el.poller != nil; j++ {
		fd := el.fired[j].Fd
		mask := el.fired[j].Mask
		if fd < 0 || fd >= el.setSize {
			continue
		}
		fe := &el.events[fd]
		fired := false

		if fe.mask&mask&Readable != 0 {
			fe.rfileProc(el, fd, fe.clientData, mask)
			fired = true
		}
		if el.poller != nil && fe.mask&mask&Writable != 0 {
			if !fired || !sameProc(fe.wfileProc, fe.rfileProc) {
				fe.wfileProc(el, fd, fe.clientData, mask)
			}
		}
		processed++
	}
	return processed
}

// Main clears any pending stop and runs passes until Stop is called or the
// loop is closed.
func (el *EventLoop) Main() {
	el.stop = false
	for !el.stop && el.poller != nil {
		el.ProcessEvents()
	}
}

package he

import "unsafe"

// Mask is a set of readiness directions.
type Mask int

const (
	None     Mask = 0
	Readable Mask = 1
	Writable Mask = 2
)

func (m Mask) String() string {
	switch m {
	case None:
		return "none"
	case Readable:
		return "readable"
	case Writable:
		return "writable"
	case Readable | Writable:
		return "readable|writable"
	}
	return "invalid"
}

// FileProc handles readiness on fd. mask is what the backend reported, which
// may include directions the handler was not registered for.
type FileProc func(el *EventLoop, fd int, clientData interface{}, mask Mask)

// UpdateProc is the periodic callback. Its return value is added to the
// processed count of the pass that ran it.
type UpdateProc func(el *EventLoop, clientData interface{}) int

// FiredEvent is one ready descriptor reported by a Poller.
type FiredEvent struct {
	Fd   int
	Mask Mask
}

type fileEvent struct {
	mask       Mask
	rfileProc  FileProc
	wfileProc  FileProc
	clientData interface{}
}

// sameProc reports whether a and b are the same func value, that is one
// value installed for both directions. Every evaluation of a capturing
// closure or a method value yields a new func value, even when the code is
// shared.
func sameProc(a, b FileProc) bool {
	return *(*unsafe.Pointer)(unsafe.Pointer(&a)) == *(*unsafe.Pointer)(unsafe.Pointer(&b))
}

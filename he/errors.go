package he

import (
	"errors"
	"fmt"
	"syscall"
)

var (
	ErrInvalidSetSize  = errors.New("he: set size must be positive")
	ErrInvalidInterval = errors.New("he: update interval must not be negative")
	ErrClosed          = errors.New("he: event loop closed")
	ErrUnsupported     = errors.New("he: no readiness backend for this platform")
	ErrInvalidMask     = errors.New("he: mask must be a non-empty set of Readable and Writable")
	ErrNilProc         = errors.New("he: file event handler is nil")
)

// ErrOutOfRange reports a descriptor outside [0, set size). It matches
// syscall.ERANGE under errors.Is.
var ErrOutOfRange = &rangeError{}

type rangeError struct{}

func (*rangeError) Error() string { return "he: descriptor out of range" }

func (*rangeError) Is(target error) bool { return target == syscall.ERANGE }

func outOfRange(fd, setSize int) error {
	return fmt.Errorf("fd %d (set size %d): %w", fd, setSize, ErrOutOfRange)
}

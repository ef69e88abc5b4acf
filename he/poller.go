package he

// Poller wraps one platform readiness-polling facility. A Poller is owned by
// exactly one EventLoop and is only called from the goroutine driving it.
type Poller interface {
	// Watch installs fd when old is None, otherwise changes its watched
	// directions to mask. mask already includes old.
	Watch(fd int, old, mask Mask) error

	// Unwatch narrows fd to remaining, or removes it when remaining is None.
	Unwatch(fd int, remaining Mask) error

	// Poll waits at most timeoutMs milliseconds and writes ready descriptors
	// into fired, returning how many were written. Error and hangup
	// conditions are reported as Readable|Writable.
	Poll(fired []FiredEvent, timeoutMs int) (int, error)

	Close() error
}

// PollerFactory creates a Poller able to report up to setSize descriptors
// per Poll call.
type PollerFactory func(setSize int) (Poller, error)

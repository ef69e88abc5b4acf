// Package hnet holds the socket helpers used with the he event loop: listening
// sockets, non-blocking connect, accept, option tuning and datagram I/O, all
// on raw descriptors.
package hnet

import (
	"errors"
	"strconv"
)

var (
	ErrNoAddress = errors.New("hnet: no usable address")
	ErrBadPort   = errors.New("hnet: port out of range")
)

// Error records the operation that failed, like the message buffer the
// helpers used to fill.
type Error struct {
	Op  string
	Err error
}

func (e *Error) Error() string { return e.Op + ": " + e.Err.Error() }

func (e *Error) Unwrap() error { return e.Err }

func wrap(op string, err error) error {
	if err == nil {
		return nil
	}
	return &Error{Op: op, Err: err}
}

func checkPort(port int) error {
	if port < 0 || port > 65535 {
		return &Error{Op: "port " + strconv.Itoa(port), Err: ErrBadPort}
	}
	return nil
}

package device

import (
	"errors"
	"fmt"
)

var (
	// ErrIllegalTransition is returned when an operation would move the
	// session along an edge that is not part of the state graph.
	ErrIllegalTransition = errors.New("illegal state transition")

	// ErrBusy is returned from a non-forced Close while the source is enabled.
	ErrBusy = errors.New("device busy")

	// ErrLoopStopped is returned when work is submitted to a stopped loop.
	ErrLoopStopped = errors.New("device loop stopped")
)

// DeviceError reports an open, enable or close failure. State is the last
// state the session successfully reached.
type DeviceError struct {
	Op    string
	State State
	Err   error
}

func (e *DeviceError) Error() string {
	return fmt.Sprintf("device %s (state %s): %v", e.Op, e.State, e.Err)
}

func (e *DeviceError) Unwrap() error { return e.Err }

// TransferError is a per-page native transfer failure.
type TransferError struct {
	Err error
}

func (e *TransferError) Error() string { return "transfer: " + e.Err.Error() }

func (e *TransferError) Unwrap() error { return e.Err }

package process

import (
	"errors"
	"fmt"
)

// Sentinel errors for the process package.
var (
	// ErrEmptyCommand is returned when Spawn is given a blank command line.
	ErrEmptyCommand = errors.New("empty command")

	// ErrInvalidReadSize is returned when a read size is not positive.
	ErrInvalidReadSize = errors.New("read size must be positive")

	// ErrInvalidHandle is returned when a process handle is outside the
	// range of real process references, such as 0 or a negative pid.
	ErrInvalidHandle = errors.New("invalid process handle")

	// ErrInvalidEndpoint is returned when an endpoint is outside the range
	// of real descriptors.
	ErrInvalidEndpoint = errors.New("invalid endpoint")

	// ErrUnsupportedPlatform is returned by the backend on platforms with
	// no pipe and process implementation.
	ErrUnsupportedPlatform = errors.New("process spawning not supported on this platform")
)

// SpawnError reports a failed spawn. No endpoint is left open when it is
// returned.
type SpawnError struct {
	// Op is the failing step: "validate", "pipe" or "start".
	Op      string
	Command string
	Err     error
}

func (e *SpawnError) Error() string {
	switch e.Op {
	case "pipe":
		return fmt.Sprintf("failed to create pipes: %v", e.Err)
	case "start":
		return fmt.Sprintf("failed to start %q: %v", e.Command, e.Err)
	default:
		return fmt.Sprintf("spawn %q: %v", e.Command, e.Err)
	}
}

func (e *SpawnError) Unwrap() error {
	return e.Err
}

// IOError reports an OS failure against an endpoint or process handle.
type IOError struct {
	// Op is the failing call: "read", "write", "close", "wait" or "terminate".
	Op  string
	Raw int64
	Err error
}

func (e *IOError) Error() string {
	return fmt.Sprintf("%s %d: %v", e.Op, e.Raw, e.Err)
}

func (e *IOError) Unwrap() error {
	return e.Err
}

// AllocationError reports a read whose scratch buffer would exceed the
// configured ceiling.
type AllocationError struct {
	Requested int
	Limit     int
}

func (e *AllocationError) Error() string {
	return fmt.Sprintf("memory allocation failed: read of %d bytes exceeds limit of %d", e.Requested, e.Limit)
}

package lua

import "errors"

// Errors for Lua state operations.
var (
	// ErrStateClosed is returned when operating on a closed state.
	ErrStateClosed = errors.New("lua state is closed")

	// ErrExecutionTimeout is returned when a script outlives its timeout.
	ErrExecutionTimeout = errors.New("lua execution timeout")

	// ErrUnknownCapability is returned by Grant for names it does not know.
	ErrUnknownCapability = errors.New("unknown capability")
)

// CapabilityError is returned when a capability is not granted.
type CapabilityError struct {
	Capability Capability
}

func (e *CapabilityError) Error() string {
	return "capability not granted: " + string(e.Capability)
}

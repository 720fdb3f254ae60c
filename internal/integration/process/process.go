package process

import (
	"fmt"
	"strconv"
)

// ExitIndeterminate is returned by Wait when the child terminated in a way
// that carries no exit code, such as being killed by a signal.
const ExitIndeterminate = -1

// DefaultReadSize is the read size used when the caller does not pick one.
const DefaultReadSize = 4096

// DefaultMaxReadBytes caps the scratch buffer a single read may allocate.
const DefaultMaxReadBytes = 16 << 20

// DefaultShell interprets command strings on Unix.
const DefaultShell = "/bin/sh"

// Endpoint identifies the parent-side half of one of the child's pipes.
// Its value is an OS descriptor number, so endpoints from different spawns
// never compare equal while both are open.
type Endpoint struct {
	raw uintptr
}

// EndpointFromRaw rebuilds an Endpoint from the integer handed to a caller.
func EndpointFromRaw(v int64) Endpoint {
	return Endpoint{raw: uintptr(v)}
}

// Raw returns the platform descriptor as an integer.
func (e Endpoint) Raw() int64 {
	return int64(e.raw)
}

// String returns the descriptor number.
func (e Endpoint) String() string {
	return strconv.FormatUint(uint64(e.raw), 10)
}

// Handle identifies a launched child process: a pid on Unix, a process
// HANDLE on Windows.
type Handle struct {
	raw uintptr
}

// HandleFromRaw rebuilds a Handle from the integer handed to a caller.
func HandleFromRaw(v int64) Handle {
	return Handle{raw: uintptr(v)}
}

// Raw returns the platform process reference as an integer.
func (h Handle) Raw() int64 {
	return int64(h.raw)
}

// String returns the process reference number.
func (h Handle) String() string {
	return strconv.FormatUint(uint64(h.raw), 10)
}

// Record is the result of a successful spawn.
type Record struct {
	// ID correlates log lines for this child. It is not used for lookup.
	ID string

	// Handle is required by Wait and Terminate.
	Handle Handle

	// Stdin is the writable end of the child's input pipe.
	Stdin Endpoint

	// Stdout is the readable end of the child's output pipe.
	Stdout Endpoint

	// Stderr is the readable end of the child's error pipe.
	Stderr Endpoint
}

// Endpoints returns the three parent-side endpoints in stdin, stdout,
// stderr order.
func (r Record) Endpoints() []Endpoint {
	return []Endpoint{r.Stdin, r.Stdout, r.Stderr}
}

// ReadStatus classifies the outcome of a single non-blocking read.
type ReadStatus int

const (
	// ReadNone means nothing is buffered right now.
	ReadNone ReadStatus = iota
	// ReadData means at least one byte was read.
	ReadData
	// ReadEOF means the writer closed the pipe and it is drained.
	ReadEOF
)

// String returns a human-readable status name.
func (s ReadStatus) String() string {
	switch s {
	case ReadNone:
		return "none"
	case ReadData:
		return "data"
	case ReadEOF:
		return "eof"
	default:
		return fmt.Sprintf("unknown(%d)", s)
	}
}

// Backend is the platform boundary. Implementations talk to the OS directly
// and keep no state about the resources they hand out.
//
// Spawn reports failures as *SpawnError. The remaining methods return the
// raw OS error; Runner converts those into the error taxonomy.
type Backend interface {
	// Spawn creates the pipe triple and starts command with it.
	Spawn(command string) (Record, error)

	// Wait blocks until the child exits and reaps it.
	Wait(h Handle) (int, error)

	// Terminate asks the OS to kill the child. It does not reap.
	Terminate(h Handle) error

	// Write performs a single write and reports how much was accepted.
	Write(ep Endpoint, data []byte) (int, error)

	// TryRead fills buf with whatever is buffered without blocking.
	TryRead(ep Endpoint, buf []byte) (ReadStatus, int, error)

	// Close releases the OS resource behind ep.
	Close(ep Endpoint) error
}

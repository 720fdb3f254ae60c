//go:build darwin

package process

import (
	"syscall"

	"golang.org/x/sys/unix"
)

// openPipe creates a pipe and marks both ends close-on-exec. Darwin has no
// pipe2, so the fork lock is held until the flags are set.
func openPipe() (r, w sysHandle, err error) {
	var p [2]int
	syscall.ForkLock.RLock()
	defer syscall.ForkLock.RUnlock()
	if err := unix.Pipe(p[:]); err != nil {
		return invalidHandle, invalidHandle, err
	}
	unix.CloseOnExec(p[0])
	unix.CloseOnExec(p[1])
	return p[0], p[1], nil
}

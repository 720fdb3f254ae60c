//go:build linux || freebsd || netbsd || openbsd || dragonfly

package process

import "golang.org/x/sys/unix"

// openPipe creates a pipe with both ends close-on-exec, so a concurrent
// fork elsewhere in the program never inherits them.
func openPipe() (r, w sysHandle, err error) {
	var p [2]int
	if err := unix.Pipe2(p[:], unix.O_CLOEXEC); err != nil {
		return invalidHandle, invalidHandle, err
	}
	return p[0], p[1], nil
}

//go:build linux || darwin || freebsd || netbsd || openbsd || dragonfly

package process

import (
	"math"

	"golang.org/x/sys/unix"
)

// sysHandle is a file descriptor.
type sysHandle = int

const invalidHandle sysHandle = -1

func closeSys(fd sysHandle) error {
	return unix.Close(fd)
}

// validHandle reports whether v can name a single child. kill(2) and
// wait4(2) treat 0 and negative pids as process groups or wildcards.
func validHandle(v int64) bool {
	return v > 0 && v <= math.MaxInt32
}

// validEndpoint reports whether v fits a descriptor. poll(2) skips negative
// descriptors and the kernel truncates larger values to 32 bits.
func validEndpoint(v int64) bool {
	return v >= 0 && v <= math.MaxInt32
}

//go:build linux || darwin || freebsd || netbsd || openbsd || dragonfly

package process

import (
	"errors"
	"os"
	"path/filepath"
	"syscall"

	"golang.org/x/sys/unix"
)

// posixBackend runs commands through a shell and talks to raw descriptors.
type posixBackend struct {
	shell string
}

func newBackend(shell string) Backend {
	if shell == "" {
		shell = DefaultShell
	}
	return &posixBackend{shell: shell}
}

// Spawn runs `<shell> -c command` with the pipe triple on fds 0, 1 and 2.
//
// ForkExec dup2s exactly the listed descriptors into the child. Every other
// descriptor the program holds, including the parent-side halves, is
// close-on-exec.
func (b *posixBackend) Spawn(command string) (Record, error) {
	pipes := newPipeTriple()
	if err := pipes.open(); err != nil {
		pipes.closeAll()
		return Record{}, &SpawnError{Op: "pipe", Command: command, Err: err}
	}

	child := pipes.childSide()
	files := []uintptr{uintptr(child[0]), uintptr(child[1]), uintptr(child[2])}

	pid, err := syscall.ForkExec(b.shell, []string{filepath.Base(b.shell), "-c", command}, &syscall.ProcAttr{
		Env:   os.Environ(),
		Files: files,
	})

	// The child holds its own copies now. Keeping ours would stop stdout
	// and stderr from ever reaching EOF.
	pipes.closeChild()

	if err != nil {
		pipes.closeParent()
		return Record{}, &SpawnError{Op: "start", Command: command, Err: err}
	}

	return pipes.record(Handle{raw: uintptr(pid)}), nil
}

// Wait reaps the child with wait4. Any status other than a normal exit
// yields ExitIndeterminate.
func (b *posixBackend) Wait(h Handle) (int, error) {
	if !validHandle(h.Raw()) {
		return ExitIndeterminate, unix.ECHILD
	}

	var status unix.WaitStatus
	for {
		_, err := unix.Wait4(int(h.raw), &status, 0, nil)
		if errors.Is(err, unix.EINTR) {
			continue
		}
		if err != nil {
			return ExitIndeterminate, err
		}
		break
	}

	if status.Exited() {
		return status.ExitStatus(), nil
	}
	return ExitIndeterminate, nil
}

// Terminate sends SIGTERM.
func (b *posixBackend) Terminate(h Handle) error {
	if !validHandle(h.Raw()) {
		return unix.ESRCH
	}
	return unix.Kill(int(h.raw), unix.SIGTERM)
}

// Write issues one write(2). A broken pipe comes back as EPIPE: the Go
// runtime does not let SIGPIPE kill the program for descriptors other
// than 1 and 2.
func (b *posixBackend) Write(ep Endpoint, data []byte) (int, error) {
	if !validEndpoint(ep.Raw()) {
		return 0, unix.EBADF
	}
	for {
		n, err := unix.Write(int(ep.raw), data)
		if errors.Is(err, unix.EINTR) {
			continue
		}
		if n < 0 {
			n = 0
		}
		return n, err
	}
}

// TryRead polls the descriptor with a zero timeout and only reads when the
// kernel reports it readable or hung up, so the read itself cannot block.
func (b *posixBackend) TryRead(ep Endpoint, buf []byte) (ReadStatus, int, error) {
	if !validEndpoint(ep.Raw()) {
		return ReadNone, 0, unix.EBADF
	}

	fd := int(ep.raw)
	fds := []unix.PollFd{{Fd: int32(fd), Events: unix.POLLIN}}

	ready, err := unix.Poll(fds, 0)
	if errors.Is(err, unix.EINTR) {
		return ReadNone, 0, nil
	}
	if err != nil {
		return ReadNone, 0, err
	}
	if ready == 0 {
		return ReadNone, 0, nil
	}
	if fds[0].Revents&unix.POLLNVAL != 0 {
		return ReadNone, 0, unix.EBADF
	}

	for {
		n, err := unix.Read(fd, buf)
		switch {
		case errors.Is(err, unix.EINTR):
			continue
		case errors.Is(err, unix.EAGAIN):
			return ReadNone, 0, nil
		case err != nil:
			return ReadNone, 0, err
		case n == 0:
			return ReadEOF, 0, nil
		default:
			return ReadData, n, nil
		}
	}
}

// Close closes the descriptor. A second close of the same number yields
// EBADF unless the number has been reused in between.
func (b *posixBackend) Close(ep Endpoint) error {
	if !validEndpoint(ep.Raw()) {
		return unix.EBADF
	}
	return unix.Close(int(ep.raw))
}

//go:build !(linux || darwin || freebsd || netbsd || openbsd || dragonfly || windows)

package process

type sysHandle = int

const invalidHandle sysHandle = -1

func closeSys(sysHandle) error { return ErrUnsupportedPlatform }

func validHandle(v int64) bool { return v > 0 }

func validEndpoint(v int64) bool { return v >= 0 }

func openPipe() (r, w sysHandle, err error) {
	return invalidHandle, invalidHandle, ErrUnsupportedPlatform
}

type unsupportedBackend struct{}

func newBackend(string) Backend { return unsupportedBackend{} }

func (unsupportedBackend) Spawn(command string) (Record, error) {
	return Record{}, &SpawnError{Op: "start", Command: command, Err: ErrUnsupportedPlatform}
}

func (unsupportedBackend) Wait(Handle) (int, error) { return ExitIndeterminate, ErrUnsupportedPlatform }

func (unsupportedBackend) Terminate(Handle) error { return ErrUnsupportedPlatform }

func (unsupportedBackend) Write(Endpoint, []byte) (int, error) { return 0, ErrUnsupportedPlatform }

func (unsupportedBackend) TryRead(Endpoint, []byte) (ReadStatus, int, error) {
	return ReadNone, 0, ErrUnsupportedPlatform
}

func (unsupportedBackend) Close(Endpoint) error { return ErrUnsupportedPlatform }

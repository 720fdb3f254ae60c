//go:build windows

package process

import (
	"errors"
	"unsafe"

	"golang.org/x/sys/windows"
)

// sysHandle is a kernel object HANDLE.
type sysHandle = windows.Handle

const invalidHandle = windows.InvalidHandle

var (
	modkernel32       = windows.NewLazySystemDLL("kernel32.dll")
	procPeekNamedPipe = modkernel32.NewProc("PeekNamedPipe")
)

func closeSys(h sysHandle) error {
	return windows.CloseHandle(h)
}

// validHandle rejects NULL and the negative pseudo-handles, which name the
// calling process or thread.
func validHandle(v int64) bool {
	return v > 0
}

// validEndpoint rejects NULL and the negative pseudo-handles.
func validEndpoint(v int64) bool {
	return v > 0
}

// openPipe creates an anonymous pipe whose handles are inheritable. Spawn
// strips inheritance from the halves the parent keeps.
func openPipe() (r, w sysHandle, err error) {
	sa := windows.SecurityAttributes{InheritHandle: 1}
	sa.Length = uint32(unsafe.Sizeof(sa))
	if err := windows.CreatePipe(&r, &w, &sa, 0); err != nil {
		return invalidHandle, invalidHandle, err
	}
	return r, w, nil
}

// windowsBackend passes the command line to CreateProcess unchanged.
type windowsBackend struct{}

func newBackend(string) Backend {
	return windowsBackend{}
}

// Spawn starts command with no console window. The explicit handle list
// keeps the child from inheriting any inheritable handle other than its
// three standard streams.
func (windowsBackend) Spawn(command string) (Record, error) {
	pipes := newPipeTriple()
	if err := pipes.open(); err != nil {
		pipes.closeAll()
		return Record{}, &SpawnError{Op: "pipe", Command: command, Err: err}
	}

	for _, h := range pipes.parentSide() {
		if err := windows.SetHandleInformation(h, windows.HANDLE_FLAG_INHERIT, 0); err != nil {
			pipes.closeAll()
			return Record{}, &SpawnError{Op: "pipe", Command: command, Err: err}
		}
	}

	pi, err := createProcess(command, pipes.childSide())

	// The child holds its own copies now. Keeping ours would stop stdout
	// and stderr from ever reporting a broken pipe.
	pipes.closeChild()

	if err != nil {
		pipes.closeParent()
		return Record{}, &SpawnError{Op: "start", Command: command, Err: err}
	}
	_ = windows.CloseHandle(pi.Thread)

	return pipes.record(Handle{raw: uintptr(pi.Process)}), nil
}

func createProcess(command string, child []sysHandle) (*windows.ProcessInformation, error) {
	cmdline, err := windows.UTF16PtrFromString(command)
	if err != nil {
		return nil, err
	}

	attrs, err := windows.NewProcThreadAttributeList(1)
	if err != nil {
		return nil, err
	}
	defer attrs.Delete()

	inherit := make([]windows.Handle, len(child))
	copy(inherit, child)
	if err := attrs.Update(
		windows.PROC_THREAD_ATTRIBUTE_HANDLE_LIST,
		unsafe.Pointer(&inherit[0]),
		uintptr(len(inherit))*unsafe.Sizeof(inherit[0]),
	); err != nil {
		return nil, err
	}

	si := &windows.StartupInfoEx{
		StartupInfo: windows.StartupInfo{
			Flags:      windows.STARTF_USESTDHANDLES | windows.STARTF_USESHOWWINDOW,
			ShowWindow: windows.SW_HIDE,
			StdInput:   child[0],
			StdOutput:  child[1],
			StdErr:     child[2],
		},
		ProcThreadAttributeList: attrs.List(),
	}
	si.Cb = uint32(unsafe.Sizeof(*si))

	pi := new(windows.ProcessInformation)
	err = windows.CreateProcess(
		nil,
		cmdline,
		nil,
		nil,
		true,
		windows.CREATE_NO_WINDOW|windows.EXTENDED_STARTUPINFO_PRESENT,
		nil,
		nil,
		&si.StartupInfo,
		pi,
	)
	if err != nil {
		return nil, err
	}
	return pi, nil
}

// Wait blocks on the process object, reads its exit code and closes the
// handle.
func (windowsBackend) Wait(h Handle) (int, error) {
	if !validHandle(h.Raw()) {
		return ExitIndeterminate, windows.ERROR_INVALID_HANDLE
	}
	ph := windows.Handle(h.raw)
	if _, err := windows.WaitForSingleObject(ph, windows.INFINITE); err != nil {
		return ExitIndeterminate, err
	}

	var code uint32
	err := windows.GetExitCodeProcess(ph, &code)
	_ = windows.CloseHandle(ph)
	if err != nil {
		return ExitIndeterminate, err
	}
	return int(code), nil
}

// Terminate kills the process with exit code 1.
func (windowsBackend) Terminate(h Handle) error {
	if !validHandle(h.Raw()) {
		return windows.ERROR_INVALID_HANDLE
	}
	return windows.TerminateProcess(windows.Handle(h.raw), 1)
}

// Write issues one WriteFile. A reader that has gone away surfaces as
// ERROR_NO_DATA or ERROR_BROKEN_PIPE.
func (windowsBackend) Write(ep Endpoint, data []byte) (int, error) {
	if !validEndpoint(ep.Raw()) {
		return 0, windows.ERROR_INVALID_HANDLE
	}
	var done uint32
	err := windows.WriteFile(windows.Handle(ep.raw), data, &done, nil)
	return int(done), err
}

// TryRead peeks at the pipe and reads no more than is already buffered.
// A broken pipe means the writer closed and everything has been drained.
func (windowsBackend) TryRead(ep Endpoint, buf []byte) (ReadStatus, int, error) {
	if !validEndpoint(ep.Raw()) {
		return ReadNone, 0, windows.ERROR_INVALID_HANDLE
	}
	h := windows.Handle(ep.raw)

	var avail uint32
	r1, _, e1 := procPeekNamedPipe.Call(
		uintptr(h),
		0,
		0,
		0,
		uintptr(unsafe.Pointer(&avail)),
		0,
	)
	if r1 == 0 {
		if errors.Is(e1, windows.ERROR_BROKEN_PIPE) {
			return ReadEOF, 0, nil
		}
		return ReadNone, 0, e1
	}
	if avail == 0 {
		return ReadNone, 0, nil
	}

	want := len(buf)
	if int(avail) < want {
		want = int(avail)
	}

	var done uint32
	if err := windows.ReadFile(h, buf[:want], &done, nil); err != nil {
		if errors.Is(err, windows.ERROR_BROKEN_PIPE) {
			return ReadEOF, 0, nil
		}
		return ReadNone, 0, err
	}
	if done == 0 {
		return ReadNone, 0, nil
	}
	return ReadData, int(done), nil
}

// Close closes the handle. Closing an already closed handle reports
// ERROR_INVALID_HANDLE.
func (windowsBackend) Close(ep Endpoint) error {
	if !validEndpoint(ep.Raw()) {
		return windows.ERROR_INVALID_HANDLE
	}
	return windows.CloseHandle(windows.Handle(ep.raw))
}

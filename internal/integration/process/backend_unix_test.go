//go:build linux || darwin || freebsd || netbsd || openbsd || dragonfly

package process

import (
	"bytes"
	"errors"
	"io"
	"os"
	"syscall"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sys/unix"
)

// openFDs counts the descriptors currently open in this process.
func openFDs(t *testing.T) int {
	t.Helper()
	entries, err := os.ReadDir("/dev/fd")
	require.NoError(t, err)
	return len(entries)
}

// drain polls ep until EOF or timeout and returns everything read.
func drain(t *testing.T, r *Runner, ep Endpoint, timeout time.Duration) []byte {
	t.Helper()
	var out bytes.Buffer
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		data, err := r.Read(ep, DefaultReadSize)
		if errors.Is(err, io.EOF) {
			return out.Bytes()
		}
		require.NoError(t, err)
		if len(data) == 0 {
			time.Sleep(5 * time.Millisecond)
			continue
		}
		out.Write(data)
	}
	t.Fatalf("timed out draining endpoint %s, got %q", ep, out.String())
	return nil
}

// readUntil polls ep until the accumulated output contains want.
func readUntil(t *testing.T, r *Runner, ep Endpoint, want []byte, timeout time.Duration) []byte {
	t.Helper()
	var out bytes.Buffer
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		data, err := r.Read(ep, DefaultReadSize)
		require.NoError(t, err)
		out.Write(data)
		if bytes.Contains(out.Bytes(), want) {
			return out.Bytes()
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %q, got %q", want, out.String())
	return nil
}

func spawn(t *testing.T, r *Runner, command string) Record {
	t.Helper()
	rec, err := r.Spawn(command)
	require.NoError(t, err)
	return rec
}

func TestSpawnEcho(t *testing.T) {
	r := NewRunner()
	rec := spawn(t, r, "echo hello")
	defer r.CloseRecord(rec)

	ids := map[int64]bool{
		rec.Handle.Raw(): true,
		rec.Stdin.Raw():  true,
		rec.Stdout.Raw(): true,
		rec.Stderr.Raw(): true,
	}
	assert.Len(t, ids, 4, "record identifiers must be distinct")
	assert.Positive(t, rec.Handle.Raw())

	out := drain(t, r, rec.Stdout, 5*time.Second)
	assert.Equal(t, "hello\n", string(out))

	code, err := r.Wait(rec.Handle)
	require.NoError(t, err)
	assert.Equal(t, 0, code)
}

func TestSpawnStderr(t *testing.T) {
	r := NewRunner()
	rec := spawn(t, r, "echo oops 1>&2")
	defer r.CloseRecord(rec)

	assert.Equal(t, "oops\n", string(drain(t, r, rec.Stderr, 5*time.Second)))
	assert.Empty(t, drain(t, r, rec.Stdout, 5*time.Second))

	_, err := r.Wait(rec.Handle)
	require.NoError(t, err)
}

func TestSpawnFailureLeaksNothing(t *testing.T) {
	r := NewRunner(WithShell("/nonexistent/luarun-shell"))

	// Warm up anything lazily opened by the runtime.
	_, err := r.Spawn("true")
	require.Error(t, err)

	before := openFDs(t)
	for i := 0; i < 50; i++ {
		_, err := r.Spawn("true")
		var se *SpawnError
		require.ErrorAs(t, err, &se)
		assert.Equal(t, "start", se.Op)
		assert.ErrorIs(t, err, syscall.ENOENT)

		_, err = r.Spawn("")
		require.ErrorIs(t, err, ErrEmptyCommand)
	}
	assert.Equal(t, before, openFDs(t))
}

func TestSpawnSuccessReleasesChildSide(t *testing.T) {
	r := NewRunner()
	before := openFDs(t)

	for i := 0; i < 10; i++ {
		rec := spawn(t, r, "true")
		_, err := r.Wait(rec.Handle)
		require.NoError(t, err)
		require.NoError(t, r.CloseRecord(rec))
	}
	assert.Equal(t, before, openFDs(t))
}

func TestReadDoesNotBlock(t *testing.T) {
	r := NewRunner()
	rec := spawn(t, r, "exec sleep 30")
	defer r.CloseRecord(rec)

	start := time.Now()
	data, err := r.Read(rec.Stdout, DefaultReadSize)
	require.NoError(t, err)
	assert.Empty(t, data)
	assert.Less(t, time.Since(start), time.Second)

	require.NoError(t, r.Terminate(rec.Handle))
	_, err = r.Wait(rec.Handle)
	require.NoError(t, err)
}

func TestShortReadBound(t *testing.T) {
	r := NewRunner()
	rec := spawn(t, r, "printf '%0100d' 0")
	defer r.CloseRecord(rec)

	deadline := time.Now().Add(5 * time.Second)
	var first []byte
	for time.Now().Before(deadline) {
		data, err := r.Read(rec.Stdout, 4)
		require.NoError(t, err)
		if len(data) > 0 {
			first = data
			break
		}
		time.Sleep(5 * time.Millisecond)
	}
	require.NotEmpty(t, first)
	assert.LessOrEqual(t, len(first), 4)

	rest := drain(t, r, rec.Stdout, 5*time.Second)
	assert.Len(t, rest, 100-len(first))

	_, err := r.Wait(rec.Handle)
	require.NoError(t, err)
}

func TestRoundTrip(t *testing.T) {
	r := NewRunner()
	rec := spawn(t, r, "cat")
	defer r.Close(rec.Stdout)
	defer r.Close(rec.Stderr)

	n, err := r.Write(rec.Stdin, []byte("ping"))
	require.NoError(t, err)
	assert.Equal(t, 4, n)

	out := readUntil(t, r, rec.Stdout, []byte("ping"), 5*time.Second)
	assert.Equal(t, "ping", string(out))

	// cat exits once its stdin reaches EOF.
	require.NoError(t, r.Close(rec.Stdin))
	assert.Empty(t, drain(t, r, rec.Stdout, 5*time.Second))

	code, err := r.Wait(rec.Handle)
	require.NoError(t, err)
	assert.Equal(t, 0, code)
}

func TestWaitExitCode(t *testing.T) {
	r := NewRunner()
	rec := spawn(t, r, "exit 7")
	defer r.CloseRecord(rec)

	code, err := r.Wait(rec.Handle)
	require.NoError(t, err)
	assert.Equal(t, 7, code)
}

func TestTerminate(t *testing.T) {
	r := NewRunner()
	rec := spawn(t, r, "exec sleep 30")
	defer r.CloseRecord(rec)

	require.NoError(t, r.Terminate(rec.Handle))

	done := make(chan int, 1)
	go func() {
		code, _ := r.Wait(rec.Handle)
		done <- code
	}()

	select {
	case code := <-done:
		assert.Equal(t, ExitIndeterminate, code)
	case <-time.After(10 * time.Second):
		t.Fatal("wait did not return after terminate")
	}
}

func TestWaitTwice(t *testing.T) {
	r := NewRunner()
	rec := spawn(t, r, "true")
	defer r.CloseRecord(rec)

	_, err := r.Wait(rec.Handle)
	require.NoError(t, err)

	code, err := r.Wait(rec.Handle)
	assert.Equal(t, ExitIndeterminate, code)
	var ioe *IOError
	require.ErrorAs(t, err, &ioe)
	assert.ErrorIs(t, err, syscall.ECHILD)
}

func TestWriteAfterExit(t *testing.T) {
	r := NewRunner()
	rec := spawn(t, r, "exit 0")
	defer r.CloseRecord(rec)

	_, err := r.Wait(rec.Handle)
	require.NoError(t, err)

	_, err = r.Write(rec.Stdin, []byte("x"))
	var ioe *IOError
	require.ErrorAs(t, err, &ioe)
	assert.ErrorIs(t, err, syscall.EPIPE)
}

// Closing twice is a caller error. On Unix the second close reports EBADF
// as long as nothing reused the descriptor in between.
func TestDoubleClose(t *testing.T) {
	r := NewRunner()
	rec := spawn(t, r, "true")
	defer r.Close(rec.Stdout)
	defer r.Close(rec.Stderr)

	_, err := r.Wait(rec.Handle)
	require.NoError(t, err)

	require.NoError(t, r.Close(rec.Stdin))
	err = r.Close(rec.Stdin)
	var ioe *IOError
	require.ErrorAs(t, err, &ioe)
	assert.Equal(t, "close", ioe.Op)
	assert.ErrorIs(t, err, syscall.EBADF)
}

func TestInvalidIdentifiersUnix(t *testing.T) {
	r := NewRunner()

	for _, raw := range []int64{0, -1, 1 << 40} {
		h := HandleFromRaw(raw)

		err := r.Terminate(h)
		assert.ErrorIs(t, err, ErrInvalidHandle, "terminate %d", raw)

		code, err := r.Wait(h)
		assert.Equal(t, ExitIndeterminate, code)
		assert.ErrorIs(t, err, ErrInvalidHandle, "wait %d", raw)
	}

	for _, raw := range []int64{-1, 1 << 40} {
		ep := EndpointFromRaw(raw)

		_, err := r.Read(ep, DefaultReadSize)
		assert.ErrorIs(t, err, ErrInvalidEndpoint, "read %d", raw)

		_, err = r.Write(ep, []byte("x"))
		assert.ErrorIs(t, err, ErrInvalidEndpoint, "write %d", raw)

		err = r.Close(ep)
		assert.ErrorIs(t, err, ErrInvalidEndpoint, "close %d", raw)
	}
}

// Signalling pid 0 or -1 would reach the test binary's process group or
// every process of the user. The sibling child must stay alive.
func TestTerminateGroupHandlesSignalNothing(t *testing.T) {
	r := NewRunner()
	rec := spawn(t, r, "exec sleep 30")
	defer r.CloseRecord(rec)

	require.Error(t, r.Terminate(HandleFromRaw(0)))
	require.Error(t, r.Terminate(HandleFromRaw(-1)))

	assert.NoError(t, unix.Kill(int(rec.Handle.Raw()), 0), "child must still be running")

	require.NoError(t, r.Terminate(rec.Handle))
	code, err := r.Wait(rec.Handle)
	require.NoError(t, err)
	assert.Equal(t, ExitIndeterminate, code)
}

func TestWaitWildcardDoesNotReap(t *testing.T) {
	r := NewRunner()
	rec := spawn(t, r, "exit 7")
	defer r.CloseRecord(rec)

	for _, raw := range []int64{-1, 0} {
		code, err := r.Wait(HandleFromRaw(raw))
		assert.Equal(t, ExitIndeterminate, code)
		assert.ErrorIs(t, err, ErrInvalidHandle)
	}

	code, err := r.Wait(rec.Handle)
	require.NoError(t, err)
	assert.Equal(t, 7, code)
}

func TestBackendRejectsOutOfRangeDescriptors(t *testing.T) {
	b := newBackend("")

	for _, raw := range []int64{-1, 1 << 40} {
		status, n, err := b.TryRead(EndpointFromRaw(raw), make([]byte, 8))
		assert.Equal(t, ReadNone, status)
		assert.Equal(t, 0, n)
		assert.ErrorIs(t, err, unix.EBADF, "read %d", raw)

		_, err = b.Write(EndpointFromRaw(raw), []byte("x"))
		assert.ErrorIs(t, err, unix.EBADF, "write %d", raw)
	}

	assert.ErrorIs(t, b.Terminate(HandleFromRaw(0)), unix.ESRCH)
	_, err := b.Wait(HandleFromRaw(-1))
	assert.ErrorIs(t, err, unix.ECHILD)
}

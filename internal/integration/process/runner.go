package process

import (
	"errors"
	"io"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"github.com/dshills/luarun/internal/metrics"
)

// Runner is the platform-independent layer over a Backend. It validates
// arguments, converts OS failures into SpawnError, IOError and
// AllocationError, and records logs and metrics.
//
// Runner holds no per-process state. It is safe for concurrent use as long
// as each endpoint and handle has a single owner at a time.
type Runner struct {
	backend Backend
	shell   string
	maxRead int
	logger  *slog.Logger
	metrics *metrics.Collector
}

// RunnerOption configures a Runner.
type RunnerOption func(*Runner)

// WithBackend replaces the platform backend.
func WithBackend(b Backend) RunnerOption {
	return func(r *Runner) {
		r.backend = b
	}
}

// WithShell sets the interpreter used on Unix. It has no effect on
// Windows or when WithBackend is also given.
func WithShell(shell string) RunnerOption {
	return func(r *Runner) {
		r.shell = shell
	}
}

// WithMaxReadBytes caps the buffer a single Read may allocate.
func WithMaxReadBytes(n int) RunnerOption {
	return func(r *Runner) {
		if n > 0 {
			r.maxRead = n
		}
	}
}

// WithLogger sets the logger. The default discards everything.
func WithLogger(l *slog.Logger) RunnerOption {
	return func(r *Runner) {
		if l != nil {
			r.logger = l
		}
	}
}

// WithMetrics sets the metrics collector.
func WithMetrics(c *metrics.Collector) RunnerOption {
	return func(r *Runner) {
		r.metrics = c
	}
}

// NewRunner creates a Runner for the current platform.
func NewRunner(opts ...RunnerOption) *Runner {
	r := &Runner{
		maxRead: DefaultMaxReadBytes,
		logger:  slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.backend == nil {
		r.backend = newBackend(r.shell)
	}
	return r
}

// MaxReadBytes returns the largest read size Read accepts.
func (r *Runner) MaxReadBytes() int {
	return r.maxRead
}

// Spawn starts command with its standard streams on fresh pipes.
//
// A blank command is rejected before any pipe is created. On every failure
// the returned error is a *SpawnError and no endpoint is left open.
func (r *Runner) Spawn(command string) (Record, error) {
	if strings.TrimSpace(command) == "" {
		r.metrics.SpawnResult("validate")
		return Record{}, &SpawnError{Op: "validate", Command: command, Err: ErrEmptyCommand}
	}

	rec, err := r.backend.Spawn(command)
	if err != nil {
		var se *SpawnError
		if !errors.As(err, &se) {
			se = &SpawnError{Op: "start", Command: command, Err: err}
		}
		r.metrics.SpawnResult(se.Op)
		r.logger.Warn("spawn failed", "command", command, "op", se.Op, "error", se.Err)
		return Record{}, se
	}

	rec.ID = uuid.NewString()
	r.metrics.SpawnResult("ok")
	r.logger.Debug("process spawned",
		"id", rec.ID,
		"pid", rec.Handle.Raw(),
		"command", command,
		"stdin", rec.Stdin.Raw(),
		"stdout", rec.Stdout.Raw(),
		"stderr", rec.Stderr.Raw(),
	)
	return rec, nil
}

// Wait blocks until the child exits and returns its exit code, or
// ExitIndeterminate when there is none. It must be called once per handle.
// Handles that cannot name a single child fail with ErrInvalidHandle
// instead of turning into a wildcard wait.
func (r *Runner) Wait(h Handle) (int, error) {
	if !validHandle(h.Raw()) {
		r.metrics.WaitOutcome("error")
		return ExitIndeterminate, &IOError{Op: "wait", Raw: h.Raw(), Err: ErrInvalidHandle}
	}

	code, err := r.backend.Wait(h)
	if err != nil {
		r.metrics.WaitOutcome("error")
		r.logger.Warn("wait failed", "pid", h.Raw(), "error", err)
		return ExitIndeterminate, &IOError{Op: "wait", Raw: h.Raw(), Err: err}
	}

	if code == ExitIndeterminate {
		r.metrics.WaitOutcome("indeterminate")
	} else {
		r.metrics.WaitOutcome("exited")
	}
	r.logger.Debug("process exited", "pid", h.Raw(), "code", code)
	return code, nil
}

// Terminate asks the OS to kill the child. A nil error means the request
// was accepted, not that the child is gone; Wait is still required.
// Handles such as 0 or -1 that would signal a process group are rejected
// with ErrInvalidHandle.
func (r *Runner) Terminate(h Handle) error {
	if !validHandle(h.Raw()) {
		r.metrics.TerminateResult(false)
		return &IOError{Op: "terminate", Raw: h.Raw(), Err: ErrInvalidHandle}
	}

	err := r.backend.Terminate(h)
	r.metrics.TerminateResult(err == nil)
	if err != nil {
		r.logger.Warn("terminate failed", "pid", h.Raw(), "error", err)
		return &IOError{Op: "terminate", Raw: h.Raw(), Err: err}
	}
	r.logger.Debug("terminate requested", "pid", h.Raw())
	return nil
}

// Write writes data to ep and returns how many bytes were accepted. A short
// write is not an error; the count tells the caller what is left.
func (r *Runner) Write(ep Endpoint, data []byte) (int, error) {
	if err := r.checkEndpoint("write", ep); err != nil {
		return 0, err
	}
	if len(data) == 0 {
		return 0, nil
	}

	n, err := r.backend.Write(ep, data)
	r.metrics.AddBytesWritten(n)
	if err != nil {
		r.metrics.IOError("write")
		return n, &IOError{Op: "write", Raw: ep.Raw(), Err: err}
	}
	return n, nil
}

// Read returns up to size bytes already buffered in ep without blocking.
//
// An empty slice with a nil error means no data yet. io.EOF means the
// writer closed the pipe and it is drained. The scratch buffer is allocated
// per call and is never larger than size.
func (r *Runner) Read(ep Endpoint, size int) ([]byte, error) {
	if size <= 0 {
		return nil, ErrInvalidReadSize
	}
	if size > r.maxRead {
		return nil, &AllocationError{Requested: size, Limit: r.maxRead}
	}

	if err := r.checkEndpoint("read", ep); err != nil {
		return nil, err
	}

	buf := make([]byte, size)
	status, n, err := r.backend.TryRead(ep, buf)
	if err != nil {
		r.metrics.IOError("read")
		return nil, &IOError{Op: "read", Raw: ep.Raw(), Err: err}
	}

	switch status {
	case ReadEOF:
		return nil, io.EOF
	case ReadData:
		r.metrics.AddBytesRead(n)
		return buf[:n:n], nil
	default:
		return buf[:0], nil
	}
}

// Close releases ep. It is not idempotent: see the package documentation.
func (r *Runner) Close(ep Endpoint) error {
	if err := r.checkEndpoint("close", ep); err != nil {
		return err
	}
	if err := r.backend.Close(ep); err != nil {
		r.metrics.IOError("close")
		return &IOError{Op: "close", Raw: ep.Raw(), Err: err}
	}
	return nil
}

// CloseRecord closes all three endpoints of rec and returns the joined
// errors. It does not touch the process handle.
func (r *Runner) CloseRecord(rec Record) error {
	var errs []error
	for _, ep := range rec.Endpoints() {
		if err := r.Close(ep); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// checkEndpoint rejects values that cannot name a descriptor on this
// platform before they reach the OS.
func (r *Runner) checkEndpoint(op string, ep Endpoint) error {
	if validEndpoint(ep.Raw()) {
		return nil
	}
	r.metrics.IOError(op)
	return &IOError{Op: op, Raw: ep.Raw(), Err: ErrInvalidEndpoint}
}

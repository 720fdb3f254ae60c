package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/dshills/luarun/internal/integration/process"
	"github.com/dshills/luarun/internal/logging"
)

// Exec runs command, copies its output to stdout and stderr and, when stdin
// is non-nil, feeds it the bytes read from stdin. It returns the child's
// exit code.
//
// Cancelling ctx terminates the child. The returned error then wraps
// ctx.Err() and the code is usually process.ExitIndeterminate.
func (app *Application) Exec(ctx context.Context, command string, stdin io.Reader, stdout, stderr io.Writer) (int, error) {
	if stdout == nil {
		stdout = io.Discard
	}
	if stderr == nil {
		stderr = io.Discard
	}

	rec, err := app.runner.Spawn(command)
	if err != nil {
		return process.ExitIndeterminate, err
	}
	log := logging.Module(app.logger, "exec").With("id", rec.ID, "pid", rec.Handle.Raw())
	log.Debug("command started", "command", command)

	in := &inputPipe{runner: app.runner, ep: rec.Stdin}
	if stdin != nil {
		go in.feed(stdin)
	} else if err := in.close(); err != nil {
		log.Warn("closing stdin", "error", err)
	}

	pumpErr := app.pump(ctx, rec, stdout, stderr)
	if pumpErr != nil {
		log.Debug("terminating command", "reason", pumpErr)
		if err := app.runner.Terminate(rec.Handle); err != nil {
			log.Warn("terminate failed", "error", err)
		}
	}
	if err := in.close(); err != nil {
		log.Warn("closing stdin", "error", err)
	}

	code, waitErr := app.runner.Wait(rec.Handle)
	closeErr := errors.Join(app.runner.Close(rec.Stdout), app.runner.Close(rec.Stderr))

	log.Debug("command finished", "code", code)
	return code, errors.Join(pumpErr, waitErr, closeErr)
}

// outputStream is one of the child's output pipes and its destination.
type outputStream struct {
	ep  process.Endpoint
	w   io.Writer
	eof bool
}

// pump polls the child's stdout and stderr until both reach EOF, copying
// whatever arrives. It sleeps for the poll interval only when a full pass
// produced nothing.
func (app *Application) pump(ctx context.Context, rec process.Record, stdout, stderr io.Writer) error {
	streams := []*outputStream{
		{ep: rec.Stdout, w: stdout},
		{ep: rec.Stderr, w: stderr},
	}
	size := app.cfg.Process.DefaultReadSize

	ticker := time.NewTicker(app.cfg.Process.PollIntervalDuration())
	defer ticker.Stop()

	for {
		open, progressed := 0, false
		for _, s := range streams {
			if s.eof {
				continue
			}
			data, err := app.runner.Read(s.ep, size)
			if errors.Is(err, io.EOF) {
				s.eof = true
				continue
			}
			if err != nil {
				return err
			}
			open++
			if len(data) == 0 {
				continue
			}
			progressed = true
			if _, err := s.w.Write(data); err != nil {
				return fmt.Errorf("copying output: %w", err)
			}
		}

		if open == 0 {
			return nil
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if progressed {
			continue
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// inputPipe forwards a reader into the child's stdin. Writes and close are
// serialized so the endpoint is closed exactly once.
type inputPipe struct {
	runner *process.Runner
	ep     process.Endpoint

	mu     sync.Mutex
	closed bool
}

// feed copies r into the pipe until r is exhausted or the pipe breaks, then
// closes the pipe so the child sees EOF.
func (p *inputPipe) feed(r io.Reader) {
	buf := make([]byte, 32*1024)
	for {
		n, err := r.Read(buf)
		if n > 0 && !p.write(buf[:n]) {
			return
		}
		if err != nil {
			_ = p.close()
			return
		}
	}
}

// write sends all of data and reports false once the pipe is closed or
// broken.
func (p *inputPipe) write(data []byte) bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return false
	}
	for len(data) > 0 {
		n, err := p.runner.Write(p.ep, data)
		if err != nil || n == 0 {
			_ = p.closeLocked()
			return false
		}
		data = data[n:]
	}
	return true
}

func (p *inputPipe) close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.closeLocked()
}

func (p *inputPipe) closeLocked() error {
	if p.closed {
		return nil
	}
	p.closed = true
	return p.runner.Close(p.ep)
}

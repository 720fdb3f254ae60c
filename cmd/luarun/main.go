// Package main is the entry point for luarun.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
)

// Version information (set via ldflags during build).
var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

func main() {
	os.Exit(run())
}

func run() int {
	ctx, stop := signalContext(context.Background())
	defer stop()

	err := newRootCmd().ExecuteContext(ctx)

	var exit *exitCodeError
	if errors.As(err, &exit) {
		return exit.code
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	return 0
}

// signalContext is cancelled by the first interrupt or SIGTERM. After that
// the default handling is restored, so a second signal ends the process
// even while a script is blocked in a wait that never looks at ctx.
func signalContext(parent context.Context) (context.Context, context.CancelFunc) {
	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	go releaseOnDone(ctx, stop)
	return ctx, stop
}

func releaseOnDone(ctx context.Context, stop context.CancelFunc) {
	<-ctx.Done()
	stop()
}

// exitCodeError carries a child's exit status out of a command without
// printing anything.
type exitCodeError struct {
	code int
}

func (e *exitCodeError) Error() string {
	return fmt.Sprintf("exit status %d", e.code)
}

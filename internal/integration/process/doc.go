// Package process spawns child processes and exposes their standard
// streams as raw pipe endpoints.
//
// The package is the systems layer behind the luarun Lua module. A spawn
// creates three pipes, starts the child with the child-side halves bound to
// its stdin, stdout and stderr, closes those halves in the parent, and hands
// back a Record holding the parent-side endpoints and the process handle.
//
// # Runner
//
// Runner is the entry point. It validates arguments, maps OS failures onto
// the error taxonomy, logs and counts, and delegates to a platform Backend:
//
//	runner := process.NewRunner(process.WithLogger(logger))
//
//	rec, err := runner.Spawn("echo hello")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer runner.Close(rec.Stdin)
//	defer runner.Close(rec.Stdout)
//	defer runner.Close(rec.Stderr)
//
//	for {
//	    data, err := runner.Read(rec.Stdout, 4096)
//	    if errors.Is(err, io.EOF) {
//	        break
//	    }
//	    ...
//	}
//	code, _ := runner.Wait(rec.Handle)
//
// # Reads
//
// Read never blocks. It returns an empty slice when nothing is buffered,
// io.EOF once the writer side has been closed and drained, and an *IOError
// for anything else.
//
// # Ownership
//
// There is no process table. Endpoints and handles belong to the caller
// from the moment Spawn returns: each endpoint must be closed exactly once
// and each handle must be waited on exactly once. Closing the same endpoint
// twice reports an *IOError but the descriptor number may already have been
// reused by then.
//
// # Identifiers
//
// Handles and endpoints are plain integers supplied by the caller. Values
// that cannot name a single child or descriptor on the current platform
// are rejected with ErrInvalidHandle or ErrInvalidEndpoint before any
// system call: pid 0 and -1 would otherwise signal or reap a whole group.
//
// # Platforms
//
// On Unix the command runs as `<shell> -c <command>` and reads are realised
// with poll(2). On Windows the command line goes to CreateProcess verbatim
// and reads use PeekNamedPipe.
package process

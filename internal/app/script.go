package app

import (
	"context"
	"log/slog"
	"time"

	"github.com/dshills/luarun/internal/logging"
	"github.com/dshills/luarun/internal/plugin/lua"
	"github.com/dshills/luarun/internal/watch"
)

// RunScript executes the Lua file at path with the luarun module available.
// args become arg[1..n] and path becomes arg[0].
func (app *Application) RunScript(ctx context.Context, path string, args []string) error {
	state, err := lua.NewState(lua.WithExecutionTimeout(app.cfg.Lua.ExecutionTimeoutDuration()))
	if err != nil {
		return &InitError{Component: "lua", Err: err}
	}
	defer state.Close()

	if err := state.Sandbox().GrantAll(app.cfg.Lua.Capabilities); err != nil {
		return &InitError{Component: "lua sandbox", Err: err}
	}
	lua.NewProcessModule(app.runner, app.cfg.Process.DefaultReadSize).Register(state)
	state.SetArgs(path, args)

	log := logging.Module(app.logger, "lua")
	log.Debug("script started", "path", path, "args", len(args), "capabilities", app.cfg.Lua.Capabilities)

	start := time.Now()
	if err := state.DoFile(ctx, path); err != nil {
		log.Error("script failed", "path", path, "error", err)
		return &ScriptError{Path: path, Err: err}
	}

	log.Debug("script finished", "path", path, "elapsed", time.Since(start))
	return nil
}

// WatchScript runs the script at path, then runs it again each time the
// file changes, until ctx is done. A failing run is logged and does not end
// the loop. Each run gets a fresh Lua state.
func (app *Application) WatchScript(ctx context.Context, path string, args []string) error {
	w, err := watch.New(path, watch.DefaultDelay)
	if err != nil {
		return &InitError{Component: "script watcher", Err: err}
	}
	defer w.Close()

	log := logging.Module(app.logger, "watch").With("path", w.Path())
	runs := 0
	for {
		runs++
		if err := app.RunScript(ctx, path, args); err != nil && ctx.Err() == nil {
			log.Warn("run failed, waiting for changes", "run", runs, "error", err)
		}

		if !waitForChange(ctx, w, log) {
			return nil
		}
		log.Info("script changed, rerunning", "run", runs+1)
	}
}

// waitForChange blocks until the watched file changes or ctx is done, and
// reports whether it changed.
func waitForChange(ctx context.Context, w *watch.FileWatcher, log *slog.Logger) bool {
	for {
		select {
		case <-ctx.Done():
			return false
		case err := <-w.Errors():
			log.Warn("watch error", "error", err)
		case <-w.Changes():
			return true
		}
	}
}

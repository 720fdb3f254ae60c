// Package app wires configuration, logging, metrics, the process runner and
// the Lua host together for the luarun command.
package app

import (
	"io"
	"log/slog"
	"os"

	"github.com/dshills/luarun/internal/config"
	"github.com/dshills/luarun/internal/integration/process"
	"github.com/dshills/luarun/internal/logging"
	"github.com/dshills/luarun/internal/metrics"
	"github.com/dshills/luarun/internal/plugin/lua"
)

// Application holds the components shared by every command.
type Application struct {
	cfg     config.Config
	logger  *slog.Logger
	metrics *metrics.Collector
	runner  *process.Runner
}

// Options configures the application.
type Options struct {
	// Config is the merged configuration. It is validated by New.
	Config config.Config

	// LogOutput receives log records. Defaults to os.Stderr.
	LogOutput io.Writer

	// Backend replaces the platform process backend.
	Backend process.Backend
}

// New creates an Application from opts.
func New(opts Options) (*Application, error) {
	if err := opts.Config.Validate(); err != nil {
		return nil, &InitError{Component: "config", Err: err}
	}
	if err := lua.ValidateCapabilities(opts.Config.Lua.Capabilities); err != nil {
		return nil, &InitError{Component: "lua sandbox", Err: err}
	}

	out := opts.LogOutput
	if out == nil {
		out = os.Stderr
	}

	app := &Application{
		cfg:     opts.Config,
		logger:  logging.New(opts.Config.Logging, out),
		metrics: metrics.New(),
	}

	runnerOpts := []process.RunnerOption{
		process.WithShell(app.cfg.Process.Shell),
		process.WithMaxReadBytes(app.cfg.Process.MaxReadBytes),
		process.WithLogger(logging.Module(app.logger, "process")),
		process.WithMetrics(app.metrics),
	}
	if opts.Backend != nil {
		runnerOpts = append(runnerOpts, process.WithBackend(opts.Backend))
	}
	app.runner = process.NewRunner(runnerOpts...)

	return app, nil
}

// Config returns the configuration the application was built with.
func (app *Application) Config() config.Config {
	return app.cfg
}

// Logger returns the root logger.
func (app *Application) Logger() *slog.Logger {
	return app.logger
}

// Metrics returns the metrics collector.
func (app *Application) Metrics() *metrics.Collector {
	return app.metrics
}

// Runner returns the process runner.
func (app *Application) Runner() *process.Runner {
	return app.runner
}

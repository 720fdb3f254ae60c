package main

import (
	"github.com/spf13/cobra"

	"github.com/dshills/luarun/internal/app"
	"github.com/dshills/luarun/internal/config"
)

// globalFlags are the persistent flags shared by every subcommand. They
// override the config file and environment when set.
type globalFlags struct {
	configPath  string
	logLevel    string
	logFormat   string
	shell       string
	metricsAddr string
}

func newRootCmd() *cobra.Command {
	flags := &globalFlags{}

	root := &cobra.Command{
		Use:   "luarun",
		Short: "Run Lua scripts that drive child processes",
		Long: `luarun runs Lua scripts with the luarun module preloaded. The module
spawns shell commands on fresh pipes and exposes non-blocking reads,
writes, waits and termination to the script.

Example:
  luarun run build.lua --release
  luarun exec "make test"
  echo hello | luarun exec "tr a-z A-Z"`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	pf := root.PersistentFlags()
	pf.StringVarP(&flags.configPath, "config", "c", "", "Path to configuration file (default: ./luarun.toml if present)")
	pf.StringVar(&flags.logLevel, "log-level", "info", "Log level (debug, info, warn, error)")
	pf.StringVar(&flags.logFormat, "log-format", "text", "Log format (text, json)")
	pf.StringVar(&flags.shell, "shell", "", "Shell used to interpret commands on Unix")
	pf.StringVar(&flags.metricsAddr, "metrics-addr", "", "Serve Prometheus metrics on this address")

	root.AddCommand(newRunCmd(flags))
	root.AddCommand(newExecCmd(flags))
	root.AddCommand(newVersionCmd())

	return root
}

// loadConfig layers the flags the user actually set over the file and
// environment configuration.
func (f *globalFlags) loadConfig(cmd *cobra.Command) (config.Config, error) {
	path := f.configPath
	if path == "" {
		path = config.DefaultPath()
	}

	cfg, err := config.Load(path)
	if err != nil {
		return config.Config{}, err
	}

	changed := cmd.Flags().Changed
	if changed("log-level") {
		cfg.Logging.Level = f.logLevel
	}
	if changed("log-format") {
		cfg.Logging.Format = f.logFormat
	}
	if changed("shell") {
		cfg.Process.Shell = f.shell
	}
	if changed("metrics-addr") {
		cfg.Metrics.Addr = f.metricsAddr
	}
	return cfg, nil
}

// newApp builds the application for cmd.
func (f *globalFlags) newApp(cmd *cobra.Command) (*app.Application, error) {
	cfg, err := f.loadConfig(cmd)
	if err != nil {
		return nil, err
	}
	return app.New(app.Options{Config: cfg, LogOutput: cmd.ErrOrStderr()})
}

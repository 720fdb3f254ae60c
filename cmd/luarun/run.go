package main

import (
	"context"
	"time"

	"github.com/spf13/cobra"

	"github.com/dshills/luarun/internal/app"
)

func newRunCmd(flags *globalFlags) *cobra.Command {
	var watchScript bool

	cmd := &cobra.Command{
		Use:   "run <script.lua> [args...]",
		Short: "Run a Lua script",
		Long: `Run a Lua script with the luarun module available through
require("luarun"). Arguments after the script are passed to it in the
global arg table, with arg[0] set to the script path.

With --watch the script runs again every time the file changes, until
luarun is interrupted.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			application, err := flags.newApp(cmd)
			if err != nil {
				return err
			}

			stop, err := startMetrics(application)
			if err != nil {
				return err
			}
			defer stop()

			if watchScript {
				return application.WatchScript(cmd.Context(), args[0], args[1:])
			}
			return application.RunScript(cmd.Context(), args[0], args[1:])
		},
	}
	// Flags after the script path belong to the script.
	cmd.Flags().SetInterspersed(false)
	cmd.Flags().BoolVarP(&watchScript, "watch", "w", false, "Rerun the script whenever it changes")
	return cmd
}

// startMetrics starts the metrics endpoint when one is configured and
// returns a function that stops it.
func startMetrics(application *app.Application) (func(), error) {
	srv, err := application.StartMetrics()
	if err != nil || srv == nil {
		return func() {}, err
	}
	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(ctx); err != nil {
			application.Logger().Warn("metrics shutdown", "error", err)
		}
	}, nil
}

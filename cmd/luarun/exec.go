package main

import (
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"
)

func newExecCmd(flags *globalFlags) *cobra.Command {
	var noStdin bool

	cmd := &cobra.Command{
		Use:   "exec <command>",
		Short: "Run a shell command through the process layer",
		Long: `Run a command the way a script would: spawn it on fresh pipes, poll its
stdout and stderr without blocking and forward this process's stdin to it.
luarun exits with the command's exit status, or 1 when there is none.

Multiple arguments are joined with spaces into one command line.
Stdin is not forwarded when it is a terminal.`,
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

			var stdin io.Reader
			if !noStdin {
				stdin = forwardableInput(cmd.InOrStdin())
			}

			code, err := application.Exec(cmd.Context(), strings.Join(args, " "), stdin, cmd.OutOrStdout(), cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			if code != 0 {
				if code < 0 {
					code = 1
				}
				return &exitCodeError{code: code}
			}
			return nil
		},
	}
	cmd.Flags().SetInterspersed(false)
	cmd.Flags().BoolVar(&noStdin, "no-stdin", false, "Do not forward stdin to the command")
	return cmd
}

// forwardableInput returns r unless it is an interactive terminal.
func forwardableInput(r io.Reader) io.Reader {
	if f, ok := r.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		return nil
	}
	return r
}

package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// execute runs the root command with args and returns stdout and stderr.
func execute(t *testing.T, stdin string, args ...string) (string, string, error) {
	t.Helper()
	root := newRootCmd()
	var stdout, stderr bytes.Buffer
	root.SetArgs(args)
	root.SetIn(strings.NewReader(stdin))
	root.SetOut(&stdout)
	root.SetErr(&stderr)
	err := root.ExecuteContext(context.Background())
	return stdout.String(), stderr.String(), err
}

func TestVersionCommand(t *testing.T) {
	out, _, err := execute(t, "", "version")
	require.NoError(t, err)
	assert.Contains(t, out, "luarun "+version)
	assert.Contains(t, out, "Commit: ")
}

func TestRunRequiresScript(t *testing.T) {
	_, _, err := execute(t, "", "run")
	assert.Error(t, err)
}

func TestRunScriptWithArgs(t *testing.T) {
	path := filepath.Join(t.TempDir(), "args.lua")
	require.NoError(t, os.WriteFile(path, []byte(`
		assert(arg[0]:sub(-8) == "args.lua")
		assert(arg[1] == "--release", tostring(arg[1]))
	`), 0o644))

	_, _, err := execute(t, "", "run", path, "--release")
	assert.NoError(t, err)
}

func TestRunScriptFailure(t *testing.T) {
	path := filepath.Join(t.TempDir(), "fail.lua")
	require.NoError(t, os.WriteFile(path, []byte(`error("nope")`), 0o644))

	_, stderr, err := execute(t, "", "--log-format", "json", "run", path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "nope")
	assert.Contains(t, stderr, `"msg":"script failed"`)
}

func TestLoadConfigFlagsOverride(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "luarun.toml")
	require.NoError(t, os.WriteFile(path, []byte(`
[process]
shell = "/bin/bash"

[logging]
level = "warn"
format = "json"
`), 0o644))

	root := newRootCmd()
	flags := &globalFlags{}
	cmd := &cobra.Command{Use: "inspect", RunE: func(*cobra.Command, []string) error { return nil }}
	cmd.Flags().StringVar(&flags.configPath, "config", "", "")
	cmd.Flags().StringVar(&flags.logLevel, "log-level", "info", "")
	cmd.Flags().StringVar(&flags.logFormat, "log-format", "text", "")
	cmd.Flags().StringVar(&flags.shell, "shell", "", "")
	cmd.Flags().StringVar(&flags.metricsAddr, "metrics-addr", "", "")
	root.AddCommand(cmd)

	require.NoError(t, cmd.Flags().Parse([]string{"--config", path, "--log-level", "debug"}))

	cfg, err := flags.loadConfig(cmd)
	require.NoError(t, err)
	assert.Equal(t, "/bin/bash", cfg.Process.Shell, "file value kept")
	assert.Equal(t, "json", cfg.Logging.Format, "unset flag does not override")
	assert.Equal(t, "debug", cfg.Logging.Level, "set flag overrides")
}

func TestMissingConfigFile(t *testing.T) {
	_, _, err := execute(t, "", "--config", filepath.Join(t.TempDir(), "nope.toml"), "version")
	assert.NoError(t, err, "version does not load config")

	_, _, err = execute(t, "", "--config", filepath.Join(t.TempDir(), "nope.toml"), "run", "x.lua")
	assert.Error(t, err)
}

func TestExitCodeError(t *testing.T) {
	err := &exitCodeError{code: 3}
	assert.Equal(t, "exit status 3", err.Error())
}

func TestExecRejectsUnknownCapability(t *testing.T) {
	path := filepath.Join(t.TempDir(), "luarun.toml")
	require.NoError(t, os.WriteFile(path, []byte("[lua]\ncapabilities = [\"bogus\"]\n"), 0o644))

	_, _, err := execute(t, "", "--config", path, "exec", "true")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown capability")
}

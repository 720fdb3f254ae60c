package app

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dshills/luarun/internal/config"
)

func countLines(path string) int {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0
	}
	return strings.Count(string(data), "\n")
}

func TestWatchScriptReruns(t *testing.T) {
	app, _ := newTestApp(t, func(c *config.Config) {
		c.Lua.Capabilities = []string{"unsafe"}
	})

	dir := t.TempDir()
	out := filepath.Join(dir, "runs.txt")
	script := filepath.Join(dir, "watched.lua")
	body := `local f = assert(io.open(arg[1], "a")); f:write("run\n"); f:close()`
	require.NoError(t, os.WriteFile(script, []byte(body), 0o644))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- app.WatchScript(ctx, script, []string{out}) }()

	require.Eventually(t, func() bool { return countLines(out) == 1 }, 5*time.Second, 10*time.Millisecond)

	require.NoError(t, os.WriteFile(script, []byte(body+"\n-- edited\n"), 0o644))
	require.Eventually(t, func() bool { return countLines(out) == 2 }, 5*time.Second, 10*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("WatchScript did not return after cancel")
	}
}

func TestWatchScriptKeepsGoingAfterFailure(t *testing.T) {
	app, logs := newTestApp(t, nil)

	script := filepath.Join(t.TempDir(), "broken.lua")
	require.NoError(t, os.WriteFile(script, []byte(`error("first")`), 0o644))

	ctx, cancel := context.WithTimeout(context.Background(), 300*time.Millisecond)
	defer cancel()

	assert.NoError(t, app.WatchScript(ctx, script, nil))
	assert.Contains(t, logs.String(), "run failed, waiting for changes")
}

func TestWatchScriptMissingDirectory(t *testing.T) {
	app, _ := newTestApp(t, nil)

	err := app.WatchScript(context.Background(), filepath.Join(t.TempDir(), "nope", "x.lua"), nil)
	var ie *InitError
	require.ErrorAs(t, err, &ie)
	assert.Equal(t, "script watcher", ie.Component)
}

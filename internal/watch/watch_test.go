package watch

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newWatched(t *testing.T) (string, *FileWatcher) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "script.lua")
	require.NoError(t, os.WriteFile(path, []byte("x = 1\n"), 0o644))

	w, err := New(path, 20*time.Millisecond)
	require.NoError(t, err)
	t.Cleanup(func() { _ = w.Close() })
	return path, w
}

func waitChange(t *testing.T, w *FileWatcher) {
	t.Helper()
	select {
	case <-w.Changes():
	case <-time.After(5 * time.Second):
		t.Fatal("no change reported")
	}
}

func TestWriteIsReported(t *testing.T) {
	path, w := newWatched(t)

	require.NoError(t, os.WriteFile(path, []byte("x = 2\n"), 0o644))
	waitChange(t, w)
}

func TestBurstIsCoalesced(t *testing.T) {
	path, w := newWatched(t)

	for i := 0; i < 5; i++ {
		require.NoError(t, os.WriteFile(path, []byte("x = 3\n"), 0o644))
	}
	waitChange(t, w)

	select {
	case <-w.Changes():
		t.Fatal("burst produced more than one change")
	case <-time.After(200 * time.Millisecond):
	}
}

func TestRenameOverIsReported(t *testing.T) {
	path, w := newWatched(t)

	tmp := path + ".tmp"
	require.NoError(t, os.WriteFile(tmp, []byte("x = 4\n"), 0o644))
	require.NoError(t, os.Rename(tmp, path))
	waitChange(t, w)
}

func TestOtherFilesIgnored(t *testing.T) {
	path, w := newWatched(t)

	other := filepath.Join(filepath.Dir(path), "other.lua")
	require.NoError(t, os.WriteFile(other, []byte("y = 1\n"), 0o644))

	select {
	case <-w.Changes():
		t.Fatal("change reported for another file")
	case <-time.After(200 * time.Millisecond):
	}
}

func TestNewMissingDirectory(t *testing.T) {
	_, err := New(filepath.Join(t.TempDir(), "missing", "script.lua"), 0)
	assert.Error(t, err)
}

func TestCloseIdempotent(t *testing.T) {
	_, w := newWatched(t)

	require.NoError(t, w.Close())
	assert.NoError(t, w.Close())
}

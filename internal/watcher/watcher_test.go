package watcher

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func startWatcher(t *testing.T, dir string) <-chan string {
	t.Helper()
	changes := make(chan string, 16)

	w, err := New(dir, []string{"settings.json", "settings.yaml"}, func(path string) {
		changes <- path
	})
	require.NoError(t, err)
	w.SetDebounce(20 * time.Millisecond)
	require.NoError(t, w.Start())
	t.Cleanup(func() { _ = w.Stop() })
	return changes
}

func waitChange(t *testing.T, changes <-chan string) string {
	t.Helper()
	select {
	case path := <-changes:
		return path
	case <-time.After(3 * time.Second):
		t.Fatal("no change reported")
		return ""
	}
}

func TestWatcher_ReportsWrite(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "settings.json")
	require.NoError(t, os.WriteFile(path, []byte(`{}`), 0600))
	changes := startWatcher(t, dir)

	require.NoError(t, os.WriteFile(path, []byte(`{"DEVDECK_PORT": 1}`), 0600))

	assert.Equal(t, path, waitChange(t, changes))
}

func TestWatcher_ReportsCreateAndRemove(t *testing.T) {
	dir := t.TempDir()
	changes := startWatcher(t, dir)
	path := filepath.Join(dir, "settings.yaml")

	require.NoError(t, os.WriteFile(path, []byte("DEVDECK_PORT: 1\n"), 0600))
	assert.Equal(t, path, waitChange(t, changes))

	require.NoError(t, os.Remove(path))
	assert.Equal(t, path, waitChange(t, changes))
}

func TestWatcher_IgnoresOtherFiles(t *testing.T) {
	dir := t.TempDir()
	changes := startWatcher(t, dir)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "devdeck.db"), []byte("x"), 0600))

	select {
	case path := <-changes:
		t.Fatalf("unexpected change for %s", path)
	case <-time.After(200 * time.Millisecond):
	}
}

func TestWatcher_StopIsIdempotent(t *testing.T) {
	w, err := New(t.TempDir(), []string{"settings.json"}, nil)
	require.NoError(t, err)

	require.NoError(t, w.Start())
	require.NoError(t, w.Start())
	require.NoError(t, w.Stop())
	require.NoError(t, w.Stop())
}

func TestWatcher_MissingDirectory(t *testing.T) {
	w, err := New(filepath.Join(t.TempDir(), "missing"), []string{"settings.json"}, nil)
	require.NoError(t, err)

	assert.NoError(t, w.Start())
	assert.NoError(t, w.Stop())
}

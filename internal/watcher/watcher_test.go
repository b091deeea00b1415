package watcher

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWatcher_DebouncesBursts(t *testing.T) {
	dir := t.TempDir()
	w, err := New(Config{Dirs: []string{dir}, DebounceDur: 50 * time.Millisecond})
	require.NoError(t, err)
	defer w.Stop()

	changes, err := w.Start()
	require.NoError(t, err)

	// A burst of writes coalesces into one notification.
	for i := 0; i < 5; i++ {
		require.NoError(t, os.WriteFile(filepath.Join(dir, "window-rules.json"), []byte(`[]`), 0644))
		time.Sleep(5 * time.Millisecond)
	}

	select {
	case <-changes:
	case <-time.After(2 * time.Second):
		t.Fatal("no change notification")
	}

	// No further notifications pending after the burst settles.
	select {
	case <-changes:
		t.Fatal("burst was not coalesced")
	case <-time.After(150 * time.Millisecond):
	}
}

func TestWatcher_IgnoresIrrelevantFiles(t *testing.T) {
	dir := t.TempDir()
	w, err := New(Config{Dirs: []string{dir}, DebounceDur: 30 * time.Millisecond})
	require.NoError(t, err)
	defer w.Stop()

	changes, err := w.Start()
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("x"), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".hidden.json"), []byte("{}"), 0644))

	select {
	case <-changes:
		t.Fatal("irrelevant files must not notify")
	case <-time.After(150 * time.Millisecond):
	}
}

func TestRelevant(t *testing.T) {
	assert.True(t, relevant(fsnotify.Event{Name: "/c/projects/nixos.json", Op: fsnotify.Write}))
	assert.True(t, relevant(fsnotify.Event{Name: "/c/projects/nixos.json.deleted", Op: fsnotify.Rename}))
	assert.False(t, relevant(fsnotify.Event{Name: "/c/projects/nixos.json", Op: fsnotify.Chmod}))
	assert.False(t, relevant(fsnotify.Event{Name: "/c/.tmp-123.json", Op: fsnotify.Create}))
	assert.False(t, relevant(fsnotify.Event{Name: "/c/readme.md", Op: fsnotify.Write}))
}

func TestWatcher_MissingDirIsNonFatal(t *testing.T) {
	w, err := New(Config{Dirs: []string{"/nonexistent/i3pm-test"}, DebounceDur: 30 * time.Millisecond})
	require.NoError(t, err)
	defer w.Stop()
	_, err = w.Start()
	require.NoError(t, err)
}

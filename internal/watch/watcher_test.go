package watch

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"runview/internal/logging"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func startWatcher(t *testing.T, path string) (<-chan string, *Watcher) {
	t.Helper()
	got := make(chan string, 32)
	w, err := New(path, 30*time.Millisecond, func(_ context.Context, content string) {
		got <- content
	})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()
	t.Cleanup(func() {
		cancel()
		assert.NoError(t, <-done)
	})
	return got, w
}

func next(t *testing.T, got <-chan string) string {
	t.Helper()
	select {
	case s := <-got:
		return s
	case <-time.After(3 * time.Second):
		t.Fatal("timed out waiting for a change")
		return ""
	}
}

func TestWatcher_InitialAndChange(t *testing.T) {
	path := filepath.Join(t.TempDir(), "prog.txt")
	require.NoError(t, os.WriteFile(path, []byte("1+1"), 0o644))

	got, w := startWatcher(t, path)
	assert.Equal(t, "1+1", next(t, got))

	require.NoError(t, os.WriteFile(path, []byte("2+2"), 0o644))
	assert.Equal(t, "2+2", next(t, got))

	stats := w.Stats()
	assert.GreaterOrEqual(t, stats.Changes, 2)
	assert.GreaterOrEqual(t, stats.Events, 1)
}

func TestWatcher_AtomicRenameSave(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "prog.txt")
	require.NoError(t, os.WriteFile(path, []byte("old"), 0o644))

	got, _ := startWatcher(t, path)
	assert.Equal(t, "old", next(t, got))

	tmp := filepath.Join(dir, ".prog.txt.swp")
	require.NoError(t, os.WriteFile(tmp, []byte("new"), 0o644))
	require.NoError(t, os.Rename(tmp, path))

	assert.Equal(t, "new", next(t, got))
}

func TestWatcher_IgnoresSiblings(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "prog.txt")
	require.NoError(t, os.WriteFile(path, []byte("x"), 0o644))

	got, w := startWatcher(t, path)
	next(t, got)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "other.txt"), []byte("y"), 0o644))
	select {
	case s := <-got:
		t.Fatalf("unexpected change for sibling file: %q", s)
	case <-time.After(200 * time.Millisecond):
	}
	assert.Equal(t, 0, w.Stats().Events)
}

func TestNew_MissingFile(t *testing.T) {
	_, err := New(filepath.Join(t.TempDir(), "missing.txt"), 0, func(context.Context, string) {})
	assert.Error(t, err)
}

func TestWatcher_StopLogsStatsWithPath(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	defer logging.Replace(logging.CategoryWatch, zap.New(core))()

	path := filepath.Join(t.TempDir(), "prog.txt")
	require.NoError(t, os.WriteFile(path, []byte("1+1"), 0o644))

	got := make(chan string, 1)
	w, err := New(path, 30*time.Millisecond, func(_ context.Context, content string) { got <- content })
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()
	assert.Equal(t, "1+1", next(t, got))
	cancel()
	require.NoError(t, <-done)

	stopped := logs.FilterMessageSnippet("watcher stopped").All()
	require.Len(t, stopped, 1)
	assert.Contains(t, stopped[0].Message, "changes=1")
	assert.Equal(t, w.Path(), stopped[0].ContextMap()["path"])
}

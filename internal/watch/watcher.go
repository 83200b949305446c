// Package watch re-submits a payload file whenever it changes on disk.
package watch

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"runview/internal/logging"

	"github.com/fsnotify/fsnotify"
)

// Handler receives the file's contents after each settled change.
// It is called from the watcher loop and must not block for long.
type Handler func(ctx context.Context, content string)

// Stats tracks watcher activity.
type Stats struct {
	Events        int
	Changes       int
	Errors        int
	LastEventTime time.Time
	LastEventOp   string
}

// Watcher watches a single file. The parent directory is watched rather than the
// file itself, since editors often save by renaming a temp file over the original.
type Watcher struct {
	mu       sync.Mutex
	fsw      *fsnotify.Watcher
	path     string
	debounce *Debouncer
	onChange Handler
	stats    Stats
}

// New creates a watcher for path. Changes closer together than delay are
// reported once.
func New(path string, delay time.Duration, onChange Handler) (*Watcher, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve %s: %w", path, err)
	}
	if _, err := os.Stat(abs); err != nil {
		return nil, fmt.Errorf("cannot watch %s: %w", path, err)
	}
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create watcher: %w", err)
	}
	return &Watcher{
		fsw:      fsw,
		path:     abs,
		debounce: NewDebouncer(delay),
		onChange: onChange,
	}, nil
}

// Path returns the absolute path being watched.
func (w *Watcher) Path() string {
	return w.path
}

// Run reports the current contents once, then every settled change, until ctx is done.
func (w *Watcher) Run(ctx context.Context) error {
	defer w.fsw.Close()
	defer w.debounce.Stop()

	dir := filepath.Dir(w.path)
	if err := w.fsw.Add(dir); err != nil {
		return fmt.Errorf("failed to watch %s: %w", dir, err)
	}
	log := logging.Get(logging.CategoryWatch).With("path", w.path)
	log.Info("watching %s", dir)

	w.fire(ctx)

	settled := make(chan struct{}, 1)
	for {
		select {
		case <-ctx.Done():
			s := w.Stats()
			log.Info("watcher stopped: %v (events=%d changes=%d errors=%d)", ctx.Err(), s.Events, s.Changes, s.Errors)
			return nil

		case event, ok := <-w.fsw.Events:
			if !ok {
				return nil
			}
			if !w.relevant(event) {
				continue
			}
			w.debounce.Trigger(func() {
				select {
				case settled <- struct{}{}:
				default:
				}
			})

		case err, ok := <-w.fsw.Errors:
			if !ok {
				return nil
			}
			logging.WatchError("watcher error: %v", err)
			w.mu.Lock()
			w.stats.Errors++
			w.mu.Unlock()

		case <-settled:
			w.fire(ctx)
		}
	}
}

// relevant records the event and reports whether it may have changed the file's contents.
func (w *Watcher) relevant(event fsnotify.Event) bool {
	if filepath.Clean(event.Name) != w.path {
		return false
	}

	var op string
	switch {
	case event.Op&fsnotify.Create != 0:
		op = "create"
	case event.Op&fsnotify.Write != 0:
		op = "modify"
	case event.Op&fsnotify.Remove != 0:
		op = "delete"
	case event.Op&fsnotify.Rename != 0:
		op = "rename"
	default:
		return false
	}
	logging.Get(logging.CategoryWatch).Debug("%s event for %s", op, event.Name)

	w.mu.Lock()
	w.stats.Events++
	w.stats.LastEventTime = time.Now()
	w.stats.LastEventOp = op
	w.mu.Unlock()

	// The file is gone until something recreates it; the Create event brings it back.
	return op == "create" || op == "modify"
}

func (w *Watcher) fire(ctx context.Context) {
	content, err := os.ReadFile(w.path)
	if err != nil {
		logging.WatchError("failed to read %s: %v", w.path, err)
		w.mu.Lock()
		w.stats.Errors++
		w.mu.Unlock()
		return
	}
	w.mu.Lock()
	w.stats.Changes++
	w.mu.Unlock()
	w.onChange(ctx, string(content))
}

// Stats returns a copy of the watcher's counters.
func (w *Watcher) Stats() Stats {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.stats
}

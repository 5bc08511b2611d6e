package progress

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

// debounce coalesces the burst of events one atomic replace produces.
const debounce = 50 * time.Millisecond

// Watcher reports changes to a progress file made by any process. It watches
// the parent directory, since writes land as a rename over the file.
type Watcher struct {
	path string
	w    *fsnotify.Watcher
}

// NewWatcher starts watching path. Events that happen after it returns are
// delivered by Run.
func NewWatcher(path string) (*Watcher, error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create fsnotify watcher: %w", err)
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		w.Close()
		return nil, err
	}
	if err := w.Add(filepath.Dir(abs)); err != nil {
		w.Close()
		return nil, fmt.Errorf("failed to watch %s: %w", filepath.Dir(abs), err)
	}
	return &Watcher{path: abs, w: w}, nil
}

// Run calls onChange once per burst of changes to the file until ctx is
// done. onChange runs on Run's goroutine; a Store is not safe for concurrent
// use, so callers typically signal their own goroutine to Reload.
func (w *Watcher) Run(ctx context.Context, onChange func()) error {
	defer w.w.Close()

	timer := time.NewTimer(debounce)
	timer.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-w.w.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(ev.Name) != w.path {
				continue
			}
			if ev.Has(fsnotify.Create) || ev.Has(fsnotify.Write) || ev.Has(fsnotify.Remove) || ev.Has(fsnotify.Rename) {
				timer.Reset(debounce)
			}
		case err, ok := <-w.w.Errors:
			if !ok {
				return nil
			}
			return fmt.Errorf("failed to watch %s: %w", w.path, err)
		case <-timer.C:
			onChange()
		}
	}
}

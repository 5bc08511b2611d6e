package progress

import (
	"context"
	"path/filepath"
	"testing"
	"time"
)

func TestWatcherSeesOtherWriters(t *testing.T) {
	path := filepath.Join(t.TempDir(), "progress.json")
	reader, err := Open(path)
	if err != nil {
		t.Fatal(err)
	}
	writer, err := Open(path)
	if err != nil {
		t.Fatal(err)
	}

	w, err := NewWatcher(path)
	if err != nil {
		t.Fatal(err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	changed := make(chan struct{}, 1)
	done := make(chan error, 1)
	go func() {
		done <- w.Run(ctx, func() {
			select {
			case changed <- struct{}{}:
			default:
			}
		})
	}()

	mustMerge(t, writer, Entry{Date: "2025-02-01", Steps: 2}, Replace)

	select {
	case <-changed:
	case <-time.After(5 * time.Second):
		t.Fatal("Timed out waiting for a change notification")
	}
	if err := reader.Reload(); err != nil {
		t.Fatal(err)
	}
	if _, ok := reader.Get("2025-02-01"); !ok {
		t.Error("Expected reload to pick up the other writer's entry")
	}

	cancel()
	if err := <-done; err != nil {
		t.Errorf("Run returned %v", err)
	}
}

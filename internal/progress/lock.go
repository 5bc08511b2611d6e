package progress

import (
	"fmt"
	"os"
	"time"
)

const (
	defaultLockTimeout = 2 * time.Second
	initialBackoff     = 5 * time.Millisecond
	maxBackoff         = 50 * time.Millisecond
)

// fileLock serializes cooperating writers of one progress file with an OS
// advisory lock on a sibling "<path>.lock" file. The OS drops the lock if the
// holder dies. Writers that never take the lock are not excluded.
type fileLock struct {
	path string
	f    *os.File
}

func newFileLock(dataPath string) *fileLock {
	return &fileLock{path: dataPath + ".lock"}
}

// acquire polls for the exclusive lock with exponential backoff until timeout.
func (l *fileLock) acquire(timeout time.Duration) error {
	f, err := os.OpenFile(l.path, os.O_CREATE|os.O_RDWR, 0600)
	if err != nil {
		return fmt.Errorf("failed to open lock file: %w", err)
	}
	l.f = f

	deadline := time.Now().Add(timeout)
	backoff := initialBackoff
	for {
		err := l.tryLock()
		if err == nil {
			return nil
		}
		if time.Now().After(deadline) {
			l.f.Close()
			l.f = nil
			return fmt.Errorf("failed to lock %s: timed out after %v: %w", l.path, timeout, err)
		}
		time.Sleep(backoff)
		backoff = min(backoff*2, maxBackoff)
	}
}

func (l *fileLock) release() {
	if l.f == nil {
		return
	}
	l.unlock()
	l.f.Close()
	l.f = nil
}

//go:build windows

package progress

import "golang.org/x/sys/windows"

// tryLock takes an exclusive, non-blocking lock on the first byte.
func (l *fileLock) tryLock() error {
	ol := new(windows.Overlapped)
	return windows.LockFileEx(
		windows.Handle(l.f.Fd()),
		windows.LOCKFILE_EXCLUSIVE_LOCK|windows.LOCKFILE_FAIL_IMMEDIATELY,
		0, 1, 0, ol,
	)
}

func (l *fileLock) unlock() {
	ol := new(windows.Overlapped)
	windows.UnlockFileEx(windows.Handle(l.f.Fd()), 0, 1, 0, ol)
}

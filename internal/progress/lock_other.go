//go:build !unix && !windows

package progress

// No advisory locking on this platform; merges still detect conflicts.
func (l *fileLock) tryLock() error { return nil }

func (l *fileLock) unlock() {}

//go:build unix

package progress

import "golang.org/x/sys/unix"

func (l *fileLock) tryLock() error {
	return unix.Flock(int(l.f.Fd()), unix.LOCK_EX|unix.LOCK_NB)
}

func (l *fileLock) unlock() {
	unix.Flock(int(l.f.Fd()), unix.LOCK_UN)
}

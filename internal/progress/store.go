// Package progress is the legacy file-backed progress store: a JSON array of
// per-day entries that several processes may update. Each merge re-reads the
// file under an advisory lock and applies its change onto what is on disk,
// so updates to other dates are never lost.
package progress

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"time"
)

// Strategy decides how an incoming entry combines with the stored one.
type Strategy string

const (
	// Replace overwrites the entry for the date.
	Replace Strategy = "replace"
	// Accumulate adds counters and unions the exercise lists.
	Accumulate Strategy = "accumulate"
	// Smart replaces only if nobody else changed the date since it was last
	// read; otherwise the merge is refused.
	Smart Strategy = "smart"
)

var ErrInvalidStrategy = errors.New("progress: unknown merge strategy")

var errCorrupt = errors.New("progress: file is not a valid JSON array")

// ParseStrategy maps a name to a Strategy. The empty string means Smart.
func ParseStrategy(s string) (Strategy, error) {
	switch st := Strategy(s); st {
	case Replace, Accumulate, Smart:
		return st, nil
	case "":
		return Smart, nil
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidStrategy, s)
}

// Store is an in-memory working copy of a progress file plus a snapshot of
// each entry as last seen on disk.
type Store struct {
	path        string
	lock        *fileLock
	lockTimeout time.Duration
	now         func() time.Time

	entries []Entry
	known   map[string]Entry
}

// Open loads the file at path. A missing file is an empty store. A file that
// is not valid JSON is moved aside to "<path>.corrupt-<unix>" and the store
// starts empty.
func Open(path string) (*Store, error) {
	if path == "" {
		return nil, errors.New("progress: path is required")
	}
	s := &Store{
		path:        path,
		lock:        newFileLock(path),
		lockTimeout: defaultLockTimeout,
		now:         time.Now,
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create progress directory: %w", err)
	}
	if err := s.Reload(); err != nil {
		return nil, err
	}
	return s, nil
}

// Path returns the file backing the store.
func (s *Store) Path() string { return s.path }

// Reload discards the working copy and reads the file again. A malformed
// file is moved aside and the store starts empty.
func (s *Store) Reload() error {
	disk, err := s.readDisk()
	if errors.Is(err, errCorrupt) {
		err = s.backupCorrupt(err)
	}
	if err != nil {
		return err
	}
	s.adopt(disk)
	return nil
}

// Entries returns a copy of every entry in file order.
func (s *Store) Entries() []Entry {
	out := make([]Entry, len(s.entries))
	for i, e := range s.entries {
		out[i] = e.clone()
	}
	return out
}

// Get returns the working copy of the entry for date.
func (s *Store) Get(date string) (Entry, bool) {
	if i := indexOf(s.entries, date); i >= 0 {
		return s.entries[i].clone(), true
	}
	return Entry{}, false
}

// Merge applies e to the file with the given strategy. It returns false,
// without writing, when the smart strategy sees that the date changed on
// disk since this store last read it; the working copy is refreshed so the
// caller can look again. A malformed file counts as such a change for the
// smart strategy and is left in place; the other strategies move it aside
// before writing. Errors are reserved for invalid input and I/O.
func (s *Store) Merge(e Entry, strategy Strategy) (bool, error) {
	strategy, err := ParseStrategy(string(strategy))
	if err != nil {
		return false, err
	}
	if err := e.Validate(); err != nil {
		return false, err
	}

	if err := s.lock.acquire(s.lockTimeout); err != nil {
		return false, err
	}
	defer s.lock.release()

	disk, err := s.readDisk()
	if errors.Is(err, errCorrupt) {
		if strategy == Smart {
			slog.Warn("Progress file is malformed, not merging", "date", e.Date, "path", s.path, "error", err)
			return false, nil
		}
		err = s.backupCorrupt(err)
	}
	if err != nil {
		return false, err
	}

	i := indexOf(disk, e.Date)
	switch strategy {
	case Replace:
		disk = put(disk, i, e.clone())
	case Accumulate:
		if i >= 0 {
			disk[i] = disk[i].accumulate(e)
		} else {
			disk = append(disk, Entry{Date: e.Date}.accumulate(e))
		}
	case Smart:
		if s.changedOnDisk(disk, i, e.Date) {
			slog.Warn("Progress entry changed on disk, not merging", "date", e.Date, "path", s.path)
			s.adopt(disk)
			return false, nil
		}
		disk = put(disk, i, e.clone())
	}

	if err := s.write(disk); err != nil {
		return false, err
	}
	s.adopt(disk)
	return true, nil
}

// changedOnDisk compares the on-disk entry for date with the last one this
// store saw, including whether either exists at all.
func (s *Store) changedOnDisk(disk []Entry, i int, date string) bool {
	known, wasKnown := s.known[date]
	if (i >= 0) != wasKnown {
		return true
	}
	return i >= 0 && !disk[i].Equal(known)
}

func (s *Store) adopt(entries []Entry) {
	s.entries = entries
	s.known = make(map[string]Entry, len(entries))
	for _, e := range entries {
		s.known[e.Date] = e.clone()
	}
}

func (s *Store) readDisk() ([]Entry, error) {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read progress file: %w", err)
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, nil
	}

	var raw []Entry
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("%w: %w", errCorrupt, err)
	}

	// Duplicate dates collapse onto the first position, last value wins.
	var entries []Entry
	for _, e := range raw {
		entries = put(entries, indexOf(entries, e.Date), e)
	}
	return entries, nil
}

// backupCorrupt moves a malformed file to "<path>.corrupt-<unix>" so that the
// next write starts from an empty list without losing the original bytes.
func (s *Store) backupCorrupt(cause error) error {
	backup := fmt.Sprintf("%s.corrupt-%d", s.path, s.now().Unix())
	slog.Warn("Progress file is malformed, starting empty", "path", s.path, "backup", backup, "error", cause)
	if err := os.Rename(s.path, backup); err != nil {
		return fmt.Errorf("failed to preserve corrupt progress file: %w", err)
	}
	return nil
}

// write replaces the whole file through a temp file and rename.
func (s *Store) write(entries []Entry) error {
	if entries == nil {
		entries = []Entry{}
	}
	data, err := json.MarshalIndent(entries, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode progress: %w", err)
	}
	data = append(data, '\n')

	tmp, err := os.CreateTemp(filepath.Dir(s.path), filepath.Base(s.path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("failed to create temp progress file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write temp progress file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to sync temp progress file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close temp progress file: %w", err)
	}
	if err := os.Rename(tmp.Name(), s.path); err != nil {
		return fmt.Errorf("failed to replace progress file: %w", err)
	}
	return nil
}

func indexOf(entries []Entry, date string) int {
	return slices.IndexFunc(entries, func(e Entry) bool { return e.Date == date })
}

func put(entries []Entry, i int, e Entry) []Entry {
	if i >= 0 {
		entries[i] = e
		return entries
	}
	return append(entries, e)
}

package storage

import (
	"errors"
	"fmt"
)

var (
	// ErrPersistence matches any *PersistenceError via errors.Is.
	ErrPersistence = errors.New("storage: persistence failure")
	// ErrMigration marks a migration that could not be completed.
	ErrMigration          = errors.New("storage: migration failed")
	ErrNotFound           = errors.New("storage: not found")
	ErrRetentionDisabled  = errors.New("storage: retention sweep is not enabled")
	ErrInvalidRetention   = errors.New("storage: retention window must be positive")
	errMigrationsUnsorted = errors.New("storage: migrations are not in ascending order")
)

// PersistenceError is returned for I/O and SQL failures in the store.
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("storage: failed to %s: %v", e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }

// Is lets errors.Is(err, ErrPersistence) match.
func (e *PersistenceError) Is(target error) bool {
	return target == ErrPersistence
}

func persistErr(op string, err error) error {
	if err == nil {
		return nil
	}
	return &PersistenceError{Op: op, Err: err}
}

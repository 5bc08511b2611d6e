package storage

import (
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"path/filepath"
	"time"

	"github.com/conorfennell/drillbook/internal/config"
	_ "modernc.org/sqlite" // Registers the sqlite driver
)

const (
	timeLayout = "2006-01-02T15:04:05Z"
	dateLayout = "2006-01-02"
)

// Store wraps the SQLite database that holds sessions, activity, and
// reviewable items.
type Store struct {
	conn *sql.DB
	cfg  config.StoreConfig
}

// Open opens (or creates) the database described by cfg, verifies it is a
// healthy WAL-mode SQLite file and applies any pending migrations.
// A corrupt file or a failed migration is fatal.
func Open(cfg config.StoreConfig) (*Store, error) {
	if cfg.DBPath == "" {
		return nil, persistErr("open", fmt.Errorf("no database path configured"))
	}
	if cfg.BusyTimeout <= 0 {
		cfg.BusyTimeout = 5 * time.Second
	}
	if err := os.MkdirAll(filepath.Dir(cfg.DBPath), 0755); err != nil {
		return nil, persistErr("create db dir", err)
	}

	conn, err := sql.Open("sqlite", dsn(cfg))
	if err != nil {
		return nil, persistErr("open database", err)
	}
	conn.SetConnMaxIdleTime(30 * time.Second)

	var journalMode string
	if err := conn.QueryRow("PRAGMA journal_mode").Scan(&journalMode); err != nil {
		_ = conn.Close()
		return nil, persistErr("check journal mode", err)
	}
	if journalMode != "wal" {
		_ = conn.Close()
		return nil, persistErr("check journal mode", fmt.Errorf("expected wal, got %q", journalMode))
	}

	var check string
	if err := conn.QueryRow("PRAGMA quick_check").Scan(&check); err != nil {
		_ = conn.Close()
		return nil, persistErr("pass integrity check", err)
	}
	if check != "ok" {
		_ = conn.Close()
		return nil, persistErr("pass integrity check", fmt.Errorf("database is damaged: %s", check))
	}

	s := &Store{conn: conn, cfg: cfg}
	if _, err := s.Migrate(); err != nil {
		_ = conn.Close()
		return nil, err
	}
	return s, nil
}

// dsn builds the connection string. Pragmas live in the DSN so every pooled
// connection gets them, not just the first.
func dsn(cfg config.StoreConfig) string {
	q := url.Values{}
	q.Add("_pragma", "journal_mode(wal)")
	q.Add("_pragma", "foreign_keys(on)")
	q.Add("_pragma", fmt.Sprintf("busy_timeout(%d)", cfg.BusyTimeout.Milliseconds()))
	q.Add("_pragma", "synchronous(normal)")
	q.Set("_txlock", "immediate")
	return "file:" + cfg.DBPath + "?" + q.Encode()
}

// Close closes the database connection.
func (s *Store) Close() error {
	if s.conn == nil {
		return nil
	}
	return s.conn.Close()
}

// Config returns the configuration the store was opened with.
func (s *Store) Config() config.StoreConfig {
	return s.cfg
}

// withTx runs fn in a transaction and commits it, rolling back on error.
func (s *Store) withTx(op string, fn func(tx *sql.Tx) error) error {
	tx, err := s.conn.Begin()
	if err != nil {
		return persistErr(op, fmt.Errorf("failed to begin: %w", err))
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		if errors.Is(err, ErrNotFound) {
			return err
		}
		return persistErr(op, err)
	}
	if err := tx.Commit(); err != nil {
		return persistErr(op, fmt.Errorf("failed to commit: %w", err))
	}
	return nil
}

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) (time.Time, error) {
	return time.Parse(timeLayout, s)
}

func formatDate(t time.Time) string {
	return t.Format(dateLayout)
}

func parseDate(s string) (time.Time, error) {
	return time.Parse(dateLayout, s)
}

func logMigration(m Migration) {
	slog.Info("Applied schema migration", "version", m.Version, "name", m.Name)
}

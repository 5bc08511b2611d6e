package storage

import (
	"database/sql"
	"fmt"
	"time"
)

// Migration is one schema version. Steps are declarative: each one inspects
// the live schema and only runs its DDL when the object is missing, so a
// migration can be re-applied over a database that already has part of it.
type Migration struct {
	Version int
	Name    string
	Steps   []Step
}

// Step is a single idempotent schema change.
type Step interface {
	apply(tx *sql.Tx) error
}

// CreateTable creates a table unless one with that name exists.
type CreateTable struct {
	Table string
	DDL   string
}

// AddColumn adds a column unless the table already has it. Definition is the
// column type and constraints, e.g. "INTEGER NOT NULL DEFAULT 0".
type AddColumn struct {
	Table      string
	Column     string
	Definition string
}

// CreateIndex creates an index unless one with that name exists.
type CreateIndex struct {
	Index string
	DDL   string
}

func (c CreateTable) apply(tx *sql.Tx) error {
	ok, err := objectExists(tx, "table", c.Table)
	if err != nil || ok {
		return err
	}
	if _, err := tx.Exec(c.DDL); err != nil {
		return fmt.Errorf("failed to create table %s: %w", c.Table, err)
	}
	return nil
}

func (c AddColumn) apply(tx *sql.Tx) error {
	ok, err := columnExists(tx, c.Table, c.Column)
	if err != nil || ok {
		return err
	}
	stmt := fmt.Sprintf("ALTER TABLE %s ADD COLUMN %s %s", c.Table, c.Column, c.Definition)
	if _, err := tx.Exec(stmt); err != nil {
		return fmt.Errorf("failed to add column %s.%s: %w", c.Table, c.Column, err)
	}
	return nil
}

func (c CreateIndex) apply(tx *sql.Tx) error {
	ok, err := objectExists(tx, "index", c.Index)
	if err != nil || ok {
		return err
	}
	if _, err := tx.Exec(c.DDL); err != nil {
		return fmt.Errorf("failed to create index %s: %w", c.Index, err)
	}
	return nil
}

// objectExists checks sqlite_master for a table or index.
func objectExists(tx *sql.Tx, kind, name string) (bool, error) {
	var count int
	err := tx.QueryRow("SELECT COUNT(*) FROM sqlite_master WHERE type = ? AND name = ?", kind, name).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("failed to inspect %s %s: %w", kind, name, err)
	}
	return count > 0, nil
}

// columnExists checks whether a column exists on a table.
func columnExists(tx *sql.Tx, table, column string) (bool, error) {
	var count int
	err := tx.QueryRow("SELECT COUNT(*) FROM pragma_table_info(?) WHERE name = ?", table, column).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("failed to inspect column %s.%s: %w", table, column, err)
	}
	return count > 0, nil
}

const versionTableDDL = `CREATE TABLE IF NOT EXISTS schema_version (
    version INTEGER PRIMARY KEY,
    name TEXT NOT NULL DEFAULT '',
    applied_at TEXT NOT NULL
)`

// SchemaVersion returns the highest applied migration, 0 for a new database.
func (s *Store) SchemaVersion() (int, error) {
	var v int
	err := s.conn.QueryRow("SELECT COALESCE(MAX(version), 0) FROM schema_version").Scan(&v)
	if err != nil {
		return 0, persistErr("read schema version", err)
	}
	return v, nil
}

// LatestVersion is the version a fully migrated database reports.
func LatestVersion() int {
	if len(migrations) == 0 {
		return 0
	}
	return migrations[len(migrations)-1].Version
}

// Migrate applies every pending migration in ascending order and returns how
// many ran. Each migration and its version row commit in one transaction.
func (s *Store) Migrate() (int, error) {
	return s.migrate(migrations)
}

func (s *Store) migrate(list []Migration) (int, error) {
	for i := 1; i < len(list); i++ {
		if list[i].Version <= list[i-1].Version {
			return 0, fmt.Errorf("%w: %w at version %d", ErrMigration, errMigrationsUnsorted, list[i].Version)
		}
	}

	if _, err := s.conn.Exec(versionTableDDL); err != nil {
		return 0, fmt.Errorf("%w: %w", ErrMigration, persistErr("create schema_version", err))
	}

	current, err := s.SchemaVersion()
	if err != nil {
		return 0, fmt.Errorf("%w: %w", ErrMigration, err)
	}

	applied := 0
	for _, m := range list {
		if m.Version <= current {
			continue
		}
		err := s.withTx(fmt.Sprintf("apply migration %d", m.Version), func(tx *sql.Tx) error {
			for _, step := range m.Steps {
				if err := step.apply(tx); err != nil {
					return err
				}
			}
			_, err := tx.Exec(`INSERT INTO schema_version (version, name, applied_at) VALUES (?, ?, ?)`,
				m.Version, m.Name, formatTime(time.Now()))
			return err
		})
		if err != nil {
			return applied, fmt.Errorf("%w: version %d (%s): %w", ErrMigration, m.Version, m.Name, err)
		}
		logMigration(m)
		applied++
	}
	return applied, nil
}

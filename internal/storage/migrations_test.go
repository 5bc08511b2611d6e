package storage

import (
	"database/sql"
	"errors"
	"testing"
)

func tableExists(t *testing.T, s *Store, name string) bool {
	t.Helper()
	var n int
	err := s.conn.QueryRow("SELECT COUNT(*) FROM sqlite_master WHERE type = 'table' AND name = ?", name).Scan(&n)
	if err != nil {
		t.Fatal(err)
	}
	return n > 0
}

func TestOpenMigratesToLatest(t *testing.T) {
	s := newTestStore(t)
	v, err := s.SchemaVersion()
	if err != nil {
		t.Fatal(err)
	}
	if v != LatestVersion() {
		t.Errorf("Expected version %d, got %d", LatestVersion(), v)
	}
	for _, table := range []string{"sessions", "step_completions", "time_logs", "review_items", "review_log", "commits", "daily_summaries"} {
		if !tableExists(t, s, table) {
			t.Errorf("Expected table %s to exist", table)
		}
	}
}

func TestMigrateTwiceIsNoop(t *testing.T) {
	s := newTestStore(t)
	before, _ := s.SchemaVersion()

	n, err := s.Migrate()
	if err != nil {
		t.Fatalf("Second Migrate failed: %v", err)
	}
	if n != 0 {
		t.Errorf("Expected no migrations on second run, got %d", n)
	}
	after, _ := s.SchemaVersion()
	if before != after {
		t.Errorf("Version changed from %d to %d", before, after)
	}
}

// Simulates a database whose objects exist but whose version rows were lost,
// e.g. a crash in an older build that did not wrap the version bump.
func TestMigrateOverExistingObjects(t *testing.T) {
	s := newTestStore(t)
	if _, err := s.conn.Exec("DELETE FROM schema_version WHERE version >= 2"); err != nil {
		t.Fatal(err)
	}

	n, err := s.Migrate()
	if err != nil {
		t.Fatalf("Migrate over existing objects failed: %v", err)
	}
	if n != LatestVersion()-1 {
		t.Errorf("Expected %d migrations re-recorded, got %d", LatestVersion()-1, n)
	}
	v, _ := s.SchemaVersion()
	if v != LatestVersion() {
		t.Errorf("Expected version %d, got %d", LatestVersion(), v)
	}
}

func TestFailedMigrationRollsBack(t *testing.T) {
	s := newTestStore(t)
	broken := append(append([]Migration{}, migrations...), Migration{
		Version: LatestVersion() + 1,
		Name:    "broken",
		Steps: []Step{
			CreateTable{Table: "half_done", DDL: "CREATE TABLE half_done (x INTEGER)"},
			CreateTable{Table: "bad", DDL: "CREATE TABLE bad ("},
		},
	})

	_, err := s.migrate(broken)
	if !errors.Is(err, ErrMigration) {
		t.Fatalf("Expected ErrMigration, got %v", err)
	}
	v, _ := s.SchemaVersion()
	if v != LatestVersion() {
		t.Errorf("Version must not advance on failure, got %d", v)
	}
	if tableExists(t, s, "half_done") {
		t.Error("Expected earlier steps of a failed migration to be rolled back")
	}
}

func TestMigrateRejectsUnsorted(t *testing.T) {
	s := newTestStore(t)
	list := []Migration{{Version: 2, Name: "b"}, {Version: 1, Name: "a"}}
	if _, err := s.migrate(list); !errors.Is(err, ErrMigration) {
		t.Errorf("Expected ErrMigration for unsorted list, got %v", err)
	}
}

func TestAddColumnStepIsIdempotent(t *testing.T) {
	s := newTestStore(t)
	step := AddColumn{Table: "sessions", Column: "cards_reviewed", Definition: "INTEGER NOT NULL DEFAULT 0"}

	err := s.withTx("test", func(tx *sql.Tx) error { return step.apply(tx) })
	if err != nil {
		t.Fatalf("Re-applying an existing column should be a no-op: %v", err)
	}

	extra := AddColumn{Table: "sessions", Column: "note", Definition: "TEXT"}
	for i := 0; i < 2; i++ {
		if err := s.withTx("test", func(tx *sql.Tx) error { return extra.apply(tx) }); err != nil {
			t.Fatalf("apply %d: %v", i, err)
		}
	}
	var n int
	if err := s.conn.QueryRow("SELECT COUNT(*) FROM pragma_table_info('sessions') WHERE name = 'note'").Scan(&n); err != nil {
		t.Fatal(err)
	}
	if n != 1 {
		t.Errorf("Expected exactly one note column, got %d", n)
	}
}

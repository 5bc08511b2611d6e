package storage

import (
	"database/sql"
	"fmt"
	"log/slog"
	"time"
)

// retentionTables are the append-only logs the sweep may prune, with the
// column that dates each row. Current-state tables never appear here.
var retentionTables = []struct {
	table  string
	column string
}{
	{"time_logs", "logged_at"},
	{"review_log", "reviewed_at"},
	{"commits", "authored_at"},
}

// CleanupResult reports the rows removed per table.
type CleanupResult struct {
	Cutoff  time.Time
	Deleted map[string]int64
}

// Total is the number of rows removed across all tables.
func (r CleanupResult) Total() int64 {
	var n int64
	for _, v := range r.Deleted {
		n += v
	}
	return n
}

// Cleanup deletes append-only log rows older than retentionDays. It refuses
// to run unless retention was explicitly enabled in the store config.
// retentionDays <= 0 uses the configured window.
func (s *Store) Cleanup(retentionDays int) (CleanupResult, error) {
	return s.cleanup(retentionDays, time.Now())
}

func (s *Store) cleanup(retentionDays int, now time.Time) (CleanupResult, error) {
	if !s.cfg.RetentionEnabled {
		return CleanupResult{}, ErrRetentionDisabled
	}
	if retentionDays <= 0 {
		retentionDays = s.cfg.RetentionDays
	}
	if retentionDays <= 0 {
		return CleanupResult{}, ErrInvalidRetention
	}

	res := CleanupResult{
		Cutoff:  now.AddDate(0, 0, -retentionDays),
		Deleted: make(map[string]int64, len(retentionTables)),
	}
	cutoff := formatTime(res.Cutoff)

	err := s.withTx("run retention sweep", func(tx *sql.Tx) error {
		for _, rt := range retentionTables {
			r, err := tx.Exec(fmt.Sprintf("DELETE FROM %s WHERE %s < ?", rt.table, rt.column), cutoff)
			if err != nil {
				return fmt.Errorf("failed to prune %s: %w", rt.table, err)
			}
			n, err := r.RowsAffected()
			if err != nil {
				return err
			}
			res.Deleted[rt.table] = n
		}
		return nil
	})
	if err != nil {
		return CleanupResult{}, err
	}

	slog.Info("Retention sweep complete", "cutoff", cutoff, "deleted", res.Total())
	return res, nil
}

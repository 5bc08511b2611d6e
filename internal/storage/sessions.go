package storage

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/conorfennell/drillbook/internal/domain"
)

// ensureSession returns the id of the session for date, creating it first if
// needed. The UNIQUE constraint on date keeps this safe under concurrent writers.
func ensureSession(tx *sql.Tx, date time.Time) (int64, error) {
	d := formatDate(date)
	_, err := tx.Exec(`INSERT INTO sessions (date, created_at) VALUES (?, ?) ON CONFLICT(date) DO NOTHING`,
		d, formatTime(time.Now()))
	if err != nil {
		return 0, fmt.Errorf("failed to insert session %s: %w", d, err)
	}
	var id int64
	if err := tx.QueryRow(`SELECT id FROM sessions WHERE date = ?`, d).Scan(&id); err != nil {
		return 0, fmt.Errorf("failed to select session %s: %w", d, err)
	}
	return id, nil
}

// EnsureSession creates the session for date if it does not exist yet.
func (s *Store) EnsureSession(date time.Time) (*domain.Session, error) {
	err := s.withTx("ensure session", func(tx *sql.Tx) error {
		_, err := ensureSession(tx, date)
		return err
	})
	if err != nil {
		return nil, err
	}
	return s.GetSession(date)
}

// GetSession returns the session for date, or ErrNotFound.
func (s *Store) GetSession(date time.Time) (*domain.Session, error) {
	var (
		sess      domain.Session
		d, create string
	)
	err := s.conn.QueryRow(`
		SELECT id, date, cards_reviewed, created_at
		FROM sessions WHERE date = ?
	`, formatDate(date)).Scan(&sess.ID, &d, &sess.CardsReviewed, &create)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("session %s: %w", formatDate(date), ErrNotFound)
	}
	if err != nil {
		return nil, persistErr("get session", err)
	}
	if sess.Date, err = parseDate(d); err != nil {
		return nil, persistErr("get session", err)
	}
	if sess.CreatedAt, err = parseTime(create); err != nil {
		return nil, persistErr("get session", err)
	}
	return &sess, nil
}

// CompleteStep marks a workflow step done for the day. It reports false if
// the step was already recorded for that day.
func (s *Store) CompleteStep(date time.Time, step string, at time.Time) (bool, error) {
	var inserted bool
	err := s.withTx("complete step", func(tx *sql.Tx) error {
		id, err := ensureSession(tx, date)
		if err != nil {
			return err
		}
		res, err := tx.Exec(`INSERT OR IGNORE INTO step_completions (session_id, step, completed_at) VALUES (?, ?, ?)`,
			id, step, formatTime(at))
		if err != nil {
			return fmt.Errorf("failed to insert step %s: %w", step, err)
		}
		n, err := res.RowsAffected()
		inserted = n > 0
		return err
	})
	return inserted, err
}

// AddTimeLog appends coding time to the day's session.
func (s *Store) AddTimeLog(date time.Time, seconds int64, source string, at time.Time) error {
	if seconds < 0 {
		return fmt.Errorf("negative time log: %d seconds", seconds)
	}
	return s.withTx("add time log", func(tx *sql.Tx) error {
		id, err := ensureSession(tx, date)
		if err != nil {
			return err
		}
		_, err = tx.Exec(`INSERT INTO time_logs (session_id, seconds, source, logged_at) VALUES (?, ?, ?, ?)`,
			id, seconds, source, formatTime(at))
		return err
	})
}

// InsertCommit records a commit once; it reports false for a known hash.
func (s *Store) InsertCommit(c domain.Commit) (bool, error) {
	var inserted bool
	err := s.withTx("insert commit", func(tx *sql.Tx) error {
		if _, err := ensureSession(tx, c.Date); err != nil {
			return err
		}
		res, err := tx.Exec(`INSERT OR IGNORE INTO commits (hash, repo, authored_at, logical_date) VALUES (?, ?, ?, ?)`,
			c.Hash, c.Repo, formatTime(c.AuthoredAt), formatDate(c.Date))
		if err != nil {
			return fmt.Errorf("failed to insert commit %s: %w", c.Hash, err)
		}
		n, err := res.RowsAffected()
		inserted = n > 0
		return err
	})
	return inserted, err
}

// CommitCount returns the number of commits recorded.
func (s *Store) CommitCount() (int64, error) {
	var count int64
	if err := s.conn.QueryRow("SELECT COUNT(*) FROM commits").Scan(&count); err != nil {
		return 0, persistErr("count commits", err)
	}
	return count, nil
}

// FirstActivityDate returns the earliest day with a session, commit or
// stored summary.
// ok is false when nothing has been recorded.
func (s *Store) FirstActivityDate() (first time.Time, ok bool, err error) {
	var d sql.NullString
	err = s.conn.QueryRow(`
		SELECT MIN(d) FROM (
			SELECT MIN(date) AS d FROM sessions
			UNION ALL
			SELECT MIN(logical_date) FROM commits
			UNION ALL
			SELECT MIN(date) FROM daily_summaries
		)
	`).Scan(&d)
	if err != nil {
		return time.Time{}, false, persistErr("find first activity date", err)
	}
	if !d.Valid {
		return time.Time{}, false, nil
	}
	first, err = parseDate(d.String)
	if err != nil {
		return time.Time{}, false, persistErr("find first activity date", err)
	}
	return first, true, nil
}

// ActivityBetween aggregates raw rows per day for dates in [from, to]. Only
// days with a session or a commit are returned; ActivityLevel is left unset.
func (s *Store) ActivityBetween(from, to time.Time) ([]domain.DailyActivitySummary, error) {
	rows, err := s.conn.Query(`
		SELECT d.date,
		       COALESCE((SELECT SUM(t.seconds) FROM time_logs t JOIN sessions x ON x.id = t.session_id WHERE x.date = d.date), 0),
		       (SELECT COUNT(*) FROM commits c WHERE c.logical_date = d.date),
		       COALESCE((SELECT x.cards_reviewed FROM sessions x WHERE x.date = d.date), 0),
		       (SELECT COUNT(*) FROM step_completions sc JOIN sessions x ON x.id = sc.session_id WHERE x.date = d.date)
		FROM (
			SELECT date FROM sessions WHERE date BETWEEN ? AND ?
			UNION
			SELECT logical_date FROM commits WHERE logical_date BETWEEN ? AND ?
		) d
		ORDER BY d.date
	`, formatDate(from), formatDate(to), formatDate(from), formatDate(to))
	if err != nil {
		return nil, persistErr("aggregate activity", err)
	}
	defer rows.Close()

	var out []domain.DailyActivitySummary
	for rows.Next() {
		var (
			sum domain.DailyActivitySummary
			d   string
		)
		if err := rows.Scan(&d, &sum.CodingSeconds, &sum.CommitCount, &sum.ItemsReviewed, &sum.StepsCompleted); err != nil {
			return nil, persistErr("scan activity row", err)
		}
		if sum.Date, err = parseDate(d); err != nil {
			return nil, persistErr("scan activity row", err)
		}
		out = append(out, sum)
	}
	if err := rows.Err(); err != nil {
		return nil, persistErr("aggregate activity", err)
	}
	return out, nil
}

// UpsertDailySummaries writes derived summaries, replacing existing rows for
// the same dates.
func (s *Store) UpsertDailySummaries(sums []domain.DailyActivitySummary) error {
	if len(sums) == 0 {
		return nil
	}
	now := formatTime(time.Now())
	return s.withTx("upsert summaries", func(tx *sql.Tx) error {
		stmt, err := tx.Prepare(`
			INSERT INTO daily_summaries (date, coding_seconds, commit_count, items_reviewed, steps_completed, activity_level, rebuilt_at)
			VALUES (?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT(date) DO UPDATE SET
				coding_seconds = excluded.coding_seconds,
				commit_count = excluded.commit_count,
				items_reviewed = excluded.items_reviewed,
				steps_completed = excluded.steps_completed,
				activity_level = excluded.activity_level,
				rebuilt_at = excluded.rebuilt_at
		`)
		if err != nil {
			return err
		}
		defer stmt.Close()
		for _, sum := range sums {
			_, err := stmt.Exec(formatDate(sum.Date), sum.CodingSeconds, sum.CommitCount,
				sum.ItemsReviewed, sum.StepsCompleted, int(sum.ActivityLevel), now)
			if err != nil {
				return fmt.Errorf("failed to upsert summary %s: %w", formatDate(sum.Date), err)
			}
		}
		return nil
	})
}

// ListDailySummaries returns stored summaries for [from, to] in date order.
func (s *Store) ListDailySummaries(from, to time.Time) ([]domain.DailyActivitySummary, error) {
	rows, err := s.conn.Query(`
		SELECT date, coding_seconds, commit_count, items_reviewed, steps_completed, activity_level
		FROM daily_summaries WHERE date BETWEEN ? AND ?
		ORDER BY date
	`, formatDate(from), formatDate(to))
	if err != nil {
		return nil, persistErr("list summaries", err)
	}
	defer rows.Close()

	var out []domain.DailyActivitySummary
	for rows.Next() {
		var (
			sum   domain.DailyActivitySummary
			d     string
			level int
		)
		if err := rows.Scan(&d, &sum.CodingSeconds, &sum.CommitCount, &sum.ItemsReviewed, &sum.StepsCompleted, &level); err != nil {
			return nil, persistErr("scan summary", err)
		}
		if sum.Date, err = parseDate(d); err != nil {
			return nil, persistErr("scan summary", err)
		}
		sum.ActivityLevel = domain.ActivityLevel(level)
		out = append(out, sum)
	}
	if err := rows.Err(); err != nil {
		return nil, persistErr("list summaries", err)
	}
	return out, nil
}

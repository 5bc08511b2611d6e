package storage

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/conorfennell/drillbook/internal/domain"
)

const itemColumns = `id, kind, title, source, repetitions, interval_days, easiness_factor,
	last_quality, next_review_date, last_reviewed_at, archived, created_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanItem(r rowScanner) (*domain.ReviewableItem, error) {
	var (
		it             domain.ReviewableItem
		kind           string
		next, created  string
		lastReviewedAt sql.NullString
		archived       int
	)
	err := r.Scan(&it.ID, &kind, &it.Title, &it.Source, &it.Repetitions, &it.IntervalDays,
		&it.EasinessFactor, &it.LastQuality, &next, &lastReviewedAt, &archived, &created)
	if err != nil {
		return nil, err
	}
	it.Kind = domain.ItemKind(kind)
	it.Archived = archived != 0
	if it.NextReviewDate, err = parseTime(next); err != nil {
		return nil, fmt.Errorf("failed to parse item %s next_review_date: %w", it.ID, err)
	}
	if it.CreatedAt, err = parseTime(created); err != nil {
		return nil, fmt.Errorf("failed to parse item %s created_at: %w", it.ID, err)
	}
	if lastReviewedAt.Valid {
		t, err := parseTime(lastReviewedAt.String)
		if err != nil {
			return nil, fmt.Errorf("failed to parse item %s last_reviewed_at: %w", it.ID, err)
		}
		it.LastReviewedAt = &t
	}
	return &it, nil
}

// InsertItem stores a new item. It reports false, without touching the
// existing row, when an item with the same id is already present.
func (s *Store) InsertItem(it domain.ReviewableItem) (bool, error) {
	if err := it.Validate(); err != nil {
		return false, err
	}
	var lastReviewed any
	if it.LastReviewedAt != nil {
		lastReviewed = formatTime(*it.LastReviewedAt)
	}
	res, err := s.conn.Exec(`
		INSERT OR IGNORE INTO review_items (`+itemColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		it.ID, string(it.Kind), it.Title, it.Source, it.Repetitions, it.IntervalDays,
		it.EasinessFactor, it.LastQuality, formatTime(it.NextReviewDate), lastReviewed,
		boolInt(it.Archived), formatTime(it.CreatedAt),
	)
	if err != nil {
		return false, persistErr(fmt.Sprintf("insert item %s", it.ID), err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, persistErr(fmt.Sprintf("insert item %s", it.ID), err)
	}
	return n > 0, nil
}

// GetItem retrieves an item by id, or ErrNotFound.
func (s *Store) GetItem(id string) (*domain.ReviewableItem, error) {
	row := s.conn.QueryRow(`SELECT `+itemColumns+` FROM review_items WHERE id = ?`, id)
	it, err := scanItem(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("item %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, persistErr(fmt.Sprintf("get item %s", id), err)
	}
	return it, nil
}

// ItemFilter narrows ListItems. Zero fields match everything.
type ItemFilter struct {
	Kind            domain.ItemKind
	Source          string
	IncludeArchived bool
}

// ListItems returns the items matching f ordered by id.
func (s *Store) ListItems(f ItemFilter) ([]domain.ReviewableItem, error) {
	var (
		where []string
		args  []any
	)
	if f.Kind != "" {
		where = append(where, "kind = ?")
		args = append(args, string(f.Kind))
	}
	if f.Source != "" {
		where = append(where, "source = ?")
		args = append(args, f.Source)
	}
	if !f.IncludeArchived {
		where = append(where, "archived = 0")
	}
	q := `SELECT ` + itemColumns + ` FROM review_items`
	if len(where) > 0 {
		q += " WHERE " + strings.Join(where, " AND ")
	}
	q += " ORDER BY id"
	return s.queryItems("list items", q, args...)
}

// DueItems returns non-archived items due at or before now, most overdue
// first. limit <= 0 means no limit.
func (s *Store) DueItems(now time.Time, limit int) ([]domain.ReviewableItem, error) {
	q := `SELECT ` + itemColumns + ` FROM review_items
		WHERE archived = 0 AND next_review_date <= ?
		ORDER BY next_review_date, id`
	args := []any{formatTime(now)}
	if limit > 0 {
		q += " LIMIT ?"
		args = append(args, limit)
	}
	return s.queryItems("list due items", q, args...)
}

func (s *Store) queryItems(op, q string, args ...any) ([]domain.ReviewableItem, error) {
	rows, err := s.conn.Query(q, args...)
	if err != nil {
		return nil, persistErr(op, err)
	}
	defer rows.Close()

	var items []domain.ReviewableItem
	for rows.Next() {
		it, err := scanItem(rows)
		if err != nil {
			return nil, persistErr(op, err)
		}
		items = append(items, *it)
	}
	if err := rows.Err(); err != nil {
		return nil, persistErr(op, err)
	}
	return items, nil
}

// UpdateItem applies the non-scheduling fields in u.
func (s *Store) UpdateItem(id string, u domain.ItemUpdate) error {
	if u.Empty() {
		return nil
	}
	var (
		sets []string
		args []any
	)
	if u.Title != nil {
		sets = append(sets, "title = ?")
		args = append(args, *u.Title)
	}
	if u.Archived != nil {
		sets = append(sets, "archived = ?")
		args = append(args, boolInt(*u.Archived))
	}
	args = append(args, id)

	res, err := s.conn.Exec(`UPDATE review_items SET `+strings.Join(sets, ", ")+` WHERE id = ?`, args...)
	if err != nil {
		return persistErr(fmt.Sprintf("update item %s", id), err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return persistErr(fmt.Sprintf("update item %s", id), err)
	}
	if n == 0 {
		return fmt.Errorf("item %s: %w", id, ErrNotFound)
	}
	return nil
}

// ApplyReview persists the outcome of a completed review in one transaction:
// the item's new scheduling state (inserting the item on its first review),
// a review_log row, and the day's card count.
func (s *Store) ApplyReview(it domain.ReviewableItem, log domain.ReviewLog, day time.Time) error {
	if err := it.Validate(); err != nil {
		return err
	}
	return s.withTx("apply review", func(tx *sql.Tx) error {
		_, err := tx.Exec(`
			INSERT INTO review_items (`+itemColumns+`)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT(id) DO UPDATE SET
				repetitions = excluded.repetitions,
				interval_days = excluded.interval_days,
				easiness_factor = excluded.easiness_factor,
				last_quality = excluded.last_quality,
				next_review_date = excluded.next_review_date,
				last_reviewed_at = excluded.last_reviewed_at
		`,
			it.ID, string(it.Kind), it.Title, it.Source, it.Repetitions, it.IntervalDays,
			it.EasinessFactor, it.LastQuality, formatTime(it.NextReviewDate), formatTime(log.ReviewedAt),
			boolInt(it.Archived), formatTime(it.CreatedAt),
		)
		if err != nil {
			return fmt.Errorf("failed to save item %s: %w", it.ID, err)
		}

		_, err = tx.Exec(`
			INSERT INTO review_log (id, item_id, quality, interval_days, easiness_factor, reviewed_at)
			VALUES (?, ?, ?, ?, ?, ?)
		`, log.ID, it.ID, log.Quality, log.IntervalDays, log.EasinessFactor, formatTime(log.ReviewedAt))
		if err != nil {
			return fmt.Errorf("failed to insert review log for %s: %w", it.ID, err)
		}

		sessionID, err := ensureSession(tx, day)
		if err != nil {
			return err
		}
		_, err = tx.Exec(`UPDATE sessions SET cards_reviewed = cards_reviewed + 1 WHERE id = ?`, sessionID)
		return err
	})
}

// ReviewLogs returns an item's review history, oldest first.
func (s *Store) ReviewLogs(itemID string) ([]domain.ReviewLog, error) {
	rows, err := s.conn.Query(`
		SELECT id, item_id, quality, interval_days, easiness_factor, reviewed_at
		FROM review_log WHERE item_id = ?
		ORDER BY reviewed_at, rowid
	`, itemID)
	if err != nil {
		return nil, persistErr("list review logs", err)
	}
	defer rows.Close()

	var logs []domain.ReviewLog
	for rows.Next() {
		var (
			l  domain.ReviewLog
			at string
		)
		if err := rows.Scan(&l.ID, &l.ItemID, &l.Quality, &l.IntervalDays, &l.EasinessFactor, &at); err != nil {
			return nil, persistErr("scan review log", err)
		}
		if l.ReviewedAt, err = parseTime(at); err != nil {
			return nil, persistErr("scan review log", err)
		}
		logs = append(logs, l)
	}
	if err := rows.Err(); err != nil {
		return nil, persistErr("list review logs", err)
	}
	return logs, nil
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

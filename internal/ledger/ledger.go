// Package ledger records daily activity and derives consistency metrics from
// it: per-day summaries, a strict consecutive-day streak and a rest-day
// tolerant streak.
package ledger

import (
	"fmt"
	"log/slog"
	"slices"
	"time"

	"github.com/conorfennell/drillbook/internal/config"
	"github.com/conorfennell/drillbook/internal/domain"
	"github.com/conorfennell/drillbook/internal/storage"
)

// Ledger attributes activity to logical days and reads it back.
type Ledger struct {
	store     *storage.Store
	startHour int
	now       func() time.Time
}

// New returns a Ledger over store using cfg's logical-day boundary.
func New(store *storage.Store, cfg config.StoreConfig) *Ledger {
	return &Ledger{
		store:     store,
		startHour: cfg.DayStartHour,
		now:       time.Now,
	}
}

// Today returns the current logical date.
func (l *Ledger) Today() time.Time {
	return l.Day(l.now())
}

// Day maps a timestamp to its logical date.
func (l *Ledger) Day(t time.Time) time.Time {
	return domain.LogicalDate(t, l.startHour)
}

// RecordCodingTime logs seconds of coding at time at.
func (l *Ledger) RecordCodingTime(at time.Time, seconds int64, source string) error {
	if err := l.store.AddTimeLog(l.Day(at), seconds, source, at); err != nil {
		return fmt.Errorf("failed to record coding time: %w", err)
	}
	return nil
}

// CompleteStep marks a workflow step done on the logical day of at.
func (l *Ledger) CompleteStep(at time.Time, step string) (bool, error) {
	added, err := l.store.CompleteStep(l.Day(at), step, at)
	if err != nil {
		return false, fmt.Errorf("failed to complete step %s: %w", step, err)
	}
	return added, nil
}

// RecordCommit stores a commit against the logical day it was authored on.
// It reports false if the hash was already known.
func (l *Ledger) RecordCommit(hash, repo string, at time.Time) (bool, error) {
	return l.store.InsertCommit(domain.Commit{
		Hash:       hash,
		Repo:       repo,
		AuthoredAt: at,
		Date:       l.Day(at),
	})
}

// RebuildSummaries recomputes daily summaries for [from, to] from the raw
// rows. Rebuilding twice yields the same rows. Log rows only grow until a
// retention sweep prunes them, so each counter keeps the larger of its stored
// and recomputed value and a summary outlives the logs it was built from.
func (l *Ledger) RebuildSummaries(from, to time.Time) (int, error) {
	raw, err := l.store.ActivityBetween(from, to)
	if err != nil {
		return 0, fmt.Errorf("failed to load activity: %w", err)
	}
	stored, err := l.store.ListDailySummaries(from, to)
	if err != nil {
		return 0, fmt.Errorf("failed to load summaries: %w", err)
	}
	sums := foldRaw(stored, raw)
	if err := l.store.UpsertDailySummaries(sums); err != nil {
		return 0, fmt.Errorf("failed to store summaries: %w", err)
	}
	slog.Debug("Rebuilt daily summaries", "from", domain.FormatDate(from), "to", domain.FormatDate(to), "days", len(sums))
	return len(sums), nil
}

// foldRaw merges raw aggregates into the stored summaries for the same days.
// Days without raw rows are not returned.
func foldRaw(stored, raw []domain.DailyActivitySummary) []domain.DailyActivitySummary {
	byDate := make(map[string]domain.DailyActivitySummary, len(stored))
	for _, s := range stored {
		byDate[domain.FormatDate(s.Date)] = s
	}
	out := make([]domain.DailyActivitySummary, 0, len(raw))
	for _, r := range raw {
		if s, ok := byDate[domain.FormatDate(r.Date)]; ok {
			r.CodingSeconds = max(r.CodingSeconds, s.CodingSeconds)
			r.CommitCount = max(r.CommitCount, s.CommitCount)
			r.ItemsReviewed = max(r.ItemsReviewed, s.ItemsReviewed)
			r.StepsCompleted = max(r.StepsCompleted, s.StepsCompleted)
		}
		r.ActivityLevel = r.Level()
		out = append(out, r)
	}
	return out
}

// Cleanup freezes every day's summary and then runs the store's retention
// sweep, so pruned log rows still count towards trends and streaks.
func (l *Ledger) Cleanup(retentionDays int) (storage.CleanupResult, error) {
	if !l.store.Config().RetentionEnabled {
		return storage.CleanupResult{}, storage.ErrRetentionDisabled
	}
	first, ok, err := l.store.FirstActivityDate()
	if err != nil {
		return storage.CleanupResult{}, err
	}
	if ok {
		if _, err := l.RebuildSummaries(first, l.Today()); err != nil {
			return storage.CleanupResult{}, err
		}
	}
	return l.store.Cleanup(retentionDays)
}

// Series returns one summary per day for the trailing window ending today,
// oldest first, with inactive days zero-filled.
func (l *Ledger) Series(days int) ([]domain.DailyActivitySummary, error) {
	if days <= 0 {
		return nil, nil
	}
	to := l.Today()
	from := to.AddDate(0, 0, -(days - 1))
	if _, err := l.RebuildSummaries(from, to); err != nil {
		return nil, err
	}
	stored, err := l.store.ListDailySummaries(from, to)
	if err != nil {
		return nil, err
	}
	byDate := make(map[string]domain.DailyActivitySummary, len(stored))
	for _, s := range stored {
		byDate[domain.FormatDate(s.Date)] = s
	}

	series := make([]domain.DailyActivitySummary, 0, days)
	for d := from; !d.After(to); d = d.AddDate(0, 0, 1) {
		s, ok := byDate[domain.FormatDate(d)]
		if !ok {
			s = domain.DailyActivitySummary{Date: d}
		}
		series = append(series, s)
	}
	return series, nil
}

// ActiveDates returns every logical date with activity up to today, reading
// both the raw rows and the stored summaries of days whose logs were pruned.
func (l *Ledger) ActiveDates() ([]time.Time, error) {
	first, ok, err := l.store.FirstActivityDate()
	if err != nil || !ok {
		return nil, err
	}
	to := l.Today()
	raw, err := l.store.ActivityBetween(first, to)
	if err != nil {
		return nil, err
	}
	stored, err := l.store.ListDailySummaries(first, to)
	if err != nil {
		return nil, err
	}

	seen := make(map[string]bool)
	var active []time.Time
	for _, s := range append(stored, foldRaw(stored, raw)...) {
		k := domain.FormatDate(s.Date)
		if s.Active() && !seen[k] {
			seen[k] = true
			active = append(active, s.Date)
		}
	}
	slices.SortFunc(active, func(a, b time.Time) int { return a.Compare(b) })
	return active, nil
}

// StrictStreak is the consecutive-day streak used for historical display.
func (l *Ledger) StrictStreak() (int, error) {
	active, err := l.ActiveDates()
	if err != nil {
		return 0, fmt.Errorf("failed to compute strict streak: %w", err)
	}
	return StrictStreak(active, l.Today()), nil
}

// TolerantStreak is the rest-day tolerant streak used for gamified feedback.
func (l *Ledger) TolerantStreak() (int, error) {
	active, err := l.ActiveDates()
	if err != nil {
		return 0, fmt.Errorf("failed to compute tolerant streak: %w", err)
	}
	return TolerantStreak(active, l.Today()), nil
}

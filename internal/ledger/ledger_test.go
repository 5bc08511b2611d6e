package ledger

import (
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/conorfennell/drillbook/internal/config"
	"github.com/conorfennell/drillbook/internal/domain"
	"github.com/conorfennell/drillbook/internal/storage"
)

func newTestLedger(t *testing.T, now time.Time) (*Ledger, *storage.Store) {
	t.Helper()
	return openTestLedger(t, now, false)
}

func openTestLedger(t *testing.T, now time.Time, retention bool) (*Ledger, *storage.Store) {
	t.Helper()
	cfg := config.StoreConfig{
		DBPath:           filepath.Join(t.TempDir(), "test.db"),
		BusyTimeout:      time.Second,
		DayStartHour:     4,
		RetentionEnabled: retention,
		RetentionDays:    7,
	}
	s, err := storage.Open(cfg)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	l := New(s, cfg)
	l.now = func() time.Time { return now }
	return l, s
}

func TestLateNightCountsForPreviousDay(t *testing.T) {
	now := time.Date(2025, 6, 20, 2, 30, 0, 0, time.UTC)
	l, s := newTestLedger(t, now)

	if err := l.RecordCodingTime(now, 1200, "wakatime"); err != nil {
		t.Fatal(err)
	}
	if _, err := s.GetSession(time.Date(2025, 6, 19, 0, 0, 0, 0, time.UTC)); err != nil {
		t.Errorf("Expected activity at 02:30 to land on the previous day: %v", err)
	}
	if got := domain.FormatDate(l.Today()); got != "2025-06-19" {
		t.Errorf("Expected logical today 2025-06-19, got %s", got)
	}
}

func TestRebuildSummariesIsIdempotent(t *testing.T) {
	now := time.Date(2025, 6, 20, 12, 0, 0, 0, time.UTC)
	l, s := newTestLedger(t, now)

	if err := l.RecordCodingTime(now.Add(-2*time.Hour), 3600, "manual"); err != nil {
		t.Fatal(err)
	}
	if _, err := l.RecordCommit("c1", "repo", now.Add(-time.Hour)); err != nil {
		t.Fatal(err)
	}
	if _, err := l.CompleteStep(now.AddDate(0, 0, -1), "kata"); err != nil {
		t.Fatal(err)
	}

	from, to := l.Today().AddDate(0, 0, -7), l.Today()
	for i := 0; i < 2; i++ {
		n, err := l.RebuildSummaries(from, to)
		if err != nil {
			t.Fatal(err)
		}
		if n != 2 {
			t.Errorf("run %d: expected 2 days rebuilt, got %d", i, n)
		}
	}

	sums, err := s.ListDailySummaries(from, to)
	if err != nil {
		t.Fatal(err)
	}
	if len(sums) != 2 {
		t.Fatalf("Expected 2 summaries, got %d", len(sums))
	}
	last := sums[1]
	if last.CodingSeconds != 3600 || last.CommitCount != 1 {
		t.Errorf("Unexpected summary %+v", last)
	}
	if last.ActivityLevel != domain.LevelModerate {
		t.Errorf("Expected moderate level, got %d", last.ActivityLevel)
	}
}

func TestSeriesIsDenseAndOrdered(t *testing.T) {
	now := time.Date(2025, 6, 20, 12, 0, 0, 0, time.UTC)
	l, _ := newTestLedger(t, now)

	if err := l.RecordCodingTime(now.AddDate(0, 0, -3), 600, ""); err != nil {
		t.Fatal(err)
	}
	series, err := l.Series(7)
	if err != nil {
		t.Fatal(err)
	}
	if len(series) != 7 {
		t.Fatalf("Expected 7 days, got %d", len(series))
	}
	if domain.FormatDate(series[0].Date) != "2025-06-14" || domain.FormatDate(series[6].Date) != "2025-06-20" {
		t.Errorf("Unexpected range %s..%s", domain.FormatDate(series[0].Date), domain.FormatDate(series[6].Date))
	}
	if series[3].CodingSeconds != 600 {
		t.Errorf("Expected activity on day index 3, got %+v", series[3])
	}
	if series[0].Active() {
		t.Error("Expected zero-filled days to be inactive")
	}
}

func TestLedgerStreaks(t *testing.T) {
	now := time.Date(2025, 6, 20, 12, 0, 0, 0, time.UTC)
	l, _ := newTestLedger(t, now)

	// Active today, two days ago, and the four days before that.
	for _, back := range []int{0, 2, 3, 4, 5, 6} {
		if err := l.RecordCodingTime(now.AddDate(0, 0, -back), 900, ""); err != nil {
			t.Fatal(err)
		}
	}

	strict, err := l.StrictStreak()
	if err != nil {
		t.Fatal(err)
	}
	if strict != 1 {
		t.Errorf("Expected strict streak 1, got %d", strict)
	}

	tolerant, err := l.TolerantStreak()
	if err != nil {
		t.Fatal(err)
	}
	if tolerant != 6 {
		t.Errorf("Expected tolerant streak 6, got %d", tolerant)
	}
}

func TestLedgerStreaksEmpty(t *testing.T) {
	l, _ := newTestLedger(t, time.Now())
	if s, err := l.StrictStreak(); err != nil || s != 0 {
		t.Errorf("Expected 0, got %d (%v)", s, err)
	}
	if s, err := l.TolerantStreak(); err != nil || s != 0 {
		t.Errorf("Expected 0, got %d (%v)", s, err)
	}
}

func TestReviewsAloneDoNotMakeADayActive(t *testing.T) {
	now := time.Date(2025, 6, 20, 12, 0, 0, 0, time.UTC)
	l, s := newTestLedger(t, now)

	it := domain.NewItem(domain.ItemRef{ID: "card"}, now)
	err := s.ApplyReview(it, domain.ReviewLog{ID: "r1", ItemID: "card", Quality: 5, EasinessFactor: 2.5, ReviewedAt: now}, l.Today())
	if err != nil {
		t.Fatal(err)
	}
	active, err := l.ActiveDates()
	if err != nil {
		t.Fatal(err)
	}
	if len(active) != 0 {
		t.Errorf("Expected no active dates, got %v", active)
	}
}

func codingSeconds(series []domain.DailyActivitySummary) int64 {
	var total int64
	for _, d := range series {
		total += d.CodingSeconds
	}
	return total
}

// The fixed clock sits well before the wall clock, so every sweep below
// prunes all of the logged rows.
func TestSummariesSurviveRetentionSweep(t *testing.T) {
	now := time.Date(2025, 6, 20, 12, 0, 0, 0, time.UTC)
	l, s := openTestLedger(t, now, true)

	if err := l.RecordCodingTime(now.AddDate(0, 0, -20), 3600, "manual"); err != nil {
		t.Fatal(err)
	}
	if _, err := l.Series(30); err != nil {
		t.Fatal(err)
	}
	res, err := s.Cleanup(7)
	if err != nil {
		t.Fatal(err)
	}
	if res.Deleted["time_logs"] != 1 {
		t.Fatalf("Expected the time log to be pruned, got %+v", res.Deleted)
	}

	series, err := l.Series(30)
	if err != nil {
		t.Fatal(err)
	}
	if got := codingSeconds(series); got != 3600 {
		t.Errorf("Expected 3600 coding seconds after the sweep, got %d", got)
	}
	if lvl := series[9].ActivityLevel; lvl != domain.LevelModerate {
		t.Errorf("Expected the pruned day to keep its level, got %d", lvl)
	}
}

func TestStreaksSurviveRetentionSweep(t *testing.T) {
	now := time.Date(2025, 6, 20, 12, 0, 0, 0, time.UTC)
	l, s := openTestLedger(t, now, true)

	for _, back := range []int{0, 2, 3, 4, 5, 6} {
		if err := l.RecordCodingTime(now.AddDate(0, 0, -back), 900, ""); err != nil {
			t.Fatal(err)
		}
	}
	if _, err := l.Series(7); err != nil {
		t.Fatal(err)
	}
	if _, err := s.Cleanup(7); err != nil {
		t.Fatal(err)
	}

	strict, err := l.StrictStreak()
	if err != nil || strict != 1 {
		t.Errorf("Expected strict streak 1, got %d (%v)", strict, err)
	}
	tolerant, err := l.TolerantStreak()
	if err != nil || tolerant != 6 {
		t.Errorf("Expected tolerant streak 6, got %d (%v)", tolerant, err)
	}
}

func TestLedgerCleanupFreezesUnsummarizedDays(t *testing.T) {
	now := time.Date(2025, 6, 20, 12, 0, 0, 0, time.UTC)
	l, s := openTestLedger(t, now, true)

	if err := l.RecordCodingTime(now.AddDate(0, 0, -3), 1800, ""); err != nil {
		t.Fatal(err)
	}
	if _, err := l.RecordCommit("c1", "repo", now.AddDate(0, 0, -3)); err != nil {
		t.Fatal(err)
	}

	res, err := l.Cleanup(0)
	if err != nil {
		t.Fatal(err)
	}
	if res.Total() != 2 {
		t.Errorf("Expected 2 rows pruned, got %+v", res.Deleted)
	}

	day := l.Today().AddDate(0, 0, -3)
	sums, err := s.ListDailySummaries(day, day)
	if err != nil {
		t.Fatal(err)
	}
	if len(sums) != 1 || sums[0].CodingSeconds != 1800 || sums[0].CommitCount != 1 {
		t.Errorf("Expected a frozen summary for %s, got %+v", domain.FormatDate(day), sums)
	}
}

func TestLedgerCleanupRequiresOptIn(t *testing.T) {
	l, _ := newTestLedger(t, time.Now())
	if _, err := l.Cleanup(30); !errors.Is(err, storage.ErrRetentionDisabled) {
		t.Errorf("Expected ErrRetentionDisabled, got %v", err)
	}
}

package ledger

import (
	"time"

	"github.com/conorfennell/drillbook/internal/domain"
)

const (
	// tolerantWindow and tolerantMinActive: at least 5 of any 8 days.
	tolerantWindow    = 8
	tolerantMinActive = 5
	// maxRestDays is the longest run of inactive days a tolerant streak survives.
	maxRestDays = 2
)

// activeSet indexes active dates by calendar day.
type activeSet struct {
	days  map[string]struct{}
	first time.Time
}

func newActiveSet(dates []time.Time) activeSet {
	set := activeSet{days: make(map[string]struct{}, len(dates))}
	for _, d := range dates {
		d = domain.Date(d)
		set.days[domain.FormatDate(d)] = struct{}{}
		if set.first.IsZero() || d.Before(set.first) {
			set.first = d
		}
	}
	return set
}

func (s activeSet) has(d time.Time) bool {
	_, ok := s.days[domain.FormatDate(d)]
	return ok
}

// countWindow counts active days in the window of n days ending at end.
func (s activeSet) countWindow(end time.Time, n int) int {
	count := 0
	for i := 0; i < n; i++ {
		if s.has(end.AddDate(0, 0, -i)) {
			count++
		}
	}
	return count
}

// StrictStreak returns the length of the run of consecutive active days that
// ends today, or yesterday if today has no activity yet. Any gap ends it.
func StrictStreak(active []time.Time, today time.Time) int {
	set := newActiveSet(active)
	d := domain.Date(today)
	if !set.has(d) {
		d = d.AddDate(0, 0, -1)
	}
	streak := 0
	for set.has(d) {
		streak++
		d = d.AddDate(0, 0, -1)
	}
	return streak
}

// TolerantStreak is the rest-day-friendly streak used for motivation. It is 0
// when the last three days were all inactive or when fewer than 5 of the last
// 8 days were active. Otherwise it counts active days walking back from today
// until it meets 3 consecutive inactive days, or a day whose trailing 8-day
// window has fewer than 5 active days. Windows reaching back before the first
// recorded activity are not density-checked, so a new user is not penalised
// for days before they started.
func TolerantStreak(active []time.Time, today time.Time) int {
	if len(active) == 0 {
		return 0
	}
	set := newActiveSet(active)
	d := domain.Date(today)

	if set.countWindow(d, maxRestDays+1) == 0 {
		return 0
	}
	if set.countWindow(d, tolerantWindow) < tolerantMinActive {
		return 0
	}

	first := set.first
	streak, rest := 0, 0
	for !d.Before(first) {
		if set.has(d) {
			rest = 0
		} else {
			rest++
			if rest > maxRestDays {
				break
			}
		}
		windowStart := d.AddDate(0, 0, -(tolerantWindow - 1))
		if !windowStart.Before(first) && set.countWindow(d, tolerantWindow) < tolerantMinActive {
			break
		}
		if set.has(d) {
			streak++
		}
		d = d.AddDate(0, 0, -1)
	}
	return streak
}

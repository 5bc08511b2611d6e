package ledger

import (
	"testing"
	"time"
)

var today = time.Date(2025, 6, 20, 0, 0, 0, 0, time.UTC)

// days builds active dates from a pattern read backwards from today:
// pattern[0] is today, 'x' is active, '.' is inactive.
func days(pattern string) []time.Time {
	var out []time.Time
	for i, c := range pattern {
		if c == 'x' {
			out = append(out, today.AddDate(0, 0, -i))
		}
	}
	return out
}

func TestStrictStreak(t *testing.T) {
	testCases := []struct {
		name     string
		pattern  string
		expected int
	}{
		{"empty", "", 0},
		{"today only", "x", 1},
		{"run ending today", "xxx.xx", 3},
		{"run ending yesterday", ".xxxx.x", 4},
		{"two days ago breaks it", "..xxxx", 0},
		{"single rest day breaks it", "xx.xxxxx", 2},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			got := StrictStreak(days(tc.pattern), today)
			if got != tc.expected {
				t.Errorf("Expected %d, got %d", tc.expected, got)
			}
		})
	}
}

func TestTolerantStreak(t *testing.T) {
	testCases := []struct {
		name     string
		pattern  string
		expected int
	}{
		{"empty", "", 0},
		{"exactly five of eight", "x.xx.x.x", 5},
		{"only four of eight", "x.x..x.x", 0},
		{"three quiet days", "...xxxxxxxx", 0},
		{"every day for ten days", "xxxxxxxxxx", 10},
		{"rest days tolerated", "xx.xxx.xxx.xx", 10},
		{"three-day gap ends the run", "xxxxxx...xxxxx", 6},
		{"rest today", ".xxxxxx", 6},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			got := TolerantStreak(days(tc.pattern), today)
			if got != tc.expected {
				t.Errorf("Expected %d, got %d", tc.expected, got)
			}
		})
	}
}

// A sparse stretch with two-day gaps never trips the 3-day rule, but the
// first day whose trailing 8 days reach into it has only 4 active days.
func TestTolerantStreakDensityEndsRun(t *testing.T) {
	pattern := "xxxxxxxx" + "..x..x..x..x..x"
	got := TolerantStreak(days(pattern), today)
	if got != 5 {
		t.Errorf("Expected the run to end at the first sparse window, got %d", got)
	}
}

func TestStreaksAreIndependent(t *testing.T) {
	active := days("x.xx.xxx")
	if s := StrictStreak(active, today); s != 1 {
		t.Errorf("Expected strict streak 1, got %d", s)
	}
	if s := TolerantStreak(active, today); s != 6 {
		t.Errorf("Expected tolerant streak 6, got %d", s)
	}
}

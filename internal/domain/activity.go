package domain

import "time"

// Session is the per-logical-day anchor for step completions, time logs and
// the count of cards reviewed that day.
type Session struct {
	ID            int64
	Date          time.Time
	CardsReviewed int
	CreatedAt     time.Time
}

// Commit is a raw commit row attributed to a logical day.
type Commit struct {
	Hash       string
	Repo       string
	AuthoredAt time.Time
	Date       time.Time
}

// ActivityLevel buckets a day's effort for display, 0 meaning no activity.
type ActivityLevel int

const (
	LevelNone ActivityLevel = iota
	LevelLight
	LevelModerate
	LevelStrong
	LevelIntense
)

// DailyActivitySummary is derived from raw session and commit rows and can be
// rebuilt at any time.
type DailyActivitySummary struct {
	Date           time.Time
	CodingSeconds  int64
	CommitCount    int
	ItemsReviewed  int
	StepsCompleted int
	ActivityLevel  ActivityLevel
}

// Active reports whether the day counts towards a streak: any coding time,
// any commit, or any completed workflow step. Reviewing cards alone does not.
func (s DailyActivitySummary) Active() bool {
	return s.CodingSeconds > 0 || s.CommitCount > 0 || s.StepsCompleted > 0
}

// Level computes the activity level from the raw counters.
func (s DailyActivitySummary) Level() ActivityLevel {
	if !s.Active() && s.ItemsReviewed == 0 {
		return LevelNone
	}
	points := float64(s.CodingSeconds)/1800 + float64(s.CommitCount) +
		float64(s.StepsCompleted) + float64(s.ItemsReviewed)/10
	switch {
	case points < 2:
		return LevelLight
	case points < 4:
		return LevelModerate
	case points < 8:
		return LevelStrong
	}
	return LevelIntense
}

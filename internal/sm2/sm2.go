// Package sm2 implements the SuperMemo-2 scheduling step shared by every
// reviewable item kind.
package sm2

import (
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/conorfennell/drillbook/internal/domain"
)

var (
	ErrInvalidQuality = errors.New("sm2: quality must be between 0 and 5")
	ErrInvalidState   = errors.New("sm2: repetitions and interval must be non-negative")
)

// Quality is the recall grade of a review. 0-2 are failed recalls, 3-5 pass.
type Quality int

const (
	Blackout  Quality = 0
	Wrong     Quality = 1
	Familiar  Quality = 2
	Difficult Quality = 3
	Hesitant  Quality = 4
	Perfect   Quality = 5
)

// Passed reports whether the grade counts as a successful recall.
func (q Quality) Passed() bool {
	return q >= Difficult
}

// Valid reports whether q is within 0..5.
func (q Quality) Valid() bool {
	return q >= Blackout && q <= Perfect
}

// MinEasiness is the floor for the easiness factor.
const MinEasiness = domain.MinEasiness

// State is the scheduling triple carried by every item.
type State struct {
	Repetitions    int
	IntervalDays   int
	EasinessFactor float64
}

// NewState is the state of an item that has never been reviewed.
func NewState() State {
	return State{EasinessFactor: domain.DefaultEasiness}
}

// Result is the outcome of one review.
type Result struct {
	State
	Quality    Quality
	NextReview time.Time
}

// Next computes the state after a review graded q at now.
func Next(prev State, q Quality, now time.Time) (Result, error) {
	if !q.Valid() {
		return Result{}, fmt.Errorf("%w: got %d", ErrInvalidQuality, q)
	}
	if prev.Repetitions < 0 || prev.IntervalDays < 0 {
		return Result{}, ErrInvalidState
	}

	next := prev
	if q.Passed() {
		next.Repetitions++
		switch next.Repetitions {
		case 1:
			next.IntervalDays = 1
		case 2:
			next.IntervalDays = 6
		default:
			next.IntervalDays = int(math.Round(float64(prev.IntervalDays) * prev.EasinessFactor))
		}
	} else {
		next.Repetitions = 0
		next.IntervalDays = 1
	}
	next.EasinessFactor = nextEasiness(prev.EasinessFactor, q)

	return Result{
		State:      next,
		Quality:    q,
		NextReview: now.AddDate(0, 0, next.IntervalDays),
	}, nil
}

// nextEasiness applies EF' = EF + (0.1 - (5-q)(0.08 + (5-q)0.02)), floored.
func nextEasiness(ef float64, q Quality) float64 {
	d := float64(Perfect - q)
	return math.Max(MinEasiness, ef+(0.1-d*(0.08+d*0.02)))
}

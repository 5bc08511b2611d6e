package domain

import (
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
)

// ItemKind identifies what a reviewable item stands for. The scheduler does
// not care; the kind only matters to callers and deck reconciliation.
type ItemKind string

const (
	KindExercise  ItemKind = "exercise"
	KindFlashcard ItemKind = "flashcard"
	KindIncident  ItemKind = "incident"
)

// ParseItemKind maps a user-supplied string to an ItemKind.
func ParseItemKind(s string) (ItemKind, error) {
	switch k := ItemKind(s); k {
	case KindExercise, KindFlashcard, KindIncident:
		return k, nil
	case "":
		return KindFlashcard, nil
	}
	return "", fmt.Errorf("unknown item kind %q", s)
}

// DefaultEasiness is the easiness factor of a never-reviewed item.
const DefaultEasiness = 2.5

// MinEasiness is the floor the easiness factor is clamped to.
const MinEasiness = 1.3

// ReviewableItem is anything scheduled by SM-2: an exercise, a flashcard or
// an incident re-review.
type ReviewableItem struct {
	ID             string     `validate:"required"`
	Kind           ItemKind   `validate:"oneof=exercise flashcard incident"`
	Title          string
	Source         string
	Repetitions    int        `validate:"gte=0"`
	IntervalDays   int        `validate:"gte=0"`
	EasinessFactor float64    `validate:"gte=1.3"`
	LastQuality    int        `validate:"gte=0,lte=5"`
	NextReviewDate time.Time
	LastReviewedAt *time.Time
	Archived       bool
	CreatedAt      time.Time
}

// ItemRef names an item for enrollment or review. Kind and Title are only
// used when the item does not exist yet.
type ItemRef struct {
	ID     string
	Kind   ItemKind
	Title  string
	Source string
}

// NewItem returns a fresh item that is due immediately.
func NewItem(ref ItemRef, now time.Time) ReviewableItem {
	kind := ref.Kind
	if kind == "" {
		kind = KindFlashcard
	}
	return ReviewableItem{
		ID:             ref.ID,
		Kind:           kind,
		Title:          ref.Title,
		Source:         ref.Source,
		EasinessFactor: DefaultEasiness,
		NextReviewDate: now,
		CreatedAt:      now,
	}
}

// Due reports whether the item should be reviewed at now.
func (it ReviewableItem) Due(now time.Time) bool {
	return !it.Archived && !it.NextReviewDate.After(now)
}

// ItemUpdate carries the fields of an item that may change outside a review.
// Scheduling fields are deliberately absent: they only move through SM-2.
type ItemUpdate struct {
	Title    *string
	Archived *bool
}

// Empty reports whether the update changes nothing.
func (u ItemUpdate) Empty() bool {
	return u.Title == nil && u.Archived == nil
}

// ReviewLog records a single completed review of an item.
// Quality follows SM-2: 0-2 failed recall, 3-5 passed.
type ReviewLog struct {
	ID             string
	ItemID         string
	Quality        int
	IntervalDays   int
	EasinessFactor float64
	ReviewedAt     time.Time
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate checks the item's scheduling invariants.
func (it ReviewableItem) Validate() error {
	if err := validate.Struct(it); err != nil {
		return fmt.Errorf("invalid item %s: %w", it.ID, err)
	}
	return nil
}

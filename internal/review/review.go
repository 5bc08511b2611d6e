// Package review schedules reviewable items with SM-2 and persists each
// completed review.
package review

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/conorfennell/drillbook/internal/config"
	"github.com/conorfennell/drillbook/internal/domain"
	"github.com/conorfennell/drillbook/internal/sm2"
	"github.com/conorfennell/drillbook/internal/storage"
)

// Service is the entry point for reviewing exercises, flashcards and
// incidents alike.
type Service struct {
	store     *storage.Store
	startHour int
	now       func() time.Time
}

func New(store *storage.Store, cfg config.StoreConfig) *Service {
	return &Service{store: store, startHour: cfg.DayStartHour, now: time.Now}
}

// Enroll makes ref known without reviewing it. It reports whether the item
// was created; an existing item is returned unchanged.
func (s *Service) Enroll(ref domain.ItemRef) (*domain.ReviewableItem, bool, error) {
	if ref.ID == "" {
		return nil, false, errors.New("review: item id is required")
	}
	created, err := s.store.InsertItem(domain.NewItem(ref, s.now().UTC()))
	if err != nil {
		return nil, false, err
	}
	it, err := s.store.GetItem(ref.ID)
	if err != nil {
		return nil, false, err
	}
	return it, created, nil
}

// Review records a review of quality q. An item seen for the first time is
// created from ref and scheduled from the default state.
func (s *Service) Review(ref domain.ItemRef, q sm2.Quality) (*domain.ReviewableItem, error) {
	if !q.Valid() {
		return nil, fmt.Errorf("%w: %d", sm2.ErrInvalidQuality, q)
	}
	local := s.now()
	now := local.UTC()

	it, err := s.store.GetItem(ref.ID)
	switch {
	case errors.Is(err, storage.ErrNotFound):
		fresh := domain.NewItem(ref, now)
		it = &fresh
	case err != nil:
		return nil, err
	}

	res, err := sm2.Next(sm2.State{
		Repetitions:    it.Repetitions,
		IntervalDays:   it.IntervalDays,
		EasinessFactor: it.EasinessFactor,
	}, q, now)
	if err != nil {
		return nil, fmt.Errorf("failed to schedule %s: %w", it.ID, err)
	}

	it.Repetitions = res.Repetitions
	it.IntervalDays = res.IntervalDays
	it.EasinessFactor = res.EasinessFactor
	it.LastQuality = int(q)
	it.NextReviewDate = res.NextReview
	it.LastReviewedAt = &now

	log := domain.ReviewLog{
		ID:             uuid.NewString(),
		ItemID:         it.ID,
		Quality:        int(q),
		IntervalDays:   res.IntervalDays,
		EasinessFactor: res.EasinessFactor,
		ReviewedAt:     now,
	}
	if err := s.store.ApplyReview(*it, log, domain.LogicalDate(local, s.startHour)); err != nil {
		return nil, err
	}
	slog.Debug("Reviewed item", "id", it.ID, "quality", int(q), "interval", it.IntervalDays, "next", domain.FormatDate(it.NextReviewDate))
	return it, nil
}

// Due returns up to limit unarchived items whose review date has passed,
// most overdue first. A limit of zero or less means no limit.
func (s *Service) Due(limit int) ([]domain.ReviewableItem, error) {
	return s.store.DueItems(s.now().UTC(), limit)
}

// Archive removes an item from the due queue. Its history is kept.
func (s *Service) Archive(id string) error {
	archived := true
	return s.store.UpdateItem(id, domain.ItemUpdate{Archived: &archived})
}

// Restore puts an archived item back in the queue.
func (s *Service) Restore(id string) error {
	archived := false
	return s.store.UpdateItem(id, domain.ItemUpdate{Archived: &archived})
}

// Package deck imports markdown flashcard decks as reviewable items. A deck
// is a directory (or a git remote checked out locally) of *.md files; each
// card is enrolled under an id derived from its content, and cards that
// disappear from the deck are archived so their history survives.
package deck

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/conorfennell/drillbook/internal/domain"
	"github.com/conorfennell/drillbook/internal/gitsource"
	"github.com/conorfennell/drillbook/internal/knol"
	"github.com/conorfennell/drillbook/internal/parser"
	"github.com/conorfennell/drillbook/internal/storage"
)

// Enroller creates items that do not exist yet. *review.Service implements it.
type Enroller interface {
	Enroll(ref domain.ItemRef) (*domain.ReviewableItem, bool, error)
}

// Report summarizes one reconciliation.
type Report struct {
	Source   string
	Parsed   int
	Enrolled int
	Restored int
	Archived int
	// Errors holds per-card and per-file problems; they do not stop the run.
	Errors []error
}

// Importer reconciles decks against the item store.
type Importer struct {
	store    *storage.Store
	enroller Enroller
	// ReposDir holds local checkouts of remote decks.
	ReposDir string
}

func NewImporter(store *storage.Store, enroller Enroller, reposDir string) *Importer {
	return &Importer{store: store, enroller: enroller, ReposDir: reposDir}
}

// Import reconciles src, which may be a local directory or a git remote. A
// remote is cloned or pulled under ReposDir first; its items keep the remote
// URL as their source.
func (im *Importer) Import(ctx context.Context, src string) (*Report, error) {
	if !gitsource.IsRemote(src) {
		return im.Reconcile(src)
	}
	local, err := gitsource.CheckoutPath(im.ReposDir, src)
	if err != nil {
		return nil, err
	}
	if err := gitsource.Sync(ctx, src, local); err != nil {
		return nil, err
	}
	return im.reconcile(local, src)
}

// Reconcile walks dir for *.md files, enrolls every new card and archives
// the items from this source that no longer appear.
func (im *Importer) Reconcile(dir string) (*Report, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve deck path %s: %w", dir, err)
	}
	return im.reconcile(abs, abs)
}

func (im *Importer) reconcile(dir, source string) (*Report, error) {
	report := &Report{Source: source}
	found := make(map[string]bool)

	walkErr := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if d.Name() == ".git" {
				return filepath.SkipDir
			}
			return nil
		}
		if !strings.EqualFold(filepath.Ext(d.Name()), ".md") {
			return nil
		}

		cards, cardErrs, err := parser.ParseFile(path)
		if err != nil {
			report.Errors = append(report.Errors, fmt.Errorf("failed to parse %s: %w", path, err))
			return nil
		}
		for _, ce := range cardErrs {
			report.Errors = append(report.Errors, fmt.Errorf("%s: %w", path, ce))
		}
		for _, card := range cards {
			report.Parsed++
			id := knol.ItemID(card)
			if found[id] {
				continue
			}
			found[id] = true
			if err := im.enroll(id, card, source, report); err != nil {
				report.Errors = append(report.Errors, err)
			}
		}
		return nil
	})
	if walkErr != nil {
		return nil, fmt.Errorf("failed to walk deck %s: %w", dir, walkErr)
	}

	existing, err := im.store.ListItems(storage.ItemFilter{Source: source})
	if err != nil {
		return nil, err
	}
	for _, it := range existing {
		if found[it.ID] {
			continue
		}
		archived := true
		if err := im.store.UpdateItem(it.ID, domain.ItemUpdate{Archived: &archived}); err != nil {
			report.Errors = append(report.Errors, fmt.Errorf("failed to archive %s: %w", it.ID, err))
			continue
		}
		slog.Info("Archived orphaned card", "id", it.ID)
		report.Archived++
	}

	slog.Info("Deck reconciliation complete",
		"source", source,
		"parsed_cards", report.Parsed,
		"enrolled", report.Enrolled,
		"restored", report.Restored,
		"archived", report.Archived,
		"errors", len(report.Errors),
	)
	return report, nil
}

// enroll creates the item for card, or brings it back if an earlier run
// archived it.
func (im *Importer) enroll(id string, card parser.Card, source string, report *Report) error {
	it, created, err := im.enroller.Enroll(domain.ItemRef{
		ID:     id,
		Kind:   card.Kind,
		Title:  firstLine(card.Question),
		Source: source,
	})
	if err != nil {
		return fmt.Errorf("failed to enroll %s: %w", id, err)
	}
	if created {
		report.Enrolled++
		return nil
	}
	if it.Archived {
		restored := false
		if err := im.store.UpdateItem(id, domain.ItemUpdate{Archived: &restored}); err != nil {
			return fmt.Errorf("failed to restore %s: %w", id, err)
		}
		report.Restored++
	}
	return nil
}

func firstLine(s string) string {
	line, _, _ := strings.Cut(s, "\n")
	return line
}

// Err joins every collected error, or returns nil.
func (r *Report) Err() error {
	return errors.Join(r.Errors...)
}

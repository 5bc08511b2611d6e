package gitsource

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"
)

// CommitRecorder stores one commit. It reports false for a hash it already
// has. *ledger.Ledger implements it.
type CommitRecorder interface {
	RecordCommit(hash, repo string, at time.Time) (bool, error)
}

// ImportOptions narrows which commits are imported.
type ImportOptions struct {
	Since time.Time
	// AuthorEmail, when set, keeps only commits by this author.
	AuthorEmail string
}

// ImportCommits walks the history of the repository at repoPath from HEAD
// and records every commit authored after opts.Since. Re-importing is safe;
// it returns the number of commits that were new.
func ImportCommits(ctx context.Context, repoPath string, opts ImportOptions, rec CommitRecorder) (int, error) {
	repo, err := git.PlainOpenWithOptions(repoPath, &git.PlainOpenOptions{DetectDotGit: true})
	if err != nil {
		return 0, fmt.Errorf("failed to open repository %s: %w", repoPath, err)
	}

	logOpts := &git.LogOptions{Order: git.LogOrderCommitterTime}
	if !opts.Since.IsZero() {
		logOpts.Since = &opts.Since
	}
	iter, err := repo.Log(logOpts)
	if errors.Is(err, plumbing.ErrReferenceNotFound) {
		// Empty repository.
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("failed to read git log: %w", err)
	}
	defer iter.Close()

	name := filepath.Base(filepath.Clean(repoPath))
	var added int
	err = iter.ForEach(func(c *object.Commit) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		if opts.AuthorEmail != "" && c.Author.Email != opts.AuthorEmail {
			return nil
		}
		ok, err := rec.RecordCommit(c.Hash.String(), name, c.Author.When)
		if err != nil {
			return fmt.Errorf("failed to record commit %s: %w", c.Hash.String()[:7], err)
		}
		if ok {
			added++
		}
		return nil
	})
	if err != nil {
		return added, err
	}

	slog.Info("Imported commits", "repo", name, "new", added)
	return added, nil
}

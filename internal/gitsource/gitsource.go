// Package gitsource talks to git repositories through go-git: it keeps
// local checkouts of remote flashcard decks and reads commit history into
// the activity ledger.
package gitsource

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-git/go-git/v5"
)

// Sync clones url into localPath if nothing is there yet, or pulls the
// latest changes if a checkout already exists.
func Sync(ctx context.Context, url, localPath string) error {
	_, err := os.Stat(localPath)
	switch {
	case errors.Is(err, os.ErrNotExist):
		slog.Info("Cloning deck repository", "url", url, "path", localPath)
		if _, err := git.PlainCloneContext(ctx, localPath, false, &git.CloneOptions{URL: url}); err != nil {
			return fmt.Errorf("failed to clone repo %s: %w", url, err)
		}
	case err == nil:
		slog.Info("Pulling deck repository", "path", localPath)
		repo, err := git.PlainOpen(localPath)
		if err != nil {
			return fmt.Errorf("failed to open existing repo at %s: %w", localPath, err)
		}
		wt, err := repo.Worktree()
		if err != nil {
			return fmt.Errorf("failed to get worktree for repo at %s: %w", localPath, err)
		}
		err = wt.PullContext(ctx, &git.PullOptions{RemoteName: "origin"})
		if err != nil && !errors.Is(err, git.NoErrAlreadyUpToDate) {
			return fmt.Errorf("failed to pull changes for repo at %s: %w", localPath, err)
		}
	default:
		return fmt.Errorf("error checking path %s: %w", localPath, err)
	}
	return nil
}

// IsRemote reports whether src names a git remote rather than a local
// directory.
func IsRemote(src string) bool {
	if strings.HasPrefix(src, "git@") {
		return true
	}
	u, err := url.Parse(src)
	return err == nil && (u.Scheme == "https" || u.Scheme == "http" || u.Scheme == "ssh")
}

// CheckoutPath maps a remote URL to a directory under baseDir, e.g.
// https://github.com/a/b.git -> baseDir/github.com/a/b.
func CheckoutPath(baseDir, repoURL string) (string, error) {
	if strings.HasPrefix(repoURL, "git@") {
		host, path, ok := strings.Cut(strings.TrimPrefix(repoURL, "git@"), ":")
		if !ok || host == "" || path == "" {
			return "", fmt.Errorf("could not parse git URL: %s", repoURL)
		}
		return filepath.Join(baseDir, host, strings.TrimSuffix(path, ".git")), nil
	}
	u, err := url.Parse(repoURL)
	if err != nil || u.Host == "" {
		return "", fmt.Errorf("could not parse git URL: %s", repoURL)
	}
	return filepath.Join(baseDir, u.Host, strings.TrimSuffix(u.Path, ".git")), nil
}

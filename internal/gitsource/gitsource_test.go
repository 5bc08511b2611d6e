package gitsource

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	gogit "github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing/object"
)

type recorded struct {
	repo string
	at   time.Time
}

type memRecorder struct {
	commits map[string]recorded
}

func (m *memRecorder) RecordCommit(hash, repo string, at time.Time) (bool, error) {
	if m.commits == nil {
		m.commits = map[string]recorded{}
	}
	if _, ok := m.commits[hash]; ok {
		return false, nil
	}
	m.commits[hash] = recorded{repo: repo, at: at}
	return true, nil
}

func initTestRepo(t *testing.T, dir string) *gogit.Repository {
	t.Helper()
	repo, err := gogit.PlainInit(dir, false)
	if err != nil {
		t.Fatal(err)
	}
	return repo
}

func commitFile(t *testing.T, repo *gogit.Repository, dir, name, email string, when time.Time) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, name), []byte(name), 0644); err != nil {
		t.Fatal(err)
	}
	wt, err := repo.Worktree()
	if err != nil {
		t.Fatal(err)
	}
	if _, err := wt.Add(name); err != nil {
		t.Fatal(err)
	}
	sig := &object.Signature{Name: "Test Author", Email: email, When: when}
	if _, err := wt.Commit("add "+name, &gogit.CommitOptions{Author: sig, Committer: sig}); err != nil {
		t.Fatal(err)
	}
}

func TestImportCommits(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "kata")
	repo := initTestRepo(t, dir)
	base := time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)
	commitFile(t, repo, dir, "a.go", "me@example.com", base)
	commitFile(t, repo, dir, "b.go", "other@example.com", base.Add(24*time.Hour))
	commitFile(t, repo, dir, "c.go", "me@example.com", base.Add(48*time.Hour))

	rec := &memRecorder{}
	ctx := context.Background()

	n, err := ImportCommits(ctx, dir, ImportOptions{}, rec)
	if err != nil {
		t.Fatalf("ImportCommits failed: %v", err)
	}
	if n != 3 {
		t.Errorf("Expected 3 new commits, got %d", n)
	}
	for _, c := range rec.commits {
		if c.repo != "kata" {
			t.Errorf("Expected repo name kata, got %q", c.repo)
		}
	}

	t.Run("reimport is idempotent", func(t *testing.T) {
		n, err := ImportCommits(ctx, dir, ImportOptions{}, rec)
		if err != nil {
			t.Fatal(err)
		}
		if n != 0 {
			t.Errorf("Expected no new commits, got %d", n)
		}
	})

	t.Run("since and author filters", func(t *testing.T) {
		fresh := &memRecorder{}
		opts := ImportOptions{Since: base.Add(time.Hour), AuthorEmail: "me@example.com"}
		n, err := ImportCommits(ctx, dir, opts, fresh)
		if err != nil {
			t.Fatal(err)
		}
		if n != 1 {
			t.Errorf("Expected only the last commit, got %d", n)
		}
	})
}

func TestImportCommitsEmptyRepo(t *testing.T) {
	dir := t.TempDir()
	initTestRepo(t, dir)
	n, err := ImportCommits(context.Background(), dir, ImportOptions{}, &memRecorder{})
	if err != nil || n != 0 {
		t.Errorf("Expected nothing from an empty repo, got %d (%v)", n, err)
	}
}

func TestImportCommitsNotARepo(t *testing.T) {
	if _, err := ImportCommits(context.Background(), t.TempDir(), ImportOptions{}, &memRecorder{}); err == nil {
		t.Error("Expected an error for a plain directory")
	}
}

func TestImportCommitsCancelled(t *testing.T) {
	dir := t.TempDir()
	repo := initTestRepo(t, dir)
	commitFile(t, repo, dir, "a.go", "me@example.com", time.Now())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := ImportCommits(ctx, dir, ImportOptions{}, &memRecorder{}); err == nil {
		t.Error("Expected a cancelled context to stop the walk")
	}
}

func TestCheckoutPath(t *testing.T) {
	tests := []struct {
		url  string
		want string
	}{
		{"https://github.com/me/decks.git", filepath.Join("repos", "github.com", "me", "decks")},
		{"git@github.com:me/decks.git", filepath.Join("repos", "github.com", "me", "decks")},
	}
	for _, tt := range tests {
		t.Run(tt.url, func(t *testing.T) {
			got, err := CheckoutPath("repos", tt.url)
			if err != nil {
				t.Fatal(err)
			}
			if got != tt.want {
				t.Errorf("Expected %q, got %q", tt.want, got)
			}
		})
	}

	if _, err := CheckoutPath("repos", "not a url"); err == nil {
		t.Error("Expected an error for an unparseable URL")
	}
}

func TestIsRemote(t *testing.T) {
	for src, want := range map[string]bool{
		"https://github.com/me/decks.git": true,
		"git@github.com:me/decks.git":     true,
		"/home/me/decks":                  false,
		"decks":                           false,
	} {
		if got := IsRemote(src); got != want {
			t.Errorf("IsRemote(%q) = %v, want %v", src, got, want)
		}
	}
}

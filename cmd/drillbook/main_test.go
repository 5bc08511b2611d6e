package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func runCmd(t *testing.T, dataDir string, args ...string) (string, error) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	full := append([]string{"--data-dir", dataDir, "--log-level", "error"}, args...)
	err := run(context.Background(), full, &stdout, &stderr)
	return stdout.String(), err
}

func TestRunReviewAndDue(t *testing.T) {
	dir := t.TempDir()

	out, err := runCmd(t, dir, "migrate")
	if err != nil {
		t.Fatalf("migrate failed: %v", err)
	}
	if !strings.Contains(out, "Schema version") {
		t.Errorf("Unexpected migrate output %q", out)
	}

	if _, err := runCmd(t, dir, "review", "kata-1", "5", "--kind", "exercise"); err != nil {
		t.Fatalf("review failed: %v", err)
	}
	out, err = runCmd(t, dir, "due")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out, "Nothing due") {
		t.Errorf("Expected nothing due right after a review, got %q", out)
	}

	if _, err := runCmd(t, dir, "review", "kata-1", "9"); err == nil {
		t.Error("Expected quality 9 to be rejected")
	}
}

func TestRunActivityAndStreak(t *testing.T) {
	dir := t.TempDir()
	if _, err := runCmd(t, dir, "log-time", "1800"); err != nil {
		t.Fatal(err)
	}
	out, err := runCmd(t, dir, "step", "warmup")
	if err != nil || !strings.Contains(out, "done") {
		t.Fatalf("step failed: %q %v", out, err)
	}
	out, err = runCmd(t, dir, "step", "warmup")
	if err != nil || !strings.Contains(out, "already") {
		t.Errorf("Expected repeated step to be reported, got %q %v", out, err)
	}

	out, err = runCmd(t, dir, "streak")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out, "Strict streak:   1 days") {
		t.Errorf("Unexpected streak output %q", out)
	}

	if _, err := runCmd(t, dir, "trend"); err != nil {
		t.Errorf("trend failed: %v", err)
	}
}

func TestRunProgress(t *testing.T) {
	dir := t.TempDir()
	for i := 0; i < 2; i++ {
		if _, err := runCmd(t, dir, "progress", "2025-01-01", "5", "60", "1", "--strategy", "accumulate"); err != nil {
			t.Fatal(err)
		}
	}
	data, err := os.ReadFile(filepath.Join(dir, "progress.json"))
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Contains(data, []byte(`"steps": 10`)) {
		t.Errorf("Expected accumulated steps in file, got %s", data)
	}

	if _, err := runCmd(t, dir, "progress", "2025-01-01", "1", "1", "1", "--strategy", "merge-ish"); err == nil {
		t.Error("Expected an unknown strategy to fail")
	}
}

func TestRunCleanupRequiresOptIn(t *testing.T) {
	dir := t.TempDir()
	if _, err := runCmd(t, dir, "cleanup"); err == nil {
		t.Error("Expected cleanup to refuse without retention enabled")
	}
	out, err := runCmd(t, dir, "--retention-enabled", "cleanup")
	if err != nil {
		t.Fatalf("cleanup failed: %v", err)
	}
	if !strings.Contains(out, "Deleted 0 rows") {
		t.Errorf("Unexpected cleanup output %q", out)
	}
}

func TestRunUsage(t *testing.T) {
	dir := t.TempDir()
	out, err := runCmd(t, dir)
	if err != nil {
		t.Fatalf("Expected help without a command, got %v", err)
	}
	if !strings.Contains(out, "Available Commands") {
		t.Errorf("Expected help output, got %q", out)
	}
	if _, err := runCmd(t, dir, "fly"); err == nil {
		t.Error("Expected an unknown command to fail")
	}
	if _, err := runCmd(t, dir, "review", "only-id"); err == nil {
		t.Error("Expected missing arguments to fail")
	}
}

func TestRunWritesLogFile(t *testing.T) {
	dir := t.TempDir()
	logPath := filepath.Join(dir, "logs", "drillbook.log")
	if _, err := runCmd(t, dir, "--log-level", "info", "--log-file", logPath, "migrate"); err != nil {
		t.Fatal(err)
	}
	data, err := os.ReadFile(logPath)
	if err != nil {
		t.Fatalf("Expected a log file: %v", err)
	}
	if !bytes.Contains(data, []byte("Applied schema migration")) {
		t.Errorf("Expected migration log lines, got %s", data)
	}
}

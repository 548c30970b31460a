package util

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLatestMtimeMissingDir(t *testing.T) {
	got, err := LatestMtime(filepath.Join(t.TempDir(), "absent"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !got.IsZero() {
		t.Fatalf("expected zero time for missing directory, got %v", got)
	}
}

func TestLatestMtimeEmptyDirFallsBackToDir(t *testing.T) {
	dir := t.TempDir()
	got, err := LatestMtime(dir)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.IsZero() {
		t.Fatalf("expected directory mtime fallback")
	}
}

func TestLatestMtimePicksNewestFile(t *testing.T) {
	dir := t.TempDir()
	old := filepath.Join(dir, "old.sav")
	newer := filepath.Join(dir, "sub", "new.sav")
	if err := os.WriteFile(old, []byte("old"), 0o640); err != nil {
		t.Fatalf("write: %v", err)
	}
	if err := os.MkdirAll(filepath.Dir(newer), 0o750); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(newer, []byte("new"), 0o640); err != nil {
		t.Fatalf("write: %v", err)
	}

	oldTime := time.Now().Add(-2 * time.Hour)
	newTime := time.Now().Add(time.Hour)
	if err := os.Chtimes(old, oldTime, oldTime); err != nil {
		t.Fatalf("chtimes: %v", err)
	}
	if err := os.Chtimes(newer, newTime, newTime); err != nil {
		t.Fatalf("chtimes: %v", err)
	}

	got, err := LatestMtime(dir)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if diff := got.Sub(newTime); diff > time.Second || diff < -time.Second {
		t.Fatalf("expected newest file mtime %v, got %v", newTime, got)
	}
}

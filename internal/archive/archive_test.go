package archive

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func writeFile(t *testing.T, path string, data []byte) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(path, data, 0o640); err != nil {
		t.Fatalf("write file: %v", err)
	}
}

func TestRoundTrip(t *testing.T) {
	src := t.TempDir()
	writeFile(t, filepath.Join(src, "a.sav"), []byte("state-a"))
	writeFile(t, filepath.Join(src, "nested", "deep", "b.sav"), []byte("state-b"))
	writeFile(t, filepath.Join(src, "empty.sav"), nil)

	blob, err := Pack(src)
	if err != nil {
		t.Fatalf("pack: %v", err)
	}

	dst := filepath.Join(t.TempDir(), "out")
	if err := Unpack(blob, dst); err != nil {
		t.Fatalf("unpack: %v", err)
	}

	cases := []struct {
		rel  string
		want []byte
	}{
		{"a.sav", []byte("state-a")},
		{filepath.Join("nested", "deep", "b.sav"), []byte("state-b")},
		{"empty.sav", []byte{}},
	}
	for _, tc := range cases {
		got, err := os.ReadFile(filepath.Join(dst, tc.rel))
		if err != nil {
			t.Fatalf("read %s: %v", tc.rel, err)
		}
		if !bytes.Equal(got, tc.want) {
			t.Fatalf("content mismatch for %s: got %q want %q", tc.rel, got, tc.want)
		}
	}
}

func TestUnpackReplacesTarget(t *testing.T) {
	src := t.TempDir()
	writeFile(t, filepath.Join(src, "new.sav"), []byte("new"))
	blob, err := Pack(src)
	if err != nil {
		t.Fatalf("pack: %v", err)
	}

	dst := t.TempDir()
	writeFile(t, filepath.Join(dst, "stale.sav"), []byte("stale"))

	if err := Unpack(blob, dst); err != nil {
		t.Fatalf("unpack: %v", err)
	}
	if _, err := os.Stat(filepath.Join(dst, "stale.sav")); !os.IsNotExist(err) {
		t.Fatalf("stale file survived unpack")
	}
	if _, err := os.Stat(filepath.Join(dst, "new.sav")); err != nil {
		t.Fatalf("expected new.sav: %v", err)
	}
}

func TestUnpackCorruptBlob(t *testing.T) {
	err := Unpack([]byte("definitely not a zip"), filepath.Join(t.TempDir(), "out"))
	if !errors.Is(err, ErrCorrupt) {
		t.Fatalf("expected ErrCorrupt, got %v", err)
	}
}

func TestPackMissingDir(t *testing.T) {
	if _, err := Pack(filepath.Join(t.TempDir(), "nope")); err == nil {
		t.Fatalf("expected error for missing directory")
	}
}

func TestPackSkipsEmptyDirs(t *testing.T) {
	src := t.TempDir()
	writeFile(t, filepath.Join(src, "a.sav"), []byte("a"))
	if err := os.MkdirAll(filepath.Join(src, "hollow"), 0o750); err != nil {
		t.Fatalf("mkdir: %v", err)
	}

	blob, err := Pack(src)
	if err != nil {
		t.Fatalf("pack: %v", err)
	}
	dst := filepath.Join(t.TempDir(), "out")
	if err := Unpack(blob, dst); err != nil {
		t.Fatalf("unpack: %v", err)
	}
	if _, err := os.Stat(filepath.Join(dst, "hollow")); !os.IsNotExist(err) {
		t.Fatalf("empty directory should not be preserved")
	}
}

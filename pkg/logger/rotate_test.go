package logger

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func backupsOf(t *testing.T, path string) []string {
	t.Helper()
	matches, err := filepath.Glob(path + ".*")
	if err != nil {
		t.Fatalf("glob failed: %v", err)
	}
	return matches
}

func TestRotatingWriterRotatesBySize(t *testing.T) {
	path := filepath.Join(t.TempDir(), "audit.log")
	w, err := newRotatingWriter(path, 1, 3, 30)
	if err != nil {
		t.Fatalf("newRotatingWriter failed: %v", err)
	}
	defer w.Close()
	// Force a tiny limit so two writes cross it.
	w.maxBytes = 32

	line := bytes.Repeat([]byte("a"), 24)
	if _, err := w.Write(line); err != nil {
		t.Fatalf("first write failed: %v", err)
	}
	if _, err := w.Write(line); err != nil {
		t.Fatalf("second write failed: %v", err)
	}

	if got := backupsOf(t, path); len(got) != 1 {
		t.Fatalf("expected one backup after rotation, got %v", got)
	}
	content, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read active file: %v", err)
	}
	if !strings.HasPrefix(string(content), "aaa") || len(content) != 24 {
		t.Fatalf("active file should hold only the latest write, got %d bytes", len(content))
	}
}

func TestRotatingWriterPrunesByCount(t *testing.T) {
	path := filepath.Join(t.TempDir(), "audit.log")
	w, err := newRotatingWriter(path, 1, 2, 30)
	if err != nil {
		t.Fatalf("newRotatingWriter failed: %v", err)
	}
	defer w.Close()

	for i := 0; i < 4; i++ {
		stale := path + ".2026012" + string(rune('0'+i)) + "T000000"
		if err := os.WriteFile(stale, []byte("old"), 0o644); err != nil {
			t.Fatalf("seed backup: %v", err)
		}
	}
	w.pruneBackups()

	got := backupsOf(t, path)
	if len(got) != 2 {
		t.Fatalf("expected 2 surviving backups, got %v", got)
	}
	for _, backup := range got {
		if !strings.HasSuffix(backup, "2T000000") && !strings.HasSuffix(backup, "3T000000") {
			t.Fatalf("oldest backups should be removed first, got %v", got)
		}
	}
}

func TestRotatingWriterPrunesByAge(t *testing.T) {
	path := filepath.Join(t.TempDir(), "audit.log")
	w, err := newRotatingWriter(path, 1, 10, 7)
	if err != nil {
		t.Fatalf("newRotatingWriter failed: %v", err)
	}
	defer w.Close()

	old := path + ".20260101T000000"
	fresh := path + ".20260820T000000"
	for _, backup := range []string{old, fresh} {
		if err := os.WriteFile(backup, []byte("x"), 0o644); err != nil {
			t.Fatalf("seed backup: %v", err)
		}
	}
	stale := time.Now().Add(-30 * 24 * time.Hour)
	if err := os.Chtimes(old, stale, stale); err != nil {
		t.Fatalf("age backup: %v", err)
	}

	w.pruneBackups()

	got := backupsOf(t, path)
	if len(got) != 1 || got[0] != fresh {
		t.Fatalf("backups past max age must be removed, got %v", got)
	}
}

package cache

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(t.TempDir(), "user", "12345")
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	return s
}

func TestSaveAndIsValid(t *testing.T) {
	s := newTestStore(t)

	path, err := s.Save("ABCD2345", "paper.pdf", []byte("pdf bytes"), Meta{
		Version:     10,
		ContentType: "application/pdf",
	})
	if err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	if !s.IsValid("ABCD2345", 10) {
		t.Error("IsValid() = false for matching version")
	}
	if s.IsValid("ABCD2345", 11) {
		t.Error("IsValid() = true for stale version")
	}
	if s.IsValid("ZZZZ9999", 10) {
		t.Error("IsValid() = true for unknown key")
	}

	got, ok := s.FilePath("ABCD2345")
	if !ok {
		t.Fatal("FilePath() ok = false after Save")
	}
	if got != path {
		t.Errorf("FilePath() = %q, want %q", got, path)
	}

	data, err := os.ReadFile(got)
	if err != nil {
		t.Fatalf("reading cached file: %v", err)
	}
	if string(data) != "pdf bytes" {
		t.Errorf("cached content = %q, want %q", data, "pdf bytes")
	}
}

func TestMetaRoundTrip(t *testing.T) {
	s := newTestStore(t)

	downloaded := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	if _, err := s.Save("ABCD2345", "paper.pdf", []byte("x"), Meta{
		Version:      3,
		ContentType:  "application/pdf",
		DownloadedAt: downloaded,
	}); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	m, ok := s.Meta("ABCD2345")
	if !ok {
		t.Fatal("Meta() ok = false after Save")
	}
	if m.Version != 3 {
		t.Errorf("Version = %d, want 3", m.Version)
	}
	if m.Filename != "paper.pdf" {
		t.Errorf("Filename = %q, want paper.pdf", m.Filename)
	}
	if m.ContentType != "application/pdf" {
		t.Errorf("ContentType = %q, want application/pdf", m.ContentType)
	}
	if m.Size != 1 {
		t.Errorf("Size = %d, want 1", m.Size)
	}
	if !m.DownloadedAt.Equal(downloaded) {
		t.Errorf("DownloadedAt = %v, want %v", m.DownloadedAt, downloaded)
	}
}

func TestMetaAbsent(t *testing.T) {
	s := newTestStore(t)

	if _, ok := s.Meta("NOPE1234"); ok {
		t.Error("Meta() ok = true for absent entry")
	}
	if _, ok := s.FilePath("NOPE1234"); ok {
		t.Error("FilePath() ok = true for absent entry")
	}
}

func TestSaveOverwritesOldVersion(t *testing.T) {
	s := newTestStore(t)

	if _, err := s.Save("ABCD2345", "old.pdf", []byte("v1"), Meta{Version: 1}); err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	if _, err := s.Save("ABCD2345", "new.pdf", []byte("v2"), Meta{Version: 2}); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	if s.IsValid("ABCD2345", 1) {
		t.Error("IsValid() = true for superseded version")
	}
	if !s.IsValid("ABCD2345", 2) {
		t.Error("IsValid() = false for current version")
	}

	m, _ := s.Meta("ABCD2345")
	if m.Filename != "new.pdf" {
		t.Errorf("Filename = %q, want new.pdf", m.Filename)
	}
}

func TestIsValidAfterBinaryRemoved(t *testing.T) {
	s := newTestStore(t)

	path, err := s.Save("ABCD2345", "paper.pdf", []byte("x"), Meta{Version: 5})
	if err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	if err := os.Remove(path); err != nil {
		t.Fatalf("removing binary: %v", err)
	}

	if s.IsValid("ABCD2345", 5) {
		t.Error("IsValid() = true after backing file removed")
	}
}

func TestInvalidate(t *testing.T) {
	s := newTestStore(t)

	if _, err := s.Save("ABCD2345", "paper.pdf", []byte("x"), Meta{Version: 5}); err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	if err := s.Invalidate("ABCD2345"); err != nil {
		t.Fatalf("Invalidate() error = %v", err)
	}
	if s.IsValid("ABCD2345", 5) {
		t.Error("IsValid() = true after Invalidate")
	}

	// Invalidating again must not raise.
	if err := s.Invalidate("ABCD2345"); err != nil {
		t.Errorf("Invalidate() on absent entry error = %v", err)
	}
}

func TestClearAll(t *testing.T) {
	s := newTestStore(t)

	for _, key := range []string{"AAAA1111", "BBBB2222"} {
		if _, err := s.Save(key, "f.pdf", []byte("x"), Meta{Version: 1}); err != nil {
			t.Fatalf("Save(%s) error = %v", key, err)
		}
	}

	if err := s.ClearAll(); err != nil {
		t.Fatalf("ClearAll() error = %v", err)
	}
	if s.IsValid("AAAA1111", 1) || s.IsValid("BBBB2222", 1) {
		t.Error("IsValid() = true after ClearAll")
	}

	// Clearing an empty cache must not raise.
	if err := s.ClearAll(); err != nil {
		t.Errorf("ClearAll() on empty cache error = %v", err)
	}
}

func TestLibraryScoping(t *testing.T) {
	root := t.TempDir()
	user, err := Open(root, "user", "1")
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	group, err := Open(root, "group", "99")
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}

	if _, err := user.Save("ABCD2345", "f.pdf", []byte("x"), Meta{Version: 1}); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	if group.IsValid("ABCD2345", 1) {
		t.Error("entry saved in user library visible in group library")
	}
	if filepath.Dir(user.Dir()) != filepath.Dir(group.Dir()) {
		t.Errorf("stores share no common root: %q vs %q", user.Dir(), group.Dir())
	}
}

func TestNoPartialEntryWithoutSidecar(t *testing.T) {
	s := newTestStore(t)

	// A binary without a sidecar (as left by an interrupted download before
	// promotion completed) is a miss, not a hit.
	dir := s.itemDir("ABCD2345")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "paper.pdf"), []byte("partial"), 0o644); err != nil {
		t.Fatal(err)
	}

	if s.IsValid("ABCD2345", 1) {
		t.Error("IsValid() = true for entry without sidecar")
	}
}

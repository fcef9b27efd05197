// Package cache stores downloaded attachment binaries on disk.
//
// Entries are keyed by item key and validated against the item's server-side
// version: Zotero bumps an item's version on any metadata or file change, so
// a version match is a sufficient freshness proof without re-hashing. Each
// library identity gets its own subtree so multiple libraries never collide.
package cache

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

const (
	// AppDir is the directory name under the user cache root.
	AppDir = "zotkit"

	// metaFile is the per-item metadata sidecar name.
	metaFile = "meta.json"
)

// Meta is the sidecar record written next to each cached binary.
type Meta struct {
	Version      int       `json:"version"`
	Filename     string    `json:"filename"`
	ContentType  string    `json:"contentType"`
	Size         int64     `json:"size"`
	DownloadedAt time.Time `json:"downloadedAt"`
}

// Store is an attachment cache scoped to one library identity.
type Store struct {
	dir string
}

// resolveRoot picks the cache root: explicit override, then XDG_CACHE_HOME,
// then the platform default.
func resolveRoot(override string) (string, error) {
	if override != "" {
		return override, nil
	}
	if xdg := os.Getenv("XDG_CACHE_HOME"); xdg != "" {
		return filepath.Join(xdg, AppDir), nil
	}
	base, err := os.UserCacheDir()
	if err != nil {
		return "", fmt.Errorf("resolving cache directory: %w", err)
	}
	return filepath.Join(base, AppDir), nil
}

// Open returns the Store for the given library identity. The directory is
// not created until the first Save. An empty override selects the default
// cache location.
func Open(override, libraryType, libraryID string) (*Store, error) {
	root, err := resolveRoot(override)
	if err != nil {
		return nil, err
	}
	return &Store{dir: filepath.Join(root, libraryType+"-"+libraryID)}, nil
}

// Dir returns the library-scoped cache directory.
func (s *Store) Dir() string {
	return s.dir
}

func (s *Store) itemDir(key string) string {
	return filepath.Join(s.dir, key)
}

// Meta reads the sidecar record for an item. The second return value is
// false when no entry exists or the sidecar is unreadable.
func (s *Store) Meta(key string) (Meta, bool) {
	data, err := os.ReadFile(filepath.Join(s.itemDir(key), metaFile))
	if err != nil {
		return Meta{}, false
	}
	var m Meta
	if err := json.Unmarshal(data, &m); err != nil {
		return Meta{}, false
	}
	return m, true
}

// FilePath returns the path of the cached binary for an item. The second
// return value is false when no entry exists or the binary is missing.
func (s *Store) FilePath(key string) (string, bool) {
	m, ok := s.Meta(key)
	if !ok || m.Filename == "" {
		return "", false
	}
	path := filepath.Join(s.itemDir(key), m.Filename)
	if _, err := os.Stat(path); err != nil {
		return "", false
	}
	return path, true
}

// IsValid reports whether the cached entry for key matches expectedVersion
// and its binary still exists on disk. Any I/O failure is a miss, never an
// error.
func (s *Store) IsValid(key string, expectedVersion int) bool {
	m, ok := s.Meta(key)
	if !ok || m.Version != expectedVersion {
		return false
	}
	_, ok = s.FilePath(key)
	return ok
}

// Save writes the binary and its sidecar for an item, overwriting any
// previous entry. Both writes go through a temp file promoted by rename so
// a crash never leaves a valid-looking partial entry; the sidecar is
// written last, so an entry without a sidecar is simply a miss.
func (s *Store) Save(key, filename string, data []byte, meta Meta) (string, error) {
	dir := s.itemDir(key)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("creating cache directory: %w", err)
	}

	if meta.Filename == "" {
		meta.Filename = filename
	}
	if meta.Size == 0 {
		meta.Size = int64(len(data))
	}
	if meta.DownloadedAt.IsZero() {
		meta.DownloadedAt = time.Now().UTC()
	}

	path := filepath.Join(dir, filename)
	if err := writeAtomic(path, data); err != nil {
		return "", fmt.Errorf("writing attachment: %w", err)
	}

	sidecar, err := json.MarshalIndent(meta, "", "  ")
	if err != nil {
		return "", fmt.Errorf("encoding cache metadata: %w", err)
	}
	if err := writeAtomic(filepath.Join(dir, metaFile), sidecar); err != nil {
		return "", fmt.Errorf("writing cache metadata: %w", err)
	}

	return path, nil
}

// writeAtomic writes data to path via a temp file and rename.
func writeAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, ".tmp-*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return err
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return err
	}
	return nil
}

// Invalidate removes an item's cache entry. Removing a non-existent entry
// is not an error.
func (s *Store) Invalidate(key string) error {
	if err := os.RemoveAll(s.itemDir(key)); err != nil {
		return fmt.Errorf("removing cache entry for %s: %w", key, err)
	}
	return nil
}

// ClearAll removes the entire library-scoped cache directory.
func (s *Store) ClearAll() error {
	if err := os.RemoveAll(s.dir); err != nil {
		return fmt.Errorf("clearing cache: %w", err)
	}
	return nil
}

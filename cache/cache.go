package cache

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/cespare/xxhash/v2"
)

// Store keeps rendered public pages on disk, one file per request URI.
type Store struct {
	dir    string
	maxAge time.Duration
}

// New returns a page cache under dir. A zero maxAge disables it.
func New(dir string, maxAge time.Duration) *Store {
	return &Store{dir: dir, maxAge: maxAge}
}

func (s *Store) Enabled() bool {
	return s != nil && s.maxAge > 0
}

// Path returns the cache file for a request URI.
func (s *Store) Path(uri string) string {
	return filepath.Join(s.dir, generateHash(uri)+".html")
}

func generateHash(str string) string {
	return fmt.Sprintf("%016x", xxhash.Sum64String(str))
}

func (s *Store) Write(uri string, html []byte) error {
	if err := os.MkdirAll(s.dir, 0755); err != nil {
		return err
	}
	return os.WriteFile(s.Path(uri), html, 0644)
}

// Read returns the cached page if it exists and is younger than maxAge.
func (s *Store) Read(uri string) ([]byte, bool) {
	path := s.Path(uri)

	info, err := os.Stat(path)
	if err != nil {
		return nil, false
	}
	if time.Since(info.ModTime()) > s.maxAge {
		return nil, false
	}

	content, err := os.ReadFile(path)
	if err != nil {
		return nil, false
	}
	return content, true
}

// Clear drops every cached page.
func (s *Store) Clear() error {
	if s == nil {
		return nil
	}
	entries, err := os.ReadDir(s.dir)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return err
	}
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".html") {
			continue
		}
		if err := os.Remove(filepath.Join(s.dir, entry.Name())); err != nil && !os.IsNotExist(err) {
			return err
		}
	}
	return nil
}

// ClearOld removes pages older than maxAge.
func (s *Store) ClearOld() error {
	return filepath.Walk(s.dir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			if os.IsNotExist(err) {
				return nil
			}
			return err
		}
		if info.IsDir() || !strings.HasSuffix(path, ".html") {
			return nil
		}
		if time.Since(info.ModTime()) > s.maxAge {
			os.Remove(path)
		}
		return nil
	})
}

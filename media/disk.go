package media

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
)

// DiskStorage keeps uploads in a local directory served at urlPrefix.
type DiskStorage struct {
	dir       string
	urlPrefix string
}

func NewDiskStorage(dir, urlPrefix string) (*DiskStorage, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create upload dir: %w", err)
	}
	return &DiskStorage{dir: dir, urlPrefix: urlPrefix}, nil
}

func (s *DiskStorage) Dir() string {
	return s.dir
}

func (s *DiskStorage) Upload(_ context.Context, name, _ string, data []byte) error {
	target := filepath.Join(s.dir, filepath.Base(name))
	if err := os.WriteFile(target, data, 0644); err != nil {
		return fmt.Errorf("write %s: %w", target, err)
	}
	return nil
}

func (s *DiskStorage) PublicURL(name string) string {
	return s.urlPrefix + "/" + filepath.Base(name)
}

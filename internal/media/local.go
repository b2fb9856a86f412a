package media

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// LocalStore keeps media files in a directory on disk.
type LocalStore struct {
	root      string
	urlPrefix string
}

// NewLocalStore creates the root directory if needed.
func NewLocalStore(root, urlPrefix string) (*LocalStore, error) {
	if err := os.MkdirAll(root, 0755); err != nil {
		return nil, fmt.Errorf("create media dir: %w", err)
	}
	if !strings.HasSuffix(urlPrefix, "/") {
		urlPrefix += "/"
	}
	return &LocalStore{root: root, urlPrefix: urlPrefix}, nil
}

// Root returns the directory files are written to.
func (s *LocalStore) Root() string {
	return s.root
}

func (s *LocalStore) path(key string) (string, error) {
	clean, err := checkKey(key)
	if err != nil {
		return "", err
	}
	return filepath.Join(s.root, filepath.FromSlash(clean)), nil
}

// Save writes body to key. The file is written to a temp file in the
// target directory first and renamed into place.
func (s *LocalStore) Save(_ context.Context, key string, body io.Reader, _ string) error {
	target, err := s.path(key)
	if err != nil {
		return err
	}
	dir := filepath.Dir(target)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("create media dir: %w", err)
	}

	tmpFile, err := os.CreateTemp(dir, ".upload_tmp_")
	if err != nil {
		return err
	}
	tmpPath := tmpFile.Name()
	defer func() {
		tmpFile.Close()
		os.Remove(tmpPath) // no-op after a successful rename
	}()

	if _, err := io.Copy(tmpFile, body); err != nil {
		return fmt.Errorf("write media file: %w", err)
	}
	if err := tmpFile.Close(); err != nil {
		return err
	}

	return os.Rename(tmpPath, target)
}

// Delete removes the file at key. Missing files are not an error.
func (s *LocalStore) Delete(_ context.Context, key string) error {
	target, err := s.path(key)
	if err != nil {
		return err
	}
	if err := os.Remove(target); err != nil && !os.IsNotExist(err) {
		return err
	}
	// drop the per-title directory once it is empty
	if dir := filepath.Dir(target); dir != filepath.Clean(s.root) {
		_ = os.Remove(dir)
	}
	return nil
}

// URL returns the path the file is served under.
func (s *LocalStore) URL(key string) string {
	if key == "" {
		return ""
	}
	return s.urlPrefix + escapeKey(key)
}

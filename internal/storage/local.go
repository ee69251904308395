package storage

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

// URLPrefix is the route under which local uploads are served.
const URLPrefix = "/uploads/"

// LocalStore keeps uploads in a directory served statically under /uploads.
type LocalStore struct {
	dir     string
	baseURL string
}

// NewLocalStore creates the upload directory if needed. baseURL is the
// absolute site prefix used to build public URLs.
func NewLocalStore(dir, baseURL string) (*LocalStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create upload dir %s: %w", dir, err)
	}
	return &LocalStore{dir: dir, baseURL: strings.TrimRight(baseURL, "/")}, nil
}

func (s *LocalStore) Name() string { return "local" }

// Dir is the directory holding uploaded files.
func (s *LocalStore) Dir() string { return s.dir }

func (s *LocalStore) Put(_ context.Context, originalName, _ string, data []byte) (Object, error) {
	ext := strings.ToLower(filepath.Ext(originalName))
	filename := strings.ReplaceAll(uuid.New().String(), "-", "") + ext
	dest := filepath.Join(s.dir, filename)
	if err := os.WriteFile(dest, data, 0o644); err != nil {
		return Object{}, fmt.Errorf("failed to write %s: %w", dest, err)
	}
	return Object{
		Filename: filename,
		URL:      s.baseURL + URLPrefix + filename,
	}, nil
}

func (s *LocalStore) Delete(_ context.Context, obj Object) error {
	return s.remove(obj.Filename)
}

func (s *LocalStore) DeleteByURL(_ context.Context, rawURL string) error {
	if rawURL == "" {
		return nil
	}
	p := rawURL
	if u, err := url.Parse(rawURL); err == nil {
		p = u.Path
	}
	return s.remove(path.Base(p))
}

func (s *LocalStore) remove(filename string) error {
	// Base strips any directory components so a crafted URL cannot escape dir.
	filename = filepath.Base(filename)
	if filename == "" || filename == "." || filename == "/" {
		return nil
	}
	err := os.Remove(filepath.Join(s.dir, filename))
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("failed to remove %s: %w", filename, err)
	}
	return nil
}

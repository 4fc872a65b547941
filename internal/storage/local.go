package storage

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

// FSStorage implements Storage on the local filesystem. Objects are stored
// as files under a root directory and served by the HTTP process at a
// configured public URL prefix. It needs no external credentials and is the
// default backend when remote storage is not configured.
type FSStorage struct {
	root       string
	publicBase string
}

// NewFSStorage creates an FSStorage rooted at root. The root and a .tmp
// directory for atomic writes are created if absent. publicBase is the URL
// prefix under which the root is served, e.g. "/media/".
func NewFSStorage(root, publicBase string) (*FSStorage, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("create media root %q: %w", root, err)
	}
	if err := os.MkdirAll(filepath.Join(root, ".tmp"), 0o755); err != nil {
		return nil, fmt.Errorf("create temp directory: %w", err)
	}
	return &FSStorage{
		root:       root,
		publicBase: strings.TrimRight(publicBase, "/"),
	}, nil
}

// Root returns the root directory, for mounting a static file server.
func (s *FSStorage) Root() string {
	return s.root
}

func (s *FSStorage) objectPath(key string) string {
	return filepath.Join(s.root, filepath.FromSlash(key))
}

// Upload writes reader to a temp file, syncs, and renames into place so a
// crash never leaves a partially written object at the final path.
func (s *FSStorage) Upload(ctx context.Context, key string, reader io.Reader, size int64, contentType string) error {
	objPath := s.objectPath(key)

	if err := os.MkdirAll(filepath.Dir(objPath), 0o755); err != nil {
		return fmt.Errorf("%w: create parent directories for %q: %v", ErrWrite, key, err)
	}

	tmpPath := filepath.Join(s.root, ".tmp", "upload-"+uuid.NewString())
	tmp, err := os.Create(tmpPath)
	if err != nil {
		return fmt.Errorf("%w: create temp file: %v", ErrWrite, err)
	}

	if _, err := io.Copy(tmp, reader); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("%w: write %q: %v", ErrWrite, key, err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("%w: sync %q: %v", ErrWrite, key, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("%w: close temp file: %v", ErrWrite, err)
	}

	if err := os.Rename(tmpPath, objPath); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("%w: rename into %q: %v", ErrWrite, key, err)
	}
	return nil
}

// Exists reports whether a file is stored under key.
func (s *FSStorage) Exists(ctx context.Context, key string) (bool, error) {
	_, err := os.Stat(s.objectPath(key))
	if err == nil {
		return true, nil
	}
	if os.IsNotExist(err) {
		return false, nil
	}
	return false, fmt.Errorf("%w: stat %q: %v", ErrUnavailable, key, err)
}

// Delete removes the file at key. An already-absent key is not an error.
func (s *FSStorage) Delete(ctx context.Context, key string) error {
	err := os.Remove(s.objectPath(key))
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("delete %q: %w", key, err)
	}
	return nil
}

// PublicURL returns the URL at which the object is served, e.g.
// "/media/images/3f2a....png".
func (s *FSStorage) PublicURL(key string) string {
	return s.publicBase + "/" + key
}

package storage

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

// MenuImageDir is the folder, relative to the store root, holding menu images.
const MenuImageDir = "menu_images"

// ErrInvalidPath is returned for paths that escape the store root.
var ErrInvalidPath = errors.New("invalid asset path")

// ImageStore persists uploaded images. Paths are relative, slash separated.
type ImageStore interface {
	Save(ext string, r io.Reader) (string, error)
	Delete(relPath string) error
	URL(relPath string) string
}

// LocalImageStore keeps images on the local disk under Root, served
// publicly below URLPrefix.
type LocalImageStore struct {
	Root      string
	URLPrefix string
}

// NewLocalImageStore creates the root directory if needed.
func NewLocalImageStore(root, urlPrefix string) (*LocalImageStore, error) {
	if err := os.MkdirAll(filepath.Join(root, MenuImageDir), 0o755); err != nil {
		return nil, fmt.Errorf("creating image directory: %w", err)
	}
	return &LocalImageStore{Root: root, URLPrefix: strings.TrimRight(urlPrefix, "/")}, nil
}

// Save writes r under a fresh random name with the given extension
// (e.g. ".png") and returns its relative path.
func (s *LocalImageStore) Save(ext string, r io.Reader) (string, error) {
	ext = strings.ToLower(ext)
	if ext != "" && !strings.HasPrefix(ext, ".") {
		ext = "." + ext
	}
	rel := path.Join(MenuImageDir, uuid.NewString()+ext)
	full := filepath.Join(s.Root, filepath.FromSlash(rel))

	if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		return "", fmt.Errorf("creating image directory: %w", err)
	}
	f, err := os.OpenFile(full, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return "", fmt.Errorf("creating image file: %w", err)
	}
	if _, err := io.Copy(f, r); err != nil {
		f.Close()
		os.Remove(full)
		return "", fmt.Errorf("writing image file: %w", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(full)
		return "", fmt.Errorf("closing image file: %w", err)
	}
	return rel, nil
}

// Delete removes a stored image. Deleting a missing file is not an error.
func (s *LocalImageStore) Delete(relPath string) error {
	full, err := s.resolve(relPath)
	if err != nil {
		return err
	}
	if err := os.Remove(full); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("deleting image %s: %w", relPath, err)
	}
	return nil
}

// URL returns the public URL of a stored image.
func (s *LocalImageStore) URL(relPath string) string {
	return s.URLPrefix + "/" + strings.TrimLeft(relPath, "/")
}

func (s *LocalImageStore) resolve(relPath string) (string, error) {
	clean := path.Clean("/" + relPath)
	if relPath == "" || clean == "/" || clean != "/"+strings.TrimLeft(relPath, "/") {
		return "", fmt.Errorf("%w: %q", ErrInvalidPath, relPath)
	}
	return filepath.Join(s.Root, filepath.FromSlash(clean[1:])), nil
}

// Package storage keeps uploaded event images on the local filesystem.
package storage

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"
)

// MaxImageSize is the largest accepted upload.
const MaxImageSize = 5 << 20

var (
	ErrTooLarge   = errors.New("image exceeds 5MB")
	ErrNotAnImage = errors.New("only image files are allowed")
)

// PublicPrefix is the URL path under which stored images are served.
const PublicPrefix = "/uploads/"

// ImageStore writes images into a directory.
type ImageStore struct {
	dir string
}

// NewImageStore creates dir if needed.
func NewImageStore(dir string) (*ImageStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create upload dir: %w", err)
	}
	return &ImageStore{dir: dir}, nil
}

// Dir returns the directory images are written to.
func (s *ImageStore) Dir() string { return s.dir }

// Save sniffs the content type of r, stores it under a random name and
// returns its public path.
func (s *ImageStore) Save(r io.Reader) (string, error) {
	data, err := io.ReadAll(io.LimitReader(r, MaxImageSize+1))
	if err != nil {
		return "", fmt.Errorf("read upload: %w", err)
	}
	if len(data) > MaxImageSize {
		return "", ErrTooLarge
	}

	mt := mimetype.Detect(data)
	if !strings.HasPrefix(mt.String(), "image/") {
		return "", ErrNotAnImage
	}

	name := uuid.NewString() + mt.Extension()
	full := filepath.Join(s.dir, name)
	f, err := os.OpenFile(full, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if err != nil {
		return "", fmt.Errorf("create image file: %w", err)
	}
	if _, err := io.Copy(f, bytes.NewReader(data)); err != nil {
		_ = f.Close()
		_ = os.Remove(full)
		return "", fmt.Errorf("write image file: %w", err)
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(full)
		return "", fmt.Errorf("close image file: %w", err)
	}
	return PublicPrefix + name, nil
}

// Remove deletes an image previously returned by Save. Paths outside the
// store are refused; an image that is already gone is not an error.
func (s *ImageStore) Remove(publicPath string) error {
	name := strings.TrimPrefix(publicPath, PublicPrefix)
	if name == "" || name == publicPath || filepath.Base(name) != name {
		return fmt.Errorf("remove image: %q is not a stored image", publicPath)
	}
	if err := os.Remove(filepath.Join(s.dir, name)); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("remove image: %w", err)
	}
	return nil
}

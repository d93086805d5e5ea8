// Package imagestore keeps bundle images in a sandboxed directory under
// generated file names.
package imagestore

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"github.com/visorlab/visor/internal/errors"
	"github.com/visorlab/visor/internal/logger"
)

// DefaultExt is used for images whose original name has no extension.
const DefaultExt = ".jpg"

// ErrInvalidName indicates a stored name that is not a plain file name.
var ErrInvalidName = errors.NewStd("invalid image name")

// Store writes images beneath a base directory. All access goes through an
// os.Root, so names can never escape the directory.
type Store struct {
	dir  string
	root *os.Root
	log  logger.Logger
}

// New opens, creating if needed, the image directory dir.
func New(dir string, log logger.Logger) (*Store, error) {
	if log == nil {
		log = logger.NewDiscardLogger()
	}
	absPath, err := filepath.Abs(dir)
	if err != nil {
		return nil, fileError(fmt.Errorf("failed to resolve image directory: %w", err), dir)
	}
	if err := os.MkdirAll(absPath, 0o750); err != nil {
		return nil, fileError(fmt.Errorf("failed to create image directory: %w", err), absPath)
	}
	root, err := os.OpenRoot(absPath)
	if err != nil {
		return nil, fileError(fmt.Errorf("failed to open image directory: %w", err), absPath)
	}
	return &Store{dir: absPath, root: root, log: log}, nil
}

// Save copies r into a new file and returns its generated name. The
// extension of originalName is kept, lower-cased.
func (s *Store) Save(ctx context.Context, originalName string, r io.Reader) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	ext := strings.ToLower(filepath.Ext(originalName))
	if ext == "" {
		ext = DefaultExt
	}
	name := uuid.NewString() + ext

	f, err := s.root.OpenFile(name, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o640)
	if err != nil {
		return "", imageError(err, name, originalName)
	}
	if _, err := io.Copy(f, r); err != nil {
		_ = f.Close()
		_ = s.root.Remove(name)
		return "", imageError(err, name, originalName)
	}
	if err := f.Close(); err != nil {
		_ = s.root.Remove(name)
		return "", imageError(err, name, originalName)
	}

	s.log.Debug("image stored",
		logger.String("name", name),
		logger.String("original", originalName))
	return name, nil
}

// Open opens a stored image for reading.
func (s *Store) Open(name string) (*os.File, error) {
	if err := checkName(name); err != nil {
		return nil, err
	}
	f, err := s.root.Open(name)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.New(err).
				Component("imagestore").
				Category(errors.CategoryNotFound).
				Context("name", name).
				Build()
		}
		return nil, imageError(err, name, "")
	}
	return f, nil
}

// Remove deletes a stored image. Removing a missing image is not an error.
func (s *Store) Remove(name string) error {
	if err := checkName(name); err != nil {
		return err
	}
	if err := s.root.Remove(name); err != nil && !os.IsNotExist(err) {
		return imageError(err, name, "")
	}
	return nil
}

// Dir returns the absolute image directory.
func (s *Store) Dir() string {
	return s.dir
}

// Close releases the directory handle.
func (s *Store) Close() error {
	return s.root.Close()
}

func checkName(name string) error {
	if name == "" || name != filepath.Base(name) || name == "." || name == ".." {
		return errors.New(fmt.Errorf("%w: %q", ErrInvalidName, name)).
			Component("imagestore").
			Category(errors.CategoryValidation).
			Build()
	}
	return nil
}

func imageError(err error, name, original string) error {
	b := errors.New(err).
		Component("imagestore").
		Category(errors.CategoryImage).
		Context("name", name)
	if original != "" {
		b = b.Context("original", original)
	}
	return b.Build()
}

func fileError(err error, path string) error {
	return errors.New(err).
		Component("imagestore").
		Category(errors.CategoryFileIO).
		FileContext(path).
		Build()
}

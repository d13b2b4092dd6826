package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"

	"reel/internal/fileutil"
)

// Filesystem stores objects below Dir. URLs are built from BaseURL when set
// and fall back to file:// paths.
type Filesystem struct {
	Dir     string
	BaseURL string
}

// NewFilesystem returns a directory-backed storage role.
func NewFilesystem(dir, baseURL string) *Filesystem {
	return &Filesystem{Dir: dir, BaseURL: baseURL}
}

func (f *Filesystem) String() string {
	return "filesystem:" + f.Dir
}

// Path returns the absolute path for locator.
func (f *Filesystem) Path(locator string) (string, error) {
	name, err := cleanName(locator)
	if err != nil {
		return "", err
	}
	return filepath.Join(f.Dir, filepath.FromSlash(name)), nil
}

// Save writes r to name atomically, replacing an existing object.
func (f *Filesystem) Save(ctx context.Context, name string, r io.Reader) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	locator, err := cleanName(name)
	if err != nil {
		return "", err
	}
	target := filepath.Join(f.Dir, filepath.FromSlash(locator))
	if _, err := fileutil.WriteAtomic(target, r, 0o644); err != nil {
		return "", fmt.Errorf("save %s: %w", locator, err)
	}
	return locator, nil
}

func (f *Filesystem) Open(ctx context.Context, locator string) (io.ReadCloser, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	target, err := f.Path(locator)
	if err != nil {
		return nil, err
	}
	file, err := os.Open(target)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, notFound(f.String(), locator)
	}
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", locator, err)
	}
	return file, nil
}

func (f *Filesystem) URL(locator string) string {
	if f.BaseURL != "" {
		return joinURL(f.BaseURL, locator)
	}
	target, err := f.Path(locator)
	if err != nil {
		return ""
	}
	return "file://" + filepath.ToSlash(target)
}

// Delete removes locator. Deleting a missing object is not an error.
func (f *Filesystem) Delete(ctx context.Context, locator string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	target, err := f.Path(locator)
	if err != nil {
		return err
	}
	if _, err := fileutil.RemoveIfExists(target); err != nil {
		return fmt.Errorf("delete %s: %w", locator, err)
	}
	return nil
}

func (f *Filesystem) Exists(ctx context.Context, locator string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	target, err := f.Path(locator)
	if err != nil {
		return false, err
	}
	return fileutil.Exists(target)
}

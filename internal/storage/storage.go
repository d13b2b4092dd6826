package storage

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"path"
	"strings"

	"reel/internal/config"
	"reel/internal/services"
)

// Backend is the storage capability shared by all roles. Locators are
// slash-separated names relative to the backend root.
type Backend interface {
	Save(ctx context.Context, name string, r io.Reader) (string, error)
	Open(ctx context.Context, locator string) (io.ReadCloser, error)
	URL(locator string) string
	Delete(ctx context.Context, locator string) error
	Exists(ctx context.Context, locator string) (bool, error)
	String() string
}

// Roles groups the configured backends.
type Roles struct {
	Local  Backend
	Remote Backend
	CDN    Backend
}

// Open builds the three storage roles from configuration.
func Open(cfg *config.Config) (*Roles, error) {
	local, err := New(cfg.Storage.Local)
	if err != nil {
		return nil, fmt.Errorf("storage.local: %w", err)
	}
	remote, err := New(cfg.Storage.Remote)
	if err != nil {
		return nil, fmt.Errorf("storage.remote: %w", err)
	}
	cdn, err := New(cfg.Storage.CDN)
	if err != nil {
		return nil, fmt.Errorf("storage.cdn: %w", err)
	}
	return &Roles{Local: local, Remote: remote, CDN: cdn}, nil
}

// New constructs a backend for one storage role.
func New(b config.Backend) (Backend, error) {
	switch b.Backend {
	case config.BackendFilesystem, "":
		return NewFilesystem(b.Dir, b.BaseURL), nil
	case config.BackendS3:
		return NewS3(b)
	case config.BackendMinIO:
		return NewMinIO(b)
	default:
		return nil, services.Wrap(services.ErrConfiguration, "storage", "open",
			fmt.Sprintf("unsupported backend %q", b.Backend), nil)
	}
}

// cleanName validates a locator and returns its canonical form.
func cleanName(name string) (string, error) {
	trimmed := strings.TrimLeft(strings.TrimSpace(strings.ReplaceAll(name, "\\", "/")), "/")
	for _, segment := range strings.Split(trimmed, "/") {
		if segment == ".." {
			return "", services.Wrap(services.ErrValidation, "storage", "name",
				fmt.Sprintf("object name %q escapes the storage root", name), nil)
		}
	}
	cleaned := path.Clean(trimmed)
	if cleaned == "." || cleaned == "" {
		return "", services.Wrap(services.ErrValidation, "storage", "name", "empty object name", nil)
	}
	return cleaned, nil
}

// joinURL appends a locator to base, escaping each path segment.
func joinURL(base, locator string) string {
	segments := strings.Split(locator, "/")
	for i, segment := range segments {
		segments[i] = url.PathEscape(segment)
	}
	return strings.TrimRight(base, "/") + "/" + strings.Join(segments, "/")
}

func notFound(backend, locator string) error {
	return services.Wrap(services.ErrNotFound, "storage", "open",
		fmt.Sprintf("%s: %s does not exist", backend, locator), nil)
}

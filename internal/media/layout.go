package media

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"path"
	"path/filepath"
	"regexp"
	"strings"
)

// Layout computes deterministic names below the media root.
type Layout struct {
	Root     string
	PathName string
}

// InputName returns the storage-relative name for an uploaded file:
// {pathName}/{fileType|"files"}/{filename}.
func (l Layout) InputName(fileType FileType, filename string) string {
	return path.Join(l.PathName, fileType.Dir(), SanitizeFilename(path.Base(filename)))
}

// InputPath resolves a storage-relative input name to an absolute path.
func (l Layout) InputPath(name string) string {
	if name == "" {
		return ""
	}
	return filepath.Join(l.Root, filepath.FromSlash(name))
}

// OutputPath returns {root}/{pathName}/{fileType}/{mediaID}.{container}.
func (l Layout) OutputPath(m *Media, profile Profile) string {
	return filepath.Join(l.Root, l.PathName, m.FileType.Dir(), fmt.Sprintf("%d.%s", m.ID, profile.Container))
}

// FileName returns the storage-relative name for an untyped file.
func (l Layout) FileName(filename string) string {
	return l.InputName("", filename)
}

// ShortPath replaces the media root prefix with a marker for log output.
func (l Layout) ShortPath(p string) string {
	if l.Root == "" || !strings.HasPrefix(p, l.Root) {
		return p
	}
	return "MEDIA_ROOT" + strings.TrimPrefix(p, l.Root)
}

const (
	randomAlphabet         = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
	defaultRandomLength    = 12
	defaultRandomExtension = "png"
)

// RandomFilename returns a filesystem-safe name of length random characters
// followed by the extension. Zero length and empty extension select 12 and
// "png".
func RandomFilename(extension string, length int) (string, error) {
	if length <= 0 {
		length = defaultRandomLength
	}
	extension = strings.TrimPrefix(strings.TrimSpace(extension), ".")
	if extension == "" {
		extension = defaultRandomExtension
	}
	max := big.NewInt(int64(len(randomAlphabet)))
	buf := make([]byte, length)
	for i := range buf {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", fmt.Errorf("random filename: %w", err)
		}
		buf[i] = randomAlphabet[n.Int64()]
	}
	return SanitizeFilename(string(buf) + "." + extension), nil
}

var unsafeFilenameChars = regexp.MustCompile(`[^-\w.]`)

// SanitizeFilename strips surrounding whitespace, turns inner spaces into
// underscores and drops anything outside [-A-Za-z0-9_.].
func SanitizeFilename(name string) string {
	name = strings.ReplaceAll(strings.TrimSpace(name), " ", "_")
	return unsafeFilenameChars.ReplaceAllString(name, "")
}

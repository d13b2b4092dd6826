package media

import (
	"fmt"
	"strings"
	"time"
)

// FileType discriminates the media variants.
type FileType string

const (
	Audio    FileType = "audio"
	Video    FileType = "video"
	Snapshot FileType = "snapshot"
)

// FileTypes lists the supported variants in display order.
var FileTypes = []FileType{Audio, Video, Snapshot}

// ParseFileType converts user input into a FileType.
func ParseFileType(value string) (FileType, error) {
	switch FileType(strings.ToLower(strings.TrimSpace(value))) {
	case Audio:
		return Audio, nil
	case Video:
		return Video, nil
	case Snapshot:
		return Snapshot, nil
	default:
		return "", fmt.Errorf("unknown file type %q (valid: audio, video, snapshot)", value)
	}
}

// Dir returns the layout directory for the type. Untyped uploads use "files".
func (t FileType) Dir() string {
	if t == "" {
		return "files"
	}
	return string(t)
}

// Label returns the human readable variant name.
func (t FileType) Label() string {
	switch t {
	case Audio:
		return "Audio"
	case Video:
		return "Video"
	case Snapshot:
		return "Snapshot"
	default:
		return "File"
	}
}

// Encoder identifies an external transcoding tool.
type Encoder struct {
	ID               int64
	Name             string
	Path             string
	Kind             string
	Flags            string
	Description      string
	DocumentationURL string
}

// Profile is a named transcoding target bound to one encoder.
type Profile struct {
	ID          int64
	Name        string
	Description string
	Container   string
	MIMEType    string
	VideoCodec  string
	AudioCodec  string
	Command     string
	Encoder     Encoder
}

// File is an encoded artifact stored in CDN storage. Files are never mutated
// after creation.
type File struct {
	ID        int64
	Title     string
	Name      string
	URL       string
	ProfileID int64
	CreatedAt time.Time
}

// Media tracks one upload through its transcoding lifecycle.
type Media struct {
	ID            int64
	Title         string
	Description   string
	FileType      FileType
	InputName     string
	Encoding      bool
	Encoded       bool
	Uploaded      bool
	KeepInputFile bool
	Owner         string
	ProfileIDs    []int64
	Outputs       []File
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// Persisted reports whether the entity has an identifier.
func (m *Media) Persisted() bool {
	return m != nil && m.ID != 0
}

// HasProfile reports whether id is among the requested profiles.
func (m *Media) HasProfile(id int64) bool {
	for _, pid := range m.ProfileIDs {
		if pid == id {
			return true
		}
	}
	return false
}

// AddProfile records a requested profile once.
func (m *Media) AddProfile(id int64) {
	if !m.HasProfile(id) {
		m.ProfileIDs = append(m.ProfileIDs, id)
	}
}

// Status summarizes the lifecycle flags for display.
func (m *Media) Status() string {
	switch {
	case m.Encoded && m.Uploaded:
		return "complete"
	case m.Encoding:
		return "encoding"
	default:
		return "idle"
	}
}

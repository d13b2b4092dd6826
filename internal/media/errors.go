package media

import (
	"fmt"

	"reel/internal/services"
)

// ProfileNotFound reports a profile reference that does not resolve.
type ProfileNotFound struct {
	ID   int64
	Name string
}

func (e *ProfileNotFound) Error() string {
	if e.Name != "" {
		return fmt.Sprintf("Profile '%s' does not exist", e.Name)
	}
	return fmt.Sprintf("profile %d does not exist", e.ID)
}

func (e *ProfileNotFound) Unwrap() error { return services.ErrNotFound }

// ErrorKind classifies the failure for task outcome reporting.
func (e *ProfileNotFound) ErrorKind() string { return "profile_not_found" }

// MediaNotFound reports a media reference that does not resolve.
type MediaNotFound struct {
	ID int64
}

func (e *MediaNotFound) Error() string {
	return fmt.Sprintf("media %d does not exist", e.ID)
}

func (e *MediaNotFound) Unwrap() error { return services.ErrNotFound }

func (e *MediaNotFound) ErrorKind() string { return "media_not_found" }

package pipeline

import (
	"fmt"

	"reel/internal/services"
)

// UploadFailure reports a missing encoded artifact or a failed CDN upload.
// It is transient so the task runtime redelivers the store task.
type UploadFailure struct {
	Path string
	Err  error
}

func (e *UploadFailure) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("upload %s failed", e.Path)
	}
	return fmt.Sprintf("upload %s: %v", e.Path, e.Err)
}

func (e *UploadFailure) Unwrap() []error {
	if e.Err == nil {
		return []error{services.ErrTransient}
	}
	return []error{services.ErrTransient, e.Err}
}

func (e *UploadFailure) ErrorKind() string { return "upload_failure" }

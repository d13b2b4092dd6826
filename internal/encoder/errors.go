package encoder

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os/exec"
	"strings"

	"reel/internal/command"
	"reel/internal/services"
)

// EncodeFailure reports a failed encoder run.
type EncodeFailure struct {
	// Command is the composed command line, shell quoted.
	Command string
	// Output holds the captured tool output, possibly truncated to its tail.
	Output string
	Cause  error

	message string
}

func (e *EncodeFailure) Error() string {
	if e.message != "" {
		return e.message
	}
	if e.Cause != nil {
		return e.Cause.Error()
	}
	return "encode failed"
}

// Unwrap exposes the cause and the classification marker. Deadline
// expiry is a timeout, cancellation is transient, everything else is an
// external tool failure.
func (e *EncodeFailure) Unwrap() []error {
	marker := services.ErrExternalTool
	switch {
	case errors.Is(e.Cause, context.DeadlineExceeded):
		marker = services.ErrTimeout
	case errors.Is(e.Cause, context.Canceled):
		marker = services.ErrTransient
	}
	if e.Cause == nil {
		return []error{marker}
	}
	return []error{marker, e.Cause}
}

func (e *EncodeFailure) ErrorKind() string { return "encode_failure" }

// withContextErr attaches the context error when the run was interrupted.
func withContextErr(ctx context.Context, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil && !errors.Is(err, ctxErr) {
		return fmt.Errorf("%w (%w)", err, ctxErr)
	}
	return err
}

// newFailure classifies err from running cmd. A binary that cannot be found or
// executed yields "<argv0>: <os error>"; a non-zero exit names the status.
func newFailure(cmd command.Command, output string, err error) *EncodeFailure {
	failure := &EncodeFailure{Command: cmd.String(), Output: strings.TrimSpace(output), Cause: err}
	var execErr *exec.Error
	var exitErr *exec.ExitError
	switch {
	case errors.As(err, &execErr), errors.Is(err, fs.ErrNotExist), errors.Is(err, fs.ErrPermission):
		failure.message = fmt.Sprintf("%s: %v", cmd.Name(), err)
	case errors.Is(err, context.DeadlineExceeded):
		failure.message = fmt.Sprintf("%s: timed out", cmd.Name())
	case errors.Is(err, context.Canceled):
		failure.message = fmt.Sprintf("%s: canceled", cmd.Name())
	case errors.As(err, &exitErr):
		failure.message = fmt.Sprintf("%s exited with status %d", cmd.Name(), exitErr.ExitCode())
		if line := lastLine(failure.Output); line != "" {
			failure.message += ": " + line
		}
	default:
		failure.message = fmt.Sprintf("%s: %v", cmd.Name(), err)
	}
	return failure
}

func lastLine(output string) string {
	output = strings.TrimSpace(output)
	if idx := strings.LastIndexAny(output, "\r\n"); idx >= 0 {
		output = output[idx+1:]
	}
	return strings.TrimSpace(output)
}

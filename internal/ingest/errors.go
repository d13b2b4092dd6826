package ingest

import "reel/internal/services"

// DecodeFailure reports an upload payload that is not valid encoded media.
type DecodeFailure struct {
	Err error
}

func (e *DecodeFailure) Error() string { return "corrupt media" }

func (e *DecodeFailure) Unwrap() []error {
	if e.Err == nil {
		return []error{services.ErrValidation}
	}
	return []error{services.ErrValidation, e.Err}
}

func (e *DecodeFailure) ErrorKind() string { return "decode_failure" }

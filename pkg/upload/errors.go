package upload

import (
	"errors"
	"fmt"
)

var (
	ErrSessionNotFound          = errors.New("upload: session not found")
	ErrSessionExpired           = errors.New("upload: session expired")
	ErrSessionClosed            = errors.New("upload: session is closed")
	ErrSessionActive            = errors.New("upload: resource already has an open session")
	ErrUploadConflict           = errors.New("upload: chunk offset does not match session offset")
	ErrChunkExceedsDeclaredSize = errors.New("upload: chunk exceeds declared size")
	ErrUploadIncomplete         = errors.New("upload: not all bytes received")
	ErrInvalidSize              = errors.New("upload: declared size must be positive")
	ErrTooLarge                 = errors.New("upload: declared size exceeds limit")
	ErrUnsupportedMediaType     = errors.New("upload: unsupported media type")
	ErrResourceNotUploadable    = errors.New("upload: resource does not accept uploads")

	ErrInvalidKey    = errors.New("upload: invalid temp key")
	ErrChunkTooLarge = errors.New("upload: chunk larger than limit")
	ErrTempStorage   = errors.New("upload: temp storage failure")
)

// OffsetError reports the offset the session expects.
type OffsetError struct {
	Expected int64
	Got      int64
}

func (e *OffsetError) Error() string {
	return fmt.Sprintf("upload: chunk offset %d does not match session offset %d", e.Got, e.Expected)
}

func (e *OffsetError) Unwrap() error { return ErrUploadConflict }

package video

import "errors"

var (
	ErrNotFound          = errors.New("video: not found")
	ErrInvalidTransition = errors.New("video: invalid lifecycle transition")
	ErrNotRetryable      = errors.New("video: only failed videos can be retried")
	ErrInvalidTitle      = errors.New("video: title must be 1..200 characters")
	ErrInvalidHandoff    = errors.New("video: successful handoff requires a storage pointer")
)

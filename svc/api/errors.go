package api

import (
	"errors"
	"net/http"

	"github.com/dmitrymomot/vidkit/handler"
	"github.com/dmitrymomot/vidkit/pkg/binder"
	"github.com/dmitrymomot/vidkit/pkg/isolation"
	"github.com/dmitrymomot/vidkit/pkg/jobs"
	"github.com/dmitrymomot/vidkit/pkg/processing"
	"github.com/dmitrymomot/vidkit/pkg/upload"
	"github.com/dmitrymomot/vidkit/pkg/video"
)

var (
	errUploadConflict  = handler.HTTPError{Code: http.StatusConflict, Key: "upload_offset_mismatch", Message: "chunk offset does not match the session offset"}
	errSessionActive   = handler.HTTPError{Code: http.StatusConflict, Key: "upload_session_active", Message: "resource already has an open upload session"}
	errSessionClosed   = handler.HTTPError{Code: http.StatusConflict, Key: "upload_session_closed", Message: "upload session is closed"}
	errNotUploadable   = handler.HTTPError{Code: http.StatusConflict, Key: "resource_not_uploadable", Message: "resource does not accept uploads"}
	errSessionExpired  = handler.HTTPError{Code: http.StatusGone, Key: "upload_session_expired", Message: "upload session expired"}
	errIncomplete      = handler.HTTPError{Code: http.StatusBadRequest, Key: "upload_incomplete", Message: "not all bytes have been received"}
	errChunkOversize   = handler.HTTPError{Code: http.StatusBadRequest, Key: "chunk_exceeds_declared_size", Message: "chunk exceeds the declared upload size"}
	errInvalidTransit  = handler.HTTPError{Code: http.StatusUnprocessableEntity, Key: "invalid_transition", Message: "operation not allowed in the current video status"}
	errNotRetryable    = handler.HTTPError{Code: http.StatusUnprocessableEntity, Key: "not_retryable", Message: "only failed videos can be retried"}
	errJobRunning      = handler.HTTPError{Code: http.StatusConflict, Key: "job_running", Message: "job is already running"}
	errBadSignature    = handler.HTTPError{Code: http.StatusUnauthorized, Key: "invalid_signature", Message: "invalid callback signature"}
	errMissingOffset   = handler.ErrBadRequest.WithMessage("Upload-Offset header is required")
	errInvalidChunkCT  = handler.ErrUnsupportedMediaType.WithMessage("chunks must be sent as application/offset+octet-stream")
	errProviderRefused = handler.HTTPError{Code: http.StatusUnprocessableEntity, Key: "completion_rejected", Message: "completion cannot be applied"}
	errProviderRetry   = handler.ErrServiceUnavailable.WithMessage("completion could not be applied, retry later")
)

// mapError is the single place domain errors become HTTP statuses.
// Isolation violations stay unmapped and surface as 500.
func mapError(err error) (handler.HTTPError, bool) {
	switch {
	case isolation.IsViolation(err):
		return handler.HTTPError{}, false

	case errors.Is(err, binder.ErrUnsupportedMediaType), errors.Is(err, binder.ErrMissingContentType):
		return handler.ErrUnsupportedMediaType, true
	case errors.Is(err, binder.ErrBodyTooLarge):
		return handler.ErrRequestEntityTooLarge, true
	case errors.Is(err, binder.ErrFailedToParseJSON),
		errors.Is(err, binder.ErrFailedToParseQuery),
		errors.Is(err, binder.ErrFailedToParsePath):
		return handler.ErrBadRequest.WithMessage(err.Error()), true

	case errors.Is(err, video.ErrNotFound),
		errors.Is(err, upload.ErrSessionNotFound),
		errors.Is(err, isolation.ErrNotFound),
		errors.Is(err, jobs.ErrJobNotFound):
		return handler.ErrNotFound, true

	case errors.Is(err, upload.ErrUploadConflict):
		return errUploadConflict, true
	case errors.Is(err, upload.ErrSessionActive):
		return errSessionActive, true
	case errors.Is(err, upload.ErrSessionClosed):
		return errSessionClosed, true
	case errors.Is(err, upload.ErrResourceNotUploadable):
		return errNotUploadable, true
	case errors.Is(err, upload.ErrSessionExpired):
		return errSessionExpired, true
	case errors.Is(err, upload.ErrUploadIncomplete):
		return errIncomplete, true
	case errors.Is(err, upload.ErrChunkExceedsDeclaredSize):
		return errChunkOversize, true
	case errors.Is(err, upload.ErrInvalidSize), errors.Is(err, video.ErrInvalidTitle):
		return handler.ErrBadRequest.WithMessage(err.Error()), true
	case errors.Is(err, upload.ErrTooLarge), errors.Is(err, upload.ErrChunkTooLarge):
		return handler.ErrRequestEntityTooLarge, true
	case errors.Is(err, upload.ErrUnsupportedMediaType):
		return handler.ErrUnsupportedMediaType, true

	case errors.Is(err, video.ErrInvalidTransition):
		return errInvalidTransit, true
	case errors.Is(err, video.ErrNotRetryable):
		return errNotRetryable, true

	case errors.Is(err, jobs.ErrJobAlreadyRunning):
		return errJobRunning, true

	case errors.Is(err, processing.ErrInvalidSignature):
		return errBadSignature, true
	case errors.Is(err, processing.ErrInvalidPayload):
		return handler.ErrBadRequest.WithMessage(err.Error()), true
	}
	return handler.HTTPError{}, false
}

package processing

import (
	"context"
	"errors"
	"fmt"

	"github.com/aws/smithy-go"
	"github.com/minio/minio-go/v7"
)

var (
	ErrTimeout          = errors.New("processing: provider call timed out")
	ErrCircuitOpen      = errors.New("processing: provider circuit breaker is open")
	ErrInvalidAsset     = errors.New("processing: invalid asset")
	ErrInvalidSignature = errors.New("processing: invalid callback signature")
	ErrInvalidPayload   = errors.New("processing: invalid callback payload")
	ErrInvalidConfig    = errors.New("processing: invalid configuration")
)

// Kind tells callers whether a failed call may succeed when repeated.
type Kind string

const (
	Transient Kind = "transient"
	Terminal  Kind = "terminal"
)

// Error is returned by every provider call that went through Classify.
type Error struct {
	Kind Kind
	Op   string
	Err  error
}

func (e *Error) Error() string {
	return fmt.Sprintf("processing %s (%s): %v", e.Op, e.Kind, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// terminalCodes are provider error codes that will not change on retry.
var terminalCodes = map[string]bool{
	"AccessDenied":          true,
	"InvalidAccessKeyId":    true,
	"SignatureDoesNotMatch": true,
	"NoSuchBucket":          true,
	"InvalidBucketName":     true,
	"EntityTooLarge":        true,
	"InvalidArgument":       true,
	"InvalidRequest":        true,
	"MalformedXML":          true,
	"KeyTooLongError":       true,
	"UnsupportedMediaType":  true,
}

// Classify wraps err into an *Error. Errors that are already classified are
// returned unchanged; unknown errors are treated as transient.
func Classify(op string, err error) error {
	if err == nil {
		return nil
	}
	var pe *Error
	if errors.As(err, &pe) {
		return err
	}
	return &Error{Kind: kindOf(err), Op: op, Err: err}
}

func kindOf(err error) Kind {
	switch {
	case errors.Is(err, ErrInvalidAsset):
		return Terminal
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		return Transient
	}

	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		if terminalCodes[apiErr.ErrorCode()] {
			return Terminal
		}
		return Transient
	}

	if resp := minio.ToErrorResponse(err); resp.Code != "" {
		if terminalCodes[resp.Code] {
			return Terminal
		}
		return Transient
	}

	return Transient
}

// KindOf returns the kind recorded on err, classifying it when needed.
func KindOf(err error) Kind {
	var pe *Error
	if errors.As(err, &pe) {
		return pe.Kind
	}
	return kindOf(err)
}

func IsTerminal(err error) bool {
	return err != nil && KindOf(err) == Terminal
}

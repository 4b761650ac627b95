// Package apperror classifies the error taxonomy used across the pipeline:
// validation, external-tool, object-store, remote-API, rate-limit,
// partial-failure, and internal-invariant errors, plus a Retryable
// predicate the Transcriber's backoff wrapper consults.
package apperror

import (
	"errors"
	"fmt"
	"time"
)

// Kind tags the category of failure a stage records against a task.
type Kind string

const (
	KindValidation     Kind = "validation"
	KindExternalTool   Kind = "external_tool"
	KindObjectStore    Kind = "object_store"
	KindRemoteAPI      Kind = "remote_api"
	KindRateLimit      Kind = "rate_limit"
	KindPartialFailure Kind = "partial_failure"
	KindInternal       Kind = "internal_invariant"
)

// Error is a classified, wrapped error carrying the stage-local operation
// name that produced it.
type Error struct {
	Kind       Kind
	Operation  string
	Err        error
	RetryAfter time.Duration
}

func (e *Error) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %s", e.Kind, e.Operation)
	}
	return fmt.Sprintf("%s: %s: %v", e.Kind, e.Operation, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// Wrap builds a classified Error.
func Wrap(kind Kind, operation string, err error) *Error {
	return &Error{Kind: kind, Operation: operation, Err: err}
}

// WrapRetryAfter builds a rate-limit Error carrying a server-provided
// retry delay (from an HTTP 429 Retry-After header).
func WrapRetryAfter(operation string, err error, retryAfter time.Duration) *Error {
	return &Error{Kind: KindRateLimit, Operation: operation, Err: err, RetryAfter: retryAfter}
}

// Retryable reports whether err is classified as retryable: a remote-API
// transport failure or an explicit rate-limit signal. Validation,
// object-store, and internal-invariant errors are never retried by the
// Transcriber's backoff wrapper.
func Retryable(err error) bool {
	var appErr *Error
	if errors.As(err, &appErr) {
		switch appErr.Kind {
		case KindRemoteAPI, KindRateLimit:
			return true
		default:
			return false
		}
	}
	return false
}

// As reports whether err (or an error it wraps) is an *Error, and returns it.
func As(err error) (*Error, bool) {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr, true
	}
	return nil, false
}

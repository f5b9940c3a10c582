// Package api provides HTTP clients for the autoapply run and profile services.
package api

import (
	"errors"
	"fmt"
)

// AuthError indicates the service rejected or never received credentials
// (missing, expired, or revoked token). The user must re-authenticate.
type AuthError struct {
	Op string
}

func (e *AuthError) Error() string {
	if e.Op != "" {
		return fmt.Sprintf("authentication required: %s", e.Op)
	}
	return "authentication required"
}

// NotFoundError indicates the requested record does not exist. For profiles
// this means "not yet created", not a failure.
type NotFoundError struct {
	Resource string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s not found", e.Resource)
}

// ValidationError indicates the service rejected the request as malformed.
// Message carries the service's own wording and is shown to the user verbatim.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error: %s", e.Message)
}

// RequestError indicates a transient request failure (connectivity loss,
// timeout, 5xx). Callers drop state derived from the failed call rather than
// keep it stale, and retry on their own schedule.
type RequestError struct {
	Op         string
	StatusCode int
	Message    string
	Cause      error
}

func (e *RequestError) Error() string {
	switch {
	case e.Cause != nil:
		return fmt.Sprintf("%s failed: %v", e.Op, e.Cause)
	case e.Message != "":
		return fmt.Sprintf("%s failed: %s (status %d)", e.Op, e.Message, e.StatusCode)
	default:
		return fmt.Sprintf("%s failed: status %d", e.Op, e.StatusCode)
	}
}

func (e *RequestError) Unwrap() error {
	return e.Cause
}

// IsAuthRequired reports whether err means the user must re-authenticate.
func IsAuthRequired(err error) bool {
	var ae *AuthError
	return errors.As(err, &ae)
}

// IsNotFound reports whether err means the record does not exist.
func IsNotFound(err error) bool {
	var nf *NotFoundError
	return errors.As(err, &nf)
}

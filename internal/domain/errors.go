package domain

import (
	"errors"
	"fmt"
)

// ValidationError blocks an action before any network or store call is made.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// IsValidation reports whether err is (or wraps) a ValidationError.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// AuthError means identity establishment failed; nothing else may start
// until it either succeeds or is surfaced.
type AuthError struct {
	Err error
}

func (e *AuthError) Error() string {
	return fmt.Sprintf("failed to establish identity: %v", e.Err)
}

func (e *AuthError) Unwrap() error { return e.Err }

// FetchError means a read or subscription against the document store failed.
// The live sync stops emitting after one of these until resumed.
type FetchError struct {
	Err error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("failed to fetch collection: %v", e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// UploadError means the asset host rejected an upload or was unreachable.
// There are no retries; the initiating action is aborted.
type UploadError struct {
	StatusCode int
	Message    string
	Err        error
}

func (e *UploadError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("upload failed: %v", e.Err)
	}
	return fmt.Sprintf("asset host returned status %d: %s", e.StatusCode, e.Message)
}

func (e *UploadError) Unwrap() error { return e.Err }

// WriteError means a create, update or delete was rejected by the store.
// Local state is left unchanged when one of these is returned.
type WriteError struct {
	Op  string
	Err error
}

func (e *WriteError) Error() string {
	return fmt.Sprintf("failed to %s: %v", e.Op, e.Err)
}

func (e *WriteError) Unwrap() error { return e.Err }

// ErrNotFound is wrapped by WriteError when the target document no longer
// exists.
var ErrNotFound = errors.New("not found")

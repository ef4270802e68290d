package engine

import (
	"errors"
	"fmt"

	"github.com/roach88/draftkeep/internal/form"
)

// ErrDraftNotFound is returned by ResumeDraft when the key holds no readable
// draft.
var ErrDraftNotFound = errors.New("draft not found")

// ErrSessionClosed is returned by operations on a closed session.
var ErrSessionClosed = errors.New("session closed")

// SubmitErrorCode categorizes submit failures.
type SubmitErrorCode string

const (
	// ErrCodeCriticalValidation indicates a critical field is missing or
	// invalid. Editing can continue; only the submit was refused.
	ErrCodeCriticalValidation SubmitErrorCode = "CRITICAL_VALIDATION"

	// ErrCodeBackendFailure indicates the backend rejected or never received
	// the submission. The local draft is kept under BackupKey when the
	// backup write succeeded.
	ErrCodeBackendFailure SubmitErrorCode = "BACKEND_FAILURE"
)

// SubmitError is the one user-facing error class of a session.
type SubmitError struct {
	// Code identifies the error category.
	Code SubmitErrorCode

	// Step is the 1-based form step the user should go back to, or 0.
	Step int

	// Message is an actionable, human-readable description.
	Message string

	// Fields holds the failing critical fields (CRITICAL_VALIDATION only).
	Fields map[form.Path]string

	// BackupKey is the draft key still holding the user's work
	// (BACKEND_FAILURE only). Empty when the backup write failed.
	BackupKey string

	// Err is the underlying backend error, if any.
	Err error
}

// Error implements the error interface.
func (e *SubmitError) Error() string {
	if e.Step > 0 {
		return fmt.Sprintf("%s: %s (step=%d)", e.Code, e.Message, e.Step)
	}
	if e.BackupKey != "" {
		return fmt.Sprintf("%s: %s (backup=%s)", e.Code, e.Message, e.BackupKey)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying backend error.
func (e *SubmitError) Unwrap() error {
	return e.Err
}

// IsCriticalValidation reports whether err is a critical validation
// failure. Uses errors.As to handle wrapped errors.
func IsCriticalValidation(err error) bool {
	var se *SubmitError
	if errors.As(err, &se) {
		return se.Code == ErrCodeCriticalValidation
	}
	return false
}

// IsBackendFailure reports whether err is a backend submission failure.
// Uses errors.As to handle wrapped errors.
func IsBackendFailure(err error) bool {
	var se *SubmitError
	if errors.As(err, &se) {
		return se.Code == ErrCodeBackendFailure
	}
	return false
}

package domain

import (
	"errors"
	"fmt"
)

// DomainError is an error with a stable code of the form BX-<AREA>-<NNNN>.
type DomainError struct {
	Code    string // Error code (e.g., "BX-LOCK-4080")
	Message string // Human-readable message
	Details string // Optional additional details
	Cause   error  // Underlying error (if any)
}

// Error implements the error interface.
func (e *DomainError) Error() string {
	msg := fmt.Sprintf("[%s] %s", e.Code, e.Message)
	if e.Details != "" {
		msg += ": " + e.Details
	}
	if e.Cause != nil {
		msg += ": " + e.Cause.Error()
	}
	return msg
}

// Unwrap returns the underlying error for errors.Unwrap() support.
func (e *DomainError) Unwrap() error {
	return e.Cause
}

// Is matches any DomainError with the same code.
func (e *DomainError) Is(target error) bool {
	t, ok := target.(*DomainError)
	if !ok {
		return false
	}
	return e.Code == t.Code
}

// NewDomainError creates a new DomainError with the given code and message.
func NewDomainError(code, message string) *DomainError {
	return &DomainError{
		Code:    code,
		Message: message,
	}
}

// WithDetails returns a copy of the error with additional details.
func (e *DomainError) WithDetails(details string) *DomainError {
	cp := *e
	cp.Details = details
	return &cp
}

// WithCause returns a copy of the error wrapping the given cause.
func (e *DomainError) WithCause(cause error) *DomainError {
	cp := *e
	cp.Cause = cause
	return &cp
}

// IsDomainError checks if an error is a DomainError with the given code.
// If code is empty, it only checks if the error is a DomainError.
func IsDomainError(err error, code string) bool {
	var de *DomainError
	if errors.As(err, &de) {
		return code == "" || de.Code == code
	}
	return false
}

// GetErrorCode extracts the error code from an error if it's a DomainError.
func GetErrorCode(err error) string {
	var de *DomainError
	if errors.As(err, &de) {
		return de.Code
	}
	return ""
}

var (
	// ErrLockTimeout means a session record stayed checked out for the whole
	// retry budget. The record has been deleted; treat it as "no prior
	// session" and start fresh.
	ErrLockTimeout = NewDomainError("BX-LOCK-4080", "session checkout timed out")

	// ErrBackendUnavailable means the backend could not be reached or a
	// backend call failed. Not retried internally.
	ErrBackendUnavailable = NewDomainError("BX-SYS-5030", "backend unavailable")

	// ErrInvalidArgument rejects empty ids and out-of-range key indices.
	ErrInvalidArgument = NewDomainError("BX-ARG-4001", "invalid argument")
)

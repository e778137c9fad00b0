package domain

import (
	"errors"
	"fmt"
)

// DomainError represents a business domain error with a structured error code.
// Codes have the form TV-<AREA>-<NNNN>; the last four digits mirror the
// closest HTTP status.
type DomainError struct {
	Code    string // Error code (e.g., "TV-TAN-4040")
	Message string // Human-readable message
	Details string // Optional additional details
	Cause   error  // Underlying error (if any)
}

// Error implements the error interface.
func (e *DomainError) Error() string {
	if e.Details != "" {
		return fmt.Sprintf("[%s] %s: %s", e.Code, e.Message, e.Details)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying error for errors.Unwrap() support.
func (e *DomainError) Unwrap() error {
	return e.Cause
}

// Is implements errors.Is() support for error comparison.
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
	return &DomainError{
		Code:    e.Code,
		Message: e.Message,
		Details: details,
		Cause:   e.Cause,
	}
}

// WithCause returns a copy of the error wrapping the given cause.
func (e *DomainError) WithCause(cause error) *DomainError {
	return &DomainError{
		Code:    e.Code,
		Message: e.Message,
		Details: e.Details,
		Cause:   cause,
	}
}

// IsDomainError checks if an error is a DomainError with the given code.
// If code is empty, it only checks if the error is a DomainError.
func IsDomainError(err error, code string) bool {
	var de *DomainError
	if errors.As(err, &de) {
		if code == "" {
			return true
		}
		return de.Code == code
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

// TAN errors.
var (
	// ErrTanMalformed indicates the plaintext fails the syntax check for its kind.
	ErrTanMalformed = NewDomainError("TV-TAN-4000", "malformed tan")

	// ErrTanNotFound indicates no record exists for the given hash.
	ErrTanNotFound = NewDomainError("TV-TAN-4040", "tan not found")

	// ErrTanHashConflict indicates a record with the same hash already exists.
	ErrTanHashConflict = NewDomainError("TV-TAN-4090", "tan hash conflict")

	// ErrTanVersionConflict indicates an optimistic lock conflict.
	ErrTanVersionConflict = NewDomainError("TV-TAN-4091", "version conflict, please retry")

	// ErrTanValidation indicates record validation failed.
	ErrTanValidation = NewDomainError("TV-TAN-4001", "tan validation failed")

	// ErrTeleTanRateLimited indicates the TeleTAN issuance budget is used up.
	ErrTeleTanRateLimited = NewDomainError("TV-TAN-4290", "teletan issuance rate limit reached")

	// ErrGenerationExhausted indicates no unused code was found within the retry cap.
	ErrGenerationExhausted = NewDomainError("TV-TAN-5030", "tan generation attempts exhausted")
)

// Lab errors.
var (
	// ErrLabResultUnavailable indicates the lab result backend could not be queried.
	ErrLabResultUnavailable = NewDomainError("TV-LAB-5030", "lab result unavailable")
)

// System errors.
var (
	// ErrInternalServer indicates an internal server error.
	ErrInternalServer = NewDomainError("TV-SYS-5000", "internal server error")

	// ErrStoreUnavailable indicates the backing store failed.
	ErrStoreUnavailable = NewDomainError("TV-SYS-5031", "store unavailable")

	// ErrBadRequest indicates a malformed request.
	ErrBadRequest = NewDomainError("TV-SYS-4000", "bad request")
)

// Argument errors.
var (
	// ErrInvalidArgument indicates an invalid argument.
	ErrInvalidArgument = NewDomainError("TV-ARG-1001", "invalid argument")

	// ErrMissingArgument indicates a required argument is missing.
	ErrMissingArgument = NewDomainError("TV-ARG-1002", "missing required argument")
)

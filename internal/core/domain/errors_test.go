package domain

import (
	"errors"
	"fmt"
	"testing"
)

func TestDomainError_Error(t *testing.T) {
	tests := []struct {
		name     string
		err      *DomainError
		expected string
	}{
		{
			name:     "error without details",
			err:      NewDomainError("TV-TEST-1000", "test message"),
			expected: "[TV-TEST-1000] test message",
		},
		{
			name:     "error with details",
			err:      NewDomainError("TV-TEST-1001", "test message").WithDetails("extra info"),
			expected: "[TV-TEST-1001] test message: extra info",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.err.Error(); got != tt.expected {
				t.Errorf("Error() = %q, want %q", got, tt.expected)
			}
		})
	}
}

func TestDomainError_Is(t *testing.T) {
	err1 := NewDomainError("TV-TEST-1000", "message 1")
	err2 := NewDomainError("TV-TEST-1000", "message 2")
	err3 := NewDomainError("TV-TEST-1001", "message 1")

	if !errors.Is(err1, err2) {
		t.Error("errors.Is should return true for same error code")
	}
	if errors.Is(err1, err3) {
		t.Error("errors.Is should return false for different error code")
	}
	if errors.Is(err1, fmt.Errorf("some error")) {
		t.Error("errors.Is should return false for non-DomainError")
	}
}

func TestDomainError_WithCause(t *testing.T) {
	cause := fmt.Errorf("disk on fire")
	err := ErrStoreUnavailable.WithCause(cause)

	if ErrStoreUnavailable.Cause != nil {
		t.Error("WithCause should not modify the sentinel")
	}
	if !errors.Is(err, ErrStoreUnavailable) {
		t.Error("errors.Is should match the sentinel after WithCause")
	}
	if !errors.Is(err, cause) {
		t.Error("errors.Is should reach the cause")
	}
	if errors.Unwrap(err) != cause {
		t.Errorf("Unwrap() = %v, want %v", errors.Unwrap(err), cause)
	}
}

func TestDomainError_WithDetails(t *testing.T) {
	withDetails := ErrTanMalformed.WithDetails("kind=TELETAN")

	if ErrTanMalformed.Details != "" {
		t.Error("WithDetails should not modify the sentinel")
	}
	if withDetails.Details != "kind=TELETAN" || withDetails.Code != ErrTanMalformed.Code {
		t.Errorf("WithDetails() = %+v", withDetails)
	}
}

func TestIsDomainError(t *testing.T) {
	wrapped := fmt.Errorf("wrapped: %w", ErrTanNotFound)

	if !IsDomainError(wrapped, "TV-TAN-4040") {
		t.Error("IsDomainError should work with wrapped errors")
	}
	if IsDomainError(wrapped, "TV-TAN-9999") {
		t.Error("IsDomainError should return false for non-matching code")
	}
	if !IsDomainError(ErrTanNotFound, "") {
		t.Error("IsDomainError with empty code should match any DomainError")
	}
	if IsDomainError(fmt.Errorf("regular error"), "") {
		t.Error("IsDomainError should return false for non-DomainError")
	}
}

func TestGetErrorCode(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected string
	}{
		{"domain error", ErrGenerationExhausted, "TV-TAN-5030"},
		{"wrapped domain error", fmt.Errorf("wrapped: %w", ErrTanMalformed), "TV-TAN-4000"},
		{"regular error", fmt.Errorf("regular error"), ""},
		{"nil error", nil, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := GetErrorCode(tt.err); got != tt.expected {
				t.Errorf("GetErrorCode() = %q, want %q", got, tt.expected)
			}
		})
	}
}

func TestPredefinedErrors(t *testing.T) {
	tests := []struct {
		err  *DomainError
		code string
	}{
		{ErrTanMalformed, "TV-TAN-4000"},
		{ErrTanValidation, "TV-TAN-4001"},
		{ErrTanNotFound, "TV-TAN-4040"},
		{ErrTanHashConflict, "TV-TAN-4090"},
		{ErrTanVersionConflict, "TV-TAN-4091"},
		{ErrTeleTanRateLimited, "TV-TAN-4290"},
		{ErrGenerationExhausted, "TV-TAN-5030"},
		{ErrLabResultUnavailable, "TV-LAB-5030"},
		{ErrInternalServer, "TV-SYS-5000"},
		{ErrStoreUnavailable, "TV-SYS-5031"},
		{ErrBadRequest, "TV-SYS-4000"},
		{ErrInvalidArgument, "TV-ARG-1001"},
		{ErrMissingArgument, "TV-ARG-1002"},
	}

	seen := make(map[string]bool)
	for _, tt := range tests {
		t.Run(tt.code, func(t *testing.T) {
			if tt.err.Code != tt.code {
				t.Errorf("Error code = %q, want %q", tt.err.Code, tt.code)
			}
			if tt.err.Message == "" {
				t.Error("Error message should not be empty")
			}
			if seen[tt.code] {
				t.Errorf("duplicate code %s", tt.code)
			}
			seen[tt.code] = true
		})
	}
}

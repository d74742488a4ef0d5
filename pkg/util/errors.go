// Package util provides utility functions and common error types.
package util

import (
	"errors"
	"fmt"
	"strings"
)

// Status sentinels returned by table and container operations. Driver
// failures are passed through unwrapped and match none of these.
var (
	ErrInvalidArgument   = errors.New("invalid argument")
	ErrNotSupported      = errors.New("not supported")
	ErrObjectNotFound    = errors.New("object not found")
	ErrNoSystemResources = errors.New("no system resources")
	ErrNotConnected      = errors.New("backend not connected")
	ErrPermissionDenied  = errors.New("permission denied")
)

// FieldError reports a rejected field access with the operation that
// attempted it. Err is one of the status sentinels.
type FieldError struct {
	Op     string
	Field  string
	Reason string
	Err    error
}

func (e *FieldError) Error() string {
	msg := fmt.Sprintf("%s %s: %v", e.Op, e.Field, e.Err)
	if e.Reason != "" {
		msg += " (" + e.Reason + ")"
	}
	return msg
}

func (e *FieldError) Unwrap() error {
	return e.Err
}

// NewFieldError creates a new field error
func NewFieldError(op, field, reason string, err error) *FieldError {
	return &FieldError{
		Op:     op,
		Field:  field,
		Reason: reason,
		Err:    err,
	}
}

// ValidationError represents one or more validation failures
type ValidationError struct {
	Errors []string
}

func (e *ValidationError) Error() string {
	if len(e.Errors) == 1 {
		return "validation failed: " + e.Errors[0]
	}
	return fmt.Sprintf("validation failed:\n  - %s", strings.Join(e.Errors, "\n  - "))
}

// Unwrap maps every validation failure to ErrInvalidArgument.
func (e *ValidationError) Unwrap() error {
	return ErrInvalidArgument
}

// NewValidationError creates a validation error from messages
func NewValidationError(messages ...string) *ValidationError {
	return &ValidationError{Errors: messages}
}

// ValidationBuilder helps accumulate validation errors
type ValidationBuilder struct {
	errors []string
}

// Add adds an error message if condition is false
func (v *ValidationBuilder) Add(condition bool, message string) *ValidationBuilder {
	if !condition {
		v.errors = append(v.errors, message)
	}
	return v
}

// AddErrorf adds a formatted error message
func (v *ValidationBuilder) AddErrorf(format string, args ...interface{}) *ValidationBuilder {
	v.errors = append(v.errors, fmt.Sprintf(format, args...))
	return v
}

// HasErrors returns true if there are validation errors
func (v *ValidationBuilder) HasErrors() bool {
	return len(v.errors) > 0
}

// Build returns the validation error or nil if no errors
func (v *ValidationBuilder) Build() error {
	if len(v.errors) == 0 {
		return nil
	}
	return &ValidationError{Errors: v.errors}
}

// StatusName returns the short status label for err, used in CLI and
// audit output. Errors outside the taxonomy report as "driver".
func StatusName(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, ErrInvalidArgument):
		return "invalid-argument"
	case errors.Is(err, ErrNotSupported):
		return "not-supported"
	case errors.Is(err, ErrObjectNotFound):
		return "object-not-found"
	case errors.Is(err, ErrNoSystemResources):
		return "no-system-resources"
	case errors.Is(err, ErrNotConnected):
		return "not-connected"
	case errors.Is(err, ErrPermissionDenied):
		return "permission-denied"
	default:
		return "driver"
	}
}

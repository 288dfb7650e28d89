package errors

import (
	stderrors "errors"
	"fmt"
)

// ErrorCode represents a Glyco error code.
type ErrorCode string

const (
	ErrInvalidRequest ErrorCode = "INVALID_REQUEST" // 400
	ErrValidation     ErrorCode = "VALIDATION"      // 400 (unparseable manual/voice input)
	ErrInvalidUnits   ErrorCode = "INVALID_UNITS"   // 400
	ErrInvalidValue   ErrorCode = "INVALID_VALUE"   // 400
	ErrNotFound       ErrorCode = "NOT_FOUND"       // 404
	ErrFileNotFound   ErrorCode = "FILE_NOT_FOUND"  // 404
	ErrNotConnected   ErrorCode = "NOT_CONNECTED"   // 409
	ErrCancelled      ErrorCode = "CANCELLED"       // 499
	ErrExportFailed   ErrorCode = "EXPORT_FAILED"   // 500
	ErrInternal       ErrorCode = "INTERNAL"        // 500
)

// GlycoError represents a structured error with code, status, and details.
type GlycoError struct {
	Code    ErrorCode
	Status  int
	Message string
	Details map[string]any
}

// Error implements the error interface.
func (e *GlycoError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// NewInvalidRequest creates a 400 error for invalid request parameters.
func NewInvalidRequest(msg string) *GlycoError {
	return &GlycoError{
		Code:    ErrInvalidRequest,
		Status:  400,
		Message: msg,
	}
}

// NewValidation creates a 400 error for user input that could not be parsed.
// The input is echoed back in Details so the UI can show it.
func NewValidation(input, msg string) *GlycoError {
	return &GlycoError{
		Code:    ErrValidation,
		Status:  400,
		Message: msg,
		Details: map[string]any{"input": input},
	}
}

// NewInvalidUnits creates a 400 error for a non-positive insulin dose.
func NewInvalidUnits(units int) *GlycoError {
	return &GlycoError{
		Code:    ErrInvalidUnits,
		Status:  400,
		Message: fmt.Sprintf("insulin units must be positive, got %d", units),
		Details: map[string]any{"units": units},
	}
}

// NewInvalidValue creates a 400 error for a non-positive or non-finite glucose value.
func NewInvalidValue(value float64) *GlycoError {
	return &GlycoError{
		Code:    ErrInvalidValue,
		Status:  400,
		Message: fmt.Sprintf("glucose value must be a positive number, got %v", value),
		Details: map[string]any{"value": value},
	}
}

// NewNotFound creates a 404 error for when a record cannot be found.
func NewNotFound(id string) *GlycoError {
	return &GlycoError{
		Code:    ErrNotFound,
		Status:  404,
		Message: fmt.Sprintf("record not found: %s", id),
		Details: map[string]any{"id": id},
	}
}

// NewFileNotFound creates a 404 error for a missing file path.
func NewFileNotFound(path string) *GlycoError {
	return &GlycoError{
		Code:    ErrFileNotFound,
		Status:  404,
		Message: fmt.Sprintf("file not found: %s", path),
		Details: map[string]any{"path": path},
	}
}

// NewNotConnected creates a 409 error when the health source has not granted access.
func NewNotConnected(source string) *GlycoError {
	return &GlycoError{
		Code:    ErrNotConnected,
		Status:  409,
		Message: fmt.Sprintf("health source %q is not connected", source),
		Details: map[string]any{"source": source},
	}
}

// NewCancelled creates a 499 error for an operation stopped by its context.
func NewCancelled(op string) *GlycoError {
	return &GlycoError{
		Code:    ErrCancelled,
		Status:  499,
		Message: fmt.Sprintf("%s cancelled", op),
	}
}

// NewExportFailed creates a 500 error for a report that could not be produced.
func NewExportFailed(err error) *GlycoError {
	msg := "export failed"
	if err != nil {
		msg = "export failed: " + err.Error()
	}
	return &GlycoError{
		Code:    ErrExportFailed,
		Status:  500,
		Message: msg,
	}
}

// NewInternal creates a 500 error for unexpected internal errors.
func NewInternal(err error) *GlycoError {
	msg := "internal error"
	if err != nil {
		msg = err.Error()
	}
	return &GlycoError{
		Code:    ErrInternal,
		Status:  500,
		Message: msg,
	}
}

// Is checks if an error (or anything it wraps) is a GlycoError with the given code.
func Is(err error, code ErrorCode) bool {
	var gErr *GlycoError
	if stderrors.As(err, &gErr) {
		return gErr.Code == code
	}
	return false
}

package errors

import (
	stderrors "errors"
	"fmt"
	"testing"
)

func TestGlycoError_Error(t *testing.T) {
	err := &GlycoError{
		Code:    ErrNotFound,
		Status:  404,
		Message: "record not found",
	}

	expected := "NOT_FOUND: record not found"
	if err.Error() != expected {
		t.Errorf("Error() = %q, want %q", err.Error(), expected)
	}
}

func TestNewInvalidRequest(t *testing.T) {
	err := NewInvalidRequest("units is required")

	if err.Code != ErrInvalidRequest {
		t.Errorf("Code = %q, want %q", err.Code, ErrInvalidRequest)
	}
	if err.Status != 400 {
		t.Errorf("Status = %d, want 400", err.Status)
	}
	if err.Message != "units is required" {
		t.Errorf("Message = %q, want %q", err.Message, "units is required")
	}
}

func TestNewValidation(t *testing.T) {
	err := NewValidation("five", "enter a whole number of units")

	if err.Code != ErrValidation {
		t.Errorf("Code = %q, want %q", err.Code, ErrValidation)
	}
	if err.Status != 400 {
		t.Errorf("Status = %d, want 400", err.Status)
	}
	if err.Details["input"] != "five" {
		t.Errorf("Details[input] = %v, want %q", err.Details["input"], "five")
	}
}

func TestNewInvalidUnits(t *testing.T) {
	err := NewInvalidUnits(-2)

	if err.Code != ErrInvalidUnits {
		t.Errorf("Code = %q, want %q", err.Code, ErrInvalidUnits)
	}
	if err.Details["units"] != -2 {
		t.Errorf("Details[units] = %v, want -2", err.Details["units"])
	}
}

func TestNewInvalidValue(t *testing.T) {
	err := NewInvalidValue(0)

	if err.Code != ErrInvalidValue {
		t.Errorf("Code = %q, want %q", err.Code, ErrInvalidValue)
	}
	if err.Status != 400 {
		t.Errorf("Status = %d, want 400", err.Status)
	}
}

func TestNewNotFound(t *testing.T) {
	err := NewNotFound("abc")

	if err.Code != ErrNotFound {
		t.Errorf("Code = %q, want %q", err.Code, ErrNotFound)
	}
	if err.Status != 404 {
		t.Errorf("Status = %d, want 404", err.Status)
	}
	if err.Details["id"] != "abc" {
		t.Errorf("Details[id] = %v, want %q", err.Details["id"], "abc")
	}
}

func TestNewNotConnected(t *testing.T) {
	err := NewNotConnected("nightscout")

	if err.Code != ErrNotConnected {
		t.Errorf("Code = %q, want %q", err.Code, ErrNotConnected)
	}
	if err.Status != 409 {
		t.Errorf("Status = %d, want 409", err.Status)
	}
}

func TestNewExportFailed(t *testing.T) {
	err := NewExportFailed(fmt.Errorf("disk full"))
	if err.Message != "export failed: disk full" {
		t.Errorf("Message = %q", err.Message)
	}

	err = NewExportFailed(nil)
	if err.Message != "export failed" {
		t.Errorf("Message = %q, want %q", err.Message, "export failed")
	}
}

func TestNewInternal(t *testing.T) {
	err := NewInternal(fmt.Errorf("database connection failed"))

	if err.Code != ErrInternal {
		t.Errorf("Code = %q, want %q", err.Code, ErrInternal)
	}
	if err.Message != "database connection failed" {
		t.Errorf("Message = %q, want %q", err.Message, "database connection failed")
	}

	err = NewInternal(nil)
	if err.Message != "internal error" {
		t.Errorf("Message = %q, want %q", err.Message, "internal error")
	}
}

func TestIs(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		code     ErrorCode
		expected bool
	}{
		{"matching code", NewNotFound("x"), ErrNotFound, true},
		{"different code", NewNotFound("x"), ErrInternal, false},
		{"wrapped", fmt.Errorf("delete: %w", NewInvalidUnits(0)), ErrInvalidUnits, true},
		{"plain error", stderrors.New("boom"), ErrInternal, false},
		{"nil", nil, ErrInternal, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Is(tt.err, tt.code); got != tt.expected {
				t.Errorf("Is() = %v, want %v", got, tt.expected)
			}
		})
	}
}

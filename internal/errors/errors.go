// Package errors defines the typed errors shared by the annotation engine.
//
// Every failure the engine reports carries an ErrorType so callers can branch
// with errors.Is against the package sentinels:
//
//	if errors.Is(err, apperrors.ErrInvalidShape) {
//	    // mark the annotation incomplete
//	}
package errors

import (
	"errors"
	"fmt"
)

// ErrorType represents different categories of errors
type ErrorType string

const (
	ErrorTypeInvalidShape     ErrorType = "invalid_shape"
	ErrorTypeCapacityExceeded ErrorType = "capacity_exceeded"
	ErrorTypeIndexOutOfRange  ErrorType = "index_out_of_range"
	ErrorTypeInvalidParameter ErrorType = "invalid_parameter"
	ErrorTypeNotFound         ErrorType = "not_found"
	ErrorTypeInternal         ErrorType = "internal"
)

// JSON-RPC error codes used by the server.
const (
	CodeInvalidParams = -32602
	CodeToolFailure   = -32000
)

// Sentinels for errors.Is matching. They compare by Type only.
var (
	ErrInvalidShape     = &AppError{Type: ErrorTypeInvalidShape}
	ErrCapacityExceeded = &AppError{Type: ErrorTypeCapacityExceeded}
	ErrIndexOutOfRange  = &AppError{Type: ErrorTypeIndexOutOfRange}
	ErrInvalidParameter = &AppError{Type: ErrorTypeInvalidParameter}
	ErrNotFound         = &AppError{Type: ErrorTypeNotFound}
)

// AppError represents a structured application error
type AppError struct {
	Type    ErrorType `json:"type"`
	Message string    `json:"message"`
	Cause   error     `json:"-"`
}

// Error implements the error interface
func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s (caused by: %v)", e.Type, e.Message, e.Cause)
	}
	if e.Message == "" {
		return string(e.Type)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

// Unwrap returns the underlying error
func (e *AppError) Unwrap() error {
	return e.Cause
}

// Is reports whether target is an AppError of the same type.
func (e *AppError) Is(target error) bool {
	t, ok := target.(*AppError)
	if !ok {
		return false
	}
	return t.Type == e.Type
}

// NewInvalidShapeError creates an error for insufficient or degenerate handles.
func NewInvalidShapeError(format string, args ...interface{}) *AppError {
	return &AppError{Type: ErrorTypeInvalidShape, Message: fmt.Sprintf(format, args...)}
}

// NewCapacityExceededError creates an error for a handle added past a fixed maximum.
func NewCapacityExceededError(format string, args ...interface{}) *AppError {
	return &AppError{Type: ErrorTypeCapacityExceeded, Message: fmt.Sprintf(format, args...)}
}

// NewIndexOutOfRangeError creates an error for a handle index outside the shape.
func NewIndexOutOfRangeError(index, length int) *AppError {
	return &AppError{
		Type:    ErrorTypeIndexOutOfRange,
		Message: fmt.Sprintf("handle index %d out of range [0,%d)", index, length),
	}
}

// NewInvalidParameterError creates an error for malformed configuration or input.
func NewInvalidParameterError(format string, args ...interface{}) *AppError {
	return &AppError{Type: ErrorTypeInvalidParameter, Message: fmt.Sprintf(format, args...)}
}

// NewNotFoundError creates a new not found error
func NewNotFoundError(what, id string) *AppError {
	return &AppError{Type: ErrorTypeNotFound, Message: fmt.Sprintf("%s %q not found", what, id)}
}

// NewInternalError creates a new internal error
func NewInternalError(message string, cause error) *AppError {
	return &AppError{Type: ErrorTypeInternal, Message: message, Cause: cause}
}

// IsType checks if the error chain holds an AppError of a specific type.
func IsType(err error, errorType ErrorType) bool {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Type == errorType
	}
	return false
}

// Code extracts the JSON-RPC error code for an error.
func Code(err error) int {
	var appErr *AppError
	if errors.As(err, &appErr) {
		switch appErr.Type {
		case ErrorTypeInvalidParameter, ErrorTypeIndexOutOfRange, ErrorTypeCapacityExceeded:
			return CodeInvalidParams
		}
	}
	return CodeToolFailure
}

// Package errors provides structured error handling with typed error codes.
//
// Error codes are grouped by range:
//   - General errors (1-99)
//   - Validation errors (100-199): bad configuration, thresholds, trigger strings, bars
//   - Data errors (200-299): missing instruments, failed loads and queries
//   - Strategy errors (400-499): strategy loading and version gating
//   - Backtest errors (600-699): engine setup and result persistence
//   - Callback errors (800-899): scheduled callback failures
//
// Usage:
//
//	err := errors.Newf(errors.ErrCodeInvalidThreshold, "max_drawdown must be in (0, 1], got %v", v)
//	if errors.HasCode(err, errors.ErrCodeInvalidThreshold) { ... }
package errors

import (
	"errors"
	"fmt"
)

// Error represents a structured error with an error code and message.
type Error struct {
	Code    ErrorCode
	Message string
	Cause   error
}

// New creates a new Error with the given code and message.
func New(code ErrorCode, message string) *Error {
	return &Error{
		Code:    code,
		Message: message,
		Cause:   nil,
	}
}

// Newf creates a new Error with the given code and formatted message.
func Newf(code ErrorCode, format string, args ...any) *Error {
	return New(code, fmt.Sprintf(format, args...))
}

// Wrap wraps cause with a code and message.
func Wrap(code ErrorCode, message string, cause error) *Error {
	return &Error{
		Code:    code,
		Message: message,
		Cause:   cause,
	}
}

// Wrapf wraps cause with a code and formatted message.
func Wrapf(code ErrorCode, cause error, format string, args ...any) *Error {
	return Wrap(code, fmt.Sprintf(format, args...), cause)
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%d] %s: %v", e.Code, e.Message, e.Cause)
	}

	return fmt.Sprintf("[%d] %s", e.Code, e.Message)
}

// Unwrap returns the underlying error cause.
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is is a shorthand for the standard errors.Is.
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As is a shorthand for the standard errors.As.
func As(err error, target any) bool {
	return errors.As(err, target)
}

// GetCode extracts the ErrorCode of the outermost *Error in err's chain.
// Returns ErrCodeUnknown if there is none.
func GetCode(err error) ErrorCode {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}

	return ErrCodeUnknown
}

// HasCode checks if an error has a specific ErrorCode.
func HasCode(err error, code ErrorCode) bool {
	return GetCode(err) == code
}

// InsufficientDataError is returned when a rolling calculation has fewer
// observations than its window requires.
type InsufficientDataError struct {
	Required int
	Actual   int
	Symbol   string
	Message  string
}

// NewInsufficientDataErrorf creates a new InsufficientDataError with a formatted message.
func NewInsufficientDataErrorf(required, actual int, symbol, format string, args ...any) *InsufficientDataError {
	return &InsufficientDataError{
		Required: required,
		Actual:   actual,
		Symbol:   symbol,
		Message:  fmt.Sprintf(format, args...),
	}
}

// Error implements the error interface.
func (e *InsufficientDataError) Error() string {
	return e.Message
}

// IsInsufficientDataError checks the chain of err for an InsufficientDataError.
func IsInsufficientDataError(err error) bool {
	var insufficientErr *InsufficientDataError

	return errors.As(err, &insufficientErr)
}

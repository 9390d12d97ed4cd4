package typegoose

import (
	"errors"
	"fmt"
)

// =====================================
// Error Handling
// =====================================

// Error represents a typegoose-specific error. Errors returned by an engine
// during persistence are never converted into an Error.
type Error struct {
	Type    ErrorType
	Message string
	Cause   error
	Code    string
}

// Error implements the error interface
func (e Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s (caused by: %v)", e.Type, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

// Unwrap returns the underlying error
func (e Error) Unwrap() error {
	return e.Cause
}

// Is checks if the error is of a specific type
func (e Error) Is(target error) bool {
	if t, ok := target.(Error); ok {
		return e.Type == t.Type
	}
	return false
}

// NewError creates a new Error
func NewError(errorType ErrorType, message string) Error {
	return Error{
		Type:    errorType,
		Message: message,
	}
}

// NewErrorf creates a new Error with a formatted message
func NewErrorf(errorType ErrorType, format string, args ...any) Error {
	return NewError(errorType, fmt.Sprintf(format, args...))
}

// NewErrorWithCause creates a new Error with a cause
func NewErrorWithCause(errorType ErrorType, message string, cause error) Error {
	return Error{
		Type:    errorType,
		Message: message,
		Cause:   cause,
	}
}

// NewErrorWithCode creates a new Error with a machine-readable code
func NewErrorWithCode(errorType ErrorType, message, code string) Error {
	return Error{
		Type:    errorType,
		Message: message,
		Code:    code,
	}
}

// IsErrorType checks if an error, or any error it wraps, is of a specific type
func IsErrorType(err error, errorType ErrorType) bool {
	var e Error
	if errors.As(err, &e) {
		return e.Type == errorType
	}
	return false
}

// IsUnresolvedReference checks if a reference target was never declared
func IsUnresolvedReference(err error) bool {
	return IsErrorType(err, ErrorTypeUnresolvedReference)
}

// IsCyclicInheritance checks if an inheritance chain loops back on itself
func IsCyclicInheritance(err error) bool {
	return IsErrorType(err, ErrorTypeCyclicInheritance)
}

// IsDuplicateModel checks if a strict registration hit an existing model
func IsDuplicateModel(err error) bool {
	return IsErrorType(err, ErrorTypeDuplicateModel)
}

// IsValidation checks if an error is a "validation" error
func IsValidation(err error) bool {
	return IsErrorType(err, ErrorTypeValidation)
}

// IsNotFound checks if an error is a "not found" error
func IsNotFound(err error) bool {
	return IsErrorType(err, ErrorTypeNotFound)
}

// IsConnection checks if an error is a "connection" error
func IsConnection(err error) bool {
	return IsErrorType(err, ErrorTypeConnection)
}

// IsSealed checks if metadata was recorded for an already synthesized class
func IsSealed(err error) bool {
	return IsErrorType(err, ErrorTypeSealed)
}
